package mailjet

import (
	"encoding/base64"
	"strings"

	"github.com/shineum/mailjet-relay/internal/email"
)

const defaultAttachmentType = "application/octet-stream"

// encodedAttachment is the schema-neutral form of one attachment.
type encodedAttachment struct {
	ContentType   string
	Filename      string
	Base64Content string
	ContentID     string
}

// encodeAttachments base64-encodes every attachment once and routes inline
// parts to their own list. Source order is kept within each list.
func encodeAttachments(atts []email.Attachment) (regular, inline []encodedAttachment) {
	for _, att := range atts {
		enc := encodeAttachment(att)
		if att.IsInline() {
			inline = append(inline, enc)
			continue
		}
		regular = append(regular, enc)
	}
	return regular, inline
}

func encodeAttachment(att email.Attachment) encodedAttachment {
	enc := encodedAttachment{
		ContentType:   att.ContentType,
		Filename:      att.Filename,
		Base64Content: base64.StdEncoding.EncodeToString(att.Content),
	}
	if enc.ContentType == "" {
		enc.ContentType = defaultAttachmentType
	}
	if att.IsInline() {
		enc.ContentID = strings.Trim(strings.TrimSpace(att.ContentID), "<>")
	}
	return enc
}
