// Package email defines the generic message model consumed by every delivery backend.
package email

import (
	"mime"
	"strings"
)

// Disposition controls whether an attachment is rendered inline or offered as a download.
type Disposition string

const (
	DispositionAttachment Disposition = "attachment"
	DispositionInline     Disposition = "inline"
)

// Body media types recognized by Bodies.
const (
	MediaTypeText = "text/plain"
	MediaTypeHTML = "text/html"
)

// Message is a parsed email message. Backends treat it as read-only input.
type Message struct {
	From        []Address
	To          AddressList
	Cc          AddressList
	Bcc         AddressList
	ReplyTo     []Address
	Subject     string
	Body        string
	ContentType string
	Parts       []Part
	Attachments []Attachment
	Headers     Header
	MessageID   string
}

// Part is an alternative body representation, e.g. the text/plain twin of an HTML body.
type Part struct {
	ContentType string
	Body        string
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
	Disposition Disposition
	// ContentID is set for inline parts referenced from the body as cid:<ContentID>.
	ContentID string
}

// IsInline reports whether the attachment is addressed by Content-ID from the body.
func (a Attachment) IsInline() bool {
	return a.Disposition == DispositionInline
}

// Sender returns the first From address. Additional From entries are ignored.
func (m *Message) Sender() (Address, bool) {
	if len(m.From) == 0 {
		return Address{}, false
	}
	return m.From[0], true
}

// Recipients returns To, Cc and Bcc concatenated in that order.
func (m *Message) Recipients() []Address {
	all := make([]Address, 0, m.To.Len()+m.Cc.Len()+m.Bcc.Len())
	all = append(all, m.To...)
	all = append(all, m.Cc...)
	all = append(all, m.Bcc...)
	return all
}

// Bodies resolves the HTML and text bodies of the message. The top-level body
// fills the slot matching the declared content type, and anything other than
// text/plain counts as HTML. Typed sub-parts then override their slot.
// A nil result means the slot has no content.
func (m *Message) Bodies() (html, text *string) {
	if m.Body != "" {
		body := m.Body
		if m.MediaType() == MediaTypeText {
			text = &body
		} else {
			html = &body
		}
	}

	for _, part := range m.Parts {
		body := part.Body
		switch MediaType(part.ContentType) {
		case MediaTypeHTML:
			html = &body
		case MediaTypeText:
			text = &body
		}
	}

	return html, text
}

// MediaType returns the declared primary content type without parameters, lower-cased.
// An empty declaration is reported as text/plain, the RFC 2045 default.
func (m *Message) MediaType() string {
	return MediaType(m.ContentType)
}

// MediaType strips parameters from a Content-Type value and lower-cases it.
func MediaType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return MediaTypeText
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
