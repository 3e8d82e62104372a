package mailjet

import (
	"encoding/json"

	"github.com/shineum/mailjet-relay/internal/email"
)

// LegacyMessage is a v3 Send API message.
type LegacyMessage struct {
	FromEmail   string             `json:"FromEmail"`
	FromName    string             `json:"FromName,omitempty"`
	Subject     string             `json:"Subject"`
	HTMLPart    *string            `json:"Html-part"`
	TextPart    *string            `json:"Text-part"`
	Recipients  []LegacyRecipient  `json:"Recipients,omitempty"`
	To          string             `json:"To,omitempty"`
	Cc          string             `json:"Cc,omitempty"`
	Bcc         string             `json:"Bcc,omitempty"`
	Headers     map[string]string  `json:"Headers,omitempty"`
	Attachments []LegacyAttachment `json:"Attachments,omitempty"`

	// Reserved holds template, tracking and campaign fields taken from
	// X-MJ/X-Mailjet headers. They are written at the top level.
	Reserved map[string]any `json:"-"`
}

// MarshalJSON merges Reserved into the top-level object.
func (m LegacyMessage) MarshalJSON() ([]byte, error) {
	type plain LegacyMessage
	return marshalWithReserved(plain(m), m.Reserved)
}

// LegacyRecipient is one entry of the v3 Recipients list.
type LegacyRecipient struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

// LegacyAttachment is a v3 attachment descriptor.
type LegacyAttachment struct {
	ContentType string `json:"Content-type"`
	Filename    string `json:"Filename"`
	Content     string `json:"content"`
}

// LegacyBatch is the v3 bulk request body.
type LegacyBatch struct {
	Messages []LegacyMessage `json:"Messages"`
}

// legacyResponse is the part of a v3 response used to count accepted recipients.
type legacyResponse struct {
	Sent []json.RawMessage `json:"Sent"`
}

// LegacyBuilder produces v3 payloads.
type LegacyBuilder struct {
	Routing LegacyRouting
}

// Version reports Legacy.
func (b *LegacyBuilder) Version() SchemaVersion {
	return Legacy
}

// Payload returns a *LegacyMessage for a single message and a *LegacyBatch otherwise.
func (b *LegacyBuilder) Payload(msgs ...*email.Message) (any, error) {
	if len(msgs) == 1 {
		return b.Message(msgs[0])
	}
	return b.Batch(msgs)
}

// Batch returns a *LegacyBatch, even for a single message.
func (b *LegacyBuilder) Batch(msgs []*email.Message) (any, error) {
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}

	batch := &LegacyBatch{Messages: make([]LegacyMessage, 0, len(msgs))}
	for _, msg := range msgs {
		m, err := b.Message(msg)
		if err != nil {
			return nil, err
		}
		batch.Messages = append(batch.Messages, *m)
	}
	return batch, nil
}

// Message converts one message into the v3 format.
func (b *LegacyBuilder) Message(msg *email.Message) (*LegacyMessage, error) {
	sender, err := checkAddressing(msg)
	if err != nil {
		return nil, err
	}

	reserved, headers := classifyHeaders(msg.Headers, legacyReserved)
	if len(msg.ReplyTo) > 0 {
		headers["Reply-To"] = msg.ReplyTo[0].String()
	}
	html, text := msg.Bodies()

	out := &LegacyMessage{
		FromEmail: sender.Email,
		FromName:  sender.Name,
		Subject:   msg.Subject,
		HTMLPart:  html,
		TextPart:  text,
	}

	if b.Routing == RouteHeaders {
		out.To = msg.To.Join()
		out.Cc = msg.Cc.Join()
		out.Bcc = msg.Bcc.Join()
	} else {
		for _, r := range msg.Recipients() {
			out.Recipients = append(out.Recipients, LegacyRecipient{Email: r.Email, Name: r.Name})
		}
	}

	if len(headers) > 0 {
		out.Headers = headers
	}
	if len(reserved) > 0 {
		out.Reserved = reserved
	}

	// v3 has no separate inline list; inline parts travel as regular attachments.
	for _, a := range msg.Attachments {
		att := encodeAttachment(a)
		out.Attachments = append(out.Attachments, LegacyAttachment{
			ContentType: att.ContentType,
			Filename:    att.Filename,
			Content:     att.Base64Content,
		})
	}

	return out, nil
}

// SentCount returns the length of the response's Sent list.
func (b *LegacyBuilder) SentCount(resp *Response) int {
	if resp == nil || len(resp.Body) == 0 {
		return 0
	}
	var body legacyResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return 0
	}
	return len(body.Sent)
}
