package mailjet

import (
	"encoding/json"

	"github.com/shineum/mailjet-relay/internal/email"
)

// StructuredRequest is the v3.1 request body. Every message, single or bulk,
// is one element of Messages.
type StructuredRequest struct {
	Messages []StructuredMessage `json:"Messages"`
}

// StructuredMessage is a v3.1 Send API message.
type StructuredMessage struct {
	From               Recipient           `json:"From"`
	To                 []Recipient         `json:"To"`
	Cc                 []Recipient         `json:"Cc,omitempty"`
	Bcc                []Recipient         `json:"Bcc,omitempty"`
	ReplyTo            *Recipient          `json:"ReplyTo,omitempty"`
	Subject            string              `json:"Subject"`
	HTMLPart           *string             `json:"HTMLPart"`
	TextPart           *string             `json:"TextPart"`
	Headers            map[string]string   `json:"Headers,omitempty"`
	Attachments        []StructuredFile    `json:"Attachments,omitempty"`
	InlinedAttachments []StructuredInlined `json:"InlinedAttachments,omitempty"`

	// Reserved holds template, tracking and campaign fields taken from
	// X-MJ/X-Mailjet headers. They are written at the top level.
	Reserved map[string]any `json:"-"`
}

// MarshalJSON merges Reserved into the top-level object.
func (m StructuredMessage) MarshalJSON() ([]byte, error) {
	type plain StructuredMessage
	return marshalWithReserved(plain(m), m.Reserved)
}

// Recipient is a v3.1 address object.
type Recipient struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

// StructuredFile is a v3.1 attachment descriptor.
type StructuredFile struct {
	ContentType   string `json:"ContentType"`
	Filename      string `json:"Filename"`
	Base64Content string `json:"Base64Content"`
}

// StructuredInlined is a v3.1 inline attachment descriptor.
type StructuredInlined struct {
	ContentType   string `json:"ContentType"`
	Filename      string `json:"Filename"`
	ContentID     string `json:"ContentID"`
	Base64Content string `json:"Base64Content"`
}

// structuredResponse is the part of a v3.1 response used to count accepted recipients.
type structuredResponse struct {
	Messages []struct {
		To  []json.RawMessage `json:"To"`
		Cc  []json.RawMessage `json:"Cc"`
		Bcc []json.RawMessage `json:"Bcc"`
	} `json:"Messages"`
}

// StructuredBuilder produces v3.1 payloads.
type StructuredBuilder struct{}

// Version reports Structured.
func (b *StructuredBuilder) Version() SchemaVersion {
	return Structured
}

// Payload returns a *StructuredRequest holding one entry per message.
func (b *StructuredBuilder) Payload(msgs ...*email.Message) (any, error) {
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}

	req := &StructuredRequest{Messages: make([]StructuredMessage, 0, len(msgs))}
	for _, msg := range msgs {
		m, err := b.Message(msg)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, *m)
	}
	return req, nil
}

// Batch is Payload: the v3.1 body is always a batch.
func (b *StructuredBuilder) Batch(msgs []*email.Message) (any, error) {
	return b.Payload(msgs...)
}

// Message converts one message into the v3.1 format, without the envelope.
func (b *StructuredBuilder) Message(msg *email.Message) (*StructuredMessage, error) {
	sender, err := checkAddressing(msg)
	if err != nil {
		return nil, err
	}

	reserved, headers := classifyHeaders(msg.Headers, structuredReserved)
	html, text := msg.Bodies()

	out := &StructuredMessage{
		From:     Recipient{Email: sender.Email, Name: sender.Name},
		To:       recipients(msg.To),
		Cc:       recipients(msg.Cc),
		Bcc:      recipients(msg.Bcc),
		Subject:  msg.Subject,
		HTMLPart: html,
		TextPart: text,
	}
	if out.To == nil {
		out.To = []Recipient{}
	}

	if len(msg.ReplyTo) > 0 {
		out.ReplyTo = &Recipient{Email: msg.ReplyTo[0].Email, Name: msg.ReplyTo[0].Name}
	}
	if len(headers) > 0 {
		out.Headers = headers
	}
	if len(reserved) > 0 {
		out.Reserved = reserved
	}

	regular, inline := encodeAttachments(msg.Attachments)
	for _, att := range regular {
		out.Attachments = append(out.Attachments, StructuredFile{
			ContentType:   att.ContentType,
			Filename:      att.Filename,
			Base64Content: att.Base64Content,
		})
	}
	for _, att := range inline {
		out.InlinedAttachments = append(out.InlinedAttachments, StructuredInlined{
			ContentType:   att.ContentType,
			Filename:      att.Filename,
			ContentID:     att.ContentID,
			Base64Content: att.Base64Content,
		})
	}

	return out, nil
}

// SentCount sums the To, Cc and Bcc lists of every message in the response.
func (b *StructuredBuilder) SentCount(resp *Response) int {
	if resp == nil || len(resp.Body) == 0 {
		return 0
	}
	var body structuredResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return 0
	}

	count := 0
	for _, m := range body.Messages {
		count += len(m.To) + len(m.Cc) + len(m.Bcc)
	}
	return count
}

func recipients(list email.AddressList) []Recipient {
	if len(list) == 0 {
		return nil
	}
	out := make([]Recipient, 0, len(list))
	for _, a := range list {
		out = append(out, Recipient{Email: a.Email, Name: a.Name})
	}
	return out
}
