package parser

import (
	"strings"
	"testing"

	"github.com/shineum/mailjet-relay/internal/email"
)

// partBody returns the body of the last sub-part with the given media type.
func partBody(msg *email.Message, mediaType string) string {
	body := ""
	for _, p := range msg.Parts {
		if email.MediaType(p.ContentType) == mediaType {
			body = p.Body
		}
	}
	return body
}

func TestParsePlainTextEmail(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: Sender <sender@example.com>",
		"To: recipient@example.com",
		"Subject: Test Subject",
		"Message-Id: <test123@example.com>",
		"Content-Type: text/plain",
		"",
		"Hello, this is a plain text email.",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sender, ok := msg.Sender()
	if !ok || sender.Email != "sender@example.com" || sender.Name != "Sender" {
		t.Errorf("Sender: got %+v, want Sender <sender@example.com>", sender)
	}
	if msg.To.Len() != 1 || msg.To[0].Email != "recipient@example.com" {
		t.Errorf("To: got %v, want [recipient@example.com]", msg.To.Emails())
	}
	if msg.Subject != "Test Subject" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "Test Subject")
	}
	if msg.MessageID != "<test123@example.com>" {
		t.Errorf("MessageID: got %q, want %q", msg.MessageID, "<test123@example.com>")
	}
	if msg.ContentType != "text/plain" {
		t.Errorf("ContentType: got %q, want %q", msg.ContentType, "text/plain")
	}
	if msg.Body != "Hello, this is a plain text email." {
		t.Errorf("Body: got %q, want %q", msg.Body, "Hello, this is a plain text email.")
	}
	if len(msg.Parts) != 0 {
		t.Errorf("Parts: got %d, want 0", len(msg.Parts))
	}
	if len(msg.Attachments) != 0 {
		t.Errorf("Attachments: got %d, want 0", len(msg.Attachments))
	}
}

func TestParseHTMLBodyKeepsDeclaredType(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: HTML",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Hi</p>",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.MediaType() != "text/html" {
		t.Errorf("MediaType: got %q, want %q", msg.MediaType(), "text/html")
	}
	if msg.Body != "<p>Hi</p>" {
		t.Errorf("Body: got %q, want %q", msg.Body, "<p>Hi</p>")
	}
}

func TestParseQuotedPrintableBody(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: =?UTF-8?B?SGVsbG8gV8O2cmxk?=",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Caf=C3=A9 au lait, a very long line that was soft=",
		" wrapped",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Subject != "Hello Wörld" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "Hello Wörld")
	}
	if msg.Body != "Café au lait, a very long line that was soft wrapped" {
		t.Errorf("Body: got %q", msg.Body)
	}
}

func TestParseMultipartTextAndHTML(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: Alice <alice@example.com>, bob@example.com",
		"Cc: carol@example.com",
		"Reply-To: Support <support@example.com>",
		"Subject: Multipart Test",
		"Content-Type: multipart/alternative; boundary=boundary123",
		"",
		"--boundary123",
		"Content-Type: text/plain",
		"",
		"Plain text body",
		"--boundary123",
		"Content-Type: text/html",
		"",
		"<html><body><p>HTML body</p></body></html>",
		"--boundary123--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.To.Len() != 2 {
		t.Fatalf("To: got %d recipients, want 2", msg.To.Len())
	}
	if msg.To[0].Email != "alice@example.com" || msg.To[0].Name != "Alice" {
		t.Errorf("To[0]: got %+v, want Alice <alice@example.com>", msg.To[0])
	}
	if msg.To[1].Email != "bob@example.com" {
		t.Errorf("To[1]: got %q, want %q", msg.To[1].Email, "bob@example.com")
	}
	if msg.Cc.Len() != 1 || msg.Cc[0].Email != "carol@example.com" {
		t.Errorf("Cc: got %v, want [carol@example.com]", msg.Cc.Emails())
	}
	if len(msg.ReplyTo) != 1 || msg.ReplyTo[0].String() != "Support <support@example.com>" {
		t.Errorf("ReplyTo: got %v", msg.ReplyTo)
	}
	if msg.Body != "" {
		t.Errorf("Body: got %q, want empty for multipart", msg.Body)
	}
	if len(msg.Parts) != 2 {
		t.Fatalf("Parts: got %d, want 2", len(msg.Parts))
	}
	if got := partBody(msg, "text/plain"); got != "Plain text body" {
		t.Errorf("text part: got %q, want %q", got, "Plain text body")
	}
	if got := partBody(msg, "text/html"); got != "<html><body><p>HTML body</p></body></html>" {
		t.Errorf("html part: got %q", got)
	}
}

func TestParseEmailWithAttachments(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: With Attachment",
		"Content-Type: multipart/mixed; boundary=mixedboundary",
		"",
		"--mixedboundary",
		"Content-Type: text/plain",
		"",
		"Email body text",
		"--mixedboundary",
		"Content-Type: application/pdf; name=\"report.pdf\"",
		"Content-Disposition: attachment; filename=\"report.pdf\"",
		"Content-Transfer-Encoding: base64",
		"",
		"SGVsbG8gV29ybGQ=",
		"--mixedboundary--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := partBody(msg, "text/plain"); got != "Email body text" {
		t.Errorf("text part: got %q, want %q", got, "Email body text")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments: got %d, want 1", len(msg.Attachments))
	}

	att := msg.Attachments[0]
	if att.Filename != "report.pdf" {
		t.Errorf("Attachment Filename: got %q, want %q", att.Filename, "report.pdf")
	}
	if att.ContentType != "application/pdf" {
		t.Errorf("Attachment ContentType: got %q, want %q", att.ContentType, "application/pdf")
	}
	if string(att.Content) != "Hello World" {
		t.Errorf("Attachment Content: got %q, want %q", string(att.Content), "Hello World")
	}
	if att.IsInline() {
		t.Error("Attachment should not be inline")
	}
}

func TestParseInlineImage(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Inline",
		"Content-Type: multipart/related; boundary=rel",
		"",
		"--rel",
		"Content-Type: text/html",
		"",
		"<img src=\"cid:logo@example\">",
		"--rel",
		"Content-Type: image/png",
		"Content-Id: <logo@example>",
		"Content-Disposition: inline; filename=\"logo.png\"",
		"Content-Transfer-Encoding: base64",
		"",
		"iVBORw0KGgo=",
		"--rel",
		"Content-Type: image/gif",
		"Content-Id: <spacer@example>",
		"Content-Transfer-Encoding: base64",
		"",
		"R0lGODlh",
		"--rel--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msg.Attachments) != 2 {
		t.Fatalf("Attachments: got %d, want 2", len(msg.Attachments))
	}

	logo := msg.Attachments[0]
	if !logo.IsInline() || logo.ContentID != "logo@example" || logo.Filename != "logo.png" {
		t.Errorf("logo: got %+v", logo)
	}

	spacer := msg.Attachments[1]
	if !spacer.IsInline() || spacer.ContentID != "spacer@example" {
		t.Errorf("spacer: got disposition %q, content id %q", spacer.Disposition, spacer.ContentID)
	}
	if spacer.Filename != "attachment.gif" {
		t.Errorf("spacer Filename: got %q, want %q", spacer.Filename, "attachment.gif")
	}
}

func TestParseMalformedMIME(t *testing.T) {
	t.Parallel()

	t.Run("completely invalid message", func(t *testing.T) {
		t.Parallel()
		raw := []byte("not a valid email at all\x00\x01\x02")
		_, err := Parse(raw)
		if err == nil {
			t.Error("expected error for completely invalid message, got nil")
		}
	})

	t.Run("missing content type defaults to text/plain", func(t *testing.T) {
		t.Parallel()
		raw := []byte(strings.Join([]string{
			"From: sender@example.com",
			"To: recipient@example.com",
			"Subject: No Content Type",
			"",
			"Body without content type header",
		}, "\r\n"))

		msg, err := Parse(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.MediaType() != "text/plain" {
			t.Errorf("MediaType: got %q, want %q", msg.MediaType(), "text/plain")
		}
		if msg.Body != "Body without content type header" {
			t.Errorf("Body: got %q, want %q", msg.Body, "Body without content type header")
		}
	})

	t.Run("multipart missing boundary", func(t *testing.T) {
		t.Parallel()
		raw := []byte(strings.Join([]string{
			"From: sender@example.com",
			"To: recipient@example.com",
			"Content-Type: multipart/mixed",
			"",
			"some body",
		}, "\r\n"))

		_, err := Parse(raw)
		if err == nil {
			t.Error("expected error for multipart missing boundary, got nil")
		}
	})
}

func TestParseMultipleRecipients(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: alice@example.com, bob@example.com, carol@example.com",
		"Bcc: secret@example.com",
		"Subject: Multiple Recipients",
		"Content-Type: text/plain",
		"",
		"Hello everyone",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.To.Len() != 3 {
		t.Fatalf("To: got %d recipients, want 3", msg.To.Len())
	}
	if msg.Bcc.Len() != 1 || msg.Bcc[0].Email != "secret@example.com" {
		t.Errorf("Bcc: got %v, want [secret@example.com]", msg.Bcc.Emails())
	}
	if got := len(msg.Recipients()); got != 4 {
		t.Errorf("Recipients: got %d, want 4", got)
	}
}

func TestParseEmptyAddressFields(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"Subject: No To",
		"Content-Type: text/plain",
		"",
		"Body",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.To != nil {
		t.Errorf("To: got %v, want nil", msg.To)
	}
	if msg.Cc != nil {
		t.Errorf("Cc: got %v, want nil", msg.Cc)
	}
	if msg.Bcc != nil {
		t.Errorf("Bcc: got %v, want nil", msg.Bcc)
	}
	if msg.ReplyTo != nil {
		t.Errorf("ReplyTo: got %v, want nil", msg.ReplyTo)
	}
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"X-Custom-Header: custom-value",
		"X-Mj-Customid: order-42",
		"Subject: Headers Test",
		"Content-Type: text/plain",
		"",
		"Body",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, ok := msg.Headers.Get("x-custom-header"); !ok || v != "custom-value" {
		t.Errorf("X-Custom-Header: got %q, %v, want custom-value", v, ok)
	}
	if v, ok := msg.Headers.Get("X-MJ-CustomID"); !ok || v != "order-42" {
		t.Errorf("X-MJ-CustomID: got %q, %v, want order-42", v, ok)
	}

	// Header order is sorted by canonical name.
	for i := 1; i < len(msg.Headers); i++ {
		if msg.Headers[i-1].Name > msg.Headers[i].Name {
			t.Fatalf("headers not sorted: %q before %q", msg.Headers[i-1].Name, msg.Headers[i].Name)
		}
	}
}

func TestParseBase64AttachmentWithCRLF(t *testing.T) {
	t.Parallel()

	raw := []byte("From: sender@example.com\r\n" +
		"To: recipient@example.com\r\n" +
		"Subject: CRLF Base64\r\n" +
		"Content-Type: multipart/mixed; boundary=bound\r\n" +
		"\r\n" +
		"--bound\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body\r\n" +
		"--bound\r\n" +
		"Content-Type: application/pdf; name=\"file.pdf\"\r\n" +
		"Content-Disposition: attachment; filename=\"file.pdf\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"SGVs\r\n" +
		"bG8g\r\n" +
		"V29y\r\n" +
		"bGQ=\r\n" +
		"--bound--\r\n")

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments: got %d, want 1", len(msg.Attachments))
	}

	att := msg.Attachments[0]
	if att.Filename != "file.pdf" {
		t.Errorf("Filename: got %q, want %q", att.Filename, "file.pdf")
	}
	if string(att.Content) != "Hello World" {
		t.Errorf("Content: got %q, want %q", string(att.Content), "Hello World")
	}
}

func TestParseAttachmentWithoutFilename(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: No Filename",
		"Content-Type: multipart/mixed; boundary=bound",
		"",
		"--bound",
		"Content-Type: text/plain",
		"",
		"body",
		"--bound",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment",
		"Content-Transfer-Encoding: base64",
		"",
		"SGVsbG8gV29ybGQ=",
		"--bound--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments: got %d, want 1", len(msg.Attachments))
	}

	att := msg.Attachments[0]
	if att.Filename != "attachment.pdf" {
		t.Errorf("Filename: got %q, want %q", att.Filename, "attachment.pdf")
	}
	if string(att.Content) != "Hello World" {
		t.Errorf("Content: got %q, want %q", string(att.Content), "Hello World")
	}
}

func TestParseNestedMultipart(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Nested Multipart",
		"Content-Type: multipart/mixed; boundary=outer",
		"",
		"--outer",
		"Content-Type: multipart/alternative; boundary=inner",
		"",
		"--inner",
		"Content-Type: text/plain",
		"",
		"Plain text part",
		"--inner",
		"Content-Type: text/html",
		"",
		"<p>HTML part</p>",
		"--inner--",
		"--outer",
		"Content-Type: application/octet-stream; name=\"data.bin\"",
		"Content-Disposition: attachment; filename=\"data.bin\"",
		"",
		"binarydata",
		"--outer--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := partBody(msg, "text/plain"); got != "Plain text part" {
		t.Errorf("text part: got %q, want %q", got, "Plain text part")
	}
	if got := partBody(msg, "text/html"); got != "<p>HTML part</p>" {
		t.Errorf("html part: got %q, want %q", got, "<p>HTML part</p>")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments: got %d, want 1", len(msg.Attachments))
	}
	if msg.Attachments[0].Filename != "data.bin" {
		t.Errorf("Attachment Filename: got %q, want %q", msg.Attachments[0].Filename, "data.bin")
	}
}

func TestParseUnrecognizedPartSkipped(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Content-Type: multipart/mixed; boundary=b",
		"",
		"--b",
		"Content-Type: text/calendar",
		"",
		"BEGIN:VCALENDAR",
		"--b--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.Parts) != 0 || len(msg.Attachments) != 0 {
		t.Errorf("expected nothing collected, got %d parts and %d attachments", len(msg.Parts), len(msg.Attachments))
	}
}
