package stdout

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shineum/mailjet-relay/internal/email"
	"github.com/shineum/mailjet-relay/internal/provider"
)

var _ provider.Provider = (*Provider)(nil)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed pipe")
}

func reportMessage() *email.Message {
	msg := &email.Message{
		From:        []email.Address{{Email: "sender@example.com"}},
		Subject:     "Monthly Report",
		Body:        "Please find the report attached.",
		ContentType: "text/plain",
	}
	msg.To.Add("alice@example.com", "Alice")
	msg.To.Add("bob@example.com", "")
	return msg
}

func TestSend_BasicEmail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	result, err := p.Send(context.Background(), reportMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != provider.OutcomeSuccess || result.Sent != 2 {
		t.Errorf("result: got %+v, want success with 2 sent", result)
	}

	output := buf.String()

	checks := []string{
		"From: sender@example.com",
		"To: Alice <alice@example.com>, bob@example.com",
		"Subject: Monthly Report",
		"Please find the report attached.",
	}
	for _, want := range checks {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
	for _, unwanted := range []string{"Cc:", "Bcc:", "Attachments:"} {
		if strings.Contains(output, unwanted) {
			t.Errorf("output should not contain %q", unwanted)
		}
	}
	if !strings.HasPrefix(output, separator) {
		t.Error("output should start with separator line")
	}
	if !strings.HasSuffix(output, separator) {
		t.Error("output should end with separator line")
	}
}

func TestSend_CopiesAndHeaders(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := reportMessage()
	msg.Cc.Add("carol@example.com", "")
	msg.Bcc.Add("dave@example.com", "")
	msg.ReplyTo = []email.Address{{Email: "reply@example.com"}}
	msg.Headers.Add("X-Campaign", "q3")
	msg.Headers.Add("Received", "hidden")

	result, err := p.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 4 {
		t.Errorf("Sent: got %d, want 4", result.Sent)
	}

	output := buf.String()
	for _, want := range []string{"Cc: carol@example.com", "Bcc: dave@example.com", "Reply-To: reply@example.com", "X-Campaign: q3"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(output, "Received") {
		t.Error("output should only list X- headers")
	}
}

func TestSend_WithAttachments(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := reportMessage()
	msg.Attachments = []email.Attachment{
		{Filename: "report.pdf", ContentType: "application/pdf", Content: make([]byte, 46080)},
		{Filename: "logo.png", ContentType: "image/png", Content: make([]byte, 512), Disposition: email.DispositionInline, ContentID: "logo"},
	}

	if _, err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Attachments: report.pdf (45.0 KB), logo.png (512 B) inline cid:logo"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("output missing %q, got:\n%s", want, buf.String())
	}
}

func TestPreviewBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *email.Message
		want string
	}{
		{name: "plain body", msg: &email.Message{Body: "plain"}, want: "plain"},
		{name: "html body", msg: &email.Message{Body: "<p>x</p>", ContentType: "text/html"}, want: "<p>x</p>"},
		{
			name: "text part preferred over html",
			msg: &email.Message{Parts: []email.Part{
				{ContentType: "text/html", Body: "<p>x</p>"},
				{ContentType: "text/plain", Body: "x"},
			}},
			want: "x",
		},
		{
			name: "html part fallback",
			msg:  &email.Message{Parts: []email.Part{{ContentType: "text/html", Body: "<p>only</p>"}}},
			want: "<p>only</p>",
		},
		{name: "unsupported type shown as html", msg: &email.Message{Body: "<p>hi</p>", ContentType: "application/xhtml+xml"}, want: "<p>hi</p>"},
		{
			name: "text part preferred over html body",
			msg: &email.Message{
				Body:        "<p>x</p>",
				ContentType: "text/html",
				Parts:       []email.Part{{ContentType: "text/plain", Body: "x"}},
			},
			want: "x",
		},
		{name: "empty", msg: &email.Message{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := previewBody(tt.msg); got != tt.want {
				t.Errorf("previewBody: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSend_NoRecipients(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := reportMessage()
	msg.To = nil

	_, err := p.Send(context.Background(), msg)
	if !errors.Is(err, provider.ErrInvalidMessage) {
		t.Errorf("error: got %v, want ErrInvalidMessage", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be printed for an invalid message")
	}
}

func TestSend_WriteFailure(t *testing.T) {
	t.Parallel()

	p := NewWithWriter(failingWriter{})

	result, err := p.Send(context.Background(), reportMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != provider.OutcomeFailed {
		t.Errorf("Outcome: got %v, want failed", result.Outcome)
	}
	if len(result.FailedRecipients) != 2 {
		t.Errorf("FailedRecipients: got %d, want 2", len(result.FailedRecipients))
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	p := New()
	if p.Name() != "stdout" {
		t.Errorf("Name: got %q, want %q", p.Name(), "stdout")
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int
		want  string
	}{
		{name: "zero bytes", bytes: 0, want: "0 B"},
		{name: "small bytes", bytes: 512, want: "512 B"},
		{name: "kilobytes", bytes: 46080, want: "45.0 KB"},
		{name: "megabytes", bytes: 1258291, want: "1.2 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatSize(tt.bytes)
			if got != tt.want {
				t.Errorf("formatSize(%d): got %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
