// Package stdout implements a Provider that prints emails instead of
// delivering them. It backs the relay when no API credentials are configured.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/mailjet-relay/internal/email"
	"github.com/shineum/mailjet-relay/internal/provider"
)

const separator = "========================================\n"

var errNoRecipients = fmt.Errorf("%w: no recipients", provider.ErrInvalidMessage)

// Provider prints email messages in a human-readable format.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints the message summary. Every recipient counts as sent unless
// the write fails.
func (p *Provider) Send(_ context.Context, msg *email.Message) (*provider.Result, error) {
	recipients := msg.Recipients()
	if len(recipients) == 0 {
		return nil, errNoRecipients
	}

	var b strings.Builder

	b.WriteString(separator)
	if sender, ok := msg.Sender(); ok {
		fmt.Fprintf(&b, "From: %s\n", sender)
	}
	writeList(&b, "To", msg.To)
	writeList(&b, "Cc", msg.Cc)
	writeList(&b, "Bcc", msg.Bcc)
	writeList(&b, "Reply-To", msg.ReplyTo)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)

	for _, h := range msg.Headers {
		if strings.HasPrefix(strings.ToUpper(h.Name), "X-") {
			fmt.Fprintf(&b, "%s: %s\n", h.Name, h.Value)
		}
	}

	b.WriteString("Body:\n")
	b.WriteString(previewBody(msg) + "\n")

	if len(msg.Attachments) > 0 {
		attachments := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			desc := fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content)))
			if att.IsInline() {
				desc += " inline cid:" + att.ContentID
			}
			attachments = append(attachments, desc)
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}

	b.WriteString(separator)

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return &provider.Result{
			Outcome:          provider.OutcomeFailed,
			FailedRecipients: recipients,
		}, nil
	}

	return &provider.Result{
		Outcome: provider.OutcomeSuccess,
		Sent:    len(recipients),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

func writeList(b *strings.Builder, label string, addrs []email.Address) {
	if len(addrs) == 0 {
		return
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(parts, ", "))
}

// previewBody prefers the text body, falling back to HTML.
func previewBody(msg *email.Message) string {
	html, text := msg.Bodies()
	switch {
	case text != nil:
		return *text
	case html != nil:
		return *html
	}
	return ""
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
