// Package ses implements a Provider that sends emails via AWS SES v2.
package ses

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/mailjet-relay/internal/email"
	"github.com/shineum/mailjet-relay/internal/provider"
)

// maxAttempts bounds the SDK retryer for throttling and transient errors.
const maxAttempts = 4

var (
	errNoSender     = fmt.Errorf("%w: no sender address", provider.ErrInvalidMessage)
	errNoRecipients = fmt.Errorf("%w: no recipients", provider.ErrInvalidMessage)
)

// Config holds the configuration for creating a Provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Sender overrides the message's From address when set. SES only
	// accepts verified identities, so relays usually pin it.
	Sender string
	Logger *slog.Logger
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Provider sends emails via the AWS SES v2 API.
type Provider struct {
	sender string
	client SendEmailAPI
	logger *slog.Logger
}

// New creates a Provider backed by an SES v2 client built from the
// default AWS credential chain, or from static keys when both are given.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(maxAttempts),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg), cfg.Logger), nil
}

// NewWithClient creates a Provider with a custom client, used for testing.
func NewWithClient(sender string, client SendEmailAPI, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		sender: sender,
		client: client,
		logger: logger,
	}
}

// Send delivers msg via SES. Messages with attachments go out as raw MIME;
// everything else uses the simple content format. An SES API error is
// reported as a failed result naming every recipient.
func (p *Provider) Send(ctx context.Context, msg *email.Message) (*provider.Result, error) {
	from, err := p.from(msg)
	if err != nil {
		return nil, err
	}
	recipients := msg.Recipients()
	if len(recipients) == 0 {
		return nil, errNoRecipients
	}

	var input *sesv2.SendEmailInput
	if len(msg.Attachments) > 0 {
		raw, err := buildRawMessage(from, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to build raw message: %w", err)
		}
		input = &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(from),
			Destination:      buildDestination(msg),
			Content: &types.EmailContent{
				Raw: &types.RawMessage{Data: raw},
			},
		}
	} else {
		input = buildSimpleInput(from, msg)
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		p.logger.WarnContext(ctx, "SES API error",
			"message_id", msg.MessageID,
			"error", err,
		)
		return &provider.Result{
			Outcome:          provider.OutcomeFailed,
			FailedRecipients: recipients,
		}, nil
	}

	p.logger.DebugContext(ctx, "SES accepted message",
		"message_id", msg.MessageID,
		"ses_message_id", aws.ToString(out.MessageId),
	)
	return &provider.Result{
		Outcome:    provider.OutcomeSuccess,
		Sent:       len(recipients),
		StatusCode: 200,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ses"
}

func (p *Provider) from(msg *email.Message) (string, error) {
	if p.sender != "" {
		return p.sender, nil
	}
	sender, ok := msg.Sender()
	if !ok {
		return "", errNoSender
	}
	return formatAddress(sender), nil
}

// bodies returns the HTML and text bodies of msg, empty when absent.
func bodies(msg *email.Message) (html, text string) {
	h, t := msg.Bodies()
	return aws.ToString(h), aws.ToString(t)
}

// formatAddress renders a as an RFC 5322 mailbox, encoding a non-ASCII
// display name. A bare address is returned as is.
func formatAddress(a email.Address) string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

func formatList(addrs []email.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, formatAddress(a))
	}
	return out
}

func buildDestination(msg *email.Message) *types.Destination {
	return &types.Destination{
		ToAddresses:  formatList(msg.To),
		CcAddresses:  formatList(msg.Cc),
		BccAddresses: formatList(msg.Bcc),
	}
}

// buildSimpleInput creates a SES SendEmailInput for emails without attachments.
func buildSimpleInput(from string, msg *email.Message) *sesv2.SendEmailInput {
	body := &types.Body{}

	html, text := bodies(msg)
	if html != "" {
		body.Html = &types.Content{
			Data:    aws.String(html),
			Charset: aws.String("UTF-8"),
		}
	}
	if text != "" {
		body.Text = &types.Content{
			Data:    aws.String(text),
			Charset: aws.String("UTF-8"),
		}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      buildDestination(msg),
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: body,
			},
		},
	}
	if len(msg.ReplyTo) > 0 {
		input.ReplyToAddresses = formatList(msg.ReplyTo)
	}
	return input
}

// buildRawMessage constructs a multipart/mixed MIME message. Bcc is left
// out of the headers; SES reads it from the destination.
func buildRawMessage(from string, msg *email.Message) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	if msg.To.Len() > 0 {
		fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(formatList(msg.To), ", "))
	}
	if msg.Cc.Len() > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(formatList(msg.Cc), ", "))
	}
	if len(msg.ReplyTo) > 0 {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", strings.Join(formatList(msg.ReplyTo), ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject))
	if msg.MessageID != "" {
		fmt.Fprintf(&buf, "Message-ID: %s\r\n", msg.MessageID)
	}
	for _, h := range msg.Headers {
		if strings.HasPrefix(strings.ToUpper(h.Name), "X-") {
			fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, mime.QEncoding.Encode("UTF-8", h.Value))
		}
	}
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	if err := writeBody(writer, msg); err != nil {
		return nil, err
	}

	for _, att := range msg.Attachments {
		attHeader := make(textproto.MIMEHeader)
		attHeader.Set("Content-Type", att.ContentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		disposition := "attachment"
		if att.IsInline() {
			disposition = "inline"
			attHeader.Set("Content-ID", "<"+att.ContentID+">")
		}
		attHeader.Set("Content-Disposition",
			mime.FormatMediaType(disposition, map[string]string{"filename": att.Filename}))

		part, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := part.Write([]byte(encodeBase64WithLineBreaks(att.Content))); err != nil {
			return nil, fmt.Errorf("failed to write attachment %q: %w", att.Filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBody adds the body to the mixed container: a single text part, or a
// nested multipart/alternative when both HTML and text are present.
func writeBody(writer *multipart.Writer, msg *email.Message) error {
	html, text := bodies(msg)

	switch {
	case html != "" && text != "":
		alt := &bytes.Buffer{}
		altWriter := multipart.NewWriter(alt)
		if err := writeTextPart(altWriter, email.MediaTypeText, text); err != nil {
			return err
		}
		if err := writeTextPart(altWriter, email.MediaTypeHTML, html); err != nil {
			return err
		}
		if err := altWriter.Close(); err != nil {
			return fmt.Errorf("failed to close alternative part: %w", err)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Type", "multipart/alternative; boundary="+altWriter.Boundary())
		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("failed to create body part: %w", err)
		}
		_, err = part.Write(alt.Bytes())
		return err
	case html != "":
		return writeTextPart(writer, email.MediaTypeHTML, html)
	case text != "":
		return writeTextPart(writer, email.MediaTypeText, text)
	}
	return nil
}

func writeTextPart(writer *multipart.Writer, mediaType, body string) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", mediaType+"; charset=UTF-8")
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", mediaType, err)
	}
	_, err = part.Write([]byte(body))
	return err
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}
