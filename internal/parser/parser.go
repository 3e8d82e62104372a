// Package parser provides RFC 5322 email message parsing with MIME multipart support.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"sort"
	"strings"

	"github.com/shineum/mailjet-relay/internal/email"
)

var wordDecoder = new(mime.WordDecoder)

// Parse parses a raw RFC 5322 email message into a Message.
//
// A single-part message keeps its body and declared Content-Type. For a
// multipart message the body stays empty and every text/plain or text/html
// sub-part is collected in order; parts carrying a filename or a
// Content-ID become attachments. Unrecognized MIME parts are logged as
// warnings.
func Parse(raw []byte) (*email.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &email.Message{
		Subject:     decodeHeader(msg.Header.Get("Subject")),
		MessageID:   msg.Header.Get("Message-Id"),
		ContentType: msg.Header.Get("Content-Type"),
		From:        parseAddressList(msg.Header.Get("From")),
		ReplyTo:     parseAddressList(msg.Header.Get("Reply-To")),
	}
	for _, a := range parseAddressList(msg.Header.Get("To")) {
		result.To.Add(a.Email, a.Name)
	}
	for _, a := range parseAddressList(msg.Header.Get("Cc")) {
		result.Cc.Add(a.Email, a.Name)
	}
	for _, a := range parseAddressList(msg.Header.Get("Bcc")) {
		result.Bcc.Add(a.Email, a.Name)
	}

	// net/mail keeps headers in a map; sort the names so output is stable.
	names := make([]string, 0, len(msg.Header))
	for name := range msg.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range msg.Header[name] {
			result.Headers.Add(name, decodeHeader(v))
		}
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// If content type is unparseable, treat as plain text
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read message body: %w", readErr)
		}
		result.ContentType = "text/plain"
		result.Body = string(body)
		return result, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if err := parseMultipart(msg.Body, boundary, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	result.Body = string(body)

	return result, nil
}

// parseMultipart processes a multipart MIME message body, extracting text/plain,
// text/html parts and attachments.
func parseMultipart(body io.Reader, boundary string, result *email.Message) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = "text/plain"
		}

		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", partContentType,
				"error", err,
			)
			continue
		}

		// Check for nested multipart
		if strings.HasPrefix(mediaType, "multipart/") {
			nestedBoundary := params["boundary"]
			if nestedBoundary == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(part, nestedBoundary, result); err != nil {
				slog.Warn("failed to parse nested multipart",
					"error", err,
				)
			}
			continue
		}

		content, err := readPartContent(part)
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		contentDisposition := strings.ToLower(part.Header.Get("Content-Disposition"))
		contentID := strings.Trim(strings.TrimSpace(part.Header.Get("Content-Id")), "<>")
		isAttachment := strings.HasPrefix(contentDisposition, "attachment")
		isInline := strings.HasPrefix(contentDisposition, "inline")

		if !isAttachment && (mediaType == "text/plain" || mediaType == "text/html") && part.FileName() == "" {
			result.Parts = append(result.Parts, email.Part{
				ContentType: partContentType,
				Body:        string(content),
			})
			continue
		}

		filename := extractFilename(part, params)
		if !isAttachment && filename == "" && contentID == "" {
			slog.Warn("unrecognized MIME part, skipping",
				"content_type", mediaType,
				"disposition", contentDisposition,
			)
			continue
		}
		if filename == "" {
			filename = fallbackFilename(mediaType)
		}

		att := email.Attachment{
			Filename:    filename,
			ContentType: mediaType,
			Content:     content,
			Disposition: email.DispositionAttachment,
		}
		if contentID != "" && !isAttachment && (isInline || contentDisposition == "") {
			att.Disposition = email.DispositionInline
			att.ContentID = contentID
		}
		result.Attachments = append(result.Attachments, att)
	}

	return nil
}

// readPartContent reads the full content of a MIME part, handling
// Content-Transfer-Encoding. The multipart reader already decodes
// quoted-printable parts and removes their encoding header.
func readPartContent(part *multipart.Part) ([]byte, error) {
	return decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
}

// decodeBody reads r and undoes the named transfer encoding.
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	encoding = strings.ToLower(strings.TrimSpace(encoding))

	if encoding == "quoted-printable" {
		return io.ReadAll(quotedprintable.NewReader(r))
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if encoding != "base64" {
		// "7bit", "8bit", "binary" or empty
		return raw, nil
	}

	cleaned := strings.NewReplacer("\r", "", "\n", "", " ", "").Replace(string(raw))
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		// Try with RawStdEncoding for unpadded base64
		decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 content: %w", err)
		}
	}
	return decoded, nil
}

// extractFilename extracts the filename from a MIME part, checking both
// Content-Disposition and Content-Type parameters.
func extractFilename(part *multipart.Part, params map[string]string) string {
	if fn := part.FileName(); fn != "" {
		return fn
	}
	if name, ok := params["name"]; ok && name != "" {
		return decodeHeader(name)
	}
	return ""
}

// fallbackFilename derives a name from the media type for attachments that
// declare none.
func fallbackFilename(mediaType string) string {
	parts := strings.SplitN(mediaType, "/", 2)
	if len(parts) == 2 && parts[1] != "" {
		return "attachment." + parts[1]
	}
	return "attachment"
}

// decodeHeader decodes RFC 2047 encoded-words, returning the input unchanged
// when it cannot be decoded.
func decodeHeader(v string) string {
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// parseAddressList parses an address header into addresses with display names.
func parseAddressList(raw string) []email.Address {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		// Fall back to simple comma split if RFC 5322 parsing fails
		parts := strings.Split(raw, ",")
		result := make([]email.Address, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.Trim(strings.TrimSpace(p), "<>")
			if trimmed != "" {
				result = append(result, email.Address{Email: trimmed})
			}
		}
		return result
	}

	result := make([]email.Address, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, email.Address{Email: addr.Address, Name: addr.Name})
	}
	return result
}
