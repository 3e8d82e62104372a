package mailjet

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailjet-relay/internal/email"
)

func TestEncodeAttachments_RoutesInline(t *testing.T) {
	t.Parallel()

	atts := []email.Attachment{
		{Filename: "a.pdf", ContentType: "application/pdf", Content: []byte("first"), Disposition: email.DispositionAttachment},
		{Filename: "logo.png", ContentType: "image/png", Content: []byte("png"), Disposition: email.DispositionInline, ContentID: "<logo@example>"},
		{Filename: "b.csv", ContentType: "text/csv", Content: []byte("second")},
	}

	regular, inline := encodeAttachments(atts)

	require.Len(t, regular, 2)
	require.Len(t, inline, 1)
	assert.Equal(t, "a.pdf", regular[0].Filename)
	assert.Equal(t, "b.csv", regular[1].Filename)
	assert.Empty(t, regular[0].ContentID)
	assert.Equal(t, "logo@example", inline[0].ContentID)
}

func TestEncodeAttachments_SingleUnwrappedBase64(t *testing.T) {
	t.Parallel()

	content := make([]byte, 300)
	for i := range content {
		content[i] = byte(i)
	}

	regular, _ := encodeAttachments([]email.Attachment{{Filename: "bin", Content: content}})

	require.Len(t, regular, 1)
	assert.NotContains(t, regular[0].Base64Content, "\n")
	decoded, err := base64.StdEncoding.DecodeString(regular[0].Base64Content)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
	assert.Equal(t, "application/octet-stream", regular[0].ContentType)
}

func TestEncodeAttachments_Empty(t *testing.T) {
	t.Parallel()

	regular, inline := encodeAttachments(nil)
	assert.Nil(t, regular)
	assert.Nil(t, inline)
}
