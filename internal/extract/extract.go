// Package extract turns message attachments into model input.
package extract

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/kommissarhq/kommissar/internal/chat"
)

const maxTextBytes = 64 * 1024

// Text extracts plain text from a document attachment. HTML is converted
// to markdown; other text-like content passes through. Returns false for
// content it cannot read.
func Text(name, contentType string, data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	if len(data) > maxTextBytes {
		data = data[:maxTextBytes]
	}

	ct := strings.ToLower(contentType)
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case strings.Contains(ct, "text/html") || ext == ".html" || ext == ".htm":
		md, err := htmltomarkdown.ConvertString(string(data))
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(md), true
	case strings.HasPrefix(ct, "text/"),
		strings.Contains(ct, "application/json"),
		ext == ".txt", ext == ".md", ext == ".log", ext == ".csv":
		return strings.TrimSpace(string(data)), true
	}
	return "", false
}

// ImagePart adapts image bytes into an inline model part. Returns false
// for non-image content.
func ImagePart(contentType string, data []byte) (chat.Part, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if !strings.HasPrefix(ct, "image/") || len(data) == 0 {
		return chat.Part{}, false
	}
	return chat.Part{
		Inline: &chat.Blob{
			MIMEType: ct,
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}, true
}
