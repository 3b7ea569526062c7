package validation

import (
	"fmt"
	"path"
	"strings"
)

const (
	maxBodyLen     = 10_000
	maxFileNameLen = 200
)

// CheckBody validates a message body. An empty body is permitted only when
// hasAttachments is true (attachment-only sends).
func CheckBody(body string, hasAttachments bool) error {
	if strings.TrimSpace(body) == "" && !hasAttachments {
		return fmt.Errorf("body is required")
	}
	if len(body) > maxBodyLen {
		return fmt.Errorf("body too long (max %d bytes)", maxBodyLen)
	}
	return nil
}

// CheckUpload validates upload-slot request fields.
func CheckUpload(fileName, mimeType string, sizeBytes, maxSize int64) error {
	if strings.TrimSpace(fileName) == "" {
		return fmt.Errorf("file_name is required")
	}
	if strings.TrimSpace(mimeType) == "" {
		return fmt.Errorf("mime_type is required")
	}
	if sizeBytes <= 0 {
		return fmt.Errorf("size_bytes must be a positive integer")
	}
	if maxSize > 0 && sizeBytes > maxSize {
		return fmt.Errorf("size_bytes exceeds the %d byte limit", maxSize)
	}
	return nil
}

// CheckEmail performs a minimal shape check; real validation is delegated
// to the mail provider.
func CheckEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// SanitizeFileName strips any path components and characters unsafe for a
// storage key, and bounds the length. Runs of replaced characters collapse
// to a single underscore. Returns "file" when nothing usable remains.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	underscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
			underscore = r == '_'
		default:
			if !underscore {
				b.WriteByte('_')
			}
			underscore = true
		}
	}
	s := strings.Trim(b.String(), "._")
	if s == "" {
		return "file"
	}
	if len(s) > maxFileNameLen {
		s = s[len(s)-maxFileNameLen:]
	}
	return s
}

// PreviewLimit bounds thread preview text.
const PreviewLimit = 140

// AttachmentPreview is the preview used for attachment-only sends.
const AttachmentPreview = "[Attachment]"

// Preview derives the thread summary excerpt from plaintext, truncated at
// rune granularity.
func Preview(plaintext string) string {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return AttachmentPreview
	}
	runes := []rune(plaintext)
	if len(runes) <= PreviewLimit {
		return plaintext
	}
	return string(runes[:PreviewLimit])
}
