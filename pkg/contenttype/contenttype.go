// Package contenttype guesses the content type sent with an uploaded file.
package contenttype

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Guesser returns a content type for path, or "" when it is unknown.
type Guesser interface {
	Guess(path string) string
}

// Extension guesses from the file extension. With Sniff set, files whose
// extension is unknown are identified from their leading bytes.
type Extension struct {
	Sniff bool
}

func (g Extension) Guess(path string) string {
	if ct := byExtension(path); ct != "" {
		return ct
	}
	if !g.Sniff {
		return ""
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	return m.String()
}

func byExtension(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}
