package contenttype

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestExtensionGuess(t *testing.T) {
	dir := t.TempDir()
	noExt := filepath.Join(dir, "picture")
	if err := os.WriteFile(noExt, pngHeader, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		guesser Extension
		path    string
		want    string
	}{
		{
			name:    "known extension",
			guesser: Extension{},
			path:    "photos/cat.png",
			want:    "image/png",
		},
		{
			name:    "json",
			guesser: Extension{},
			path:    "data.json",
			want:    "application/json",
		},
		{
			name:    "no extension without sniffing",
			guesser: Extension{},
			path:    noExt,
			want:    "",
		},
		{
			name:    "no extension sniffed",
			guesser: Extension{Sniff: true},
			path:    noExt,
			want:    "image/png",
		},
		{
			name:    "missing file sniffed",
			guesser: Extension{Sniff: true},
			path:    filepath.Join(dir, "missing"),
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.guesser.Guess(tt.path)
			// system mime tables may append parameters
			if got != tt.want && !strings.HasPrefix(got, tt.want+";") {
				t.Errorf("Guess(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
