package localfs

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Excluder matches slash-separated paths, relative to the sync source,
// against doublestar patterns. A pattern ending in "/" excludes a directory
// and everything below it.
type Excluder struct {
	patterns []string
}

// NewExcluder validates patterns up front so a bad pattern fails the run
// before anything is uploaded.
func NewExcluder(patterns []string) (*Excluder, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(strings.TrimSuffix(p, "/")) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &Excluder{patterns: patterns}, nil
}

// Excluded reports whether relPath matches any pattern.
func (e *Excluder) Excluded(relPath string) bool {
	if e == nil {
		return false
	}
	for _, pattern := range e.patterns {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			parts := strings.Split(relPath, "/")
			for i := 1; i <= len(parts); i++ {
				if matched, _ := doublestar.Match(dirPattern, strings.Join(parts[:i], "/")); matched {
					return true
				}
			}
			continue
		}
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
