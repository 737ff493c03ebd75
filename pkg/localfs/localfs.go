// Package localfs is the local filesystem side of a sync run.
package localfs

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// FS is what the sync core needs from the local filesystem. Entries are
// classified each time they are needed; nothing is cached.
type FS interface {
	IsDir(path string) (bool, error)
	ListEntries(path string) ([]string, error)
	OpenRead(path string) (io.ReadCloser, error)
}

// OS implements FS on the host filesystem. Symlinks are followed.
type OS struct{}

func (OS) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.IsDir(), nil
}

// ListEntries returns the names of the immediate entries of path, sorted.
func (OS) ListEntries(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (OS) OpenRead(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
