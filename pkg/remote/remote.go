// Package remote defines the shapes exchanged with a hierarchical object store
// whose folders and files are addressed by opaque IDs rather than paths.
package remote

import (
	"context"
	"fmt"
	"io"
)

// Node is a single object in the remote store.
// Names are not unique within a parent; the ID is the identity.
type Node struct {
	ID       string
	Name     string
	IsFolder bool
}

// Validate checks the fields every adapter must fill in.
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("remote node %q has no id", n.Name)
	}
	return nil
}

// Page is one batch of a folder listing. An empty NextCursor means the
// listing is exhausted.
type Page struct {
	Items      []Node
	NextCursor string
}

// API is the narrow surface the reconciliation core calls through.
// Every method performs exactly one remote request and never retries.
type API interface {
	ListPage(ctx context.Context, parentID, cursor string) (*Page, error)
	CreateFolder(ctx context.Context, name, parentID string) (*Node, error)
	CreateFile(ctx context.Context, name, parentID string, body io.Reader, contentType string) (*Node, error)
}
