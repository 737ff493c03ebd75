// Package lister enumerates the children of a remote folder page by page.
package lister

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuya-takeyama/drive-merge/pkg/pacer"
	"github.com/yuya-takeyama/drive-merge/pkg/remote"
)

var errNilPage = errors.New("no page returned")

type Lister struct {
	api   remote.API
	pacer *pacer.Pacer
}

func NewLister(api remote.API, p *pacer.Pacer) *Lister {
	return &Lister{
		api:   api,
		pacer: p,
	}
}

// Each calls fn for every child of parentID, fetching pages as needed.
// Children are not filtered by name. Any error from a page fetch or from fn
// ends the listing.
func (l *Lister) Each(ctx context.Context, parentID string, fn func(remote.Node) error) error {
	cursor := ""
	for {
		page, err := pacer.Do(ctx, l.pacer, func() (*remote.Page, error) {
			return l.api.ListPage(ctx, parentID, cursor)
		})
		if err != nil {
			return fmt.Errorf("list children of %s: %w", parentID, err)
		}
		if page == nil {
			return fmt.Errorf("list children of %s: %w", parentID, remote.Fatal("list", errNilPage))
		}

		for _, item := range page.Items {
			if err := item.Validate(); err != nil {
				return fmt.Errorf("list children of %s: %w", parentID, err)
			}
			if err := fn(item); err != nil {
				return err
			}
		}

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

// Children collects every child of parentID.
func (l *Lister) Children(ctx context.Context, parentID string) ([]remote.Node, error) {
	var nodes []remote.Node
	err := l.Each(ctx, parentID, func(n remote.Node) error {
		nodes = append(nodes, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Walk visits the children of parentID. When recursive is set each folder is
// visited before its own children, which are reported one depth deeper.
func (l *Lister) Walk(ctx context.Context, parentID string, recursive bool, fn func(depth int, n remote.Node) error) error {
	return l.walk(ctx, parentID, 0, recursive, fn)
}

func (l *Lister) walk(ctx context.Context, parentID string, depth int, recursive bool, fn func(int, remote.Node) error) error {
	return l.Each(ctx, parentID, func(n remote.Node) error {
		if err := fn(depth, n); err != nil {
			return err
		}
		if recursive && n.IsFolder {
			return l.walk(ctx, n.ID, depth+1, recursive, fn)
		}
		return nil
	})
}
