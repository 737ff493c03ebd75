// Package resolver decides which local names already exist in a remote folder.
package resolver

import (
	"context"

	"github.com/yuya-takeyama/drive-merge/pkg/lister"
	"github.com/yuya-takeyama/drive-merge/pkg/remote"
)

// Match is the existence result for one candidate name.
type Match struct {
	Name  string
	Found bool
	Node  remote.Node
}

type Resolver struct {
	lister *lister.Lister
}

func NewResolver(l *lister.Lister) *Resolver {
	return &Resolver{lister: l}
}

// Resolve looks up every name in names among the children of parentID with a
// single listing sweep. Matching is exact and case-sensitive; when the remote
// folder holds several objects with the same name the first one listed wins.
//
// The sweep always runs to the last page, even once every name has matched.
// Results are returned in the order of names.
func (r *Resolver) Resolve(ctx context.Context, names []string, parentID string) ([]Match, error) {
	children, err := r.lister.Children(ctx, parentID)
	if err != nil {
		return nil, err
	}

	pending := make(map[string]bool, len(names))
	for _, name := range names {
		pending[name] = true
	}
	found := make(map[string]remote.Node, len(names))
	for _, n := range children {
		if pending[n.Name] {
			found[n.Name] = n
			delete(pending, n.Name)
		}
	}

	matches := make([]Match, len(names))
	for i, name := range names {
		node, ok := found[name]
		matches[i] = Match{Name: name, Found: ok, Node: node}
	}
	return matches, nil
}

// ResolveOne is Resolve for a single name.
func (r *Resolver) ResolveOne(ctx context.Context, name, parentID string) (Match, error) {
	matches, err := r.Resolve(ctx, []string{name}, parentID)
	if err != nil {
		return Match{}, err
	}
	return matches[0], nil
}
