// Package remotetest provides an in-memory remote.API for tests.
package remotetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/yuya-takeyama/drive-merge/pkg/remote"
)

// RootID is the ID of the folder every Store starts with.
const RootID = "root"

// Op names used for call accounting and fault injection.
const (
	OpList         = "list"
	OpCreateFolder = "create folder"
	OpCreateFile   = "create file"
)

// Object is a stored node plus its parent and content.
type Object struct {
	remote.Node
	ParentID    string
	ContentType string
	Content     []byte
}

// Store keeps objects in insertion order and counts every call.
type Store struct {
	// PageSize limits the items per ListPage; zero means unlimited.
	PageSize int
	// NewID generates IDs for created objects; defaults to uuid.NewString.
	NewID func() string
	// Fault, when set, is consulted before every call. A non-nil error is
	// returned instead of performing the call.
	Fault func(op string, call int) error

	mu      sync.Mutex
	objects []*Object
	calls   map[string]int
}

// NewStore returns an empty store holding only the root folder.
func NewStore() *Store {
	return &Store{calls: make(map[string]int)}
}

// SequentialIDs returns an ID generator yielding prefix1, prefix2, ...
func SequentialIDs(prefix string) func() string {
	var n int
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}

// Seed adds an object directly, without counting a call.
func (s *Store) Seed(id, name, parentID string, isFolder bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, &Object{
		Node:     remote.Node{ID: id, Name: name, IsFolder: isFolder},
		ParentID: parentID,
	})
}

// Calls reports how many times op was invoked, including failed calls.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Creations reports the total number of create calls.
func (s *Store) Creations() int {
	return s.Calls(OpCreateFolder) + s.Calls(OpCreateFile)
}

// Children returns the objects directly under parentID.
func (s *Store) Children(parentID string) []*Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Object
	for _, o := range s.objects {
		if o.ParentID == parentID {
			out = append(out, o)
		}
	}
	return out
}

// Find returns the first object named name under parentID.
func (s *Store) Find(parentID, name string) (*Object, bool) {
	for _, o := range s.Children(parentID) {
		if o.Name == name {
			return o, true
		}
	}
	return nil, false
}

func (s *Store) begin(op string) error {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op]++
	n := s.calls[op]
	fault := s.Fault
	s.mu.Unlock()

	if fault != nil {
		return fault(op, n)
	}
	return nil
}

func (s *Store) folderExists(id string) bool {
	if id == RootID {
		return true
	}
	for _, o := range s.objects {
		if o.ID == id {
			return o.IsFolder
		}
	}
	return false
}

func (s *Store) nextID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// ListPage implements remote.API. The cursor is the decimal offset of the
// next item.
func (s *Store) ListPage(ctx context.Context, parentID, cursor string) (*remote.Page, error) {
	if err := s.begin(OpList); err != nil {
		return nil, err
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, remote.Fatal(OpList, fmt.Errorf("invalid page token %q", cursor))
		}
		start = n
	}

	children := s.Children(parentID)
	if start > len(children) {
		start = len(children)
	}
	end := len(children)
	if s.PageSize > 0 && start+s.PageSize < end {
		end = start + s.PageSize
	}

	page := &remote.Page{}
	for _, o := range children[start:end] {
		page.Items = append(page.Items, o.Node)
	}
	if end < len(children) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// CreateFolder implements remote.API.
func (s *Store) CreateFolder(ctx context.Context, name, parentID string) (*remote.Node, error) {
	if err := s.begin(OpCreateFolder); err != nil {
		return nil, err
	}
	return s.create(OpCreateFolder, name, parentID, true, "", nil)
}

// CreateFile implements remote.API. The body is read to the end.
func (s *Store) CreateFile(ctx context.Context, name, parentID string, body io.Reader, contentType string) (*remote.Node, error) {
	if err := s.begin(OpCreateFile); err != nil {
		return nil, err
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, remote.Fatal(OpCreateFile, err)
	}
	return s.create(OpCreateFile, name, parentID, false, contentType, content)
}

func (s *Store) create(op, name, parentID string, isFolder bool, contentType string, content []byte) (*remote.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.folderExists(parentID) {
		return nil, remote.Fatal(op, fmt.Errorf("parent %q: %w", parentID, ErrNotFound))
	}
	o := &Object{
		Node:        remote.Node{ID: s.nextID(), Name: name, IsFolder: isFolder},
		ParentID:    parentID,
		ContentType: contentType,
		Content:     content,
	}
	s.objects = append(s.objects, o)
	node := o.Node
	return &node, nil
}

// ErrNotFound is returned when a parent folder does not exist.
var ErrNotFound = errors.New("not found")
