// Package syncer drives uploads over a whole local directory tree.
//
// The tree is walked depth first with an explicit stack, so very deep trees
// do not grow the goroutine stack. Each directory's remote ID, once created
// or matched, is the parent of all its entries. In merge mode the entries of
// a directory are looked up with a single listing of the remote folder
// rather than one listing per entry.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/yuya-takeyama/drive-merge/pkg/localfs"
	"github.com/yuya-takeyama/drive-merge/pkg/logger"
	"github.com/yuya-takeyama/drive-merge/pkg/remote"
	"github.com/yuya-takeyama/drive-merge/pkg/resolver"
	"github.com/yuya-takeyama/drive-merge/pkg/uploader"
)

// ErrMissingRemoteID means an upload reported success outside a dry run
// without yielding a remote ID.
var ErrMissingRemoteID = errors.New("no remote id obtained outside dry run")

type Options struct {
	Recursive bool
	Merge     bool
	DryRun    bool
	// Excluder filters entries below the source root; nil excludes nothing.
	Excluder *localfs.Excluder
}

// Decision is one create or skip decision, in the order it was made.
type Decision struct {
	Action   uploader.Action
	Source   string
	ParentID string
	ID       string
	DryRun   bool
}

type Stats struct {
	FoldersCreated int
	FilesUploaded  int
	Skipped        int
}

type Report struct {
	Decisions []Decision
	Stats     Stats
}

func (r *Report) record(d Decision) {
	r.Decisions = append(r.Decisions, d)
	switch d.Action {
	case uploader.ActionCreateFolder:
		r.Stats.FoldersCreated++
	case uploader.ActionUploadFile:
		r.Stats.FilesUploaded++
	case uploader.ActionSkip:
		r.Stats.Skipped++
	}
}

// task is one pending step of the walk.
type task struct {
	localPath string
	relPath   string
	parentID  string
	// resolved is set once the parent's batch lookup covered this entry;
	// existing is then the matched object, or nil when nothing matched.
	resolved bool
	existing *remote.Node
}

type Syncer struct {
	uploader *uploader.Uploader
	resolver *resolver.Resolver
	fs       localfs.FS
	logger   logger.Logger
	log      logrus.FieldLogger
}

func NewSyncer(u *uploader.Uploader, r *resolver.Resolver, fsys localfs.FS, logger logger.Logger, log logrus.FieldLogger) *Syncer {
	return &Syncer{
		uploader: u,
		resolver: r,
		fs:       fsys,
		logger:   logger,
		log:      log,
	}
}

// Sync uploads localPath into the remote folder parentID and, with
// opts.Recursive, everything below it. The first error stops the run;
// nothing still queued is attempted.
func (s *Syncer) Sync(ctx context.Context, localPath, parentID string, opts Options) (*Report, error) {
	report := &Report{}
	stack := []task{{localPath: localPath, parentID: parentID}}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := s.step(ctx, t, opts, report)
		if err != nil {
			return nil, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return report, nil
}

// step resolves the remote ID of one path and returns its entries, if any,
// as new tasks.
func (s *Syncer) step(ctx context.Context, t task, opts Options, report *Report) ([]task, error) {
	var (
		id       string
		isDir    bool
		existing *remote.Node
	)

	if t.existing != nil {
		var err error
		isDir, err = s.fs.IsDir(t.localPath)
		if err != nil {
			return nil, err
		}
		id = t.existing.ID
		existing = t.existing
		s.logger.Skip(t.localPath, id)
		report.record(Decision{
			Action:   uploader.ActionSkip,
			Source:   t.localPath,
			ParentID: t.parentID,
			ID:       id,
			DryRun:   opts.DryRun,
		})
	} else {
		res, err := s.uploader.Upload(ctx, t.localPath, t.parentID, uploader.Options{
			Merge:       opts.Merge,
			DryRun:      opts.DryRun,
			KnownAbsent: t.resolved,
		})
		if err != nil {
			return nil, err
		}
		id = res.ID
		isDir = res.IsDir
		existing = res.Existing
		report.record(Decision{
			Action:   res.Action,
			Source:   t.localPath,
			ParentID: t.parentID,
			ID:       res.ID,
			DryRun:   res.DryRun,
		})
	}

	if id == "" {
		if opts.DryRun {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", t.localPath, ErrMissingRemoteID)
	}

	if !opts.Recursive || !isDir {
		return nil, nil
	}

	if existing != nil && !existing.IsFolder {
		s.log.WithFields(logrus.Fields{
			"path": t.localPath,
			"id":   existing.ID,
		}).Warn("Local directory matches a remote file, not descending")
		return nil, nil
	}

	return s.expand(ctx, t, id, opts)
}

func (s *Syncer) expand(ctx context.Context, t task, id string, opts Options) ([]task, error) {
	s.logger.Enter(t.localPath)

	names, err := s.fs.ListEntries(t.localPath)
	if err != nil {
		return nil, err
	}

	var children []task
	var kept []string
	for _, name := range names {
		rel := path.Join(t.relPath, name)
		if opts.Excluder.Excluded(rel) {
			s.log.WithField("path", rel).Debug("Excluded")
			continue
		}
		kept = append(kept, name)
		children = append(children, task{
			localPath: filepath.Join(t.localPath, name),
			relPath:   rel,
			parentID:  id,
		})
	}

	if !opts.Merge || len(kept) == 0 {
		return children, nil
	}

	matches, err := s.resolver.Resolve(ctx, kept, id)
	if err != nil {
		return nil, fmt.Errorf("look up entries of %s: %w", t.localPath, err)
	}
	found := 0
	for i, m := range matches {
		children[i].resolved = true
		if m.Found {
			node := m.Node
			children[i].existing = &node
			found++
		}
	}
	s.log.WithFields(logrus.Fields{
		"path":    t.localPath,
		"entries": len(kept),
		"matched": found,
	}).Debug("Resolved directory entries")

	return children, nil
}
