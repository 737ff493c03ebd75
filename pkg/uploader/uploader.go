// Package uploader creates the remote counterpart of a single local path.
package uploader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/yuya-takeyama/drive-merge/pkg/contenttype"
	"github.com/yuya-takeyama/drive-merge/pkg/localfs"
	"github.com/yuya-takeyama/drive-merge/pkg/logger"
	"github.com/yuya-takeyama/drive-merge/pkg/pacer"
	"github.com/yuya-takeyama/drive-merge/pkg/remote"
	"github.com/yuya-takeyama/drive-merge/pkg/resolver"
)

type Action string

const (
	ActionCreateFolder Action = "create-folder"
	ActionUploadFile   Action = "upload-file"
	ActionSkip         Action = "skip"
)

type Options struct {
	Merge  bool
	DryRun bool
	// KnownAbsent means the caller already checked the parent and found
	// nothing with this name, so no lookup is made.
	KnownAbsent bool
}

// Result describes what Upload did. ID is empty for dry-run creations of
// objects that do not exist remotely.
type Result struct {
	Action      Action
	LocalPath   string
	ParentID    string
	ID          string
	IsDir       bool
	ContentType string
	DryRun      bool
	// Existing is the remote object found by the name lookup, if any.
	Existing *remote.Node
}

type Uploader struct {
	api      remote.API
	pacer    *pacer.Pacer
	resolver *resolver.Resolver
	fs       localfs.FS
	mime     contenttype.Guesser
	logger   logger.Logger
}

func NewUploader(api remote.API, p *pacer.Pacer, r *resolver.Resolver, fsys localfs.FS, mime contenttype.Guesser, logger logger.Logger) *Uploader {
	return &Uploader{
		api:      api,
		pacer:    p,
		resolver: r,
		fs:       fsys,
		mime:     mime,
		logger:   logger,
	}
}

// Upload creates a folder or file named after the base name of localPath
// under parentID. In merge mode an existing object with the same name is
// reused instead. Dry runs look up the name as well, so a folder that
// already exists yields its ID and can be descended into.
func (u *Uploader) Upload(ctx context.Context, localPath, parentID string, opts Options) (Result, error) {
	name := filepath.Base(localPath)

	isDir, err := u.fs.IsDir(localPath)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		LocalPath: localPath,
		ParentID:  parentID,
		IsDir:     isDir,
		DryRun:    opts.DryRun,
	}

	if (opts.Merge || opts.DryRun) && !opts.KnownAbsent {
		match, err := u.resolver.ResolveOne(ctx, name, parentID)
		if err != nil {
			return Result{}, fmt.Errorf("look up %s: %w", localPath, err)
		}
		if match.Found {
			existing := match.Node
			result.Existing = &existing
			result.ID = match.Node.ID
			if opts.Merge {
				u.logger.Skip(localPath, match.Node.ID)
				result.Action = ActionSkip
				return result, nil
			}
		}
	}

	var node *remote.Node
	if isDir {
		result.Action = ActionCreateFolder
		u.logger.CreateFolder(localPath, parentID)
		if opts.DryRun {
			return result, nil
		}
		node, err = pacer.Do(ctx, u.pacer, func() (*remote.Node, error) {
			return u.api.CreateFolder(ctx, name, parentID)
		})
		if err != nil {
			return Result{}, fmt.Errorf("create folder %s: %w", localPath, err)
		}
	} else {
		result.Action = ActionUploadFile
		result.ContentType = u.mime.Guess(localPath)
		u.logger.Upload(localPath, result.ContentType, parentID)
		if opts.DryRun {
			return result, nil
		}
		node, err = u.createFile(ctx, name, parentID, localPath, result.ContentType)
		if err != nil {
			return Result{}, fmt.Errorf("upload %s: %w", localPath, err)
		}
	}

	if node != nil {
		result.ID = node.ID
	}
	u.logger.Created(localPath, result.ID)
	return result, nil
}

// createFile reopens the file on every attempt because a rate-limited
// attempt may already have consumed part of the body.
func (u *Uploader) createFile(ctx context.Context, name, parentID, localPath, contentType string) (*remote.Node, error) {
	return pacer.Do(ctx, u.pacer, func() (*remote.Node, error) {
		body, err := u.fs.OpenRead(localPath)
		if err != nil {
			return nil, err
		}
		defer body.Close()

		return u.api.CreateFile(ctx, name, parentID, body, contentType)
	})
}
