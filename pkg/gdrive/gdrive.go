// Package gdrive implements remote.API on top of the Google Drive v3 API.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yuya-takeyama/drive-merge/pkg/remote"
)

const (
	// RootID is Drive's alias for the root folder of My Drive.
	RootID = "root"

	folderMimeType = "application/vnd.google-apps.folder"
	listFields     = "nextPageToken, files(id, name, mimeType)"
	createFields   = "id, name, mimeType"
)

type Client struct {
	svc      *drive.Service
	pageSize int64
}

// NewClient builds the Drive service from opts, which must carry the
// authentication (see ClientOptions).
func NewClient(ctx context.Context, pageSize int64, opts ...option.ClientOption) (*Client, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Client{svc: svc, pageSize: pageSize}, nil
}

func (c *Client) ListPage(ctx context.Context, parentID, cursor string) (*remote.Page, error) {
	call := c.svc.Files.List().
		Q(parentQuery(parentID)).
		Fields(listFields).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if c.pageSize > 0 {
		call = call.PageSize(c.pageSize)
	}
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	list, err := call.Do()
	if err != nil {
		return nil, classify("list", err)
	}

	page := &remote.Page{NextCursor: list.NextPageToken}
	for _, f := range list.Files {
		page.Items = append(page.Items, toNode(f))
	}
	return page, nil
}

func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (*remote.Node, error) {
	f, err := c.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).
		Fields(createFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("create folder", err)
	}
	node := toNode(f)
	return &node, nil
}

func (c *Client) CreateFile(ctx context.Context, name, parentID string, body io.Reader, contentType string) (*remote.Node, error) {
	// A single request per upload. Chunked resumable uploads retry 429 and
	// 5xx responses internally.
	mediaOpts := []googleapi.MediaOption{googleapi.ChunkSize(0)}
	if contentType != "" {
		mediaOpts = append(mediaOpts, googleapi.ContentType(contentType))
	}

	f, err := c.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{parentID},
	}).
		Media(body, mediaOpts...).
		Fields(createFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("create file", err)
	}
	node := toNode(f)
	return &node, nil
}

func toNode(f *drive.File) remote.Node {
	return remote.Node{
		ID:       f.Id,
		Name:     f.Name,
		IsFolder: f.MimeType == folderMimeType,
	}
}

// parentQuery selects the untrashed children of parentID.
// See https://developers.google.com/drive/api/guides/search-files
func parentQuery(parentID string) string {
	id := strings.ReplaceAll(parentID, `\`, `\\`)
	id = strings.ReplaceAll(id, `'`, `\'`)
	return fmt.Sprintf("'%s' in parents and trashed = false", id)
}

// classify maps Drive's quota errors to remote.KindRateLimited. Drive reports
// them either as 429 or as 403 with a rate limit reason; any other 403 is a
// permission problem and must not be retried.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return remote.RateLimited(op, err)
		}
		if gerr.Code == http.StatusForbidden {
			for _, item := range gerr.Errors {
				switch item.Reason {
				case "rateLimitExceeded", "userRateLimitExceeded":
					return remote.RateLimited(op, err)
				}
			}
		}
	}
	return remote.Fatal(op, err)
}
