package s3client

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yuya-takeyama/drive-merge/pkg/remote"
)

type AWSClient struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	pageSize int32
}

// NewAWSClient expects cfg to have SDK retries disabled so that rate
// limiting is handled by the caller's pacer alone.
func NewAWSClient(cfg aws.Config, bucket string, pageSize int32, optFns ...func(*s3.Options)) *AWSClient {
	client := s3.NewFromConfig(cfg, optFns...)
	return &AWSClient{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		pageSize: pageSize,
	}
}

func (c *AWSClient) ListPage(ctx context.Context, parentID, cursor string) (*remote.Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(parentID),
		Delimiter: aws.String("/"),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}
	if c.pageSize > 0 {
		input.MaxKeys = aws.Int32(c.pageSize)
	}

	out, err := c.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, classify("list", err)
	}

	page := &remote.Page{}
	for _, p := range out.CommonPrefixes {
		key := aws.ToString(p.Prefix)
		page.Items = append(page.Items, remote.Node{
			ID:       key,
			Name:     childName(key, parentID),
			IsFolder: true,
		})
	}
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		// the folder marker of parentID itself
		if key == parentID || strings.HasSuffix(key, "/") {
			continue
		}
		page.Items = append(page.Items, remote.Node{
			ID:   key,
			Name: childName(key, parentID),
		})
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextCursor = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

// CreateFolder writes an empty folder marker object so that the folder is
// listed even while it has no children.
func (c *AWSClient) CreateFolder(ctx context.Context, name, parentID string) (*remote.Node, error) {
	key := folderKey(parentID, name)
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return nil, classify("create folder", err)
	}
	return &remote.Node{ID: key, Name: name, IsFolder: true}, nil
}

func (c *AWSClient) CreateFile(ctx context.Context, name, parentID string, body io.Reader, contentType string) (*remote.Node, error) {
	key := fileKey(parentID, name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return nil, classify("create file", err)
	}
	return &remote.Node{ID: key, Name: name}, nil
}

func classify(op string, err error) error {
	if isRateLimited(err) {
		return remote.RateLimited(op, err)
	}
	return remote.Fatal(op, err)
}
