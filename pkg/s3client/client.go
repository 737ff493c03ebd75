// Package s3client implements remote.API on an S3 bucket. Object keys serve
// as IDs: a folder's ID is its key prefix ending in "/", and the bucket root
// is the empty prefix.
package s3client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// RootID is the ID of the bucket root.
const RootID = ""

// ParseS3URI splits an s3://bucket/prefix URI. A non-empty prefix is
// returned with a trailing "/" so it can be used as a folder ID.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URI: must start with s3://")
	}

	path := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(path, "/", 2)

	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URI: missing bucket name")
	}

	bucket = parts[0]
	if len(parts) > 1 {
		prefix = strings.TrimLeft(parts[1], "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
	}

	return bucket, prefix, nil
}

func folderKey(parentID, name string) string {
	return parentID + name + "/"
}

func fileKey(parentID, name string) string {
	return parentID + name
}

// childName returns the last path element of key below parentID.
func childName(key, parentID string) string {
	name := strings.TrimPrefix(key, parentID)
	return strings.TrimSuffix(name, "/")
}

// isRateLimited reports whether S3 asked us to slow down.
func isRateLimited(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "Throttling", "ThrottlingException", "TooManyRequests", "TooManyRequestsException", "RequestLimitExceeded":
			return true
		}
	}
	return false
}
