package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/yuya-takeyama/drive-merge/internal/config"
	"github.com/yuya-takeyama/drive-merge/pkg/gdrive"
	"github.com/yuya-takeyama/drive-merge/pkg/remote"
	"github.com/yuya-takeyama/drive-merge/pkg/s3client"
)

// newRemote connects to the configured backend and returns it with the ID
// of its default root folder.
func newRemote(ctx context.Context, cfg *config.Config) (remote.API, string, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return newS3Remote(ctx, cfg)
	default:
		return newDriveRemote(ctx, cfg)
	}
}

func newDriveRemote(ctx context.Context, cfg *config.Config) (remote.API, string, error) {
	opts, err := gdrive.ClientOptions(ctx, gdrive.AuthConfig{
		ClientSecretsFile:  cfg.Drive.ClientSecrets,
		TokenFile:          cfg.Drive.TokenFile,
		ServiceAccountFile: cfg.Drive.ServiceAccount,
		In:                 os.Stdin,
		Out:                os.Stderr,
	})
	if err != nil {
		return nil, "", err
	}

	client, err := gdrive.NewClient(ctx, int64(cfg.PageSize), opts...)
	if err != nil {
		return nil, "", err
	}
	return client, gdrive.RootID, nil
}

func newS3Remote(ctx context.Context, cfg *config.Config) (remote.API, string, error) {
	bucket, rootID, err := s3Target(cfg)
	if err != nil {
		return nil, "", err
	}

	// Throttling is retried by the pacer only.
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.S3.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(cfg.S3.Profile))
	}
	if cfg.S3.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(cfg.S3.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3client.NewAWSClient(awsCfg, bucket, int32(cfg.PageSize)), rootID, nil
}

// s3Target returns the bucket and root prefix, taken from an s3:// object
// ID when one is given and from --bucket otherwise.
func s3Target(cfg *config.Config) (bucket, rootID string, err error) {
	if strings.HasPrefix(cfg.ObjectID, "s3://") {
		return s3client.ParseS3URI(cfg.ObjectID)
	}
	return cfg.S3.Bucket, s3client.RootID, nil
}
