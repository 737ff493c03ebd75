// Package config resolves the run configuration from defaults, an optional
// YAML file and command line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	ActionList   = "list"
	ActionUpload = "upload"

	BackendDrive = "drive"
	BackendS3    = "s3"

	// maxPageSize is the largest page both Drive and S3 will return.
	maxPageSize = 1000
)

type Config struct {
	Action string `yaml:"-"`

	Backend        string   `yaml:"backend"`
	ObjectID       string   `yaml:"object_id"`
	Source         string   `yaml:"source"`
	Recursive      bool     `yaml:"recursive"`
	Merge          bool     `yaml:"merge"`
	DryRun         bool     `yaml:"dryrun"`
	Excludes       []string `yaml:"exclude"`
	Quiet          bool     `yaml:"quiet"`
	LogLevel       string   `yaml:"log_level"`
	TPS            float64  `yaml:"tps"`
	PageSize       int      `yaml:"page_size"`
	ResultJSONFile string   `yaml:"result_json_file"`

	Drive DriveConfig `yaml:"drive"`
	S3    S3Config    `yaml:"s3"`
}

type DriveConfig struct {
	ClientSecrets  string `yaml:"client_secrets"`
	TokenFile      string `yaml:"token_file"`
	ServiceAccount string `yaml:"service_account"`
}

type S3Config struct {
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

func Default() *Config {
	return &Config{
		Backend:  BackendDrive,
		LogLevel: "info",
		PageSize: 100,
		Drive: DriveConfig{
			ClientSecrets: "credentials.json",
			TokenFile:     "token.json",
		},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers every configurable flag on fs, storing into cfg and
// using its current values as defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.ObjectID, "object-id", "o", cfg.ObjectID, "Remote folder ID to list or upload into (backend root if empty)")
	fs.StringVarP(&cfg.Source, "source", "s", cfg.Source, "Local file or directory to upload")
	fs.BoolVarP(&cfg.Recursive, "recursive", "r", cfg.Recursive, "Descend into folders")
	fs.BoolVarP(&cfg.Merge, "merge", "m", cfg.Merge, "Skip entries that already exist remotely")
	fs.BoolVarP(&cfg.DryRun, "dryrun", "d", cfg.DryRun, "Shows operations without executing")
	fs.StringSliceVar(&cfg.Excludes, "exclude", cfg.Excludes, "Exclude patterns relative to the source (multiple allowed)")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Remote backend: drive or s3")
	fs.StringVar(&cfg.Drive.ClientSecrets, "client-secrets", cfg.Drive.ClientSecrets, "OAuth client secrets file")
	fs.StringVar(&cfg.Drive.TokenFile, "token-file", cfg.Drive.TokenFile, "OAuth token cache file")
	fs.StringVar(&cfg.Drive.ServiceAccount, "service-account", cfg.Drive.ServiceAccount, "Service account key file (overrides OAuth)")
	fs.StringVar(&cfg.S3.Bucket, "bucket", cfg.S3.Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3.Region, "region", cfg.S3.Region, "AWS region (uses default if not specified)")
	fs.StringVar(&cfg.S3.Profile, "profile", cfg.S3.Profile, "AWS profile to use")
	fs.Float64Var(&cfg.TPS, "tps", cfg.TPS, "Maximum remote calls per second (0 for unlimited)")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Listing page size (0 for the server default)")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Suppress non-error output")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Diagnostic log level")
	fs.StringVar(&cfg.ResultJSONFile, "result-json-file", cfg.ResultJSONFile, "Path to output result as JSON file")
}

// Resolve returns the defaults, overlaid by the config file at path (if
// any), overlaid by the flags explicitly set on fs.
func Resolve(fs *pflag.FlagSet, path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	bound := pflag.NewFlagSet("config", pflag.ContinueOnError)
	BindFlags(bound, cfg)

	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		dst := bound.Lookup(f.Name)
		if dst == nil {
			return
		}
		if src, ok := f.Value.(pflag.SliceValue); ok {
			if d, ok := dst.Value.(pflag.SliceValue); ok {
				err = d.Replace(src.GetSlice())
				return
			}
		}
		if setErr := dst.Value.Set(f.Value.String()); setErr != nil {
			err = fmt.Errorf("apply flag --%s: %w", f.Name, setErr)
		}
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Action {
	case ActionList:
	case ActionUpload:
		if c.Source == "" {
			return fmt.Errorf("source is required for upload")
		}
	default:
		return fmt.Errorf("unknown action %q: must be %s or %s", c.Action, ActionList, ActionUpload)
	}

	switch c.Backend {
	case BackendDrive:
	case BackendS3:
		if c.S3.Bucket == "" && !strings.HasPrefix(c.ObjectID, "s3://") {
			return fmt.Errorf("bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown backend %q: must be %s or %s", c.Backend, BackendDrive, BackendS3)
	}

	if c.TPS < 0 {
		return fmt.Errorf("tps must not be negative")
	}

	if c.PageSize < 0 || c.PageSize > maxPageSize {
		return fmt.Errorf("page size must be between 0 and %d", maxPageSize)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}
