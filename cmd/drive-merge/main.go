package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/yuya-takeyama/drive-merge/internal/config"
	"github.com/yuya-takeyama/drive-merge/pkg/contenttype"
	"github.com/yuya-takeyama/drive-merge/pkg/lister"
	"github.com/yuya-takeyama/drive-merge/pkg/localfs"
	"github.com/yuya-takeyama/drive-merge/pkg/logger"
	"github.com/yuya-takeyama/drive-merge/pkg/pacer"
	"github.com/yuya-takeyama/drive-merge/pkg/remote"
	"github.com/yuya-takeyama/drive-merge/pkg/resolver"
	"github.com/yuya-takeyama/drive-merge/pkg/syncer"
	"github.com/yuya-takeyama/drive-merge/pkg/uploader"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

const dryRunBanner = ">> THIS IS A DRY RUN. NOTHING WILL BE CREATED OR UPLOADED <<"

var configFile string

// errReported marks a failure that has already been printed.
var errReported = errors.New("run failed")

func main() {
	rootCmd := &cobra.Command{
		Use:   "drive-merge <list|upload>",
		Short: "Upload local files and folders into Google Drive, merging with what is already there",
		Long: `drive-merge mirrors a local file or directory tree into a remote folder.
With --merge, entries that already exist remotely are skipped, so an
interrupted upload can be resumed by running the same command again.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{config.ActionList, config.ActionUpload},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	config.BindFlags(rootCmd.Flags(), config.Default())
	rootCmd.Flags().StringVar(&configFile, "config", "", "YAML config file (explicit flags take precedence)")

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(cmd.Flags(), configFile)
	if err != nil {
		return err
	}
	cfg.Action = args[0]
	if err := cfg.Validate(); err != nil {
		return err
	}

	announceDryRun(os.Stdout, cfg.DryRun)

	log := newLog(cfg)
	ctx := context.Background()
	syncLogger := &logger.SyncLogger{
		IsDryRun: cfg.DryRun,
		IsQuiet:  cfg.Quiet,
	}

	api, rootID, err := newRemote(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.ObjectID != "" && !strings.HasPrefix(cfg.ObjectID, "s3://") {
		rootID = cfg.ObjectID
	}

	p := newPacer(cfg, log)
	l := lister.NewLister(api, p)

	if cfg.Action == config.ActionList {
		if err := runList(ctx, l, rootID, cfg.Recursive, os.Stdout); err != nil {
			return reportFailure(syncLogger, cfg.Action, rootID, err)
		}
		return nil
	}
	if err := runUpload(ctx, cfg, api, p, l, rootID, syncLogger, log); err != nil {
		return reportFailure(syncLogger, cfg.Action, cfg.Source, err)
	}
	return nil
}

func announceDryRun(out io.Writer, dryRun bool) {
	if dryRun {
		fmt.Fprintln(out, dryRunBanner)
	}
}

// reportFailure prints the error that ended the action and returns
// errReported so that main does not print it again.
func reportFailure(l logger.Logger, action, target string, err error) error {
	l.Error(action, target, err)
	return errReported
}

func newLog(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	// already validated
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	return log
}

func newPacer(cfg *config.Config, log logrus.FieldLogger) *pacer.Pacer {
	opts := []pacer.Option{pacer.WithLogger(log)}
	if cfg.TPS > 0 {
		opts = append(opts, pacer.WithLimiter(rate.NewLimiter(rate.Limit(cfg.TPS), 1)))
	}
	return pacer.New(opts...)
}

// runList prints "<id> <name>" for every child of rootID, with one "--" per
// level below it.
func runList(ctx context.Context, l *lister.Lister, rootID string, recursive bool, out io.Writer) error {
	return l.Walk(ctx, rootID, recursive, func(depth int, n remote.Node) error {
		_, err := fmt.Fprintf(out, "%s%s %s\n", strings.Repeat("--", depth), n.ID, n.Name)
		return err
	})
}

func runUpload(ctx context.Context, cfg *config.Config, api remote.API, p *pacer.Pacer, l *lister.Lister, rootID string, syncLogger *logger.SyncLogger, log logrus.FieldLogger) error {
	excluder, err := localfs.NewExcluder(cfg.Excludes)
	if err != nil {
		return err
	}

	fsys := localfs.OS{}
	r := resolver.NewResolver(l)
	u := uploader.NewUploader(api, p, r, fsys, contenttype.Extension{Sniff: true}, syncLogger)
	s := syncer.NewSyncer(u, r, fsys, syncLogger, log)

	report, err := s.Sync(ctx, cfg.Source, rootID, syncer.Options{
		Recursive: cfg.Recursive,
		Merge:     cfg.Merge,
		DryRun:    cfg.DryRun,
		Excluder:  excluder,
	})
	if err != nil {
		return err
	}

	if cfg.ResultJSONFile != "" {
		if err := writeSyncResult(cfg.ResultJSONFile, buildSyncResult(report, cfg.DryRun)); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}

	if !cfg.Quiet {
		fmt.Println(summaryLine(report.Stats, cfg.DryRun))
	}
	return nil
}
