package logger

import (
	"fmt"
	"io"
	"os"
)

// Logger reports each decision the sync core makes, one line per decision.
type Logger interface {
	CreateFolder(localPath, parentID string)
	Upload(localPath, contentType, parentID string)
	Created(localPath, id string)
	Skip(localPath, id string)
	Enter(localPath string)
	Error(operation, path string, err error)
}

// SyncLogger writes decision lines in the style of `aws s3 sync`. IsQuiet
// drops skip and enter lines only.
type SyncLogger struct {
	IsDryRun bool
	IsQuiet  bool
	Out      io.Writer
	ErrOut   io.Writer
}

func (l *SyncLogger) CreateFolder(localPath, parentID string) {
	l.printf("mkdir: %s in %s", localPath, parentID)
}

func (l *SyncLogger) Upload(localPath, contentType, parentID string) {
	if contentType == "" {
		contentType = "unknown type"
	}
	l.printf("upload: %s (%s) to %s", localPath, contentType, parentID)
}

func (l *SyncLogger) Created(localPath, id string) {
	l.printf("created: %s as %s", localPath, id)
}

func (l *SyncLogger) Skip(localPath, id string) {
	if l.IsQuiet {
		return
	}
	l.printf("skip: %s (exists as %s)", localPath, id)
}

func (l *SyncLogger) Enter(localPath string) {
	if l.IsQuiet {
		return
	}
	l.printf("enter: %s", localPath)
}

func (l *SyncLogger) Error(operation, path string, err error) {
	fmt.Fprintf(l.errOut(), "ERROR: %s %s: %v\n", operation, path, err)
}

func (l *SyncLogger) printf(format string, args ...interface{}) {
	if l.IsDryRun {
		format = "(dryrun) " + format
	}
	fmt.Fprintf(l.out(), format+"\n", args...)
}

func (l *SyncLogger) out() io.Writer {
	if l.Out == nil {
		return os.Stdout
	}
	return l.Out
}

func (l *SyncLogger) errOut() io.Writer {
	if l.ErrOut == nil {
		return os.Stderr
	}
	return l.ErrOut
}

type NullLogger struct{}

func (l *NullLogger) CreateFolder(localPath, parentID string)        {}
func (l *NullLogger) Upload(localPath, contentType, parentID string) {}
func (l *NullLogger) Created(localPath, id string)                   {}
func (l *NullLogger) Skip(localPath, id string)                      {}
func (l *NullLogger) Enter(localPath string)                         {}
func (l *NullLogger) Error(operation, path string, err error)        {}
