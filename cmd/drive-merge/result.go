package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuya-takeyama/drive-merge/pkg/syncer"
	"github.com/yuya-takeyama/drive-merge/pkg/uploader"
)

// SyncResult is the document written by --result-json-file.
type SyncResult struct {
	DryRun  bool          `json:"dryrun"`
	Files   []ResultFile  `json:"files"`
	Summary ResultSummary `json:"summary"`
}

type ResultFile struct {
	Action string `json:"action"` // "created-folder", "uploaded", "skipped"
	Source string `json:"source"`
	Parent string `json:"parent"`
	ID     string `json:"id,omitempty"`
}

type ResultSummary struct {
	FoldersCreated int `json:"folders_created"`
	FilesUploaded  int `json:"files_uploaded"`
	Skipped        int `json:"skipped"`
}

func buildSyncResult(report *syncer.Report, dryRun bool) SyncResult {
	result := SyncResult{
		DryRun: dryRun,
		Files:  []ResultFile{},
		Summary: ResultSummary{
			FoldersCreated: report.Stats.FoldersCreated,
			FilesUploaded:  report.Stats.FilesUploaded,
			Skipped:        report.Stats.Skipped,
		},
	}
	for _, d := range report.Decisions {
		result.Files = append(result.Files, ResultFile{
			Action: getActionName(d.Action),
			Source: getAbsolutePath(d.Source),
			Parent: d.ParentID,
			ID:     d.ID,
		})
	}
	return result
}

func writeSyncResult(path string, result SyncResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func summaryLine(stats syncer.Stats, dryRun bool) string {
	prefix := ""
	if dryRun {
		prefix = "(dryrun) "
	}
	return fmt.Sprintf("%sdone: %d folders created, %d files uploaded, %d skipped",
		prefix, stats.FoldersCreated, stats.FilesUploaded, stats.Skipped)
}

func getActionName(action uploader.Action) string {
	switch action {
	case uploader.ActionCreateFolder:
		return "created-folder"
	case uploader.ActionUploadFile:
		return "uploaded"
	case uploader.ActionSkip:
		return "skipped"
	default:
		return "unknown"
	}
}

func getAbsolutePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // fallback to original path
	}
	return absPath
}
