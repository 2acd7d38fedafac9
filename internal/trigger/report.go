package trigger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Report file names, written next to the local data directory.
const (
	SuccessReport = ".lastrun.success.json"
	FailedReport  = ".lastrun.failed.json"
)

type startedEntry struct {
	Key         string `json:"key"`
	RefinedPath string `json:"refined_path"`
	RunID       string `json:"run_id"`
}

type failedEntry struct {
	Key    string `json:"key"`
	Bucket string `json:"bucket"`
	Reason string `json:"reason"`
}

// WriteReport writes the started and failed outcomes of res under dir. A
// file is only written when it has entries. Ignored events are not reported.
func WriteReport(dir string, res BatchResult) error {
	var started []startedEntry
	var failed []failedEntry
	for _, o := range res.Outcomes {
		switch o.Status {
		case StatusStarted:
			started = append(started, startedEntry{Key: o.Key, RefinedPath: o.RefinedPath, RunID: o.RunID})
		case StatusFailed:
			failed = append(failed, failedEntry{Key: o.Key, Bucket: o.Bucket, Reason: o.Reason})
		}
	}
	// A report left by an earlier batch must not describe this one.
	if len(started) == 0 {
		if err := removeReport(filepath.Join(dir, SuccessReport)); err != nil {
			return err
		}
	}
	if len(failed) == 0 {
		if err := removeReport(filepath.Join(dir, FailedReport)); err != nil {
			return err
		}
	}
	if len(started) == 0 && len(failed) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if len(started) > 0 {
		p := filepath.Join(dir, SuccessReport)
		if err := writeJSON(p, started); err != nil {
			return err
		}
		slog.Info("report wrote success", "path", p, "count", len(started))
	}
	if len(failed) > 0 {
		p := filepath.Join(dir, FailedReport)
		if err := writeJSON(p, failed); err != nil {
			return err
		}
		slog.Info("report wrote failed", "path", p, "count", len(failed), "reasons", joinFailedReasons(failed))
	}
	return nil
}

func removeReport(p string) error {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// joinFailedReasons builds a one-line summary, truncated after five entries
// when there are many.
func joinFailedReasons(failed []failedEntry) string {
	var b strings.Builder
	for i, f := range failed {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Reason)
		if i >= 4 && len(failed) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(failed)-5))
			break
		}
	}
	return b.String()
}
