package shared

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/janekbaraniewski/tokenledger/internal/core"
)

const (
	SourceClaudeCode = "claude_code"
	SourceCodex      = "codex"
	SourceGeminiCLI  = "gemini_cli"
)

// ScanRequest describes one windowed scan of a source's log roots.
type ScanRequest struct {
	// Window bounds which records count toward the result.
	Window core.Window
	// FileWindow bounds file selection by modification time. It usually
	// extends past Window.End because logs keep growing after a day ends.
	FileWindow core.Window
	Roots      []string
	Collect    CollectOptions
	Collector  Collector
}

func (r ScanRequest) collector() Collector {
	if r.Collector != nil {
		return r.Collector
	}
	return FSCollector{}
}

// CollectFiles runs the request's collector over its roots.
func (r ScanRequest) CollectFiles(exts ...string) CollectResult {
	opts := r.Collect
	if len(exts) > 0 {
		opts.Exts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			opts.Exts[strings.ToLower(ext)] = true
		}
	}
	return r.collector().Collect(r.Roots, r.FileWindow, opts)
}

// ScanResult is the normalized output of one source for one window.
type ScanResult struct {
	Records      []core.LogRecord
	FilesScanned int
	Truncated    bool
}

// UsageSource turns one on-disk log family into normalized records.
type UsageSource interface {
	System() string
	Scan(ctx context.Context, req ScanRequest) (ScanResult, error)
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func ParseTimestampString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return UnixAuto(n), nil
	}
	return time.Time{}, strconv.ErrSyntax
}

func UnixAuto(ts int64) time.Time {
	switch {
	case ts > 1_000_000_000_000_000:
		return time.UnixMicro(ts).UTC()
	case ts > 1_000_000_000_000:
		return time.UnixMilli(ts).UTC()
	default:
		return time.Unix(ts, 0).UTC()
	}
}

func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func ExpandHomeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if expanded := ExpandHome(p); expanded != "" {
			out = append(out, expanded)
		}
	}
	return out
}
