package shared

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/janekbaraniewski/tokenledger/internal/core"
	"github.com/samber/lo"
)

const (
	DefaultCollectMaxDepth = 8
	DefaultCollectMaxFiles = 5000
)

// CollectOptions bounds a directory scan. Zero values pick the defaults.
type CollectOptions struct {
	// MaxDepth counts directory levels below a root; the root's own
	// children sit at depth 1.
	MaxDepth int
	MaxFiles int
	// Exts restricts matches to these lower-case extensions (".jsonl").
	Exts map[string]bool
	// NamePrefix restricts matches to base names with this prefix.
	NamePrefix string
}

func (o CollectOptions) withDefaults() CollectOptions {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultCollectMaxDepth
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultCollectMaxFiles
	}
	return o
}

func (o CollectOptions) matches(name string) bool {
	if len(o.Exts) > 0 && !o.Exts[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	if o.NamePrefix != "" && !strings.HasPrefix(name, o.NamePrefix) {
		return false
	}
	return true
}

// CollectResult lists matched files most-recent-first.
type CollectResult struct {
	Files     []string
	Truncated bool
}

// Collector is the directory-scan service used by the sources.
type Collector interface {
	Collect(roots []string, window core.Window, opts CollectOptions) CollectResult
}

// FSCollector walks the local file system.
type FSCollector struct{}

func (FSCollector) Collect(roots []string, window core.Window, opts CollectOptions) CollectResult {
	opts = opts.withDefaults()

	seen := make(map[string]bool)
	var entries []fileEntry
	for _, root := range roots {
		for _, entry := range collectRoot(ExpandHome(root), window, opts) {
			if seen[entry.path] {
				continue
			}
			seen[entry.path] = true
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].path > entries[j].path
		}
		return entries[i].modTime.After(entries[j].modTime)
	})

	truncated := false
	if len(entries) > opts.MaxFiles {
		entries = entries[:opts.MaxFiles]
		truncated = true
	}
	return CollectResult{
		Files:     lo.Map(entries, func(e fileEntry, _ int) string { return e.path }),
		Truncated: truncated,
	}
}

// CollectFilesInWindow returns files under root modified within
// [start, end). Unreadable paths are skipped.
func CollectFilesInWindow(root string, start, end time.Time, opts CollectOptions) CollectResult {
	return FSCollector{}.Collect([]string{root}, core.Window{Start: start, End: end}, opts)
}

type fileEntry struct {
	path    string
	modTime time.Time
}

func collectRoot(root string, window core.Window, opts CollectOptions) []fileEntry {
	if root == "" {
		return nil
	}
	info, err := os.Stat(root)
	if err != nil || info == nil {
		return nil
	}
	if !info.IsDir() {
		if opts.matches(info.Name()) && window.Contains(info.ModTime()) {
			return []fileEntry{{path: root, modTime: info.ModTime()}}
		}
		return nil
	}

	var out []fileEntry
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		depth := pathDepth(root, path)
		if d.IsDir() {
			if depth >= opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if depth > opts.MaxDepth || !opts.matches(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil || !fi.Mode().IsRegular() {
			return nil
		}
		if !window.Contains(fi.ModTime()) {
			return nil
		}
		out = append(out, fileEntry{path: path, modTime: fi.ModTime()})
		return nil
	})
	return out
}

func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}
