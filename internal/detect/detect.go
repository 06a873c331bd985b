// Package detect reports which usage sources are present on the workstation.
package detect

import (
	"log"
	"os"
	"os/exec"
)

// Candidate is a source the caller may scan, with the roots it would read.
type Candidate struct {
	System  string
	Enabled bool
	Roots   []string
}

type RootStatus struct {
	Path   string
	Exists bool
}

// SourceStatus is the detection result for one candidate.
type SourceStatus struct {
	System     string
	Enabled    bool
	BinaryPath string // resolved CLI binary, empty when not on PATH
	Roots      []RootStatus
}

// HasData reports whether at least one root exists.
func (s SourceStatus) HasData() bool {
	for _, r := range s.Roots {
		if r.Exists {
			return true
		}
	}
	return false
}

// Prober resolves binaries and directories. The zero value uses the host.
type Prober struct {
	LookPath func(name string) (string, error)
	Stat     func(path string) (os.FileInfo, error)
}

var binaryBySystem = map[string]string{
	"claude_code": "claude",
	"codex":       "codex",
	"gemini_cli":  "gemini",
}

// Inspect probes every candidate in order.
func (p Prober) Inspect(candidates []Candidate) []SourceStatus {
	out := make([]SourceStatus, 0, len(candidates))
	for _, c := range candidates {
		status := SourceStatus{System: c.System, Enabled: c.Enabled}
		if bin, ok := binaryBySystem[c.System]; ok {
			status.BinaryPath = p.findBinary(bin)
		}
		for _, root := range c.Roots {
			status.Roots = append(status.Roots, RootStatus{Path: root, Exists: p.dirExists(root)})
		}
		if c.Enabled && !status.HasData() {
			log.Printf("[detect] %s enabled but none of %d roots exist", c.System, len(c.Roots))
		}
		out = append(out, status)
	}
	return out
}

// findBinary looks up a binary on PATH and returns its path, or "".
func (p Prober) findBinary(name string) string {
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(name)
	if err != nil {
		return ""
	}
	return path
}

// dirExists checks if a directory exists.
func (p Prober) dirExists(path string) bool {
	stat := p.Stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(path)
	return err == nil && info.IsDir()
}
