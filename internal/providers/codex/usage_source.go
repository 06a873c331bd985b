package codex

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/tokenledger/internal/providers/shared"
)

const (
	defaultCodexConfigDir = ".codex"
	maxScannerBufferSize  = 8 * 1024 * 1024
)

type usageSource struct{}

func NewUsageSource() shared.UsageSource { return usageSource{} }

func (usageSource) System() string { return shared.SourceCodex }

// DefaultSessionsDir returns the default Codex sessions directory.
func DefaultSessionsDir() string {
	home, _ := os.UserHomeDir()
	if strings.TrimSpace(home) == "" {
		return ""
	}
	return filepath.Join(home, defaultCodexConfigDir, "sessions")
}

func (usageSource) Scan(ctx context.Context, req shared.ScanRequest) (shared.ScanResult, error) {
	collected := req.CollectFiles(".jsonl")
	if collected.Truncated {
		log.Printf("[codex] file cap reached, scanning newest %d files", len(collected.Files))
	}

	deltas := NewWindowDeltas(req.Window)
	scanned := 0
	for _, path := range collected.Files {
		if err := ctx.Err(); err != nil {
			return shared.ScanResult{}, err
		}
		if err := scanSessionFile(path, deltas); err != nil {
			log.Printf("[codex] skip %s: %v", path, err)
			continue
		}
		scanned++
	}

	return shared.ScanResult{
		Records:      deltas.Records(),
		FilesScanned: scanned,
		Truncated:    collected.Truncated,
	}, nil
}

func scanSessionFile(path string, deltas *WindowDeltas) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sessionID := SessionIDFromPath(path)
	model := ""

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 512*1024), maxScannerBufferSize)
	for scanner.Scan() {
		line := ParseLine(scanner.Bytes())
		switch line.Kind {
		case LineTurnContext:
			model = line.Model
		case LineSnapshot:
			snap := line.Snapshot
			if snap.Model == "" {
				snap.Model = model
			}
			deltas.Observe(sessionID, snap)
		case LineNone:
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return nil
}
