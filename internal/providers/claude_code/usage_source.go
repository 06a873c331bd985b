package claude_code

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/tokenledger/internal/core"
	"github.com/janekbaraniewski/tokenledger/internal/providers/shared"
	"github.com/samber/lo"
)

const telemetryScannerBufferSize = 8 * 1024 * 1024

type usageSource struct{}

func NewUsageSource() shared.UsageSource { return usageSource{} }

func (usageSource) System() string { return shared.SourceClaudeCode }

// DefaultProjectsDirs returns the default Claude Code conversation roots.
func DefaultProjectsDirs() []string {
	home, _ := os.UserHomeDir()
	if strings.TrimSpace(home) == "" {
		return nil
	}
	return []string{
		filepath.Join(home, ".claude", "projects"),
		filepath.Join(home, ".config", "claude", "projects"),
	}
}

// Scan reads every conversation file touched within the request's file
// window and returns one record per surviving message.
func (usageSource) Scan(ctx context.Context, req shared.ScanRequest) (shared.ScanResult, error) {
	collected := req.CollectFiles(".jsonl")
	if collected.Truncated {
		log.Printf("[claude_code] file cap reached, scanning newest %d files", len(collected.Files))
	}

	dedup := newStreamDeduper()
	var seq int64
	scanned := 0
	for _, path := range collected.Files {
		if err := ctx.Err(); err != nil {
			return shared.ScanResult{}, err
		}
		if err := scanConversationFile(path, dedup, &seq); err != nil {
			log.Printf("[claude_code] skip %s: %v", path, err)
			continue
		}
		scanned++
	}

	// A message streamed across midnight survives only as its final
	// snapshot, so it lands on exactly one day.
	inWindow := lo.Filter(dedup.Events(), func(ev StreamEvent, _ int) bool {
		return req.Window.Contains(ev.Timestamp)
	})
	records := lo.Map(inWindow, func(ev StreamEvent, _ int) core.LogRecord {
		return ev.Record()
	})
	return shared.ScanResult{
		Records:      records,
		FilesScanned: scanned,
		Truncated:    collected.Truncated,
	}, nil
}

// scanConversationFile feeds every usage line of path into dedup. seq
// advances once per line so positions stay ordered across files.
func scanConversationFile(path string, dedup *streamDeduper, seq *int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 512*1024), telemetryScannerBufferSize)
	for scanner.Scan() {
		*seq++
		ev, ok := ParseUsageLine(scanner.Bytes())
		if !ok {
			continue
		}
		dedup.Add(ev, *seq)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return nil
}
