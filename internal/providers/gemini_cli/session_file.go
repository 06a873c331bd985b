package gemini_cli

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/tokenledger/internal/core"
	"github.com/janekbaraniewski/tokenledger/internal/providers/shared"
)

// SessionFile is a Gemini CLI chat snapshot. The file is rewritten in place
// as the session grows, so it always holds the latest state.
type SessionFile struct {
	SessionID   string        `json:"sessionId"`
	StartTime   string        `json:"startTime"`
	LastUpdated string        `json:"lastUpdated"`
	Messages    []ChatMessage `json:"messages"`
}

type ChatMessage struct {
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp"`
	Model     string        `json:"model"`
	Tokens    *MessageUsage `json:"tokens,omitempty"`
}

type MessageUsage struct {
	Input    int64 `json:"input"`
	Output   int64 `json:"output"`
	Cached   int64 `json:"cached"`
	Thoughts int64 `json:"thoughts"`
	Tool     int64 `json:"tool"`
	Total    int64 `json:"total"`
}

// ParseSessionFile decodes a whole snapshot file. Undecodable data reports
// false.
func ParseSessionFile(data []byte) (SessionFile, bool) {
	var chat SessionFile
	if err := json.Unmarshal(data, &chat); err != nil {
		return SessionFile{}, false
	}
	return chat, true
}

// Records returns the usage of messages whose timestamp falls in window.
func (s SessionFile) Records(window core.Window) []core.LogRecord {
	var out []core.LogRecord
	for _, msg := range s.Messages {
		if msg.Tokens == nil {
			continue
		}
		ts, err := shared.ParseTimestampString(msg.Timestamp)
		if err != nil || !window.Contains(ts) {
			continue
		}
		u := *msg.Tokens
		if u.Input < 0 || u.Output < 0 || u.Cached < 0 || u.Thoughts < 0 {
			continue
		}
		rec := core.LogRecord{
			Timestamp: ts,
			Model:     shared.FirstNonEmpty(msg.Model, core.UnknownModel),
			Input:     max(0, u.Input-u.Cached),
			Output:    u.Output + u.Thoughts,
			CacheRead: u.Cached,
		}
		if rec.Total() == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out
}

type usageSource struct{}

func NewUsageSource() shared.UsageSource { return usageSource{} }

func (usageSource) System() string { return shared.SourceGeminiCLI }

// DefaultTmpDir returns the directory Gemini CLI keeps chat snapshots in.
func DefaultTmpDir() string {
	home, _ := os.UserHomeDir()
	if strings.TrimSpace(home) == "" {
		return ""
	}
	return filepath.Join(home, ".gemini", "tmp")
}

func (usageSource) Scan(ctx context.Context, req shared.ScanRequest) (shared.ScanResult, error) {
	req.Collect.NamePrefix = "session-"
	collected := req.CollectFiles(".json")

	seen := make(map[string]bool)
	var records []core.LogRecord
	scanned := 0
	for _, path := range collected.Files {
		if err := ctx.Err(); err != nil {
			return shared.ScanResult{}, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[gemini_cli] skip %s: %v", path, err)
			continue
		}
		chat, ok := ParseSessionFile(data)
		if !ok {
			continue
		}
		scanned++
		sessionID := shared.FirstNonEmpty(chat.SessionID, path)
		// newest copy wins; files are listed most-recent-first
		if seen[sessionID] {
			continue
		}
		seen[sessionID] = true
		records = append(records, chat.Records(req.Window)...)
	}

	return shared.ScanResult{
		Records:      records,
		FilesScanned: scanned,
		Truncated:    collected.Truncated,
	}, nil
}
