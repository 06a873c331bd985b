package codex

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/janekbaraniewski/tokenledger/internal/providers/shared"
	"github.com/tidwall/gjson"
)

// reSessionSuffix matches the UUID that closes a rollout file stem, e.g.
// rollout-2025-01-01T10-00-00-0199a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b.
var reSessionSuffix = regexp.MustCompile(`([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// Snapshot is an absolute running counter reported by a session at one
// point in time. InputTotal already includes CacheReadTotal.
type Snapshot struct {
	Timestamp      time.Time
	Model          string
	InputTotal     int64
	OutputTotal    int64
	CacheReadTotal int64
	TotalTokens    int64
}

type LineKind int

const (
	LineNone LineKind = iota
	// LineTurnContext carries the model subsequent snapshots belong to.
	LineTurnContext
	LineSnapshot
)

// Line is the tagged result of parsing one session log line.
type Line struct {
	Kind     LineKind
	Model    string
	Snapshot Snapshot
}

// ParseLine classifies one raw session JSONL line. Malformed input is
// LineNone.
func ParseLine(raw []byte) Line {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return Line{}
	}
	root := gjson.ParseBytes(raw)
	payload := root.Get("payload")

	switch root.Get("type").String() {
	case "session_meta", "turn_context":
		model := strings.TrimSpace(payload.Get("model").String())
		if model == "" {
			return Line{}
		}
		return Line{Kind: LineTurnContext, Model: model}
	case "event_msg":
		if payload.Get("type").String() != "token_count" {
			return Line{}
		}
		usage := payload.Get("info.total_token_usage")
		if !usage.IsObject() {
			return Line{}
		}
		ts, err := shared.ParseTimestampString(root.Get("timestamp").String())
		if err != nil {
			return Line{}
		}
		snap := Snapshot{
			Timestamp:      ts,
			Model:          strings.TrimSpace(shared.FirstNonEmpty(payload.Get("info.model").String(), payload.Get("model").String())),
			InputTotal:     usage.Get("input_tokens").Int(),
			OutputTotal:    usage.Get("output_tokens").Int(),
			CacheReadTotal: usage.Get("cached_input_tokens").Int(),
			TotalTokens:    usage.Get("total_tokens").Int(),
		}
		if snap.InputTotal < 0 || snap.OutputTotal < 0 || snap.CacheReadTotal < 0 || snap.TotalTokens < 0 {
			return Line{}
		}
		if snap.TotalTokens == 0 {
			snap.TotalTokens = snap.InputTotal + snap.OutputTotal
		}
		return Line{Kind: LineSnapshot, Snapshot: snap}
	default:
		return Line{}
	}
}

// SessionIDFromPath derives the session identity from a rollout file name,
// falling back to the whole stem when no UUID suffix is present.
func SessionIDFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if m := reSessionSuffix.FindString(stem); m != "" {
		if id, err := uuid.Parse(m); err == nil {
			return id.String()
		}
	}
	return stem
}
