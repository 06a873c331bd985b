package claude_code

import (
	"sort"
	"strings"
	"time"

	"github.com/janekbaraniewski/tokenledger/internal/core"
	"github.com/janekbaraniewski/tokenledger/internal/providers/shared"
	"github.com/tidwall/gjson"
)

// StreamEvent is the usage attached to one assistant line of a Claude Code
// conversation log. The same message may be re-emitted several times while
// it streams, each time with larger counters.
type StreamEvent struct {
	Timestamp   time.Time
	Model       string
	MessageID   string
	RequestID   string
	Input       int64
	Output      int64
	CacheRead   int64
	CacheCreate int64
}

// Identity is the dedup key of the event, or "" when the line carries no
// message identity and must be counted on its own.
func (e StreamEvent) Identity() string {
	if e.MessageID != "" {
		return "msg:" + e.MessageID
	}
	if e.RequestID != "" {
		return "req:" + e.RequestID
	}
	return ""
}

func (e StreamEvent) Record() core.LogRecord {
	return core.LogRecord{
		Timestamp:   e.Timestamp,
		Model:       e.Model,
		Input:       e.Input,
		Output:      e.Output,
		CacheRead:   e.CacheRead,
		CacheCreate: e.CacheCreate,
	}
}

// ParseUsageLine extracts a StreamEvent from one raw JSONL line. Anything that
// is not a well-formed assistant usage line reports false.
func ParseUsageLine(line []byte) (StreamEvent, bool) {
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return StreamEvent{}, false
	}
	root := gjson.ParseBytes(line)
	if root.Get("type").String() != "assistant" {
		return StreamEvent{}, false
	}
	usage := root.Get("message.usage")
	if !usage.IsObject() {
		return StreamEvent{}, false
	}
	ts, err := shared.ParseTimestampString(root.Get("timestamp").String())
	if err != nil {
		return StreamEvent{}, false
	}

	ev := StreamEvent{
		Timestamp:   ts,
		Model:       strings.TrimSpace(root.Get("message.model").String()),
		MessageID:   strings.TrimSpace(root.Get("message.id").String()),
		RequestID:   strings.TrimSpace(root.Get("requestId").String()),
		Input:       usage.Get("input_tokens").Int(),
		Output:      usage.Get("output_tokens").Int(),
		CacheRead:   usage.Get("cache_read_input_tokens").Int(),
		CacheCreate: usage.Get("cache_creation_input_tokens").Int(),
	}
	if ev.Input < 0 || ev.Output < 0 || ev.CacheRead < 0 || ev.CacheCreate < 0 {
		return StreamEvent{}, false
	}
	if ev.Input+ev.Output+ev.CacheRead+ev.CacheCreate == 0 {
		return StreamEvent{}, false
	}
	if ev.Model == "" {
		ev.Model = core.UnknownModel
	}
	return ev, true
}

type dedupCandidate struct {
	event StreamEvent
	seq   int64
}

// streamDeduper keeps, per message identity, the event with the latest
// timestamp. Exact timestamp ties go to the later scan position.
type streamDeduper struct {
	byIdentity map[string]dedupCandidate
	unkeyed    []dedupCandidate
}

func newStreamDeduper() *streamDeduper {
	return &streamDeduper{byIdentity: make(map[string]dedupCandidate)}
}

func (d *streamDeduper) Add(ev StreamEvent, seq int64) {
	key := ev.Identity()
	if key == "" {
		d.unkeyed = append(d.unkeyed, dedupCandidate{event: ev, seq: seq})
		return
	}
	cur, ok := d.byIdentity[key]
	if !ok || ev.Timestamp.After(cur.event.Timestamp) ||
		(ev.Timestamp.Equal(cur.event.Timestamp) && seq > cur.seq) {
		d.byIdentity[key] = dedupCandidate{event: ev, seq: seq}
	}
}

// Events returns the surviving events in scan order.
func (d *streamDeduper) Events() []StreamEvent {
	all := make([]dedupCandidate, 0, len(d.byIdentity)+len(d.unkeyed))
	for _, c := range d.byIdentity {
		all = append(all, c)
	}
	all = append(all, d.unkeyed...)
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	out := make([]StreamEvent, len(all))
	for i, c := range all {
		out[i] = c.event
	}
	return out
}

// DedupeStreamEvents applies message-scoped dedup to events given in scan
// order.
func DedupeStreamEvents(events []StreamEvent) []StreamEvent {
	d := newStreamDeduper()
	for i, ev := range events {
		d.Add(ev, int64(i))
	}
	return d.Events()
}
