package codex

import (
	"github.com/janekbaraniewski/tokenledger/internal/core"
)

type sessionWindow struct {
	before   *Snapshot
	inWindow *Snapshot
}

// WindowDeltas turns cumulative session snapshots into per-session usage
// inside one window.
type WindowDeltas struct {
	window   core.Window
	sessions map[string]*sessionWindow
	order    []string
}

func NewWindowDeltas(window core.Window) *WindowDeltas {
	return &WindowDeltas{
		window:   window,
		sessions: make(map[string]*sessionWindow),
	}
}

// Observe records snap for sessionID. Snapshots at or past the window end
// are ignored.
func (w *WindowDeltas) Observe(sessionID string, snap Snapshot) {
	if !snap.Timestamp.Before(w.window.End) {
		return
	}
	sw, ok := w.sessions[sessionID]
	if !ok {
		sw = &sessionWindow{}
		w.sessions[sessionID] = sw
		w.order = append(w.order, sessionID)
	}
	s := snap
	if snap.Timestamp.Before(w.window.Start) {
		if preferSnapshot(s, sw.before) {
			sw.before = &s
		}
		return
	}
	if preferSnapshot(s, sw.inWindow) {
		sw.inWindow = &s
	}
}

// preferSnapshot reports whether candidate beats current: larger totals
// win, equal totals go to the later timestamp.
func preferSnapshot(candidate Snapshot, current *Snapshot) bool {
	if current == nil {
		return true
	}
	if candidate.TotalTokens != current.TotalTokens {
		return candidate.TotalTokens > current.TotalTokens
	}
	return candidate.Timestamp.After(current.Timestamp)
}

// Records returns one record per session with positive in-window usage, in
// first-seen order.
func (w *WindowDeltas) Records() []core.LogRecord {
	var out []core.LogRecord
	for _, id := range w.order {
		if rec, ok := w.sessions[id].record(); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (sw *sessionWindow) record() (core.LogRecord, bool) {
	if sw.inWindow == nil {
		return core.LogRecord{}, false
	}
	var before Snapshot
	if sw.before != nil {
		before = *sw.before
	}
	in := *sw.inWindow

	dInput := nonNegative(in.InputTotal - before.InputTotal)
	dOutput := nonNegative(in.OutputTotal - before.OutputTotal)
	dCacheRead := nonNegative(in.CacheReadTotal - before.CacheReadTotal)
	// The input counter already includes cached tokens.
	nonCachedInput := nonNegative(dInput - dCacheRead)

	if nonCachedInput+dOutput+dCacheRead <= 0 {
		return core.LogRecord{}, false
	}
	model := in.Model
	if model == "" {
		model = core.UnknownModel
	}
	return core.LogRecord{
		Timestamp: in.Timestamp,
		Model:     model,
		Input:     nonCachedInput,
		Output:    dOutput,
		CacheRead: dCacheRead,
	}, true
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
