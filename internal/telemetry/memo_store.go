package telemetry

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/janekbaraniewski/tokenledger/internal/core"
)

const defaultMemoCapacity = 4096

// MemoSummaryStore fronts another store with an in-process cache. Every
// read re-stamps the inner store, so a document changed, replaced or removed
// underneath is never served from memory.
type MemoSummaryStore struct {
	inner   DailySummaryStore
	stamper SummaryStamper
	cache   *ristretto.Cache[string, memoEntry]
}

type memoEntry struct {
	stamp   string
	summary DailySummary
}

// NewMemoSummaryStore wraps inner with room for capacity day documents.
// inner must also implement SummaryStamper.
func NewMemoSummaryStore(inner DailySummaryStore, capacity int64) (*MemoSummaryStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("telemetry: memo store needs an inner store")
	}
	stamper, ok := inner.(SummaryStamper)
	if !ok {
		return nil, fmt.Errorf("telemetry: memo store needs a store that can stamp documents, got %T", inner)
	}
	if capacity <= 0 {
		capacity = defaultMemoCapacity
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, memoEntry]{
		NumCounters: capacity * 10,
		MaxCost:     capacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating memo cache: %w", err)
	}
	return &MemoSummaryStore{inner: inner, stamper: stamper, cache: cache}, nil
}

func (s *MemoSummaryStore) Read(ctx context.Context, day string) (*DailySummary, bool) {
	stamp, ok := s.stamper.Stamp(ctx, day)
	if !ok {
		s.cache.Del(day)
		return nil, false
	}
	if entry, hit := s.cache.Get(day); hit && entry.stamp == stamp {
		out := cloneDailySummary(entry.summary)
		return &out, true
	}
	summary, ok := s.inner.Read(ctx, day)
	if !ok || summary == nil {
		s.cache.Del(day)
		return nil, false
	}
	// A change between Stamp and Read leaves a stamp that no longer
	// matches, so the next Read goes back to the inner store.
	s.cache.Set(day, memoEntry{stamp: stamp, summary: cloneDailySummary(*summary)}, 1)
	s.cache.Wait()
	return summary, true
}

// Write persists through the inner store and drops the memoised copy; the
// next Read memoises whatever the inner store then holds.
func (s *MemoSummaryStore) Write(ctx context.Context, day string, summary DailySummary) error {
	err := s.inner.Write(ctx, day, summary)
	s.cache.Del(day)
	return err
}

// Close releases the cache and closes the inner store when it is closable.
func (s *MemoSummaryStore) Close() error {
	s.cache.Close()
	if closer, ok := s.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func cloneDailySummary(in DailySummary) DailySummary {
	out := in
	out.Models = make(map[string]core.TokenTotals, len(in.Models))
	for name, totals := range in.Models {
		out.Models[name] = totals
	}
	return out
}
