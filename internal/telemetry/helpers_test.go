package telemetry

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/janekbaraniewski/tokenledger/internal/core"
)

var testGeneratedAt = time.Date(2024, time.January, 3, 4, 5, 6, 0, time.UTC)

func sampleSummary(day string) DailySummary {
	return NewDailySummary(day, testGeneratedAt, map[string]*core.ModelAggregate{
		"sonnet": {Name: "sonnet", Input: 100, Output: 50, CacheRead: 25, CacheCreate: 5, Total: 180, Count: 3},
		"gpt":    {Name: "gpt", Input: 40, Output: 10, Total: 50, Count: 1},
	})
}

// memStore is an in-memory DailySummaryStore for orchestration tests.
type memStore struct {
	mu       sync.Mutex
	docs     map[string]DailySummary
	revs     map[string]int
	writes   []string
	reads    int
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]DailySummary), revs: make(map[string]int)}
}

func (m *memStore) Read(_ context.Context, day string) (*DailySummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	doc, ok := m.docs[day]
	if !ok {
		return nil, false
	}
	return &doc, true
}

func (m *memStore) Write(_ context.Context, day string, summary DailySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, day)
	if m.writeErr != nil {
		return m.writeErr
	}
	m.docs[day] = summary
	m.revs[day]++
	return nil
}

func (m *memStore) Stamp(_ context.Context, day string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[day]; !ok {
		return "", false
	}
	return strconv.Itoa(m.revs[day]), true
}

func (m *memStore) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// stubRecomputer returns canned summaries or errors per day key.
type stubRecomputer struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
}

func (s *stubRecomputer) Recompute(_ context.Context, day string, window core.Window) (DailySummary, error) {
	s.mu.Lock()
	s.calls = append(s.calls, day)
	err := s.errs[day]
	s.mu.Unlock()
	if err != nil {
		return DailySummary{}, err
	}
	if window.End.Sub(window.Start) != 24*time.Hour {
		return DailySummary{}, errors.New("window is not one day")
	}
	return sampleSummary(day), nil
}
