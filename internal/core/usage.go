package core

import "time"

// LogRecord is one normalized usage increment produced by a source parser.
// It is consumed by AggregateRecords and never persisted.
type LogRecord struct {
	Timestamp   time.Time
	Model       string
	Input       int64
	Output      int64
	CacheRead   int64
	CacheCreate int64
}

func (r LogRecord) Total() int64 {
	return r.Input + r.Output + r.CacheRead + r.CacheCreate
}

// TokenTotals is the persisted counter set for one model (or a whole day).
type TokenTotals struct {
	Input       int64 `json:"input"`
	Output      int64 `json:"output"`
	CacheRead   int64 `json:"cacheRead"`
	CacheCreate int64 `json:"cacheCreate"`
	Total       int64 `json:"total"`
	Count       int64 `json:"count"`
}

func (t *TokenTotals) Add(other TokenTotals) {
	t.Input += other.Input
	t.Output += other.Output
	t.CacheRead += other.CacheRead
	t.CacheCreate += other.CacheCreate
	t.Total += other.Total
	t.Count += other.Count
}

// Valid reports whether every counter is non-negative.
func (t TokenTotals) Valid() bool {
	return t.Input >= 0 && t.Output >= 0 && t.CacheRead >= 0 &&
		t.CacheCreate >= 0 && t.Total >= 0 && t.Count >= 0
}

// ModelAggregate accumulates records for one canonical model name.
type ModelAggregate struct {
	Name        string
	Input       int64
	Output      int64
	CacheRead   int64
	CacheCreate int64
	Total       int64
	Count       int64
}

func (a *ModelAggregate) add(r LogRecord) {
	a.Input += r.Input
	a.Output += r.Output
	a.CacheRead += r.CacheRead
	a.CacheCreate += r.CacheCreate
	a.Total += r.Total()
	a.Count++
}

func (a ModelAggregate) Totals() TokenTotals {
	return TokenTotals{
		Input:       a.Input,
		Output:      a.Output,
		CacheRead:   a.CacheRead,
		CacheCreate: a.CacheCreate,
		Total:       a.Total,
		Count:       a.Count,
	}
}

// AggregateRecords groups records by canonical model name and sums their
// counters.
func AggregateRecords(records []LogRecord) map[string]*ModelAggregate {
	out := make(map[string]*ModelAggregate)
	for _, r := range records {
		name := NormalizeModelName(r.Model)
		agg, ok := out[name]
		if !ok {
			agg = &ModelAggregate{Name: name}
			out[name] = agg
		}
		agg.add(r)
	}
	return out
}

// MergeAggregates folds src into dst, keyed by canonical name.
func MergeAggregates(dst, src map[string]*ModelAggregate) {
	for name, agg := range src {
		if agg == nil {
			continue
		}
		cur, ok := dst[name]
		if !ok {
			cur = &ModelAggregate{Name: name}
			dst[name] = cur
		}
		cur.Input += agg.Input
		cur.Output += agg.Output
		cur.CacheRead += agg.CacheRead
		cur.CacheCreate += agg.CacheCreate
		cur.Total += agg.Total
		cur.Count += agg.Count
	}
}
