package telemetry

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/janekbaraniewski/tokenledger/internal/core"
	"github.com/janekbaraniewski/tokenledger/internal/providers/shared"
)

// fileWindowSlack extends file selection past "now" so files touched while a
// scan is starting are still picked up.
const fileWindowSlack = time.Minute

// SourceConfig binds one usage source to the roots it scans.
type SourceConfig struct {
	Source shared.UsageSource
	Roots  []string
}

// Recomputer rebuilds a day's summary from raw logs.
type Recomputer interface {
	Recompute(ctx context.Context, day string, window core.Window) (DailySummary, error)
}

// DayRecomputer scans every configured source for one day window and folds
// the records into a DailySummary.
type DayRecomputer struct {
	sources   []SourceConfig
	collect   shared.CollectOptions
	collector shared.Collector
	now       func() time.Time
}

type RecomputerOption func(*DayRecomputer)

func WithCollectOptions(opts shared.CollectOptions) RecomputerOption {
	return func(r *DayRecomputer) { r.collect = opts }
}

func WithCollector(c shared.Collector) RecomputerOption {
	return func(r *DayRecomputer) { r.collector = c }
}

func WithRecomputeClock(now func() time.Time) RecomputerOption {
	return func(r *DayRecomputer) {
		if now != nil {
			r.now = now
		}
	}
}

func NewDayRecomputer(sources []SourceConfig, opts ...RecomputerOption) *DayRecomputer {
	r := &DayRecomputer{
		sources: sources,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DayRecomputer) Recompute(ctx context.Context, day string, window core.Window) (DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return DailySummary{}, codedError(CodeRecomputeCancelled, "recompute %s: %w", day, err)
	}

	fileWindow := core.Window{Start: window.Start, End: r.now().Add(fileWindowSlack)}
	if fileWindow.End.Before(window.End) {
		fileWindow.End = window.End
	}

	results := make([]shared.ScanResult, len(r.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range r.sources {
		if src.Source == nil {
			continue
		}
		g.Go(func() error {
			res, err := src.Source.Scan(gctx, shared.ScanRequest{
				Window:     window,
				FileWindow: fileWindow,
				Roots:      src.Roots,
				Collect:    r.collect,
				Collector:  r.collector,
			})
			if err != nil {
				return &scanError{system: src.Source.System(), err: err}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return DailySummary{}, codedError(CodeRecomputeCancelled, "recompute %s: %w", day, err)
		}
		return DailySummary{}, codedError(CodeScanFailed, "recompute %s: %w", day, err)
	}

	aggs := make(map[string]*core.ModelAggregate)
	for i, res := range results {
		if res.Truncated {
			log.Printf("[telemetry] %s: file cap reached while scanning %s", r.sources[i].Source.System(), day)
		}
		core.MergeAggregates(aggs, core.AggregateRecords(res.Records))
	}
	return NewDailySummary(day, r.now(), aggs), nil
}

type scanError struct {
	system string
	err    error
}

func (e *scanError) Error() string { return e.system + ": " + e.err.Error() }
func (e *scanError) Unwrap() error { return e.err }
