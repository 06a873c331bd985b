package telemetry

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/janekbaraniewski/tokenledger/internal/core"
)

const DefaultMaxRangeDays = 366

type RangeRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Timezone  string `json:"timezone,omitempty"`
}

type RangeMeta struct {
	FromDailySummaryDays int `json:"fromDailySummaryDays"`
	RecomputedDays       int `json:"recomputedDays"`
	TotalDays            int `json:"totalDays"`
	FailedDays           int `json:"failedDays"`
}

type RangeResponse struct {
	Success bool       `json:"success"`
	Data    *UsageView `json:"data,omitempty"`
	Meta    *RangeMeta `json:"meta,omitempty"`
	Error   ErrorCode  `json:"error,omitempty"`
	Message string     `json:"message,omitempty"`
}

func failure(err error) RangeResponse {
	return RangeResponse{Success: false, Error: CodeOf(err), Message: err.Error()}
}

// RangeService answers range queries from the summary store, recomputing
// missing days and persisting them in the background.
type RangeService struct {
	store        DailySummaryStore
	recomputer   Recomputer
	loc          *time.Location
	now          func() time.Time
	maxRangeDays int

	pending sync.WaitGroup
}

type RangeOption func(*RangeService)

func WithClock(now func() time.Time) RangeOption {
	return func(s *RangeService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMaxRangeDays(n int) RangeOption {
	return func(s *RangeService) {
		if n > 0 {
			s.maxRangeDays = n
		}
	}
}

func NewRangeService(store DailySummaryStore, recomputer Recomputer, opts ...RangeOption) *RangeService {
	s := &RangeService{
		store:        store,
		recomputer:   recomputer,
		loc:          core.SupportedLocation(),
		now:          time.Now,
		maxRangeDays: DefaultMaxRangeDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query validates req, then resolves every day in the range.
func (s *RangeService) Query(ctx context.Context, req RangeRequest) RangeResponse {
	startDay, endDay, err := s.validate(req)
	if err != nil {
		return failure(err)
	}

	days := core.DaysInRange(startDay, endDay)
	meta := RangeMeta{TotalDays: len(days)}
	summaries := make([]DailySummary, 0, len(days))
	var lastErr error

	for _, dayStart := range days {
		key := core.DayKey(dayStart, s.loc)
		if cached, ok := s.store.Read(ctx, key); ok {
			meta.FromDailySummaryDays++
			summaries = append(summaries, *cached)
			continue
		}

		summary, err := s.recomputer.Recompute(ctx, key, core.DayWindow(dayStart))
		if err != nil {
			log.Printf("[telemetry] recompute %s failed: %v", key, err)
			meta.FailedDays++
			lastErr = err
			continue
		}
		meta.RecomputedDays++
		summaries = append(summaries, summary)
		s.persist(ctx, key, summary)
	}

	if len(summaries) == 0 {
		if lastErr == nil {
			lastErr = codedError(CodeAggregateFailed, "no day in %s..%s produced a summary", req.StartDate, req.EndDate)
		}
		return failure(lastErr)
	}

	view := BuildUsageView(summaries, core.DayKey(startDay, s.loc), core.DayKey(endDay, s.loc))
	return RangeResponse{Success: true, Data: &view, Meta: &meta}
}

// Flush blocks until every background cache write started by Query is done.
func (s *RangeService) Flush() {
	s.pending.Wait()
}

func (s *RangeService) persist(ctx context.Context, day string, summary DailySummary) {
	writeCtx := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.store.Write(writeCtx, day, summary); err != nil {
			log.Printf("[telemetry] persist %s failed: %v", day, err)
		}
	}()
}

func (s *RangeService) validate(req RangeRequest) (time.Time, time.Time, error) {
	if tz := strings.TrimSpace(req.Timezone); tz != "" && tz != core.SupportedTimezone {
		return time.Time{}, time.Time{}, codedError(CodeInvalidTimezone, "unsupported timezone %q", tz)
	}
	endDay, err := core.ParseDayKey(strings.TrimSpace(req.EndDate), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, &CodedError{Code: CodeInvalidDateRange, Err: fmt.Errorf("endDate: %w", err)}
	}
	today := core.StartOfDay(s.now(), s.loc)
	if !endDay.Before(today) {
		return time.Time{}, time.Time{}, codedError(CodeDateOutOfRange, "endDate %s must be before %s", req.EndDate, core.DayKey(today, s.loc))
	}
	startDay, err := core.ParseDayKey(strings.TrimSpace(req.StartDate), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, &CodedError{Code: CodeInvalidDateRange, Err: fmt.Errorf("startDate: %w", err)}
	}
	if startDay.After(endDay) {
		return time.Time{}, time.Time{}, codedError(CodeInvalidDateRange, "startDate %s is after endDate %s", req.StartDate, req.EndDate)
	}
	if n := daysSpanned(startDay, endDay); n > s.maxRangeDays {
		return time.Time{}, time.Time{}, codedError(CodeInvalidDateRange, "range spans %d days, limit is %d", n, s.maxRangeDays)
	}
	return startDay, endDay, nil
}

// daysSpanned counts calendar days in [start, end] without enumerating
// them. Rounding absorbs the odd 23 or 25 hour day.
func daysSpanned(start, end time.Time) int {
	secs := end.Unix() - start.Unix()
	return int((secs+12*60*60)/(24*60*60)) + 1
}
