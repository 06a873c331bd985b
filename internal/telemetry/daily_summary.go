package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/janekbaraniewski/tokenledger/internal/core"
)

// DailySummarySchemaVersion tags every persisted summary. Documents carrying
// any other version are treated as absent and rebuilt.
const DailySummarySchemaVersion = 2

// DailySummary is the persisted aggregate of one calendar day.
type DailySummary struct {
	SchemaVersion int                         `json:"schemaVersion"`
	Date          string                      `json:"date"`
	GeneratedAt   time.Time                   `json:"generatedAt"`
	Models        map[string]core.TokenTotals `json:"models"`
	Summary       core.TokenTotals            `json:"summary"`
}

// NewDailySummary builds a summary document from per-model aggregates.
func NewDailySummary(day string, generatedAt time.Time, aggs map[string]*core.ModelAggregate) DailySummary {
	out := DailySummary{
		SchemaVersion: DailySummarySchemaVersion,
		Date:          day,
		GeneratedAt:   generatedAt.UTC(),
		Models:        make(map[string]core.TokenTotals, len(aggs)),
	}
	for name, agg := range aggs {
		if agg == nil {
			continue
		}
		totals := agg.Totals()
		out.Models[name] = totals
		out.Summary.Add(totals)
	}
	return out
}

// DailySummaryStore persists one summary per day key. Read reports false for
// anything it cannot vouch for; callers recompute in that case.
type DailySummaryStore interface {
	Read(ctx context.Context, day string) (*DailySummary, bool)
	Write(ctx context.Context, day string, summary DailySummary) error
}

// SummaryStamper fingerprints the stored document for day without decoding
// it. The stamp changes whenever the stored bytes may have changed; false
// means nothing usable is stored.
type SummaryStamper interface {
	Stamp(ctx context.Context, day string) (string, bool)
}

type dailySummaryDoc struct {
	SchemaVersion *int                        `json:"schemaVersion"`
	Date          string                      `json:"date"`
	GeneratedAt   string                      `json:"generatedAt"`
	Models        map[string]core.TokenTotals `json:"models"`
	Summary       *core.TokenTotals           `json:"summary"`
}

// decodeDailySummary validates a stored document for day. Any defect is a
// miss, never an error.
func decodeDailySummary(day string, data []byte) (*DailySummary, bool) {
	var doc dailySummaryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	if doc.SchemaVersion == nil || *doc.SchemaVersion != DailySummarySchemaVersion {
		return nil, false
	}
	if doc.Date != day || doc.Models == nil || doc.Summary == nil || !doc.Summary.Valid() {
		return nil, false
	}
	generatedAt, err := time.Parse(time.RFC3339Nano, doc.GeneratedAt)
	if err != nil {
		return nil, false
	}
	for name, totals := range doc.Models {
		if name == "" || !totals.Valid() {
			return nil, false
		}
	}
	return &DailySummary{
		SchemaVersion: *doc.SchemaVersion,
		Date:          doc.Date,
		GeneratedAt:   generatedAt,
		Models:        doc.Models,
		Summary:       *doc.Summary,
	}, true
}

func encodeDailySummary(summary DailySummary) ([]byte, error) {
	if summary.Models == nil {
		summary.Models = map[string]core.TokenTotals{}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("telemetry: marshal daily summary %s: %w", summary.Date, err)
	}
	return append(data, '\n'), nil
}

func validDayKey(day string) bool {
	_, err := core.ParseDayKey(day, time.UTC)
	return err == nil
}
