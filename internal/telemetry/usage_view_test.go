package telemetry

import (
	"testing"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/tokenledger/internal/core"
)

func summaryWithTotals(day string, totals map[string]int64) DailySummary {
	aggs := make(map[string]*core.ModelAggregate, len(totals))
	for name, total := range totals {
		aggs[name] = &core.ModelAggregate{Name: name, Input: total, Total: total, Count: 1}
	}
	return NewDailySummary(day, testGeneratedAt, aggs)
}

func TestLargestRemainderPercents(t *testing.T) {
	tests := []struct {
		name   string
		totals []int64
		want   []int
	}{
		{"single", []int64{42}, []int{100}},
		{"thirds", []int64{1, 1, 1}, []int{34, 33, 33}},
		{"remainder tie goes to larger total", []int64{5, 5, 2}, []int{42, 42, 16}},
		{"all zero", []int64{0, 0}, []int{0, 0}},
		{"tiny share", []int64{1000, 1}, []int{100, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := largestRemainderPercents(tt.totals)
			if len(got) != len(tt.want) {
				t.Fatalf("percents = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("percents = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestBuildUsageView_SortsAndSums(t *testing.T) {
	day1 := NewDailySummary("2024-01-01", testGeneratedAt, map[string]*core.ModelAggregate{
		"sonnet": {Name: "sonnet", Input: 10, Output: 20, CacheRead: 30, CacheCreate: 40, Total: 100, Count: 2},
		"gpt":    {Name: "gpt", Input: 100, Total: 100, Count: 1},
		"idle":   {Name: "idle"},
	})
	day2 := NewDailySummary("2024-01-02", testGeneratedAt, map[string]*core.ModelAggregate{
		"sonnet": {Name: "sonnet", Input: 50, Total: 50, Count: 1},
	})

	view := BuildUsageView([]DailySummary{day1, day2}, "2024-01-01", "2024-01-02")

	names := lo.Map(view.Models, func(m ModelUsage, _ int) string { return m.Name })
	if len(names) != 2 || names[0] != "sonnet" || names[1] != "gpt" {
		t.Fatalf("models = %v, want [sonnet gpt]", names)
	}
	if view.Total != 250 || view.Input != 160 || view.Output != 20 || view.Cache != 70 {
		t.Fatalf("totals = %d/%d/%d/%d, want 250/160/20/70", view.Total, view.Input, view.Output, view.Cache)
	}
	if view.ModelCount != 2 || view.IsExtremeScenario {
		t.Fatalf("modelCount = %d extreme = %v", view.ModelCount, view.IsExtremeScenario)
	}
	if view.Models[0].Count != 3 || view.Models[0].Color != ModelColor("sonnet") {
		t.Fatalf("sonnet row = %+v", view.Models[0])
	}
	if view.Distribution[0].Percent != 60 || view.Distribution[1].Percent != 40 {
		t.Fatalf("distribution = %+v", view.Distribution)
	}
}

func TestBuildUsageView_PercentsSumTo100(t *testing.T) {
	inputs := []map[string]int64{
		{"a": 1, "b": 1, "c": 1},
		{"a": 999, "b": 1},
		{"opus": 7, "sonnet": 13, "haiku": 17, "gpt": 19},
		{"a": 3, "b": 3, "c": 3, "d": 3, "e": 3, "f": 3, "g": 3},
	}
	for _, totals := range inputs {
		view := BuildUsageView([]DailySummary{summaryWithTotals("2024-01-01", totals)}, "2024-01-01", "2024-01-01")
		sum := lo.SumBy(view.Distribution, func(d DistributionEntry) int { return d.Percent })
		if sum != 100 {
			t.Fatalf("distribution %+v sums to %d, want 100", view.Distribution, sum)
		}
	}
}

func TestBuildUsageView_SixModelsCollapseToOthers(t *testing.T) {
	view := BuildUsageView([]DailySummary{summaryWithTotals("2024-01-01", map[string]int64{
		"opus": 600, "sonnet": 500, "haiku": 400, "codex": 300, "gpt": 200, "gemini": 100,
	})}, "2024-01-01", "2024-01-01")

	if len(view.Distribution) != 6 {
		t.Fatalf("distribution has %d entries, want 6", len(view.Distribution))
	}
	if !view.IsExtremeScenario || view.ModelCount != 6 || len(view.Models) != 6 {
		t.Fatalf("extreme = %v modelCount = %d models = %d", view.IsExtremeScenario, view.ModelCount, len(view.Models))
	}
	last := view.Distribution[5]
	if last.Key != OthersKey || last.Name != OthersKey || last.Percent != 5 {
		t.Fatalf("others entry = %+v", last)
	}
}

func TestBuildUsageView_LessThanOnePercent(t *testing.T) {
	view := BuildUsageView([]DailySummary{summaryWithTotals("2024-01-01", map[string]int64{
		"opus": 100000, "grok": 3,
	})}, "2024-01-01", "2024-01-01")

	grok := view.Distribution[1]
	if grok.Name != "grok" || grok.Percent != 0 || grok.DisplayPercent != "<1%" {
		t.Fatalf("grok entry = %+v, want 0 percent shown as <1%%", grok)
	}
	if view.Distribution[0].DisplayPercent != "100%" {
		t.Fatalf("opus display = %q", view.Distribution[0].DisplayPercent)
	}
}

// The "others" bucket is whatever the top five leave behind. Allocating it
// as its own largest-remainder share would give 3 here; the residual is 4.
// This asymmetry is intentional and kept until product says otherwise.
func TestBuildUsageView_OthersIsResidualNotIndependentShare(t *testing.T) {
	view := BuildUsageView([]DailySummary{summaryWithTotals("2024-01-01", map[string]int64{
		"alpha": 194, "bravo": 194, "charlie": 194, "delta": 194, "echo": 194,
		"foxtrot": 15, "golf": 15,
	})}, "2024-01-01", "2024-01-01")

	got := lo.Map(view.Distribution, func(d DistributionEntry, _ int) int { return d.Percent })
	want := []int{20, 19, 19, 19, 19, 4}
	if len(got) != len(want) {
		t.Fatalf("percents = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("percents = %v, want %v", got, want)
		}
	}

	independent := largestRemainderPercents([]int64{194, 194, 194, 194, 194, 30})
	if independent[5] != 3 {
		t.Fatalf("independent others share = %d, want 3", independent[5])
	}
}

func TestBuildUsageView_Empty(t *testing.T) {
	view := BuildUsageView(nil, "2024-01-01", "2024-01-01")
	if view.Total != 0 || len(view.Models) != 0 || len(view.Distribution) != 0 {
		t.Fatalf("empty view = %+v", view)
	}
	if view.Distribution == nil {
		t.Fatal("distribution should encode as an empty array")
	}
}

func TestModelColor(t *testing.T) {
	if ModelColor("opus") != modelColors["opus"] {
		t.Fatalf("exact match failed")
	}
	if ModelColor("gpt4o") != modelColors["gpt"] {
		t.Fatalf("substring match failed")
	}
	if ModelColor("mistral") != defaultModelColor {
		t.Fatalf("default color not used")
	}
}
