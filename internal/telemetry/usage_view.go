package telemetry

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/tokenledger/internal/core"
)

const (
	maxDistributionEntries = 5
	OthersKey              = "others"
	usagePeriodCustom      = "custom"
)

type ModelUsage struct {
	Name        string `json:"name"`
	Input       int64  `json:"input"`
	Output      int64  `json:"output"`
	CacheRead   int64  `json:"cacheRead"`
	CacheCreate int64  `json:"cacheCreate"`
	Total       int64  `json:"total"`
	Count       int64  `json:"count"`
	Color       string `json:"color"`
}

type DistributionEntry struct {
	Name           string `json:"name"`
	Percent        int    `json:"percent"`
	DisplayPercent string `json:"displayPercent"`
	Color          string `json:"color"`
	Key            string `json:"key"`
}

// UsageView is the presentation model returned for a date range.
type UsageView struct {
	Total             int64               `json:"total"`
	Input             int64               `json:"input"`
	Output            int64               `json:"output"`
	Cache             int64               `json:"cache"`
	Models            []ModelUsage        `json:"models"`
	Distribution      []DistributionEntry `json:"distribution"`
	IsExtremeScenario bool                `json:"isExtremeScenario"`
	ModelCount        int                 `json:"modelCount"`
	Period            string              `json:"period"`
	StartDate         string              `json:"startDate"`
	EndDate           string              `json:"endDate"`
}

// BuildUsageView merges daily summaries into a single view. Models with a zero
// total are dropped; the rest are ordered by total desc then name.
func BuildUsageView(summaries []DailySummary, startDate, endDate string) UsageView {
	merged := make(map[string]core.TokenTotals)
	for _, s := range summaries {
		for name, totals := range s.Models {
			cur := merged[name]
			cur.Add(totals)
			merged[name] = cur
		}
	}

	names := lo.Filter(lo.Keys(merged), func(name string, _ int) bool {
		return merged[name].Total > 0
	})
	sort.Slice(names, func(i, j int) bool {
		ti, tj := merged[names[i]].Total, merged[names[j]].Total
		if ti != tj {
			return ti > tj
		}
		return names[i] < names[j]
	})

	models := lo.Map(names, func(name string, _ int) ModelUsage {
		t := merged[name]
		return ModelUsage{
			Name:        name,
			Input:       t.Input,
			Output:      t.Output,
			CacheRead:   t.CacheRead,
			CacheCreate: t.CacheCreate,
			Total:       t.Total,
			Count:       t.Count,
			Color:       ModelColor(name),
		}
	})

	view := UsageView{
		Total:             lo.SumBy(models, func(m ModelUsage) int64 { return m.Total }),
		Input:             lo.SumBy(models, func(m ModelUsage) int64 { return m.Input }),
		Output:            lo.SumBy(models, func(m ModelUsage) int64 { return m.Output }),
		Cache:             lo.SumBy(models, func(m ModelUsage) int64 { return m.CacheRead + m.CacheCreate }),
		Models:            models,
		Distribution:      []DistributionEntry{},
		ModelCount:        len(models),
		IsExtremeScenario: len(models) > maxDistributionEntries,
		Period:            usagePeriodCustom,
		StartDate:         startDate,
		EndDate:           endDate,
	}
	if view.Total <= 0 {
		return view
	}

	totals := lo.Map(models, func(m ModelUsage, _ int) int64 { return m.Total })
	percents := largestRemainderPercents(totals)

	shown := models
	if view.IsExtremeScenario {
		shown = models[:maxDistributionEntries]
	}
	for i, m := range shown {
		view.Distribution = append(view.Distribution, DistributionEntry{
			Name:           m.Name,
			Percent:        percents[i],
			DisplayPercent: displayPercent(percents[i], m.Total),
			Color:          m.Color,
			Key:            m.Name,
		})
	}
	if view.IsExtremeScenario {
		// "others" takes whatever the top entries leave, not its own
		// largest-remainder share.
		shownPercent := lo.Sum(percents[:maxDistributionEntries])
		othersTotal := lo.Sum(totals[maxDistributionEntries:])
		othersPercent := 100 - shownPercent
		view.Distribution = append(view.Distribution, DistributionEntry{
			Name:           OthersKey,
			Percent:        othersPercent,
			DisplayPercent: displayPercent(othersPercent, othersTotal),
			Color:          othersColor,
			Key:            OthersKey,
		})
	}
	return view
}

func displayPercent(percent int, total int64) string {
	if percent == 0 && total > 0 {
		return "<1%"
	}
	return fmt.Sprintf("%d%%", percent)
}

// largestRemainderPercents splits 100 across totals. Every share is floored,
// then the shortfall goes one point at a time to the largest remainders; ties
// prefer the larger total, then the earlier index.
func largestRemainderPercents(totals []int64) []int {
	out := make([]int, len(totals))
	sum := lo.Sum(totals)
	if sum <= 0 {
		return out
	}

	type share struct {
		idx   int
		rem   int64
		total int64
	}
	shares := make([]share, len(totals))
	assigned := 0
	for i, t := range totals {
		out[i] = int(t * 100 / sum)
		assigned += out[i]
		shares[i] = share{idx: i, rem: t * 100 % sum, total: t}
	}

	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].rem != shares[j].rem {
			return shares[i].rem > shares[j].rem
		}
		if shares[i].total != shares[j].total {
			return shares[i].total > shares[j].total
		}
		return shares[i].idx < shares[j].idx
	})
	for i := 0; i < 100-assigned && i < len(shares); i++ {
		out[shares[i].idx]++
	}
	return out
}
