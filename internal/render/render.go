// Package render formats usage views for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/janekbaraniewski/tokenledger/internal/telemetry"
)

const defaultWidth = 80

var (
	colorText    = lipgloss.Color("#CDD6F4")
	colorSubtext = lipgloss.Color("#A6ADC8")
	colorDim     = lipgloss.Color("#585B70")
	colorSurface = lipgloss.Color("#45475A")
	colorAccent  = lipgloss.Color("#CBA6F7")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSubtext)
	cellStyle   = lipgloss.NewStyle().Foreground(colorText)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

type column struct {
	title string
	width int
	right bool
}

var reportColumns = []column{
	{title: "MODEL", width: 14},
	{title: "TOTAL", width: 9, right: true},
	{title: "INPUT", width: 9, right: true},
	{title: "OUTPUT", width: 9, right: true},
	{title: "CACHE", width: 9, right: true},
	{title: "REQS", width: 7, right: true},
	{title: "SHARE", width: 6, right: true},
}

// UsageReport renders a view and its range meta as a titled table with a
// distribution bar underneath.
func UsageReport(view telemetry.UsageView, meta *telemetry.RangeMeta, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Token usage %s .. %s", view.StartDate, view.EndDate)))
	sb.WriteString("\n")
	summary := fmt.Sprintf("total %s  input %s  output %s  cache %s  models %d",
		shortCompact(view.Total), shortCompact(view.Input), shortCompact(view.Output), shortCompact(view.Cache), view.ModelCount)
	sb.WriteString(dimStyle.Render(summary))
	sb.WriteString("\n")
	if meta != nil {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("days %d  cached %d  recomputed %d  failed %d",
			meta.TotalDays, meta.FromDailySummaryDays, meta.RecomputedDays, meta.FailedDays)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if len(view.Models) == 0 {
		sb.WriteString(dimStyle.Render("no usage recorded in this range"))
		sb.WriteString("\n")
		return sb.String()
	}

	headers := make([]string, len(reportColumns))
	for i, col := range reportColumns {
		headers[i] = col.title
	}
	sb.WriteString(fitAnsiWidth(renderRow(headers, headerStyle), width))
	sb.WriteString("\n")

	shares := make(map[string]string, len(view.Distribution))
	for _, d := range view.Distribution {
		shares[d.Key] = d.DisplayPercent
	}
	for _, m := range view.Models {
		share, ok := shares[m.Name]
		if !ok {
			share = dimStyle.Render(telemetry.OthersKey)
		}
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(m.Color)).Render("■")
		cells := []string{
			dot + " " + m.Name,
			shortCompact(m.Total),
			shortCompact(m.Input),
			shortCompact(m.Output),
			shortCompact(m.CacheRead + m.CacheCreate),
			fmt.Sprintf("%d", m.Count),
			share,
		}
		sb.WriteString(fitAnsiWidth(renderRow(cells, cellStyle), width))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(DistributionBar(view.Distribution, width))
	sb.WriteString("\n")
	sb.WriteString(distributionLegend(view.Distribution, width))
	sb.WriteString("\n")
	return sb.String()
}

// DistributionBar draws the distribution as coloured segments exactly width
// cells wide. Segment widths follow the integer percents.
func DistributionBar(entries []telemetry.DistributionEntry, width int) string {
	if width <= 0 {
		return ""
	}
	var sb strings.Builder
	remaining := width
	for i, e := range entries {
		if remaining <= 0 {
			break
		}
		segW := e.Percent * width / 100
		if segW < 1 && e.Percent > 0 {
			segW = 1
		}
		if i == len(entries)-1 && e.Percent > 0 {
			segW = remaining
		}
		if segW > remaining {
			segW = remaining
		}
		if segW <= 0 {
			continue
		}
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color)).Render(strings.Repeat("█", segW)))
		remaining -= segW
	}
	if remaining > 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(colorSurface).Render(strings.Repeat("░", remaining)))
	}
	return sb.String()
}

func distributionLegend(entries []telemetry.DistributionEntry, width int) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color)).Render("■")
		parts = append(parts, dot+" "+e.Name+" "+e.DisplayPercent)
	}
	return fitAnsiWidth(strings.Join(parts, "  "), width)
}

func renderRow(cells []string, style lipgloss.Style) string {
	out := make([]string, len(cells))
	for i, cell := range cells {
		col := reportColumns[i]
		out[i] = padCell(style.Render(cell), col.width, col.right)
	}
	return strings.Join(out, " ")
}

func padCell(s string, width int, right bool) string {
	s = ansi.Truncate(s, width, "…")
	pad := width - lipgloss.Width(s)
	if pad <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", pad) + s
	}
	return s + strings.Repeat(" ", pad)
}

func fitAnsiWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	out := ansi.Cut(s, 0, width)
	if pad := width - lipgloss.Width(out); pad > 0 {
		out += strings.Repeat(" ", pad)
	}
	return out
}

func shortCompact(v int64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(v)/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 10_000:
		return fmt.Sprintf("%.1fk", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}
