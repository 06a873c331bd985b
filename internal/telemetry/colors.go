package telemetry

import (
	"sort"
	"strings"
)

const (
	defaultModelColor = "#585B70"
	othersColor       = "#45475A"
)

var modelColors = map[string]string{
	"opus":     "#CBA6F7",
	"sonnet":   "#FAB387",
	"haiku":    "#F9E2AF",
	"codex":    "#94E2D5",
	"gpt":      "#A6E3A1",
	"gemini":   "#89B4FA",
	"deepseek": "#74C7EC",
	"qwen":     "#B4BEFE",
	"kimi":     "#F2CDCD",
	"glm":      "#89DCEB",
	"grok":     "#EBA0AC",
	"unknown":  "#A6ADC8",
}

// colorKeysByLength lists palette keys longest first so "deepseek" wins over
// any shorter key it happens to contain.
var colorKeysByLength = func() []string {
	keys := make([]string, 0, len(modelColors))
	for k := range modelColors {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// ModelColor returns the display color for a canonical model name.
func ModelColor(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := modelColors[name]; ok {
		return c
	}
	for _, key := range colorKeysByLength {
		if strings.Contains(name, key) {
			return modelColors[key]
		}
	}
	return defaultModelColor
}
