package core

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reDateISO     = regexp.MustCompile(`(20\d{2})[-_](0[1-9]|1[0-2])[-_](0[1-9]|[12]\d|3[01])`)
	reDateCompact = regexp.MustCompile(`\b(20\d{2})(0[1-9]|1[0-2])([0-2]\d|3[01])\b`)
)

const (
	UnknownModel        = "unknown"
	maxFallbackModelLen = 24
)

// modelFamilies is matched in order against the lower-cased raw name, so
// "gpt-5-codex" lands in codex before gpt gets a chance.
var modelFamilies = []string{
	"opus",
	"sonnet",
	"haiku",
	"codex",
	"gpt",
	"gemini",
	"deepseek",
	"qwen",
	"kimi",
	"glm",
	"grok",
}

// NormalizeModelName maps a raw model id onto the canonical bucket used for
// aggregation. Known families match by case-insensitive containment; other
// names collapse to their leading token.
func NormalizeModelName(raw string) string {
	model := strings.ToLower(strings.TrimSpace(raw))
	if model == "" {
		return UnknownModel
	}
	for _, family := range modelFamilies {
		if strings.Contains(model, family) {
			return family
		}
	}

	model = strings.TrimPrefix(model, "models/")
	model = strings.Trim(model, "/")
	if parts := strings.SplitN(model, "/", 2); len(parts) == 2 && isKnownVendor(parts[0]) {
		model = parts[1]
	}
	if noDate := stripReleaseDate(model); noDate != "" {
		model = noDate
	}

	tokens := splitModelTokens(model)
	if len(tokens) == 0 || tokens[0] == UnknownModel {
		return UnknownModel
	}
	return truncateRunes(tokens[0], maxFallbackModelLen)
}

func isKnownVendor(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "anthropic", "openai", "google", "mistral", "xai", "deepseek", "groq", "meta", "openrouter", "moonshotai", "z-ai", "qwen":
		return true
	default:
		return false
	}
}

func stripReleaseDate(raw string) string {
	out := reDateISO.ReplaceAllString(raw, "")
	out = reDateCompact.ReplaceAllString(out, "")
	out = strings.Trim(out, "-_ ")
	return out
}

func normalizeModelToken(raw string) string {
	if raw == "" {
		return UnknownModel
	}
	var b strings.Builder
	b.Grow(len(raw))
	lastDash := false
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			lastDash = false
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '.':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return UnknownModel
	}
	return out
}

func splitModelTokens(model string) []string {
	parts := strings.Split(normalizeModelToken(model), "-")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
