package providers

import (
	"strings"

	"github.com/janekbaraniewski/tokenledger/internal/providers/claude_code"
	"github.com/janekbaraniewski/tokenledger/internal/providers/codex"
	"github.com/janekbaraniewski/tokenledger/internal/providers/gemini_cli"
	"github.com/janekbaraniewski/tokenledger/internal/providers/shared"
)

// AllUsageSources returns every registered log source.
func AllUsageSources() []shared.UsageSource {
	return []shared.UsageSource{
		claude_code.NewUsageSource(),
		codex.NewUsageSource(),
		gemini_cli.NewUsageSource(),
	}
}

func UsageSourceBySystem(system string) (shared.UsageSource, bool) {
	system = strings.ToLower(strings.TrimSpace(system))
	for _, source := range AllUsageSources() {
		if source.System() == system {
			return source, true
		}
	}
	return nil, false
}

// DefaultRoots returns the conventional log roots for a source system.
func DefaultRoots(system string) []string {
	switch strings.ToLower(strings.TrimSpace(system)) {
	case shared.SourceClaudeCode:
		return claude_code.DefaultProjectsDirs()
	case shared.SourceCodex:
		return nonEmpty(codex.DefaultSessionsDir())
	case shared.SourceGeminiCLI:
		return nonEmpty(gemini_cli.DefaultTmpDir())
	default:
		return nil
	}
}

func nonEmpty(dir string) []string {
	if dir == "" {
		return nil
	}
	return []string{dir}
}
