package main

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/tokenledger/internal/config"
	"github.com/janekbaraniewski/tokenledger/internal/detect"
	"github.com/janekbaraniewski/tokenledger/internal/providers"
	"github.com/janekbaraniewski/tokenledger/internal/providers/shared"
	"github.com/janekbaraniewski/tokenledger/internal/telemetry"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// cacheLocation returns the directory or database path the configured
// backend persists to.
func cacheLocation(cfg config.Config) (string, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		if p := strings.TrimSpace(cfg.Cache.DBPath); p != "" {
			return shared.ExpandHome(p), nil
		}
		return telemetry.DefaultDBPath()
	default:
		if d := strings.TrimSpace(cfg.Cache.Dir); d != "" {
			return shared.ExpandHome(d), nil
		}
		return telemetry.DefaultCacheDir()
	}
}

func buildStore(cfg config.Config) (telemetry.DailySummaryStore, io.Closer, error) {
	location, err := cacheLocation(cfg)
	if err != nil {
		return nil, nil, err
	}

	var (
		store  telemetry.DailySummaryStore
		closer io.Closer = nopCloser{}
	)
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		db, err := telemetry.OpenSQLiteSummaryStore(location)
		if err != nil {
			return nil, nil, err
		}
		store, closer = db, db
	default:
		store = telemetry.NewFileSummaryStore(location, nil)
	}

	if cfg.Cache.MemoEntries > 0 {
		memo, err := telemetry.NewMemoSummaryStore(store, cfg.Cache.MemoEntries)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		store, closer = memo, memo
	}
	return store, closer, nil
}

// sourceCandidates resolves every known source with the roots it would scan.
func sourceCandidates(cfg config.Config) []detect.Candidate {
	candidates := []detect.Candidate{
		{System: shared.SourceClaudeCode, Enabled: cfg.Sources.IncludeClaudeCode, Roots: cfg.Sources.ClaudeDirs},
		{System: shared.SourceCodex, Enabled: cfg.Sources.IncludeCodex, Roots: lo.Compact([]string{cfg.Sources.CodexDir})},
		{System: shared.SourceGeminiCLI, Enabled: cfg.Sources.IncludeGemini, Roots: lo.Compact([]string{cfg.Sources.GeminiDir})},
	}
	for i, c := range candidates {
		if len(c.Roots) == 0 {
			c.Roots = providers.DefaultRoots(c.System)
		}
		candidates[i].Roots = shared.ExpandHomeAll(c.Roots)
	}
	return candidates
}

// buildSources binds each enabled candidate to its registered source.
func buildSources(cfg config.Config) []telemetry.SourceConfig {
	var out []telemetry.SourceConfig
	for _, c := range sourceCandidates(cfg) {
		if !c.Enabled {
			continue
		}
		source, ok := providers.UsageSourceBySystem(c.System)
		if !ok {
			continue
		}
		if len(c.Roots) == 0 {
			log.Printf("[wiring] %s enabled but no log roots resolved", c.System)
			continue
		}
		out = append(out, telemetry.SourceConfig{Source: source, Roots: c.Roots})
	}
	return out
}

func buildRangeService(cfg config.Config) (*telemetry.RangeService, io.Closer, error) {
	store, closer, err := buildStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open summary cache: %w", err)
	}
	recomputer := telemetry.NewDayRecomputer(buildSources(cfg), telemetry.WithCollectOptions(shared.CollectOptions{
		MaxDepth: cfg.Scan.MaxDepth,
		MaxFiles: cfg.Scan.MaxFiles,
	}))
	svc := telemetry.NewRangeService(store, recomputer, telemetry.WithMaxRangeDays(cfg.MaxRangeDays))
	return svc, closer, nil
}
