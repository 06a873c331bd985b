package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"CACHE_DIR", "CACHE_BACKEND", "CLAUDE_DIRS", "CODEX_DIR", "GEMINI_DIR", "ADDR"} {
		t.Setenv(envPrefix+name, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scan.MaxDepth != 8 || cfg.Scan.MaxFiles != 5000 {
		t.Errorf("scan = %+v, want depth 8 files 5000", cfg.Scan)
	}
	if cfg.Cache.Backend != CacheBackendFile {
		t.Errorf("cache backend = %q, want file", cfg.Cache.Backend)
	}
	if !cfg.Sources.IncludeClaudeCode || !cfg.Sources.IncludeCodex || cfg.Sources.IncludeGemini {
		t.Errorf("sources = %+v, want claude and codex only", cfg.Sources)
	}
	if cfg.MaxRangeDays != 366 {
		t.Errorf("max range days = %d, want 366", cfg.MaxRangeDays)
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != DefaultConfig().Server.Addr {
		t.Error("should return defaults for missing file")
	}
}

func TestLoadFrom_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{
  "sources": {"include_claude_code": true, "include_gemini": true, "claude_dirs": [" /a ", "", "/b"]},
  "scan": {"max_depth": 3, "max_files": 0},
  "cache": {"backend": "SQLite", "db_path": "/tmp/x.db"},
  "max_range_days": 31
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.Scan.MaxDepth != 3 || cfg.Scan.MaxFiles != 5000 {
		t.Errorf("scan = %+v, want depth 3 and default file cap", cfg.Scan)
	}
	if cfg.Cache.Backend != CacheBackendSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.Cache.Backend)
	}
	if strings.Join(cfg.Sources.ClaudeDirs, ",") != "/a,/b" {
		t.Errorf("claude dirs = %v, want [/a /b]", cfg.Sources.ClaudeDirs)
	}
	if !cfg.Sources.IncludeCodex {
		t.Error("omitted include_codex should keep its default")
	}
	if cfg.MaxRangeDays != 31 {
		t.Errorf("max range days = %d, want 31", cfg.MaxRangeDays)
	}
}

func TestLoadFrom_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"scan":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(bad); err == nil {
		t.Error("expected parse error")
	}

	backend := filepath.Join(dir, "backend.json")
	if err := os.WriteFile(backend, []byte(`{"cache":{"backend":"redis"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(backend); err == nil {
		t.Error("expected unknown backend error")
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKENLEDGER_CACHE_DIR", "/var/cache/tl")
	t.Setenv("TOKENLEDGER_CLAUDE_DIRS", "/one"+string(os.PathListSeparator)+"/two")
	t.Setenv("TOKENLEDGER_GEMINI_DIR", "/gem")
	t.Setenv("TOKENLEDGER_ADDR", ":9999")

	cfg, err := ApplyEnv(DefaultConfig())
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Cache.Dir != "/var/cache/tl" {
		t.Errorf("cache dir = %q", cfg.Cache.Dir)
	}
	if len(cfg.Sources.ClaudeDirs) != 2 || cfg.Sources.ClaudeDirs[1] != "/two" {
		t.Errorf("claude dirs = %v", cfg.Sources.ClaudeDirs)
	}
	if !cfg.Sources.IncludeGemini || cfg.Sources.GeminiDir != "/gem" {
		t.Errorf("gemini = %v %q", cfg.Sources.IncludeGemini, cfg.Sources.GeminiDir)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadEnvFiles_DoesNotOverrideSetVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKENLEDGER_ADDR", ":1111")
	path := filepath.Join(t.TempDir(), ".env")
	content := "TOKENLEDGER_ADDR=:2222\nTOKENLEDGER_CODEX_DIR=/from/env/file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TOKENLEDGER_CODEX_DIR") })
	os.Unsetenv("TOKENLEDGER_CODEX_DIR")

	LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := ApplyEnv(DefaultConfig())
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Server.Addr != ":1111" {
		t.Errorf("addr = %q, want process value :1111", cfg.Server.Addr)
	}
	if cfg.Sources.CodexDir != "/from/env/file" {
		t.Errorf("codex dir = %q, want value from .env", cfg.Sources.CodexDir)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	cfg := DefaultConfig()
	cfg.Server.Addr = ":7000"
	cfg.Sources.CodexDir = "/codex"
	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.Server.Addr != ":7000" || got.Sources.CodexDir != "/codex" {
		t.Fatalf("round trip = %+v", got)
	}
}
