package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	CacheBackendFile   = "file"
	CacheBackendSQLite = "sqlite"

	envPrefix = "TOKENLEDGER_"
)

type SourcesConfig struct {
	IncludeClaudeCode bool     `json:"include_claude_code"`
	IncludeCodex      bool     `json:"include_codex"`
	IncludeGemini     bool     `json:"include_gemini"`
	ClaudeDirs        []string `json:"claude_dirs,omitempty"`
	CodexDir          string   `json:"codex_dir,omitempty"`
	GeminiDir         string   `json:"gemini_dir,omitempty"`
}

type ScanConfig struct {
	MaxDepth int `json:"max_depth"`
	MaxFiles int `json:"max_files"`
}

type CacheConfig struct {
	Backend     string `json:"backend"`
	Dir         string `json:"dir,omitempty"`
	DBPath      string `json:"db_path,omitempty"`
	MemoEntries int64  `json:"memo_entries"`
}

type ServerConfig struct {
	Addr string `json:"addr"`
}

type LogConfig struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

type Config struct {
	Sources      SourcesConfig `json:"sources"`
	Scan         ScanConfig    `json:"scan"`
	Cache        CacheConfig   `json:"cache"`
	Server       ServerConfig  `json:"server"`
	Log          LogConfig     `json:"log"`
	MaxRangeDays int           `json:"max_range_days"`
}

func DefaultConfig() Config {
	return Config{
		Sources: SourcesConfig{
			IncludeClaudeCode: true,
			IncludeCodex:      true,
		},
		Scan: ScanConfig{
			MaxDepth: 8,
			MaxFiles: 5000,
		},
		Cache: CacheConfig{
			Backend:     CacheBackendFile,
			MemoEntries: 512,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8787"},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		MaxRangeDays: 366,
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "tokenledger")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tokenledger")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

// Load applies .env files, reads the settings file and then the
// TOKENLEDGER_* environment overrides.
func Load() (Config, error) {
	LoadEnvFiles(EnvPaths()...)
	cfg, err := LoadFrom(ConfigPath())
	if err != nil {
		return cfg, err
	}
	return ApplyEnv(cfg)
}

// EnvPaths lists the .env files Load consults, most specific first.
func EnvPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	return append(paths, filepath.Join(ConfigDir(), ".env"))
}

// LoadEnvFiles loads every existing file into the process environment.
// Variables that are already set keep their value.
func LoadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	return normalize(cfg)
}

// ApplyEnv overrides file values with TOKENLEDGER_* variables.
func ApplyEnv(cfg Config) (Config, error) {
	if v, ok := lookupEnv("CACHE_DIR"); ok {
		cfg.Cache.Dir = v
	}
	if v, ok := lookupEnv("CACHE_BACKEND"); ok {
		cfg.Cache.Backend = v
	}
	if v, ok := lookupEnv("CLAUDE_DIRS"); ok {
		cfg.Sources.ClaudeDirs = splitPathList(v)
	}
	if v, ok := lookupEnv("CODEX_DIR"); ok {
		cfg.Sources.CodexDir = v
	}
	if v, ok := lookupEnv("GEMINI_DIR"); ok {
		cfg.Sources.GeminiDir = v
		cfg.Sources.IncludeGemini = true
	}
	if v, ok := lookupEnv("ADDR"); ok {
		cfg.Server.Addr = v
	}
	return normalize(cfg)
}

func normalize(cfg Config) (Config, error) {
	def := DefaultConfig()
	if cfg.Scan.MaxDepth <= 0 {
		cfg.Scan.MaxDepth = def.Scan.MaxDepth
	}
	if cfg.Scan.MaxFiles <= 0 {
		cfg.Scan.MaxFiles = def.Scan.MaxFiles
	}
	if cfg.Cache.MemoEntries < 0 {
		cfg.Cache.MemoEntries = 0
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = def.MaxRangeDays
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	cfg.Sources.ClaudeDirs = lo.Compact(lo.Map(cfg.Sources.ClaudeDirs, func(dir string, _ int) string {
		return strings.TrimSpace(dir)
	}))

	switch backend := strings.ToLower(strings.TrimSpace(cfg.Cache.Backend)); backend {
	case "", CacheBackendFile:
		cfg.Cache.Backend = CacheBackendFile
	case CacheBackendSQLite:
		cfg.Cache.Backend = CacheBackendSQLite
	default:
		return cfg, fmt.Errorf("config: unknown cache backend %q", cfg.Cache.Backend)
	}
	return cfg, nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func splitPathList(v string) []string {
	return lo.Compact(lo.Map(filepath.SplitList(v), func(dir string, _ int) string {
		return strings.TrimSpace(dir)
	}))
}

// saveMu guards writes to the config file.
var saveMu sync.Mutex

func SaveTo(path string, cfg Config) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
