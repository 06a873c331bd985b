package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func configureSQLiteConnection(db *sql.DB) error {
	if db == nil {
		return nil
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return fmt.Errorf("set journal_mode WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous = NORMAL;`); err != nil {
		return fmt.Errorf("set synchronous NORMAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}

	// Range queries read while background persists write.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	return nil
}

// SQLiteSummaryStore keeps daily summaries as JSON documents in one table.
type SQLiteSummaryStore struct {
	db *sql.DB
}

func OpenSQLiteSummaryStore(path string) (*SQLiteSummaryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: creating DB dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: opening DB: %w", err)
	}
	store, err := NewSQLiteSummaryStore(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteSummaryStore configures db and creates the summary table.
func NewSQLiteSummaryStore(ctx context.Context, db *sql.DB) (*SQLiteSummaryStore, error) {
	if err := configureSQLiteConnection(db); err != nil {
		return nil, fmt.Errorf("telemetry: configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS daily_summaries (
		day TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		generated_at TEXT NOT NULL,
		document TEXT NOT NULL,
		revision INTEGER NOT NULL DEFAULT 0
	);`); err != nil {
		return nil, fmt.Errorf("telemetry: init daily_summaries: %w", err)
	}
	// Any change to a stored document, including one made outside this
	// process, bumps its revision.
	if _, err := db.ExecContext(ctx, `CREATE TRIGGER IF NOT EXISTS daily_summaries_revision
		AFTER UPDATE OF schema_version, generated_at, document ON daily_summaries
		BEGIN
			UPDATE daily_summaries SET revision = revision + 1 WHERE day = NEW.day;
		END;`); err != nil {
		return nil, fmt.Errorf("telemetry: init daily_summaries trigger: %w", err)
	}
	return &SQLiteSummaryStore{db: db}, nil
}

func (s *SQLiteSummaryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSummaryStore) Read(ctx context.Context, day string) (*DailySummary, bool) {
	if !validDayKey(day) {
		return nil, false
	}
	var (
		version  int
		document string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version, document FROM daily_summaries WHERE day = ?`, day,
	).Scan(&version, &document)
	if err != nil || version != DailySummarySchemaVersion {
		return nil, false
	}
	return decodeDailySummary(day, []byte(document))
}

// Stamp fingerprints the day's row by rowid, revision and generatedAt.
func (s *SQLiteSummaryStore) Stamp(ctx context.Context, day string) (string, bool) {
	if !validDayKey(day) {
		return "", false
	}
	var (
		rowID       int64
		revision    int64
		version     int
		generatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT rowid, revision, schema_version, generated_at FROM daily_summaries WHERE day = ?`, day,
	).Scan(&rowID, &revision, &version, &generatedAt)
	if err != nil || version != DailySummarySchemaVersion {
		return "", false
	}
	return fmt.Sprintf("%d:%d:%s", rowID, revision, generatedAt), true
}

func (s *SQLiteSummaryStore) Write(ctx context.Context, day string, summary DailySummary) error {
	if !validDayKey(day) {
		return fmt.Errorf("telemetry: invalid day key %q", day)
	}
	if summary.Date != day {
		return fmt.Errorf("telemetry: summary date %q does not match day %q", summary.Date, day)
	}
	data, err := encodeDailySummary(summary)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (day, schema_version, generated_at, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			schema_version = excluded.schema_version,
			generated_at = excluded.generated_at,
			document = excluded.document`,
		day, summary.SchemaVersion, summary.GeneratedAt.UTC().Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return fmt.Errorf("telemetry: upsert daily summary %s: %w", day, err)
	}
	return nil
}
