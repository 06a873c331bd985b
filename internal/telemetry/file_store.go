package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileSystem is the set of file primitives FileSummaryStore needs.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
}

// OSFileSystem is FileSystem backed by package os.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }
func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFileSystem) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (OSFileSystem) Remove(name string) error                     { return os.Remove(name) }
func (OSFileSystem) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }

// FileSummaryStore keeps one JSON document per day under dir.
type FileSummaryStore struct {
	dir string
	fs  FileSystem

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileSummaryStore(dir string, fsys FileSystem) *FileSummaryStore {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return &FileSummaryStore{
		dir:   dir,
		fs:    fsys,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *FileSummaryStore) Dir() string { return s.dir }

// Path returns the document path for day.
func (s *FileSummaryStore) Path(day string) string {
	return filepath.Join(s.dir, day+".json")
}

func (s *FileSummaryStore) Read(_ context.Context, day string) (*DailySummary, bool) {
	if !validDayKey(day) {
		return nil, false
	}
	data, err := s.fs.ReadFile(s.Path(day))
	if err != nil {
		return nil, false
	}
	return decodeDailySummary(day, data)
}

// Stamp fingerprints the day's file by modification time and size.
func (s *FileSummaryStore) Stamp(_ context.Context, day string) (string, bool) {
	if !validDayKey(day) {
		return "", false
	}
	info, err := s.fs.Stat(s.Path(day))
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size()), true
}

// Write replaces the day's document through a temp file and rename, so
// readers never observe a partial file.
func (s *FileSummaryStore) Write(_ context.Context, day string, summary DailySummary) error {
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

	lock := s.dayLock(day)
	lock.Lock()
	defer lock.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("telemetry: creating cache dir: %w", err)
	}
	target := s.Path(day)
	tmp := target + "." + uuid.NewString() + ".tmp"
	if err := s.fs.WriteFile(tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("telemetry: writing %s: %w", filepath.Base(tmp), err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("telemetry: replacing %s: %w", filepath.Base(target), err)
	}
	return nil
}

func (s *FileSummaryStore) dayLock(day string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[day]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[day] = lock
	}
	return lock
}
