package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/janekbaraniewski/tokenledger/internal/core"
)

func writeFileAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestCollectFilesInWindow_FiltersByModTimeAndSortsNewestFirst(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	writeFileAt(t, filepath.Join(root, "a", "old.jsonl"), base.Add(-time.Hour))
	writeFileAt(t, filepath.Join(root, "a", "first.jsonl"), base)
	writeFileAt(t, filepath.Join(root, "b", "second.jsonl"), base.Add(2*time.Hour))
	writeFileAt(t, filepath.Join(root, "b", "at-end.jsonl"), base.Add(24*time.Hour))
	writeFileAt(t, filepath.Join(root, "b", "notes.txt"), base.Add(time.Hour))

	got := CollectFilesInWindow(root, base, base.Add(24*time.Hour), CollectOptions{
		Exts: map[string]bool{".jsonl": true},
	})
	want := []string{
		filepath.Join(root, "b", "second.jsonl"),
		filepath.Join(root, "a", "first.jsonl"),
	}
	if got.Truncated {
		t.Fatal("unexpected truncation")
	}
	if len(got.Files) != len(want) {
		t.Fatalf("files = %v, want %v", got.Files, want)
	}
	for i := range want {
		if got.Files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, got.Files[i], want[i])
		}
	}
}

func TestCollectFilesInWindow_TruncatesToCap(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		writeFileAt(t, filepath.Join(root, "f"+string(rune('a'+i))+".jsonl"), base.Add(time.Duration(i)*time.Minute))
	}

	got := CollectFilesInWindow(root, base, base.Add(time.Hour), CollectOptions{MaxFiles: 3})
	if !got.Truncated {
		t.Fatal("expected truncated = true")
	}
	if len(got.Files) != 3 {
		t.Fatalf("files = %d, want 3", len(got.Files))
	}
	if got.Files[0] != filepath.Join(root, "fe.jsonl") {
		t.Fatalf("first = %q, want newest fe.jsonl", got.Files[0])
	}
}

func TestCollectFilesInWindow_RespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	ts := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	writeFileAt(t, filepath.Join(root, "top.jsonl"), ts)
	writeFileAt(t, filepath.Join(root, "d1", "mid.jsonl"), ts)
	writeFileAt(t, filepath.Join(root, "d1", "d2", "deep.jsonl"), ts)

	got := CollectFilesInWindow(root, ts.Add(-time.Hour), ts.Add(time.Hour), CollectOptions{MaxDepth: 2})
	if len(got.Files) != 2 {
		t.Fatalf("files = %v, want top and mid only", got.Files)
	}
	for _, f := range got.Files {
		if filepath.Base(f) == "deep.jsonl" {
			t.Fatalf("deep file should be excluded: %v", got.Files)
		}
	}
}

func TestCollectFilesInWindow_MissingRootIsEmpty(t *testing.T) {
	got := CollectFilesInWindow(filepath.Join(t.TempDir(), "nope"), time.Time{}, time.Now(), CollectOptions{})
	if len(got.Files) != 0 || got.Truncated {
		t.Fatalf("got %+v, want empty", got)
	}
}

func TestFSCollector_DedupesAcrossRootsAndFiltersPrefix(t *testing.T) {
	root := t.TempDir()
	ts := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	writeFileAt(t, filepath.Join(root, "chats", "session-1.json"), ts)
	writeFileAt(t, filepath.Join(root, "chats", "logs.json"), ts)

	window := core.Window{Start: ts.Add(-time.Hour), End: ts.Add(time.Hour)}
	got := FSCollector{}.Collect([]string{root, root, ""}, window, CollectOptions{NamePrefix: "session-"})
	if len(got.Files) != 1 || filepath.Base(got.Files[0]) != "session-1.json" {
		t.Fatalf("files = %v, want one session file", got.Files)
	}
}

func TestScanRequestCollectFilesUsesExtensions(t *testing.T) {
	root := t.TempDir()
	ts := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	writeFileAt(t, filepath.Join(root, "a.JSONL"), ts)
	writeFileAt(t, filepath.Join(root, "b.json"), ts)

	req := ScanRequest{
		Roots:      []string{root},
		FileWindow: core.Window{Start: ts.Add(-time.Hour), End: ts.Add(time.Hour)},
	}
	got := req.CollectFiles(".jsonl")
	if len(got.Files) != 1 || filepath.Base(got.Files[0]) != "a.JSONL" {
		t.Fatalf("files = %v, want a.JSONL", got.Files)
	}
}

func TestParseTimestampString(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-02-22T10:00:00Z", time.Date(2026, 2, 22, 10, 0, 0, 0, time.UTC), false},
		{"2026-02-22T10:00:00.123+08:00", time.Date(2026, 2, 22, 2, 0, 0, 123000000, time.UTC), false},
		{"1700000000", time.Unix(1700000000, 0).UTC(), false},
		{"1700000000000", time.UnixMilli(1700000000000).UTC(), false},
		{"not a time", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestampString(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimestampString(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("ParseTimestampString(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
