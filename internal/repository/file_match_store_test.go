package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/forumwatch/internal/model"
)

// FileMatchStoreはMatchStoreインターフェースを満たすことを検証
func TestFileMatchStore_ImplementsInterface(t *testing.T) {
	var _ MatchStore = (*FileMatchStore)(nil)
}

func readPartition(t *testing.T, path string) []model.MatchRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	var records []model.MatchRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("partition is not valid JSON: %v", err)
	}
	return records
}

func TestFileMatchStore_AppendWritesPartitionAndLog(t *testing.T) {
	var buf bytes.Buffer
	resultsDir := filepath.Join(t.TempDir(), "results")
	baseDir := t.TempDir()
	store := NewFileMatchStore(resultsDir, baseDir, newTestLogger(&buf))

	foundAt := time.Date(2026, 10, 16, 9, 30, 0, 0, time.Local)
	rec := testRecord("jewelry", "260000001", foundAt)

	appended, err := store.Append(context.Background(), rec)
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if !appended {
		t.Fatal("first append should be stored")
	}

	path := filepath.Join(resultsDir, "matches_2026-10-16.json")
	records := readPartition(t, path)
	if len(records) != 1 || records[0].Key != rec.Key {
		t.Fatalf("records = %+v", records)
	}

	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "<推薦>") {
		t.Error("partition should not escape HTML characters")
	}

	log, err := os.ReadFile(filepath.Join(baseDir, MatchLogFileName))
	if err != nil {
		t.Fatalf("match log not written: %v", err)
	}
	for _, want := range []string{
		strings.Repeat("=", 60),
		"平台: Dcard 珠寶版",
		"標題: 訂製鑽石戒指分享",
		"網址: https://www.dcard.tw/f/jewelry/p/260000001",
		"匹配關鍵字: 戒指, 鑽石",
		"愛心/留言: 12/3",
	} {
		if !strings.Contains(string(log), want) {
			t.Errorf("match log should contain %q", want)
		}
	}
}

// 同じパーティションに同じPostKeyを二重に保存しないことを検証
func TestFileMatchStore_AppendSameKeyTwice(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	store := NewFileMatchStore(dir, dir, newTestLogger(&buf))
	ctx := context.Background()

	foundAt := time.Date(2026, 10, 16, 9, 30, 0, 0, time.Local)
	rec := testRecord("jewelry", "260000001", foundAt)

	if _, err := store.Append(ctx, rec); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	appended, err := store.Append(ctx, rec)
	if err != nil {
		t.Fatalf("second Append returned error: %v", err)
	}
	if appended {
		t.Error("second append of the same key should be skipped")
	}

	other := testRecord("jewelry", "260000002", foundAt.Add(time.Hour))
	if _, err := store.Append(ctx, other); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	records := readPartition(t, store.PartitionPath(foundAt))
	if len(records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(records))
	}

	log, _ := os.ReadFile(filepath.Join(dir, MatchLogFileName))
	if n := strings.Count(string(log), "發現時間:"); n != 2 {
		t.Errorf("match log entries = %d, want 2", n)
	}
}

// 日付ごとに別のパーティションへ保存することを検証
func TestFileMatchStore_PartitionsByDay(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	store := NewFileMatchStore(dir, dir, newTestLogger(&buf))
	ctx := context.Background()

	day1 := time.Date(2026, 10, 15, 23, 59, 0, 0, time.Local)
	day2 := time.Date(2026, 10, 16, 0, 1, 0, 0, time.Local)
	store.Append(ctx, testRecord("girl", "1", day1))
	store.Append(ctx, testRecord("girl", "2", day2))

	if got := readPartition(t, filepath.Join(dir, "matches_2026-10-15.json")); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("day1 = %+v", got)
	}
	if got := readPartition(t, filepath.Join(dir, "matches_2026-10-16.json")); len(got) != 1 || got[0].ID != "2" {
		t.Errorf("day2 = %+v", got)
	}
}

// 壊れたパーティションは空として扱い、上書きして続行することを検証
func TestFileMatchStore_CorruptPartitionTreatedAsEmpty(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	store := NewFileMatchStore(dir, dir, newTestLogger(&buf))

	foundAt := time.Date(2026, 10, 16, 12, 0, 0, 0, time.Local)
	path := store.PartitionPath(foundAt)
	if err := os.WriteFile(path, []byte(`[{"key": "dcard_`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	appended, err := store.Append(context.Background(), testRecord("marriage", "9", foundAt))
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if !appended {
		t.Error("record should be stored")
	}
	if got := readPartition(t, path); len(got) != 1 {
		t.Errorf("len(records) = %d, want 1", len(got))
	}
	if !strings.Contains(buf.String(), "パーティションを解析できないため空として扱います") {
		t.Error("corrupt partition should be logged")
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

// 発見日時を解釈できない場合は現在の日付のパーティションを使うことを検証
func TestFileMatchStore_FallsBackToClock(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	store := NewFileMatchStore(dir, dir, newTestLogger(&buf))
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local) }

	rec := testRecord("girl", "5", time.Now())
	rec.FoundAt = ""
	if _, err := store.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "matches_2026-01-02.json")); err != nil {
		t.Errorf("partition for clock date not written: %v", err)
	}
}

func TestFileMatchStore_WriteSummaryOverwritesBothCopies(t *testing.T) {
	var buf bytes.Buffer
	resultsDir := filepath.Join(t.TempDir(), "results")
	baseDir := t.TempDir()
	store := NewFileMatchStore(resultsDir, baseDir, newTestLogger(&buf))
	ctx := context.Background()

	first := model.NewRunSummary("run-1", []string{"jewelry", "girl"}, time.Now())
	first.Add(testRecord("jewelry", "1", time.Now()))
	if err := store.WriteSummary(ctx, first); err != nil {
		t.Fatalf("WriteSummary returned error: %v", err)
	}

	second := model.NewRunSummary("run-2", []string{"jewelry", "girl"}, time.Now())
	if err := store.WriteSummary(ctx, second); err != nil {
		t.Fatalf("WriteSummary returned error: %v", err)
	}

	for _, path := range []string{
		filepath.Join(resultsDir, SummaryFileName),
		filepath.Join(baseDir, RootSummaryFileName),
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", path, err)
		}
		var got model.RunSummary
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("summary is not valid JSON: %v", err)
		}
		if got.RunID != "run-2" || got.TotalMatches != 0 {
			t.Errorf("%s: run_id=%q total=%d, want latest run only", path, got.RunID, got.TotalMatches)
		}
		if count, ok := got.MatchesByForum["girl"]; !ok || count != 0 {
			t.Errorf("%s: matches_by_forum = %v, want girl=0 present", path, got.MatchesByForum)
		}
	}
}

func TestFormatMatchLogEntry(t *testing.T) {
	rec := testRecord("jewelry", "7", time.Date(2026, 10, 16, 9, 30, 0, 0, time.Local))
	entry := FormatMatchLogEntry(rec)

	if !strings.HasPrefix(entry, "\n"+strings.Repeat("=", 60)+"\n發現時間: 2026-10-16 09:30:00\n") {
		t.Errorf("entry header = %q", entry)
	}
	if !strings.HasSuffix(entry, "摘要: 想請問<推薦>的工作室\n") {
		t.Errorf("entry footer = %q", entry)
	}
}
