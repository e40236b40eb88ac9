package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mailtriage/mailtriage/internal/analysis"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRecord(id string, level analysis.ImportanceLevel) analysis.Record {
	return analysis.Record{
		MessageID:  id,
		Subject:    "Subject for " + id,
		Sender:     "sender@example.com",
		DateHeader: "Mon, 16 Jun 2025 09:00:00 +0000",
		Result: analysis.Result{
			Level:          level,
			Summary:        "Summary for " + id,
			Deadlines:      []string{"06/18/2025"},
			HasDeadline:    true,
			Reasoning:      "keyword match",
			ImportantLinks: []string{"https://example.com/x"},
			Source:         analysis.SourceModel,
		},
		IsImportant: level == analysis.VeryImportant || level == analysis.Important,
		ProcessedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGet(t *testing.T) {
	st := testStore(t)

	want := sampleRecord("msg-1", analysis.Important)
	if err := st.Save(&want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := st.Get("msg-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("record not found after save")
	}
	if got.Subject != want.Subject {
		t.Errorf("subject: got %s, want %s", got.Subject, want.Subject)
	}
	if got.Result.Level != want.Result.Level {
		t.Errorf("level: got %s, want %s", got.Result.Level, want.Result.Level)
	}
	if len(got.Result.Deadlines) != 1 || got.Result.Deadlines[0] != "06/18/2025" {
		t.Errorf("deadlines: got %v", got.Result.Deadlines)
	}
	if !got.Result.HasDeadline {
		t.Error("has_deadline lost in round trip")
	}
	if !got.IsImportant {
		t.Error("is_important lost in round trip")
	}
}

func TestGetAbsent(t *testing.T) {
	st := testStore(t)

	got, err := st.Get("no-such-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestSaveUpserts(t *testing.T) {
	st := testStore(t)

	first := sampleRecord("msg-1", analysis.Unimportant)
	if err := st.Save(&first); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	second := sampleRecord("msg-1", analysis.VeryImportant)
	second.Result.Summary = "Re-analyzed with the model"
	if err := st.Save(&second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := st.Get("msg-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Result.Level != analysis.VeryImportant {
		t.Errorf("level: got %s, want %s", got.Result.Level, analysis.VeryImportant)
	}
	if got.Result.Summary != "Re-analyzed with the model" {
		t.Errorf("summary not overwritten: %q", got.Result.Summary)
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("total: got %d, want 1 after upsert", stats.Total)
	}
}

func TestRecentOrder(t *testing.T) {
	st := testStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"old", "mid", "new"} {
		rec := sampleRecord(id, analysis.Unimportant)
		rec.ProcessedAt = base.Add(time.Duration(i) * time.Minute)
		if err := st.Save(&rec); err != nil {
			t.Fatalf("save %s failed: %v", id, err)
		}
	}

	records, err := st.Recent(2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].MessageID != "new" || records[1].MessageID != "mid" {
		t.Errorf("wrong order: %s, %s", records[0].MessageID, records[1].MessageID)
	}
}

func TestByLevel(t *testing.T) {
	st := testStore(t)

	for id, level := range map[string]analysis.ImportanceLevel{
		"a": analysis.Spam,
		"b": analysis.Important,
		"c": analysis.Spam,
	} {
		rec := sampleRecord(id, level)
		if err := st.Save(&rec); err != nil {
			t.Fatalf("save %s failed: %v", id, err)
		}
	}

	records, err := st.ByLevel(analysis.Spam, 10)
	if err != nil {
		t.Fatalf("by level failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d spam records, want 2", len(records))
	}
	for _, rec := range records {
		if rec.Result.Level != analysis.Spam {
			t.Errorf("record %s has level %s", rec.MessageID, rec.Result.Level)
		}
	}
}

func TestGetStats(t *testing.T) {
	st := testStore(t)

	recs := []analysis.Record{
		sampleRecord("a", analysis.VeryImportant),
		sampleRecord("b", analysis.Important),
		sampleRecord("c", analysis.Spam),
	}
	recs[2].Result.Source = analysis.SourceHeuristic
	if err := st.SaveBatch(recs); err != nil {
		t.Fatalf("save batch failed: %v", err)
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total: got %d, want 3", stats.Total)
	}
	if stats.ByLevel[analysis.VeryImportant] != 1 || stats.ByLevel[analysis.Spam] != 1 {
		t.Errorf("unexpected level counts: %v", stats.ByLevel)
	}
	if stats.Heuristic != 1 {
		t.Errorf("heuristic: got %d, want 1", stats.Heuristic)
	}
}

func TestGetStatsEmpty(t *testing.T) {
	st := testStore(t)

	stats, err := st.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 0 || stats.Heuristic != 0 {
		t.Errorf("got total=%d heuristic=%d, want zeros", stats.Total, stats.Heuristic)
	}
}

func TestClear(t *testing.T) {
	st := testStore(t)

	for _, id := range []string{"a", "b"} {
		rec := sampleRecord(id, analysis.Unimportant)
		if err := st.Save(&rec); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	n, err := st.Clear()
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared %d rows, want 2", n)
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("total after clear: got %d, want 0", stats.Total)
	}
}

func TestExportJSON(t *testing.T) {
	st := testStore(t)

	rec := sampleRecord("msg-1", analysis.Important)
	if err := st.Save(&rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "export.json")
	if err := st.ExportJSON(path); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var exported []analysis.Record
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(exported) != 1 || exported[0].MessageID != "msg-1" {
		t.Errorf("unexpected export content: %+v", exported)
	}
}
