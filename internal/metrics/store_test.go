package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStoreWithPath(filepath.Join(t.TempDir(), "test_stats.db"))
	if err != nil {
		t.Fatalf("NewStoreWithPath failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenStoreCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "stats.db")

	store, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestOpenStoreRequiresPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if _, err := OpenStore(""); !errors.Is(err, ErrNoPath) {
		t.Fatalf("Expected ErrNoPath, got %v", err)
	}

	recorder := OpenRecorder("", nil)
	recorder.RecordInvocation(ModeAnswer)
	if recorder.Totals() != nil {
		t.Error("Expected a no-op recorder without a path")
	}

	entries, err := os.ReadDir(home)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected nothing written under HOME, found %d entries", len(entries))
	}
}

func TestIncrement(t *testing.T) {
	store := newTestStore(t)

	if err := store.Increment(ModeAnswer); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}

	today := time.Now().Format("2006-01-02")
	count, err := store.GetCountByDate(ModeAnswer, today)
	if err != nil {
		t.Fatalf("GetCountByDate failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}

	if err := store.Increment(ModeAnswer); err != nil {
		t.Fatalf("Second increment failed: %v", err)
	}

	count, err = store.GetCountByDate(ModeAnswer, today)
	if err != nil {
		t.Fatalf("GetCountByDate failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
}

func TestGetCountByDateMissing(t *testing.T) {
	store := newTestStore(t)

	count, err := store.GetCountByDate(ModeDocuments, "1999-01-01")
	if err != nil {
		t.Fatalf("GetCountByDate failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 for unrecorded day, got %d", count)
	}
}

func TestGetAllTotals(t *testing.T) {
	store := newTestStore(t)

	yesterday := time.Now().AddDate(0, 0, -1)
	_ = store.Increment(ModeAnswer)
	_ = store.Increment(ModeAnswer)
	_ = store.IncrementOn(ModeAnswer, yesterday)

	totals, err := store.GetAllTotals()
	if err != nil {
		t.Fatalf("GetAllTotals failed: %v", err)
	}

	expected := map[Mode]int64{
		ModeAnswer:   3,
		ModeDocuments: 0,
	}
	for mode, want := range expected {
		if totals[mode] != want {
			t.Errorf("Mode %s: expected %d, got %d", mode, want, totals[mode])
		}
	}

	total, err := store.GetTotalByMode(ModeAnswer)
	if err != nil {
		t.Fatalf("GetTotalByMode failed: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected answer total 3, got %d", total)
	}
}

func TestGetRecentDays(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	_ = store.IncrementOn(ModeDocuments, now)
	_ = store.IncrementOn(ModeAnswer, now.AddDate(0, 0, -2))
	_ = store.IncrementOn(ModeAnswer, now.AddDate(0, 0, -30))

	rows, err := store.GetRecentDays(7)
	if err != nil {
		t.Fatalf("GetRecentDays failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows within a week, got %d", len(rows))
	}
	if rows[0].Date != now.Format("2006-01-02") || rows[0].Mode != ModeDocuments {
		t.Errorf("Expected newest row first, got %+v", rows[0])
	}
}

func TestRecorder(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, nil)

	recorder.RecordInvocation(ModeAnswer)
	recorder.RecordInvocation(ModeDocuments)
	recorder.RecordInvocation(ModeDocuments)

	totals := recorder.Totals()
	if totals[ModeAnswer] != 1 || totals[ModeDocuments] != 2 {
		t.Errorf("Unexpected totals: %v", totals)
	}
}

func TestRecorderWithoutStore(t *testing.T) {
	var nilRecorder *Recorder
	nilRecorder.RecordInvocation(ModeAnswer)

	recorder := NewRecorder(nil, nil)
	recorder.RecordInvocation(ModeAnswer)
	if recorder.Totals() != nil {
		t.Error("Expected nil totals without a store")
	}
	if err := recorder.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
