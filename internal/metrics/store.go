package metrics

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Mode is the kind of query command invocation being tracked.
type Mode string

const (
	ModeAnswer    Mode = "answer"
	ModeDocuments Mode = "documents"
	ModeResearch  Mode = "research"
)

// AllModes lists every mode reported by stats, in display order.
var AllModes = []Mode{ModeAnswer, ModeDocuments, ModeResearch}

const dateLayout = "2006-01-02"

// ErrNoPath is returned when no statistics database was configured.
var ErrNoPath = errors.New("no statistics database configured (set AGENTSPACE_STATS_PATH)")

// Store manages SQLite persistence for invocation counts.
type Store struct {
	db *sql.DB
}

// OpenStore opens the store at path.
// The parent directory and database file are created if they don't exist.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}
	return NewStoreWithPath(path)
}

// NewStoreWithPath creates a new Store with a custom database path.
func NewStoreWithPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS invocation_counts (
			mode TEXT NOT NULL,
			date TEXT NOT NULL,
			count INTEGER DEFAULT 0,
			PRIMARY KEY (mode, date)
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Increment increments the count for the given mode for today's date.
func (s *Store) Increment(mode Mode) error {
	return s.IncrementOn(mode, time.Now())
}

// IncrementOn increments the count for mode on the day of at.
func (s *Store) IncrementOn(mode Mode, at time.Time) error {
	upsertSQL := `
		INSERT INTO invocation_counts (mode, date, count)
		VALUES (?, ?, 1)
		ON CONFLICT(mode, date) DO UPDATE SET count = count + 1;
	`
	if _, err := s.db.Exec(upsertSQL, string(mode), at.Format(dateLayout)); err != nil {
		return fmt.Errorf("failed to increment count: %w", err)
	}
	return nil
}

// GetTotalByMode returns the cumulative count for a specific mode across all dates.
func (s *Store) GetTotalByMode(mode Mode) (int64, error) {
	var total int64
	row := s.db.QueryRow(
		"SELECT COALESCE(SUM(count), 0) FROM invocation_counts WHERE mode = ?",
		string(mode),
	)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get total for mode %s: %w", mode, err)
	}
	return total, nil
}

// GetAllTotals returns cumulative counts for all modes. Modes never recorded report 0.
func (s *Store) GetAllTotals() (map[Mode]int64, error) {
	result := make(map[Mode]int64, len(AllModes))
	for _, mode := range AllModes {
		result[mode] = 0
	}

	rows, err := s.db.Query(
		"SELECT mode, COALESCE(SUM(count), 0) FROM invocation_counts GROUP BY mode",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var modeStr string
		var total int64
		if err := rows.Scan(&modeStr, &total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[Mode(modeStr)] = total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// DailyCount is one row of the per-day history.
type DailyCount struct {
	Date  string
	Mode  Mode
	Count int64
}

// GetRecentDays returns per-day counts for the last days days, newest first.
func (s *Store) GetRecentDays(days int) ([]DailyCount, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -(days - 1)).Format(dateLayout)

	rows, err := s.db.Query(
		"SELECT date, mode, count FROM invocation_counts WHERE date >= ? ORDER BY date DESC, mode ASC",
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer rows.Close()

	var out []DailyCount
	for rows.Next() {
		var row DailyCount
		var mode string
		if err := rows.Scan(&row.Date, &mode, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row.Mode = Mode(mode)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// GetCountByDate returns the count for a specific mode and date.
func (s *Store) GetCountByDate(mode Mode, date string) (int64, error) {
	var count int64
	row := s.db.QueryRow(
		"SELECT COALESCE(count, 0) FROM invocation_counts WHERE mode = ? AND date = ?",
		string(mode), date,
	)
	if err := row.Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get count: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
