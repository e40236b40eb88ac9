// Package store persists analysis results in a local SQLite database,
// keyed by message id so re-processing the same message overwrites the
// previous verdict instead of duplicating it.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mailtriage/mailtriage/internal/analysis"
)

type Store struct {
	db *sql.DB
}

// Stats summarizes the stored verdicts for the status view.
type Stats struct {
	Total     int
	ByLevel   map[analysis.ImportanceLevel]int
	Heuristic int // Records produced by the fallback path
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS analyses (
		message_id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		sender TEXT,
		date_header TEXT,
		importance_level TEXT NOT NULL,
		summary TEXT NOT NULL,
		deadlines TEXT,
		has_deadline INTEGER NOT NULL DEFAULT 0,
		reasoning TEXT,
		important_links TEXT,
		attachments TEXT,
		source TEXT NOT NULL,
		failure_kind TEXT,
		is_important INTEGER NOT NULL DEFAULT 0,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_an_level ON analyses(importance_level);
	CREATE INDEX IF NOT EXISTS idx_an_processed_at ON analyses(processed_at);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Save upserts one record. The most recent verdict for a message id wins.
func (s *Store) Save(rec *analysis.Record) error {
	deadlines, err := marshalList(rec.Result.Deadlines)
	if err != nil {
		return err
	}
	links, err := marshalList(rec.Result.ImportantLinks)
	if err != nil {
		return err
	}
	attachments, err := marshalList(rec.Result.AttachmentsMentioned)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO analyses (message_id, subject, sender, date_header, importance_level, summary,
		deadlines, has_deadline, reasoning, important_links, attachments, source, failure_kind,
		is_important, processed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(message_id) DO UPDATE SET
		subject=excluded.subject,
		sender=excluded.sender,
		date_header=excluded.date_header,
		importance_level=excluded.importance_level,
		summary=excluded.summary,
		deadlines=excluded.deadlines,
		has_deadline=excluded.has_deadline,
		reasoning=excluded.reasoning,
		important_links=excluded.important_links,
		attachments=excluded.attachments,
		source=excluded.source,
		failure_kind=excluded.failure_kind,
		is_important=excluded.is_important,
		processed_at=excluded.processed_at
	`

	hasDeadline := 0
	if rec.Result.HasDeadline {
		hasDeadline = 1
	}
	isImportant := 0
	if rec.IsImportant {
		isImportant = 1
	}

	_, err = s.db.Exec(query,
		rec.MessageID, rec.Subject, rec.Sender, rec.DateHeader,
		string(rec.Result.Level), rec.Result.Summary,
		deadlines, hasDeadline, rec.Result.Reasoning, links, attachments,
		string(rec.Result.Source), string(rec.Result.FailureKind),
		isImportant, rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// SaveBatch writes all records; the first failure aborts the rest.
func (s *Store) SaveBatch(recs []analysis.Record) error {
	for i := range recs {
		if err := s.Save(&recs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored record for a message id, or nil when absent.
func (s *Store) Get(messageID string) (*analysis.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(selectColumns+` FROM analyses WHERE message_id = ?`, messageID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return rec, nil
}

// Recent returns the most recently processed records. Callers sort by
// severity for display.
func (s *Store) Recent(limit int) ([]analysis.Record, error) {
	rows, err := s.db.Query(selectColumns+` FROM analyses ORDER BY processed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []analysis.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ByLevel returns stored records at the given importance level.
func (s *Store) ByLevel(level analysis.ImportanceLevel, limit int) ([]analysis.Record, error) {
	rows, err := s.db.Query(selectColumns+` FROM analyses WHERE importance_level = ?
		ORDER BY processed_at DESC LIMIT ?`, string(level), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []analysis.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetStats returns counts for the status view.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{ByLevel: make(map[analysis.ImportanceLevel]int)}

	var heuristicNull sql.NullInt64
	err := s.db.QueryRow(`SELECT COUNT(*),
		SUM(CASE WHEN source='heuristic' THEN 1 ELSE 0 END) FROM analyses`).
		Scan(&stats.Total, &heuristicNull)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	stats.Heuristic = int(heuristicNull.Int64)

	rows, err := s.db.Query(`SELECT importance_level, COUNT(*) FROM analyses GROUP BY importance_level`)
	if err != nil {
		return nil, fmt.Errorf("failed to query level stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan level stat: %w", err)
		}
		stats.ByLevel[analysis.ImportanceLevel(level)] = count
	}
	return stats, rows.Err()
}

// Clear removes all stored records (for a full re-scan).
func (s *Store) Clear() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM analyses`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear records: %w", err)
	}
	return result.RowsAffected()
}

// ExportJSON writes all stored records to a JSON file, newest first.
func (s *Store) ExportJSON(path string) error {
	records, err := s.Recent(1 << 20)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize records: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (s *Store) Close() error { return s.db.Close() }

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mailtriage.db"
	}
	return filepath.Join(home, ".mailtriage", "analyses.db")
}

const selectColumns = `SELECT message_id, subject, sender, date_header, importance_level, summary,
	deadlines, has_deadline, reasoning, important_links, attachments, source, failure_kind,
	is_important, processed_at`

// scanRecord handles nullable columns when scanning a row
func scanRecord(scanner interface{ Scan(...any) error }) (*analysis.Record, error) {
	var rec analysis.Record
	var sender, dateHeader, reasoning, failureKind sql.NullString
	var deadlines, links, attachments sql.NullString
	var hasDeadline, isImportant int
	var processedAt sql.NullTime
	var level, source string

	err := scanner.Scan(&rec.MessageID, &rec.Subject, &sender, &dateHeader, &level, &rec.Result.Summary,
		&deadlines, &hasDeadline, &reasoning, &links, &attachments, &source, &failureKind,
		&isImportant, &processedAt)
	if err != nil {
		return nil, err
	}

	rec.Sender = sender.String
	rec.DateHeader = dateHeader.String
	rec.Result.Level = analysis.ImportanceLevel(level)
	rec.Result.Reasoning = reasoning.String
	rec.Result.Source = analysis.ResultSource(source)
	rec.Result.FailureKind = analysis.FailureKind(failureKind.String)
	rec.Result.HasDeadline = hasDeadline == 1
	rec.IsImportant = isImportant == 1
	rec.ProcessedAt = processedAt.Time

	if rec.Result.Deadlines, err = unmarshalList(deadlines); err != nil {
		return nil, err
	}
	if rec.Result.ImportantLinks, err = unmarshalList(links); err != nil {
		return nil, err
	}
	if rec.Result.AttachmentsMentioned, err = unmarshalList(attachments); err != nil {
		return nil, err
	}
	return &rec, nil
}

func marshalList(in []string) (string, error) {
	if len(in) == 0 {
		return "", nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to serialize list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(col sql.NullString) ([]string, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(col.String), &out); err != nil {
		return nil, fmt.Errorf("failed to parse stored list: %w", err)
	}
	return out, nil
}
