// Package store is the durable home of diary entries, daily plan
// snapshots, and trending-topic weights, backed by sqlite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mochikko/diary-server/internal/models"
)

const schema = `
-- Diary entries, immutable once written
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    date TEXT NOT NULL,
    category TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    emotion TEXT NOT NULL,
    provider TEXT,
    created_at TEXT NOT NULL
);

-- One snapshot per calendar day
CREATE TABLE IF NOT EXISTS daily_plans (
    date TEXT PRIMARY KEY,
    selected_types TEXT NOT NULL,
    completed_types TEXT NOT NULL,
    remaining_quota INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);

-- Trending-topic weights with lazy decay
CREATE TABLE IF NOT EXISTS topics (
    name TEXT PRIMARY KEY,
    weight REAL NOT NULL DEFAULT 0,
    last_updated TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date);
CREATE INDEX IF NOT EXISTS idx_entries_category ON entries(category);
CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);
CREATE INDEX IF NOT EXISTS idx_topics_weight ON topics(weight DESC);
`

// Store wraps the sqlite handle. Ordinary reads and writes share the
// lock in read mode (sqlite serializes the actual file access);
// backup and restore take it exclusively.
type Store struct {
	conn      *sql.DB
	backupDir string
	mu        sync.RWMutex
}

func Open(path, backupDir string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{conn: conn, backupDir: backupDir}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping() error {
	return s.conn.Ping()
}

// SaveEntry durably writes one entry, exactly once, keyed by id.
func (s *Store) SaveEntry(e models.DiaryEntry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return insertEntry(s.conn, e)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertEntry(ex execer, e models.DiaryEntry) error {
	_, err := ex.Exec(`
		INSERT INTO entries (id, user_id, date, category, title, content, emotion, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.Date, string(e.Category), e.Title, e.Content, string(e.Emotion), e.Provider,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func upsertPlan(ex execer, p models.DailyPlan) error {
	selected, err := json.Marshal(p.SelectedTypes)
	if err != nil {
		return fmt.Errorf("marshaling selected_types: %w", err)
	}
	completed, err := json.Marshal(p.CompletedTypes)
	if err != nil {
		return fmt.Errorf("marshaling completed_types: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = ex.Exec(`
		INSERT INTO daily_plans (date, selected_types, completed_types, remaining_quota, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			selected_types = excluded.selected_types,
			completed_types = excluded.completed_types,
			remaining_quota = excluded.remaining_quota,
			updated_at = excluded.updated_at
	`, p.Date, string(selected), string(completed), p.RemainingQuota, now)
	return err
}

// SaveEntryAndCommitPlan writes the entry and the committed plan
// snapshot in one transaction, so a generation is never half-recorded.
func (s *Store) SaveEntryAndCommitPlan(e models.DiaryEntry, p models.DailyPlan) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := insertEntry(tx, e); err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting entry: %w", err)
	}
	if err := upsertPlan(tx, p); err != nil {
		tx.Rollback()
		return fmt.Errorf("saving plan snapshot: %w", err)
	}
	return tx.Commit()
}

// SavePlan upserts a plan snapshot outside the entry transaction
// (plan creation, day rollover).
func (s *Store) SavePlan(p models.DailyPlan) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return upsertPlan(s.conn, p)
}

// LoadPlan returns the stored plan for a date, or nil if none exists.
func (s *Store) LoadPlan(date string) (*models.DailyPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadPlan(s.conn, date)
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func loadPlan(q querier, date string) (*models.DailyPlan, error) {
	var p models.DailyPlan
	var selected, completed string
	err := q.QueryRow(`
		SELECT date, selected_types, completed_types, remaining_quota
		FROM daily_plans WHERE date = ?
	`, date).Scan(&p.Date, &selected, &completed, &p.RemainingQuota)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(selected), &p.SelectedTypes); err != nil {
		return nil, fmt.Errorf("unmarshaling selected_types: %w", err)
	}
	if err := json.Unmarshal([]byte(completed), &p.CompletedTypes); err != nil {
		return nil, fmt.Errorf("unmarshaling completed_types: %w", err)
	}
	return &p, nil
}

// Filter narrows an entry query. Zero fields are ignored.
type Filter struct {
	ID       string
	From     string // inclusive date, "2006-01-02"
	To       string // inclusive date
	Category models.EventCategory
	Emotion  models.EmotionTag
	Contains string // substring match on content
	Limit    int
}

// QueryEntries returns entries matching the filter, ordered by
// created_at ascending.
func (s *Store) QueryEntries(f Filter) ([]models.DiaryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, user_id, date, category, title, content, emotion, provider, created_at
		FROM entries WHERE 1=1`
	var args []interface{}

	if f.ID != "" {
		query += ` AND id = ?`
		args = append(args, f.ID)
	}
	if f.From != "" {
		query += ` AND date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND date <= ?`
		args = append(args, f.To)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	if f.Emotion != "" {
		query += ` AND emotion = ?`
		args = append(args, string(f.Emotion))
	}
	if f.Contains != "" {
		query += ` AND content LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(f.Contains)+"%")
	}
	query += ` ORDER BY created_at ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]models.DiaryEntry, error) {
	var entries []models.DiaryEntry
	for rows.Next() {
		var e models.DiaryEntry
		var category, emotion, createdStr string
		var provider sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &category, &e.Title, &e.Content, &emotion, &provider, &createdStr); err != nil {
			return nil, err
		}
		e.Category = models.EventCategory(category)
		e.Emotion = models.EmotionTag(emotion)
		e.Provider = provider.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// GetEntry returns one entry by id, or nil if absent.
func (s *Store) GetEntry(id string) (*models.DiaryEntry, error) {
	entries, err := s.QueryEntries(Filter{ID: id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// CountEntries returns the number of entries for a date and category.
func (s *Store) CountEntries(date string, c models.EventCategory) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM entries WHERE date = ? AND category = ?`,
		date, string(c)).Scan(&n)
	return n, err
}
