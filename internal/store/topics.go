package store

import (
	"database/sql"
	"time"
)

// Topic is one weighted trending signal.
type Topic struct {
	Name        string
	Weight      float64
	LastUpdated time.Time
}

// GetTopic returns a topic by name, or nil if absent.
func (s *Store) GetTopic(name string) (*Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t Topic
	var lastUpdated string
	err := s.conn.QueryRow(`
		SELECT name, weight, last_updated FROM topics WHERE name = ?
	`, name).Scan(&t.Name, &t.Weight, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return &t, nil
}

// UpsertTopic sets a topic's weight as of at. The caller computes
// decay/boost and owns the clock.
func (s *Store) UpsertTopic(name string, weight float64, at time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stamp := at.UTC().Format(time.RFC3339)
	_, err := s.conn.Exec(`
		INSERT INTO topics (name, weight, last_updated, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			weight = excluded.weight,
			last_updated = excluded.last_updated
	`, name, weight, stamp, stamp)
	return err
}

// TopTopics returns the n heaviest topics.
func (s *Store) TopTopics(n int) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`
		SELECT name, weight, last_updated FROM topics
		ORDER BY weight DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTopics(rows)
}

// AllTopics returns every topic, for decay processing.
func (s *Store) AllTopics() ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`SELECT name, weight, last_updated FROM topics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTopics(rows)
}

func scanTopics(rows *sql.Rows) ([]Topic, error) {
	var topics []Topic
	for rows.Next() {
		var t Topic
		var lastUpdated string
		if err := rows.Scan(&t.Name, &t.Weight, &lastUpdated); err != nil {
			return nil, err
		}
		t.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// DeleteTopic removes a topic that decayed to nothing.
func (s *Store) DeleteTopic(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.conn.Exec(`DELETE FROM topics WHERE name = ?`, name)
	return err
}
