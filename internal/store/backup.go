package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/mochikko/diary-server/internal/models"
)

// backupSet is the on-disk shape of one labeled snapshot.
type backupSet struct {
	Label   string              `json:"label"`
	Entries []models.DiaryEntry `json:"entries"`
	Plans   []models.DailyPlan  `json:"plans"`
}

var labelPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

func (s *Store) backupPath(label string) (string, error) {
	if !labelPattern.MatchString(label) {
		return "", fmt.Errorf("invalid backup label %q", label)
	}
	return filepath.Join(s.backupDir, label+".json"), nil
}

// Backup snapshots the full entry set and all daily plan records to a
// labeled file under the backup directory. It takes the exclusive lock,
// so no write is in flight while the snapshot is cut.
func (s *Store) Backup(label string) error {
	path, err := s.backupPath(label)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := backupSet{Label: label}

	rows, err := s.conn.Query(`
		SELECT id, user_id, date, category, title, content, emotion, provider, created_at
		FROM entries ORDER BY created_at ASC
	`)
	if err != nil {
		return fmt.Errorf("reading entries: %w", err)
	}
	set.Entries, err = scanEntries(rows)
	rows.Close()
	if err != nil {
		return fmt.Errorf("reading entries: %w", err)
	}

	planRows, err := s.conn.Query(`SELECT date FROM daily_plans ORDER BY date ASC`)
	if err != nil {
		return fmt.Errorf("reading plans: %w", err)
	}
	var dates []string
	for planRows.Next() {
		var d string
		if err := planRows.Scan(&d); err != nil {
			planRows.Close()
			return fmt.Errorf("reading plans: %w", err)
		}
		dates = append(dates, d)
	}
	if err := planRows.Err(); err != nil {
		planRows.Close()
		return fmt.Errorf("reading plans: %w", err)
	}
	planRows.Close()
	for _, d := range dates {
		p, err := loadPlan(s.conn, d)
		if err != nil {
			return fmt.Errorf("loading plan %s: %w", d, err)
		}
		if p != nil {
			set.Plans = append(set.Plans, *p)
		}
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling backup: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return os.Rename(tmp, path)
}

// Restore replaces all entries and plan snapshots with a labeled
// backup set. Exclusive: no concurrent writes may be in flight.
func (s *Store) Restore(label string) error {
	path, err := s.backupPath(label)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading backup %s: %w", label, err)
	}
	var set backupSet
	if err := json.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("parsing backup %s: %w", label, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM daily_plans`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing plans: %w", err)
	}
	for _, e := range set.Entries {
		if err := insertEntry(tx, e); err != nil {
			tx.Rollback()
			return fmt.Errorf("restoring entry %s: %w", e.ID, err)
		}
	}
	for _, p := range set.Plans {
		if err := upsertPlan(tx, p); err != nil {
			tx.Rollback()
			return fmt.Errorf("restoring plan %s: %w", p.Date, err)
		}
	}
	return tx.Commit()
}

// ListBackups returns available backup labels.
func (s *Store) ListBackups() ([]string, error) {
	dirEntries, err := os.ReadDir(s.backupDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var labels []string
	for _, de := range dirEntries {
		name := de.Name()
		if filepath.Ext(name) == ".json" {
			labels = append(labels, name[:len(name)-len(".json")])
		}
	}
	return labels, nil
}
