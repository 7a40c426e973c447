package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dhkang/dalbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		// Dedup table: one row per dispatched reminder. The composite
		// primary key is the only guard against double sends.
		`CREATE TABLE IF NOT EXISTS sent_notifications (
			event_uid TEXT NOT NULL,
			notification_type TEXT NOT NULL,
			target_date TEXT NOT NULL,
			sent_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (event_uid, notification_type, target_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sent_target_date ON sent_notifications(target_date)`,
		`CREATE TABLE IF NOT EXISTS banned_users (
			user_id INTEGER PRIMARY KEY NOT NULL,
			banned_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS permitted_users (
			user_id INTEGER PRIMARY KEY NOT NULL,
			permitted_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Sent notifications (dedup) ===

// HasSent reports whether a reminder with this dedup key was already
// dispatched.
func (s *Storage) HasSent(eventUID string, offset domain.Offset, targetDate string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM sent_notifications WHERE event_uid = ? AND notification_type = ? AND target_date = ?`,
		eventUID, string(offset), targetDate,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkSent records a dispatched reminder. A concurrent duplicate insert
// is absorbed by INSERT OR IGNORE and treated as success.
func (s *Storage) MarkSent(eventUID string, offset domain.Offset, targetDate string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sent_notifications (event_uid, notification_type, target_date) VALUES (?, ?, ?)`,
		eventUID, string(offset), targetDate,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// PruneSent removes dedup records whose target date passed before the
// given day, bounding table growth.
func (s *Storage) PruneSent(before time.Time) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM sent_notifications WHERE target_date < ?`,
		before.Format("2006-01-02"),
	)
	if err != nil {
		return 0, fmt.Errorf("prune sent: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListSent returns all dedup records, newest first.
func (s *Storage) ListSent() ([]*domain.SentNotification, error) {
	rows, err := s.db.Query(
		`SELECT event_uid, notification_type, target_date, sent_at FROM sent_notifications ORDER BY sent_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.SentNotification
	for rows.Next() {
		r := &domain.SentNotification{}
		var offset string
		if err := rows.Scan(&r.EventUID, &offset, &r.TargetDate, &r.SentAt); err != nil {
			return nil, err
		}
		r.Offset = domain.Offset(offset)
		records = append(records, r)
	}
	return records, rows.Err()
}

// === Banned users ===

func (s *Storage) BanUser(userID int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO banned_users (user_id) VALUES (?)`, userID)
	return err
}

func (s *Storage) UnbanUser(userID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM banned_users WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Storage) IsBanned(userID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM banned_users WHERE user_id = ?`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) ListBanned() ([]int64, error) {
	rows, err := s.db.Query(`SELECT user_id FROM banned_users ORDER BY banned_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// === Permitted users ===

func (s *Storage) PermitUser(userID int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO permitted_users (user_id) VALUES (?)`, userID)
	return err
}

func (s *Storage) IsPermitted(userID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM permitted_users WHERE user_id = ?`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) ListPermitted() ([]int64, error) {
	rows, err := s.db.Query(`SELECT user_id FROM permitted_users ORDER BY permitted_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
