package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/peak-switch/internal/logic"
)

// SQLiteStore implements Classifications and Settings on a local sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Classifications = (*SQLiteStore)(nil)
	_ Settings        = (*SQLiteStore)(nil)
)

// Open opens (creating if needed) the database at path and initializes the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS classifications (
		date TEXT PRIMARY KEY,
		code INTEGER NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Get returns the stored code for date.
func (s *SQLiteStore) Get(date logic.Date) (logic.Code, bool, error) {
	var code int
	err := s.db.QueryRow(`SELECT code FROM classifications WHERE date = ?`, string(date)).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return logic.CodeUnknown, false, nil
	}
	if err != nil {
		return logic.CodeUnknown, false, fmt.Errorf("reading classification %s: %w", date, err)
	}
	return logic.CodeOf(code), true, nil
}

// Put stores entries in a single transaction, overwriting by date.
func (s *SQLiteStore) Put(entries []logic.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO classifications (date, code, fetched_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := stmt.Exec(string(e.Date), int(e.Code), now); err != nil {
			return fmt.Errorf("storing classification %s: %w", e.Date, err)
		}
	}
	return tx.Commit()
}

// Prune deletes entries dated before date.
func (s *SQLiteStore) Prune(before logic.Date) (int, error) {
	res, err := s.db.Exec(`DELETE FROM classifications WHERE date < ?`, string(before))
	if err != nil {
		return 0, fmt.Errorf("pruning classifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// LastFetch returns the time of the last successful fetch.
func (s *SQLiteStore) LastFetch() (time.Time, bool, error) {
	v, ok, err := s.GetSetting(KeyLastFetch)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing %s: %w", KeyLastFetch, err)
	}
	return t, true, nil
}

// SetLastFetch records the time of a successful fetch.
func (s *SQLiteStore) SetLastFetch(t time.Time) error {
	return s.PutSetting(KeyLastFetch, t.Format(time.RFC3339))
}

// GetSetting returns the value stored under key.
func (s *SQLiteStore) GetSetting(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return v, true, nil
}

// PutSetting stores value under key.
func (s *SQLiteStore) PutSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// ListSettings returns all settings whose key starts with prefix.
func (s *SQLiteStore) ListSettings(prefix string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
