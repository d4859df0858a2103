// Package journal persists trend samples in SQLite for warm starts.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"signalbot/internal/logger"
	"signalbot/internal/signal"
	"signalbot/internal/trend"

	_ "modernc.org/sqlite"
)

// Store is a trend.Journal backed by a single SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

var _ trend.Journal = (*Store)(nil)

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trend_samples (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			trend_key   TEXT NOT NULL,
			value       REAL NOT NULL,
			recorded_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trend_samples_key ON trend_samples(trend_key);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, rec trend.Record) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trend_samples (trend_key, value, recorded_at) VALUES (?, ?, ?)`,
		rec.Key.String(), rec.Value, at.UnixMilli())
	return err
}

// Replay yields samples in insertion order.
func (s *Store) Replay(ctx context.Context, fn func(trend.Record)) error {
	rows, err := s.db.QueryContext(ctx, `SELECT trend_key, value, recorded_at FROM trend_samples ORDER BY id ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()
	skipped := 0
	for rows.Next() {
		var (
			raw   string
			value float64
			at    int64
		)
		if err := rows.Scan(&raw, &value, &at); err != nil {
			return err
		}
		key, err := signal.ParseTrendKey(raw)
		if err != nil {
			skipped++
			continue
		}
		fn(trend.Record{Key: key, Value: value, At: time.UnixMilli(at)})
	}
	if skipped > 0 {
		logger.Warnf("trend journal %s: skipped %d rows with bad keys", s.path, skipped)
	}
	return rows.Err()
}

// Latest returns the newest sample per key, which is what Replay converges
// to, without scanning history.
func (s *Store) Latest(ctx context.Context) ([]trend.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.trend_key, t.value, t.recorded_at FROM trend_samples t
		JOIN (SELECT trend_key, MAX(id) AS id FROM trend_samples GROUP BY trend_key) m ON m.id = t.id
		ORDER BY t.trend_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []trend.Record
	for rows.Next() {
		var (
			raw   string
			value float64
			at    int64
		)
		if err := rows.Scan(&raw, &value, &at); err != nil {
			return nil, err
		}
		key, err := signal.ParseTrendKey(raw)
		if err != nil {
			continue
		}
		out = append(out, trend.Record{Key: key, Value: value, At: time.UnixMilli(at)})
	}
	return out, rows.Err()
}

// Compact keeps only the newest sample per key.
func (s *Store) Compact(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM trend_samples WHERE id NOT IN (
			SELECT MAX(id) FROM trend_samples GROUP BY trend_key
		)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
