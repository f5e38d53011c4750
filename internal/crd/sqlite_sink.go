package crd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	workers     INTEGER NOT NULL,
	events      INTEGER NOT NULL,
	energy_ev   REAL NOT NULL,
	rows        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS hits (
	run_id   TEXT NOT NULL REFERENCES runs(run_id),
	seq      INTEGER NOT NULL,
	category TEXT NOT NULL,
	x        REAL,
	y        REAL,
	z        REAL,
	time     REAL,
	energy   REAL,
	type     TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS drops (
	run_id   TEXT NOT NULL REFERENCES runs(run_id),
	category TEXT NOT NULL,
	merged   INTEGER NOT NULL,
	dropped  INTEGER NOT NULL,
	PRIMARY KEY (run_id, category)
);`

// SQLiteSink stores the rows of each run in a SQLite database, one
// transaction per run. Sentinel rows keep NULL numeric columns.
type SQLiteSink struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLiteSink opens (or creates) the database at path and its schema.
func OpenSQLiteSink(path string, log zerolog.Logger) (*SQLiteSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", clean+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteSink{db: db, log: log}, nil
}

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for queries over stored runs.
func (s *SQLiteSink) DB() *sql.DB { return s.db }

func (s *SQLiteSink) Write(ctx context.Context, snap *Snapshot) error {
	if err := s.write(ctx, snap); err != nil {
		return fmt.Errorf("%w: sqlite: %w", ErrSinkFailed, err)
	}
	s.log.Info().Str("run_id", snap.RunID).Int("rows", snap.Rows()).Msg("run stored in sqlite")
	return nil
}

func (s *SQLiteSink) write(ctx context.Context, snap *Snapshot) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if snap.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, workers, events, energy_ev, rows) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, sqliteTime(snap.StartedAt), sqliteTime(snap.FinishedAt),
		snap.Workers, snap.Events, snap.Energy, snap.Rows())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO hits (run_id, seq, category, x, y, z, time, energy, type) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ins.Close()

	seq := 0
	for _, c := range Categories() {
		recs := snap.Records(c)
		if len(recs) == 0 {
			if _, err := ins.ExecContext(ctx, snap.RunID, seq, c.String(), nil, nil, nil, nil, nil, c.EmptyTag()); err != nil {
				return fmt.Errorf("insert sentinel %s: %w", c, err)
			}
			seq++
			continue
		}
		for _, h := range recs {
			if _, err := ins.ExecContext(ctx, snap.RunID, seq, c.String(), h.X, h.Y, h.Z, h.T, h.E, c.String()); err != nil {
				return fmt.Errorf("insert hit %d: %w", seq, err)
			}
			seq++
		}
	}
	for _, c := range Categories() {
		if snap.Dropped[c] == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO drops (run_id, category, merged, dropped) VALUES (?, ?, ?, ?)`,
			snap.RunID, c.String(), snap.Merged[c], snap.Dropped[c]); err != nil {
			return fmt.Errorf("insert drops %s: %w", c, err)
		}
	}
	return tx.Commit()
}

func sqliteTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
