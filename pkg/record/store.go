package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
)

// ErrNotFound is returned when a run is not in the store.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed history of runs.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Entry is one row of the run history.
type Entry struct {
	RunID     string    `json:"run_id"`
	Repo      string    `json:"repo"`
	Profile   string    `json:"profile"`
	Decision  string    `json:"decision"`
	Score     float64   `json:"score"`
	Grade     string    `json:"grade"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Point is one pillar score in a run.
type Point struct {
	RunID     string        `json:"run_id"`
	Pillar    pillar.Pillar `json:"pillar"`
	Score     float64       `json:"score"`
	Status    string        `json:"status"`
	Degraded  bool          `json:"degraded"`
	CreatedAt time.Time     `json:"created_at"`
}

// Open opens the store at path, creating parent directories. WAL mode is
// enabled for concurrent reads. Call Migrate before use.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
		{2, migrationV2PillarScores},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	repo TEXT NOT NULL,
	profile TEXT NOT NULL,
	decision TEXT NOT NULL,
	score REAL NOT NULL,
	grade TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	record TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_repo ON runs(repo);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

const migrationV2PillarScores = `
CREATE TABLE IF NOT EXISTS pillar_scores (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	pillar TEXT NOT NULL,
	score REAL NOT NULL,
	status TEXT NOT NULL,
	degraded INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, pillar)
);
`

// Put stores rec, replacing any run with the same id.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	data, err := rec.Canonical()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pillar_scores WHERE run_id = ?", rec.RunID); err != nil {
		return fmt.Errorf("clear pillar scores: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, repo, profile, decision, score, grade, status, created_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Repo, rec.Profile, string(rec.Verdict.Decision), rec.Summary.OverallScore,
		rec.Summary.Grade, string(rec.Status), rec.CreatedAt.UTC().Format(timeLayout), string(data))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}

	for _, r := range rec.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pillar_scores (run_id, pillar, score, status, degraded)
			VALUES (?, ?, ?, ?, ?)`,
			rec.RunID, string(r.Pillar), r.Score, string(r.Status), boolToInt(r.Degraded))
		if err != nil {
			return fmt.Errorf("insert pillar score %s/%s: %w", rec.RunID, r.Pillar, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", rec.RunID, err)
	}
	return nil
}

// Write implements Sink.
func (s *Store) Write(ctx context.Context, rec *Record) error {
	return s.Put(ctx, rec)
}

// Get loads the full record of a run.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.conn.QueryRowContext(ctx, "SELECT record FROM runs WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &rec, nil
}

// List returns the most recent runs, newest first. An empty repo lists
// every repository; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, repo string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, repo, profile, decision, score, grade, status, created_at FROM runs"
	var args []any
	if repo != "" {
		query += " WHERE repo = ?"
		args = append(args, repo)
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var status, created string
		if err := rows.Scan(&e.RunID, &e.Repo, &e.Profile, &e.Decision, &e.Score, &e.Grade, &status, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Status = Status(status)
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", e.RunID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Trend returns the scores of one pillar across runs, newest first.
func (s *Store) Trend(ctx context.Context, repo string, p pillar.Pillar, limit int) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ps.run_id, ps.pillar, ps.score, ps.status, ps.degraded, r.created_at
		FROM pillar_scores ps JOIN runs r ON r.id = ps.run_id
		WHERE ps.pillar = ?`
	args := []any{string(p)}
	if repo != "" {
		query += " AND r.repo = ?"
		args = append(args, repo)
	}
	query += " ORDER BY r.created_at DESC, r.id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pillar trend: %w", err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var pt Point
		var name, created string
		var degraded int
		if err := rows.Scan(&pt.RunID, &name, &pt.Score, &pt.Status, &degraded, &created); err != nil {
			return nil, fmt.Errorf("scan pillar score: %w", err)
		}
		pt.Pillar = pillar.Pillar(name)
		pt.Degraded = degraded != 0
		if pt.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", pt.RunID, err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
