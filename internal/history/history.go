// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history keeps a sqlite record of finished migration jobs.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/cloudwego/abmigrate/internal/jobs"
)

var ErrNotFound = errors.New("job not in history")

// Entry is one finished job.
type Entry struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Success      bool      `json:"success"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Input        string    `json:"input_filename"`
	Dir          string    `json:"dir"`
	ReportPath   string    `json:"report_path,omitempty"`
	Blocks       int       `json:"blocks"`
	ManualReview int       `json:"manual_review"`
	CostUSD      float64   `json:"cost_usd"`
	Error        string    `json:"error,omitempty"`
	Started      time.Time `json:"started"`
	Ended        time.Time `json:"ended"`
}

// FromJob converts a job status snapshot.
func FromJob(j jobs.Job) Entry {
	return Entry{
		ID:           j.ID,
		Status:       string(j.Status),
		Success:      j.Success,
		Source:       j.Source,
		Target:       j.Target,
		Input:        j.InputFilename,
		Dir:          j.Dir,
		ReportPath:   j.ReportPath,
		Blocks:       j.Blocks,
		ManualReview: j.ManualReview,
		CostUSD:      j.CostUSD,
		Error:        j.Error,
		Started:      j.Started,
		Ended:        j.Ended,
	}
}

// Duration is the wall time of the job, zero when it has no end.
func (e Entry) Duration() time.Duration {
	if e.Ended.IsZero() {
		return 0
	}
	return e.Ended.Sub(e.Started)
}

type Store struct {
	db  *sql.DB
	dsn string
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	success INTEGER NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	input_filename TEXT NOT NULL,
	dir TEXT NOT NULL,
	report_path TEXT NOT NULL DEFAULT '',
	blocks INTEGER NOT NULL DEFAULT 0,
	manual_review INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	started TEXT NOT NULL,
	ended TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started);
`

// Open opens (and creates) the history database at dsn, a file path or
// ":memory:".
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("history: empty dsn")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create history dir for %s", dsn)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", dsn)
	}
	// sqlite allows one writer; an in-memory database is also per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init history schema")
	}
	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts or replaces the entry with the same id.
func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (id, status, success, source, target, input_filename, dir,
	report_path, blocks, manual_review, cost_usd, error, started, ended)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	success = excluded.success,
	report_path = excluded.report_path,
	blocks = excluded.blocks,
	manual_review = excluded.manual_review,
	cost_usd = excluded.cost_usd,
	error = excluded.error,
	ended = excluded.ended`,
		e.ID, e.Status, e.Success, e.Source, e.Target, e.Input, e.Dir,
		e.ReportPath, e.Blocks, e.ManualReview, e.CostUSD, e.Error,
		formatTime(e.Started), formatTime(e.Ended))
	if err != nil {
		return errors.Wrapf(err, "record job %s", e.ID)
	}
	return nil
}

const selectColumns = `SELECT id, status, success, source, target, input_filename, dir,
	report_path, blocks, manual_review, cost_usd, error, started, ended FROM jobs`

// Get returns one entry, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// List returns the newest entries first; limit <= 0 returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY started DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list history")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list history")
	}
	return out, nil
}

// OnFinish adapts the store to the registry's completion hook. Failures
// are reported to onErr since the hook has no error return.
func (s *Store) OnFinish(onErr func(error)) func(jobs.Job) {
	return func(j jobs.Job) {
		if err := s.Record(context.Background(), FromJob(j)); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Entry, error) {
	var (
		e              Entry
		started, ended string
	)
	err := r.Scan(&e.ID, &e.Status, &e.Success, &e.Source, &e.Target, &e.Input, &e.Dir,
		&e.ReportPath, &e.Blocks, &e.ManualReview, &e.CostUSD, &e.Error, &started, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, errors.Wrap(err, "scan history row")
	}
	if e.Started, err = parseTime(started); err != nil {
		return Entry{}, err
	}
	if e.Ended, err = parseTime(ended); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// times are stored as UTC RFC 3339 text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse history time %q", s)
	}
	return t, nil
}
