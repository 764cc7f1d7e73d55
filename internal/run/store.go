package run

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/video-translate/backend/internal/pipeline"
)

// Store persists runs in SQLite so they survive restarts and can be listed,
// cancelled and downloaded from after completion.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending',
		stage TEXT NOT NULL DEFAULT '',
		video_name TEXT NOT NULL,
		video_path TEXT NOT NULL,
		video_hash TEXT NOT NULL,
		languages TEXT NOT NULL,
		engine TEXT NOT NULL DEFAULT '',
		progress REAL DEFAULT 0,
		transcript TEXT,
		translations TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Create(r *Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, status, stage, video_name, video_path, video_hash, languages, engine, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Status, r.Stage, r.VideoName, r.VideoPath, r.VideoHash,
		strings.Join(r.Languages, ","), r.Engine, r.Progress, r.CreatedAt,
	)
	return errors.Wrap(err, "insert run")
}

func (s *Store) Get(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, status, stage, video_name, video_path, video_hash, languages, engine,
		       progress, transcript, translations, error, created_at, started_at, completed_at
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

func (s *Store) MarkRunning(id string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE runs SET status = ?, started_at = ? WHERE id = ?`,
		StatusRunning, at, id)
	return err
}

func (s *Store) UpdateProgress(id, stage string, progress float64) error {
	_, err := s.db.Exec(`UPDATE runs SET stage = ?, progress = ? WHERE id = ?`,
		stage, progress, id)
	return err
}

// Complete stores the assembled result and marks the run done.
func (s *Store) Complete(id string, result *pipeline.Result, at time.Time) error {
	translations, err := json.Marshal(result.Translations)
	if err != nil {
		return errors.Wrap(err, "marshal translations")
	}
	_, err = s.db.Exec(`
		UPDATE runs SET status = ?, stage = ?, progress = 1.0, transcript = ?, translations = ?, completed_at = ?
		WHERE id = ?`,
		StatusCompleted, string(pipeline.StageDone), result.Transcript, string(translations), at, id)
	return err
}

// Fail records the originating stage and error detail. No partial output is
// kept: transcript and translations stay empty on a failed run.
func (s *Store) Fail(id, stage, errMsg string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE runs SET status = ?, stage = ?, error = ?, completed_at = ? WHERE id = ?`,
		StatusFailed, stage, errMsg, at, id)
	return err
}

// Cancel marks a pending or running run cancelled; terminal runs are left
// untouched.
func (s *Store) Cancel(id string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled, at, id, StatusPending, StatusRunning)
	return err
}

// ResetInterrupted moves runs left "running" by a previous process back to
// pending and returns all pending IDs, oldest first.
func (s *Store) ResetInterrupted() ([]string, error) {
	if _, err := s.db.Exec(`UPDATE runs SET status = ? WHERE status = ?`,
		StatusPending, StatusRunning); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT id FROM runs WHERE status = ? ORDER BY created_at ASC`, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scannable) (*Run, error) {
	r := &Run{}
	var languages string
	var transcript, translations, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Status, &r.Stage, &r.VideoName, &r.VideoPath, &r.VideoHash,
		&languages, &r.Engine, &r.Progress, &transcript, &translations, &errMsg,
		&r.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if languages != "" {
		r.Languages = strings.Split(languages, ",")
	}
	if transcript.Valid {
		r.Transcript = transcript.String
	}
	if translations.Valid && translations.String != "" {
		if err := json.Unmarshal([]byte(translations.String), &r.Translations); err != nil {
			return nil, errors.Wrap(err, "unmarshal translations")
		}
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}
