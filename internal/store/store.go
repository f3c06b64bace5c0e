package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pavelanni/adaptest/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the local ledger of finished runs.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: opens a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		test_id TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		experiment TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL DEFAULT 'adaptive',
		replay_of TEXT NOT NULL DEFAULT '',
		theta REAL,
		std_error REAL,
		responses_correct INTEGER NOT NULL DEFAULT 0,
		responses_total INTEGER NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_test ON runs(test_id, created_at);

	CREATE TABLE IF NOT EXISTS run_responses (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		correct INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS ledger_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a finished run and its responses. Saving a run ID again
// replaces the earlier record.
func (s *Store) SaveRun(rec model.RunRecord, responses []model.ResponseRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, test_id, project_id, experiment, mode, replay_of, theta, std_error,
			responses_correct, responses_total, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			test_id = excluded.test_id, project_id = excluded.project_id,
			experiment = excluded.experiment, mode = excluded.mode, replay_of = excluded.replay_of,
			theta = excluded.theta, std_error = excluded.std_error,
			responses_correct = excluded.responses_correct, responses_total = excluded.responses_total,
			metadata = excluded.metadata, created_at = excluded.created_at`,
		rec.ID, rec.TestID, rec.ProjectID, rec.Experiment, rec.Mode, rec.ReplayOf, rec.Theta, rec.StdError,
		rec.ResponsesCorrect, rec.ResponsesTotal, string(meta), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM run_responses WHERE run_id = ?`, rec.ID); err != nil {
		return err
	}
	for i, r := range responses {
		_, err := tx.Exec(
			`INSERT INTO run_responses (run_id, position, item_id, value, correct) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, i, r.ItemID, r.Value, r.Correct,
		)
		if err != nil {
			return fmt.Errorf("insert response %d of run %s: %w", i, rec.ID, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, test_id, project_id, experiment, mode, replay_of, theta, std_error,
	responses_correct, responses_total, metadata, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunRecord, error) {
	var rec model.RunRecord
	var meta string
	err := row.Scan(&rec.ID, &rec.TestID, &rec.ProjectID, &rec.Experiment, &rec.Mode, &rec.ReplayOf,
		&rec.Theta, &rec.StdError, &rec.ResponsesCorrect, &rec.ResponsesTotal, &meta, &rec.CreatedAt)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
		return rec, fmt.Errorf("decode metadata of run %s: %w", rec.ID, err)
	}
	return rec, nil
}

// GetRun returns a run by ID, or nil if it is not in the ledger.
func (s *Store) GetRun(id string) (*model.RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRuns returns runs newest first. An empty testID lists all tests.
func (s *Store) ListRuns(testID string) ([]model.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	if testID != "" {
		query += ` AND test_id = ?`
		args = append(args, testID)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// GetResponses returns the stored responses of a run in answer order.
func (s *Store) GetResponses(runID string) ([]model.ResponseRecord, error) {
	rows, err := s.db.Query(
		`SELECT item_id, value, correct FROM run_responses WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ResponseRecord
	for rows.Next() {
		var r model.ResponseRecord
		if err := rows.Scan(&r.ItemID, &r.Value, &r.Correct); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRunView returns a run with its responses, or nil if it is not in the ledger.
func (s *Store) GetRunView(id string) (*model.RunView, error) {
	rec, err := s.GetRun(id)
	if err != nil || rec == nil {
		return nil, err
	}
	responses, err := s.GetResponses(id)
	if err != nil {
		return nil, err
	}
	return &model.RunView{Run: *rec, Responses: responses}, nil
}

// RunCount returns the number of runs in the ledger.
func (s *Store) RunCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}
