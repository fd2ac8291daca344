package jobstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore persists job results in a SQLite database so they survive
// process restarts.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies the
// schema and pragmas.
func NewSQLiteStore(dbPath string, logger logging.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "sqlite-store"}),
	}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, result *model.JobResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_results (job_id, status, payload) VALUES (?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET status = excluded.status, payload = excluded.payload`,
		result.JobID, result.Status, string(payload))
	if err != nil {
		return fmt.Errorf("failed to store job result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, jobID string) (*model.JobResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM job_results WHERE job_id = ?`, jobID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job result: %w", err)
	}

	var result model.JobResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job result %s: %w", jobID, err)
	}
	return &result, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
