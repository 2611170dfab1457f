package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/taskflow/internal/model"

	_ "modernc.org/sqlite"
)

const createPipelinesTable = `
CREATE TABLE IF NOT EXISTS pipelines (
    name        TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
)`

const createExecutionsTable = `
CREATE TABLE IF NOT EXISTS executions (
    id          TEXT PRIMARY KEY,
    pipeline    TEXT NOT NULL,
    status      TEXT NOT NULL,
    input       TEXT NOT NULL,
    result      TEXT,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    started_at  DATETIME,
    finished_at DATETIME
)`

const createEventLinesTable = `
CREATE TABLE IF NOT EXISTS execution_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    execution_id TEXT NOT NULL REFERENCES executions(id),
    seq          INTEGER NOT NULL,
    line         TEXT NOT NULL,
    created_at   DATETIME NOT NULL
)`

const createEventLinesIndex = `
CREATE INDEX IF NOT EXISTS idx_execution_events_execution
    ON execution_events (execution_id, seq)`

const executionColumns = `id, pipeline, status, input, result, error,
	duration_ms, created_at, started_at, finished_at`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A :memory: database exists per connection; pin the pool to one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{
		createPipelinesTable,
		createExecutionsTable,
		createEventLinesTable,
		createEventLinesIndex,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutPipeline inserts or replaces a pipeline definition. CreatedAt is kept
// from the first insert.
func (s *SQLiteStore) PutPipeline(ctx context.Context, def *model.PipelineDefinition) error {
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipelines (name, source, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET source = excluded.source, updated_at = excluded.updated_at`,
		def.Name, def.Source, def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put pipeline: %w", err)
	}
	return nil
}

// GetPipeline retrieves a pipeline definition by name.
func (s *SQLiteStore) GetPipeline(ctx context.Context, name string) (*model.PipelineDefinition, error) {
	def := &model.PipelineDefinition{}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, source, created_at, updated_at FROM pipelines WHERE name = ?", name,
	).Scan(&def.Name, &def.Source, &def.CreatedAt, &def.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline: %w", err)
	}
	return def, nil
}

// ListPipelines returns all pipeline definitions ordered by name.
func (s *SQLiteStore) ListPipelines(ctx context.Context) ([]*model.PipelineDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, source, created_at, updated_at FROM pipelines ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var defs []*model.PipelineDefinition
	for rows.Next() {
		def := &model.PipelineDefinition{}
		if err := rows.Scan(&def.Name, &def.Source, &def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipelines: %w", err)
	}
	return defs, nil
}

// DeletePipeline removes a pipeline definition.
func (s *SQLiteStore) DeletePipeline(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM pipelines WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	return expectOneRow(result)
}

// CreateExecution inserts a new execution record.
func (s *SQLiteStore) CreateExecution(ctx context.Context, e *model.Execution) error {
	input, err := json.Marshal(e.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	result, err := encodeResult(e.Result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Pipeline, e.Status, string(input), result, e.Error,
		e.DurationMS, e.CreatedAt, e.StartedAt, e.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id,
	)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

// ListExecutions returns a paginated list of executions ordered by created_at DESC,
// along with the total count of all executions.
func (s *SQLiteStore) ListExecutions(ctx context.Context, limit, offset int) ([]*model.Execution, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []*model.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan execution: %w", err)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate executions: %w", err)
	}

	return executions, total, nil
}

// UpdateExecutionStatus moves an execution to status, enforcing
// model.ValidTransition. Entering running sets started_at; terminal statuses
// set finished_at.
func (s *SQLiteStore) UpdateExecutionStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM executions WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read execution status: %w", err)
	}
	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	now := time.Now().UTC()
	switch {
	case status == model.StatusRunning:
		_, err = tx.ExecContext(ctx,
			"UPDATE executions SET status = ?, started_at = ? WHERE id = ?", status, now, id)
	case model.IsTerminal(status):
		_, err = tx.ExecContext(ctx,
			"UPDATE executions SET status = ?, finished_at = ? WHERE id = ?", status, now, id)
	default:
		_, err = tx.ExecContext(ctx,
			"UPDATE executions SET status = ? WHERE id = ?", status, id)
	}
	if err != nil {
		return fmt.Errorf("update execution status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// UpdateExecution writes the outcome fields of a finished execution.
func (s *SQLiteStore) UpdateExecution(ctx context.Context, e *model.Execution) error {
	result, err := encodeResult(e.Result)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, result = ?, error = ?, duration_ms = ?,
			started_at = COALESCE(?, started_at), finished_at = ?
		WHERE id = ?`,
		e.Status, result, e.Error, e.DurationMS, e.StartedAt, e.FinishedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	return expectOneRow(res)
}

// GetExecutionStats aggregates executions by status and pipeline.
func (s *SQLiteStore) GetExecutionStats(ctx context.Context) (*ExecutionStats, error) {
	stats := &ExecutionStats{
		CountByStatus:   make(map[string]int),
		CountByPipeline: make(map[string]int),
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_ms) FROM executions",
	).Scan(&stats.Total, &avg); err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	if err := s.countBy(ctx, "status", stats.CountByStatus); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "pipeline", stats.CountByPipeline); err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy fills dst with execution counts grouped by column, which must be a
// trusted column name.
func (s *SQLiteStore) countBy(ctx context.Context, column string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM executions GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

// InsertEventLine appends one progress line to an execution's history.
func (s *SQLiteStore) InsertEventLine(ctx context.Context, executionID string, seq int, line string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO execution_events (execution_id, seq, line, created_at) VALUES (?, ?, ?, ?)",
		executionID, seq, line, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event line: %w", err)
	}
	return nil
}

// GetEventLines returns the event lines of an execution ordered by seq.
func (s *SQLiteStore) GetEventLines(ctx context.Context, executionID string) ([]model.EventLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, execution_id, seq, line, created_at FROM execution_events
		WHERE execution_id = ? ORDER BY seq`, executionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get event lines: %w", err)
	}
	defer rows.Close()

	var lines []model.EventLine
	for rows.Next() {
		var l model.EventLine
		if err := rows.Scan(&l.ID, &l.ExecutionID, &l.Seq, &l.Line, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event lines: %w", err)
	}
	return lines, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*model.Execution, error) {
	e := &model.Execution{}
	var input string
	var result sql.NullString
	if err := row.Scan(
		&e.ID, &e.Pipeline, &e.Status, &input, &result, &e.Error,
		&e.DurationMS, &e.CreatedAt, &e.StartedAt, &e.FinishedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(input), &e.Input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if result.Valid {
		if err := json.Unmarshal([]byte(result.String), &e.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	return e, nil
}

func encodeResult(c model.Context) (any, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
