package store

import (
	"context"
	"errors"

	"github.com/seantiz/taskflow/internal/model"
)

// ErrNotFound is returned when a pipeline or execution does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when an execution status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ExecutionStats holds aggregate execution statistics.
type ExecutionStats struct {
	Total           int            `json:"total"`
	CountByStatus   map[string]int `json:"count_by_status"`
	CountByPipeline map[string]int `json:"count_by_pipeline"`
	AvgDurationMS   float64        `json:"avg_duration_ms"`
}

// PipelineStore persists pipeline definitions keyed by name.
type PipelineStore interface {
	PutPipeline(ctx context.Context, def *model.PipelineDefinition) error
	GetPipeline(ctx context.Context, name string) (*model.PipelineDefinition, error)
	ListPipelines(ctx context.Context) ([]*model.PipelineDefinition, error)
	DeletePipeline(ctx context.Context, name string) error
}

// ExecutionStore persists executions and their event lines.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, e *model.Execution) error
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	ListExecutions(ctx context.Context, limit, offset int) ([]*model.Execution, int, error)
	UpdateExecutionStatus(ctx context.Context, id, status string) error
	UpdateExecution(ctx context.Context, e *model.Execution) error
	GetExecutionStats(ctx context.Context) (*ExecutionStats, error)
	InsertEventLine(ctx context.Context, executionID string, seq int, line string) error
	GetEventLines(ctx context.Context, executionID string) ([]model.EventLine, error)
}

// Store combines pipeline and execution persistence.
type Store interface {
	PipelineStore
	ExecutionStore
	Close() error
}
