package model

import "time"

// Execution status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether status ends an execution.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// EventLine is a single persisted progress line of an execution.
type EventLine struct {
	ID          int64     `json:"id"`
	ExecutionID string    `json:"execution_id"`
	Seq         int       `json:"seq"`
	Line        string    `json:"line"`
	CreatedAt   time.Time `json:"created_at"`
}

// Execution is one run of a pipeline.
type Execution struct {
	ID         string     `json:"id"`
	Pipeline   string     `json:"pipeline"`
	Status     string     `json:"status"`
	Input      Value      `json:"input"`
	Result     Context    `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
