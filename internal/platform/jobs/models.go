package jobs

import (
	"errors"
	"time"
)

const (
	JobStoreSnapshot = "store_snapshot"
	JobUnitReport    = "unit_report"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// runCap bounds the stored run history.
const runCap = 200

var (
	ErrQueueFull   = errors.New("job queue full")
	ErrRunNotFound = errors.New("job run not found")
)

type Run struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Details     any        `json:"details,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
