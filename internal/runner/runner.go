// Package runner starts named jobs and returns a run identifier.
//
// Local runs handlers in-process. NATS forwards the request to a Worker over
// NATS request/reply; the Worker runs it on its own Local runner.
package runner

import (
	"context"
	"time"
)

// Argument names understood by the ETL job.
const (
	ArgRawPath     = "rawPath"
	ArgRefinedPath = "refinedPath"
	ArgRawBucket   = "rawBucket"
)

// Runner starts a job and returns its run id. The job may still be running
// when StartJob returns.
type Runner interface {
	StartJob(ctx context.Context, name string, args map[string]string) (string, error)
}

// Handler executes one job run.
type Handler func(ctx context.Context, args map[string]string) error

// Status is the lifecycle state of a job run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one run of a named job.
type Job struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Args        map[string]string `json:"args"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   time.Time         `json:"started_at,omitzero"`
	CompletedAt time.Time         `json:"completed_at,omitzero"`
}

// Done reports whether the job reached a terminal status.
func (j Job) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
