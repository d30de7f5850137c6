// Package runlog records one row per pipeline stage execution in the
// pipeline_runs table. Stage engines call Start before doing work and
// Complete or Fail afterward; the serve API and trend reports read the
// history back.
package runlog

import (
	"context"
	"time"
)

// Stage names recorded in the run log.
const (
	StageSync     = "sync"
	StageClassify = "classify"
	StageExtract  = "extract"
	StageScore    = "score"
	StageRank     = "rank"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Entry is one recorded stage execution.
type Entry struct {
	ID          int64            `json:"id"`
	Stage       string           `json:"stage"`
	Status      string           `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Counts      map[string]int64 `json:"counts,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Log is the run history for pipeline stages.
type Log interface {
	// Start records the beginning of a stage run and returns its ID.
	Start(ctx context.Context, stage string) (int64, error)
	// Complete marks a run as finished with its result counts.
	Complete(ctx context.Context, runID int64, counts map[string]int64) error
	// Fail marks a run as failed with an error message.
	Fail(ctx context.Context, runID int64, errMsg string) error
	// LastSuccess returns the started_at of the most recent completed
	// run for a stage, or nil if the stage never completed.
	LastSuccess(ctx context.Context, stage string) (*time.Time, error)
	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]Entry, error)
}
