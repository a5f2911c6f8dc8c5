// ABOUTME: ImportJob model tracking one asynchronous bulk-import run
// ABOUTME: Progress fields only grow until the job reaches its terminal state

package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
)

// ImportJob represents one bulk-import run owned by a single user.
// Succeeded and FailedTitles are monotonically non-decreasing until the
// job transitions to JobDone, which happens exactly once.
type ImportJob struct {
	ID           string
	UserID       string
	Status       JobStatus
	Total        int
	Succeeded    int
	FailedTitles []string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// NewImportJob creates a pending ImportJob for the given user and feed count.
func NewImportJob(userID string, total int) *ImportJob {
	return &ImportJob{
		ID:           uuid.New().String(),
		UserID:       userID,
		Status:       JobPending,
		Total:        total,
		FailedTitles: []string{},
		StartedAt:    time.Now(),
	}
}
