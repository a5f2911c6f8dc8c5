// ABOUTME: Import job database operations
// ABOUTME: Persists incremental progress so observers can render live updates

package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harper/podkeep/internal/models"
)

func CreateImportJob(db *sql.DB, job *models.ImportJob) error {
	failed, err := json.Marshal(job.FailedTitles)
	if err != nil {
		return fmt.Errorf("failed to marshal failed titles: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO import_jobs (id, user_id, status, total, succeeded, failed_titles, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, string(job.Status), job.Total, job.Succeeded,
		string(failed), job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

func GetImportJob(db *sql.DB, id string) (*models.ImportJob, error) {
	job := &models.ImportJob{}
	var status, failed string
	err := db.QueryRow(`
		SELECT id, user_id, status, total, succeeded, failed_titles, started_at, completed_at
		FROM import_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.UserID, &status, &job.Total, &job.Succeeded,
		&failed, &job.StartedAt, &job.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	job.Status = models.JobStatus(status)
	if err := json.Unmarshal([]byte(failed), &job.FailedTitles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failed titles: %w", err)
	}
	return job, nil
}

// SetImportJobStatus transitions the job's status without touching progress.
func SetImportJobStatus(db *sql.DB, id string, status models.JobStatus) error {
	_, err := db.Exec(`UPDATE import_jobs SET status = ? WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set import job status: %w", err)
	}
	return nil
}

// UpdateImportJobProgress persists the current succeeded count and failed
// title list. Called after every feed completes, not only at the end.
func UpdateImportJobProgress(db *sql.DB, id string, succeeded int, failedTitles []string) error {
	failed, err := json.Marshal(failedTitles)
	if err != nil {
		return fmt.Errorf("failed to marshal failed titles: %w", err)
	}
	_, err = db.Exec(`
		UPDATE import_jobs SET succeeded = ?, failed_titles = ? WHERE id = ?`,
		succeeded, string(failed), id)
	if err != nil {
		return fmt.Errorf("failed to update import job progress: %w", err)
	}
	return nil
}

// CompleteImportJob marks the job done with a completion timestamp.
func CompleteImportJob(db *sql.DB, id string, completedAt time.Time) error {
	_, err := db.Exec(`
		UPDATE import_jobs SET status = ?, completed_at = ? WHERE id = ?`,
		string(models.JobDone), completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to complete import job: %w", err)
	}
	return nil
}

// DeleteFinishedImportJobsBefore removes done jobs completed before the
// cutoff. Import jobs are transient UI state; the hourly cleanup keeps the
// table from growing unbounded. Returns the number of jobs removed.
func DeleteFinishedImportJobsBefore(db *sql.DB, cutoff time.Time) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM import_jobs WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?`,
		string(models.JobDone), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished import jobs: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return count, nil
}
