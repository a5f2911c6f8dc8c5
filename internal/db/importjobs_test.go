// ABOUTME: Tests for import job database operations
// ABOUTME: Validates progress persistence and retention cleanup

package db

import (
	"errors"
	"testing"
	"time"

	"github.com/harper/podkeep/internal/models"
)

func TestCreateAndGetImportJob(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	user := createTestUser(t, conn, "a@example.com")
	job := models.NewImportJob(user.ID, 25)

	if err := CreateImportJob(conn, job); err != nil {
		t.Fatalf("CreateImportJob failed: %v", err)
	}

	got, err := GetImportJob(conn, job.ID)
	if err != nil {
		t.Fatalf("GetImportJob failed: %v", err)
	}
	if got.Status != models.JobPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.Total != 25 {
		t.Errorf("expected total 25, got %d", got.Total)
	}
	if got.CompletedAt != nil {
		t.Error("expected no completed_at on a fresh job")
	}
	if len(got.FailedTitles) != 0 {
		t.Errorf("expected no failed titles, got %v", got.FailedTitles)
	}
}

func TestUpdateImportJobProgress(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	user := createTestUser(t, conn, "a@example.com")
	job := models.NewImportJob(user.ID, 10)
	_ = CreateImportJob(conn, job)

	_ = SetImportJobStatus(conn, job.ID, models.JobRunning)
	err := UpdateImportJobProgress(conn, job.ID, 7, []string{"Broken Feed", "Gone Feed"})
	if err != nil {
		t.Fatalf("UpdateImportJobProgress failed: %v", err)
	}

	got, _ := GetImportJob(conn, job.ID)
	if got.Status != models.JobRunning {
		t.Errorf("expected running, got %s", got.Status)
	}
	if got.Succeeded != 7 {
		t.Errorf("expected 7 succeeded, got %d", got.Succeeded)
	}
	if len(got.FailedTitles) != 2 || got.FailedTitles[0] != "Broken Feed" {
		t.Errorf("failed titles not round-tripped: %v", got.FailedTitles)
	}
}

func TestCompleteImportJob(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	user := createTestUser(t, conn, "a@example.com")
	job := models.NewImportJob(user.ID, 3)
	_ = CreateImportJob(conn, job)

	completedAt := time.Now()
	if err := CompleteImportJob(conn, job.ID, completedAt); err != nil {
		t.Fatalf("CompleteImportJob failed: %v", err)
	}

	got, _ := GetImportJob(conn, job.ID)
	if got.Status != models.JobDone {
		t.Errorf("expected done, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

func TestDeleteFinishedImportJobsBefore(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	user := createTestUser(t, conn, "a@example.com")

	old := models.NewImportJob(user.ID, 1)
	_ = CreateImportJob(conn, old)
	_ = CompleteImportJob(conn, old.ID, time.Now().Add(-48*time.Hour))

	recent := models.NewImportJob(user.ID, 1)
	_ = CreateImportJob(conn, recent)
	_ = CompleteImportJob(conn, recent.ID, time.Now())

	pending := models.NewImportJob(user.ID, 1)
	_ = CreateImportJob(conn, pending)

	deleted, err := DeleteFinishedImportJobsBefore(conn, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteFinishedImportJobsBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	if _, err := GetImportJob(conn, old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected old job gone, got %v", err)
	}
	if _, err := GetImportJob(conn, recent.ID); err != nil {
		t.Errorf("recent job should survive: %v", err)
	}
	if _, err := GetImportJob(conn, pending.ID); err != nil {
		t.Errorf("pending job should survive regardless of age: %v", err)
	}
}
