// ABOUTME: Listened-mark database operations
// ABOUTME: Idempotent insert/delete of per-user per-episode listened state

package db

import (
	"database/sql"
	"fmt"

	"github.com/harper/podkeep/internal/models"
)

// CreateListenedMark inserts a listened mark. Inserting when one already
// exists for (user, episode) is a no-op, keeping the operation idempotent.
func CreateListenedMark(db *sql.DB, mark *models.ListenedMark) error {
	_, err := db.Exec(`
		INSERT INTO listened_marks (id, user_id, episode_id, listened_at, position_seconds)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, episode_id) DO NOTHING`,
		mark.ID, mark.UserID, mark.EpisodeID, mark.ListenedAt, mark.PositionSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to create listened mark: %w", err)
	}
	return nil
}

// DeleteListenedMark removes the mark for (user, episode). Deleting a mark
// that does not exist is a no-op.
func DeleteListenedMark(db *sql.DB, userID, episodeID string) error {
	_, err := db.Exec(`
		DELETE FROM listened_marks WHERE user_id = ? AND episode_id = ?`,
		userID, episodeID)
	if err != nil {
		return fmt.Errorf("failed to delete listened mark: %w", err)
	}
	return nil
}

// ListenedMarkExists checks whether the user has marked the episode listened.
func ListenedMarkExists(db *sql.DB, userID, episodeID string) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM listened_marks WHERE user_id = ? AND episode_id = ?`,
		userID, episodeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check listened mark: %w", err)
	}
	return count > 0, nil
}

// CountListenedMarks returns the number of marks for (user, episode).
// Only used by tests to assert the at-most-one invariant.
func CountListenedMarks(db *sql.DB, userID, episodeID string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM listened_marks WHERE user_id = ? AND episode_id = ?`,
		userID, episodeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count listened marks: %w", err)
	}
	return count, nil
}
