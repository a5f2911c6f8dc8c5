// ABOUTME: Episode database operations including the archival sweep
// ABOUTME: Handles insert-if-absent semantics and per-user feed view queries

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/podkeep/internal/models"
)

const episodeColumns = "id, podcast_id, guid, title, description, audio_url, duration_seconds, published_at, archived, created_at"

func scanEpisode(row interface{ Scan(...any) error }) (*models.Episode, error) {
	e := &models.Episode{}
	err := row.Scan(&e.ID, &e.PodcastID, &e.GUID, &e.Title, &e.Description,
		&e.AudioURL, &e.DurationSeconds, &e.PublishedAt, &e.Archived, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func CreateEpisode(db *sql.DB, episode *models.Episode) error {
	_, err := db.Exec(`
		INSERT INTO episodes (`+episodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		episode.ID, episode.PodcastID, episode.GUID, episode.Title, episode.Description,
		episode.AudioURL, episode.DurationSeconds, episode.PublishedAt, episode.Archived,
		episode.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}
	return nil
}

func GetEpisodeByID(db *sql.DB, id string) (*models.Episode, error) {
	episode, err := scanEpisode(db.QueryRow(`
		SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	return episode, nil
}

// EpisodeExists checks if an episode exists with the given podcast_id and guid.
func EpisodeExists(db *sql.DB, podcastID, guid string) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM episodes WHERE podcast_id = ? AND guid = ?`,
		podcastID, guid,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check episode existence: %w", err)
	}
	return count > 0, nil
}

func ListEpisodesByPodcast(db *sql.DB, podcastID string) ([]*models.Episode, error) {
	rows, err := db.Query(`
		SELECT `+episodeColumns+` FROM episodes
		WHERE podcast_id = ? ORDER BY published_at DESC`, podcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// ArchiveEpisodesNotIn marks every non-archived episode of the podcast whose
// guid is absent from the fetched set as archived. Rows are never deleted, so
// listened history and download links survive. The transition is
// one-directional: a guid reappearing in a later fetch does not un-archive.
// Returns the number of episodes archived.
func ArchiveEpisodesNotIn(db *sql.DB, podcastID string, guids []string) (int64, error) {
	query := `UPDATE episodes SET archived = TRUE WHERE podcast_id = ? AND archived = FALSE`
	args := []any{podcastID}

	if len(guids) > 0 {
		placeholders := make([]string, len(guids))
		for i, guid := range guids {
			placeholders[i] = "?"
			args = append(args, guid)
		}
		query += " AND guid NOT IN (" + strings.Join(placeholders, ",") + ")"
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to archive episodes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return count, nil
}

// ArchiveEpisodes sets archived = TRUE on the given episode IDs. Used by the
// import path when the user declares an existing backlog already caught up.
func ArchiveEpisodes(db *sql.DB, episodeIDs []string) error {
	if len(episodeIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(episodeIDs))
	args := make([]any, len(episodeIDs))
	for i, id := range episodeIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	_, err := db.Exec(
		"UPDATE episodes SET archived = TRUE WHERE id IN ("+strings.Join(placeholders, ",")+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to archive episodes: %w", err)
	}
	return nil
}

// ListUnlistenedEpisodes returns non-archived episodes of all podcasts the
// user subscribes to, excluding episodes the user has marked listened,
// newest-first. Pass limit <= 0 for no limit.
func ListUnlistenedEpisodes(db *sql.DB, userID string, limit int) ([]*models.Episode, error) {
	query := `
		SELECT e.id, e.podcast_id, e.guid, e.title, e.description, e.audio_url, e.duration_seconds, e.published_at, e.archived, e.created_at
		FROM episodes e
		JOIN subscriptions s ON s.podcast_id = e.podcast_id AND s.user_id = ?
		WHERE e.archived = FALSE
		  AND NOT EXISTS (
			SELECT 1 FROM listened_marks lm
			WHERE lm.user_id = ? AND lm.episode_id = e.id
		  )
		ORDER BY e.published_at DESC`
	args := []any{userID, userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlistened episodes: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// ListUnlistenedEpisodesByPodcast is the single-podcast variant of
// ListUnlistenedEpisodes, used by the podcast detail view.
func ListUnlistenedEpisodesByPodcast(db *sql.DB, userID, podcastID string) ([]*models.Episode, error) {
	rows, err := db.Query(`
		SELECT `+episodeColumns+` FROM episodes e
		WHERE e.podcast_id = ?
		  AND e.archived = FALSE
		  AND NOT EXISTS (
			SELECT 1 FROM listened_marks lm
			WHERE lm.user_id = ? AND lm.episode_id = e.id
		  )
		ORDER BY e.published_at DESC`, podcastID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlistened episodes: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// ArchiveEpisodeRow is an episode annotated with the user's listened state.
type ArchiveEpisodeRow struct {
	Episode  *models.Episode
	Listened bool
}

// ListArchiveEpisodes returns all episodes (archived or not) of the user's
// subscribed podcasts, newest-first, each annotated with its listened flag.
// Pass limit <= 0 for no limit.
func ListArchiveEpisodes(db *sql.DB, userID string, limit int) ([]ArchiveEpisodeRow, error) {
	query := `
		SELECT e.id, e.podcast_id, e.guid, e.title, e.description, e.audio_url, e.duration_seconds, e.published_at, e.archived, e.created_at,
		       EXISTS (
			SELECT 1 FROM listened_marks lm
			WHERE lm.user_id = ? AND lm.episode_id = e.id
		       ) AS listened
		FROM episodes e
		JOIN subscriptions s ON s.podcast_id = e.podcast_id AND s.user_id = ?
		ORDER BY e.published_at DESC`
	args := []any{userID, userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive episodes: %w", err)
	}
	defer rows.Close()

	var result []ArchiveEpisodeRow
	for rows.Next() {
		e := &models.Episode{}
		var listened bool
		if err := rows.Scan(&e.ID, &e.PodcastID, &e.GUID, &e.Title, &e.Description,
			&e.AudioURL, &e.DurationSeconds, &e.PublishedAt, &e.Archived, &e.CreatedAt,
			&listened); err != nil {
			return nil, fmt.Errorf("failed to scan archive episode: %w", err)
		}
		result = append(result, ArchiveEpisodeRow{Episode: e, Listened: listened})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive episodes: %w", err)
	}

	return result, nil
}

func collectEpisodes(rows *sql.Rows) ([]*models.Episode, error) {
	var episodes []*models.Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episodes: %w", err)
	}
	return episodes, nil
}
