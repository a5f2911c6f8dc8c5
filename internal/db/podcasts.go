// ABOUTME: Podcast database operations
// ABOUTME: CRUD operations for the podcasts table keyed by ID or feed URL

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harper/podkeep/internal/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

const podcastColumns = "id, rss_url, title, description, image_url, author, last_fetched_at, created_at"

func scanPodcast(row interface{ Scan(...any) error }) (*models.Podcast, error) {
	p := &models.Podcast{}
	err := row.Scan(&p.ID, &p.RSSURL, &p.Title, &p.Description, &p.ImageURL,
		&p.Author, &p.LastFetchedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func CreatePodcast(db *sql.DB, podcast *models.Podcast) error {
	_, err := db.Exec(`
		INSERT INTO podcasts (`+podcastColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		podcast.ID, podcast.RSSURL, podcast.Title, podcast.Description,
		podcast.ImageURL, podcast.Author, podcast.LastFetchedAt, podcast.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create podcast: %w", err)
	}
	return nil
}

func GetPodcastByURL(db *sql.DB, rssURL string) (*models.Podcast, error) {
	podcast, err := scanPodcast(db.QueryRow(`
		SELECT `+podcastColumns+` FROM podcasts WHERE rss_url = ?`, rssURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get podcast: %w", err)
	}
	return podcast, nil
}

func GetPodcastByID(db *sql.DB, id string) (*models.Podcast, error) {
	podcast, err := scanPodcast(db.QueryRow(`
		SELECT `+podcastColumns+` FROM podcasts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get podcast: %w", err)
	}
	return podcast, nil
}

func ListPodcasts(db *sql.DB) ([]*models.Podcast, error) {
	rows, err := db.Query(`
		SELECT ` + podcastColumns + ` FROM podcasts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list podcasts: %w", err)
	}
	defer rows.Close()

	var podcasts []*models.Podcast
	for rows.Next() {
		podcast, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan podcast: %w", err)
		}
		podcasts = append(podcasts, podcast)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating podcasts: %w", err)
	}

	return podcasts, nil
}

// ListPodcastsForUser returns the podcasts a user is subscribed to,
// most recently subscribed first.
func ListPodcastsForUser(db *sql.DB, userID string) ([]*models.Podcast, error) {
	rows, err := db.Query(`
		SELECT p.id, p.rss_url, p.title, p.description, p.image_url, p.author, p.last_fetched_at, p.created_at
		FROM podcasts p
		JOIN subscriptions s ON s.podcast_id = p.id
		WHERE s.user_id = ?
		ORDER BY s.subscribed_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribed podcasts: %w", err)
	}
	defer rows.Close()

	var podcasts []*models.Podcast
	for rows.Next() {
		podcast, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan podcast: %w", err)
		}
		podcasts = append(podcasts, podcast)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating podcasts: %w", err)
	}

	return podcasts, nil
}

// UpdatePodcastMetadata overwrites the mutable metadata fields and bumps
// last_fetched_at. Title, author, and artwork always reflect the most
// recent fetch even though they are not dedupe keys.
func UpdatePodcastMetadata(db *sql.DB, id, title string, description, imageURL, author *string, fetchedAt time.Time) error {
	_, err := db.Exec(`
		UPDATE podcasts SET title = ?, description = ?, image_url = ?, author = ?, last_fetched_at = ?
		WHERE id = ?`,
		title, description, imageURL, author, fetchedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update podcast metadata: %w", err)
	}
	return nil
}

func DeletePodcast(db *sql.DB, id string) error {
	_, err := db.Exec("DELETE FROM podcasts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete podcast: %w", err)
	}
	return nil
}
