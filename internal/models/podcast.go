// ABOUTME: Podcast model representing a shared RSS podcast feed and its metadata
// ABOUTME: Identity is the canonical feed URL; metadata tracks the most recent fetch

package models

import (
	"time"

	"github.com/google/uuid"
)

// Podcast represents a podcast feed shared by all subscribers.
// Metadata fields always reflect the most recent successful fetch.
type Podcast struct {
	ID            string    // Unique identifier
	RSSURL        string    // Canonical feed URL (unique)
	Title         string    // Podcast title from the feed
	Description   *string   // Feed-level description
	ImageURL      *string   // Artwork URL
	Author        *string   // iTunes author
	LastFetchedAt time.Time // Timestamp of last fetch
	CreatedAt     time.Time // Row creation timestamp
}

// NewPodcast creates a new Podcast with a generated ID and timestamps.
func NewPodcast(rssURL, title string) *Podcast {
	now := time.Now()
	return &Podcast{
		ID:            uuid.New().String(),
		RSSURL:        rssURL,
		Title:         title,
		LastFetchedAt: now,
		CreatedAt:     now,
	}
}
