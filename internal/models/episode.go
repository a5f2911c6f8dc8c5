// ABOUTME: Episode model representing a single playable item within a podcast feed
// ABOUTME: Identity is (podcast, guid); archived tracks removal from the live feed

package models

import (
	"time"

	"github.com/google/uuid"
)

// Episode represents a single episode of a podcast.
// (PodcastID, GUID) is unique. Once stored, episode content is immutable;
// a feed correcting an old episode's title will not propagate.
type Episode struct {
	ID              string
	PodcastID       string
	GUID            string
	Title           string
	Description     *string
	AudioURL        string
	DurationSeconds *int
	PublishedAt     time.Time
	Archived        bool // true once the guid vanished from the live feed
	CreatedAt       time.Time
}

// NewEpisode creates a new Episode with a generated ID and CreatedAt.
func NewEpisode(podcastID, guid, title, audioURL string, publishedAt time.Time) *Episode {
	return &Episode{
		ID:          uuid.New().String(),
		PodcastID:   podcastID,
		GUID:        guid,
		Title:       title,
		AudioURL:    audioURL,
		PublishedAt: publishedAt,
		Archived:    false,
		CreatedAt:   time.Now(),
	}
}
