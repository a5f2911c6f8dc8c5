// ABOUTME: Subscription and ListenedMark models linking users to podcasts and episodes
// ABOUTME: Both are strictly user-owned and unique per (user, target) pair

package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription links a user to a podcast. (UserID, PodcastID) is unique.
// Deleting it never touches episode or listened-mark rows of other users.
type Subscription struct {
	ID                   string
	UserID               string
	PodcastID            string
	NotificationsEnabled bool
	SubscribedAt         time.Time
}

// NewSubscription creates a Subscription with notifications disabled,
// matching the default for a fresh subscribe.
func NewSubscription(userID, podcastID string) *Subscription {
	return &Subscription{
		ID:           uuid.New().String(),
		UserID:       userID,
		PodcastID:    podcastID,
		SubscribedAt: time.Now(),
	}
}

// ListenedMark records that a user has listened to an episode.
// Presence implies "listened"; at most one mark exists per (user, episode).
type ListenedMark struct {
	ID              string
	UserID          string
	EpisodeID       string
	ListenedAt      time.Time
	PositionSeconds int // playback position, currently always 0
}

// NewListenedMark creates a ListenedMark timestamped now.
func NewListenedMark(userID, episodeID string) *ListenedMark {
	return &ListenedMark{
		ID:         uuid.New().String(),
		UserID:     userID,
		EpisodeID:  episodeID,
		ListenedAt: time.Now(),
	}
}
