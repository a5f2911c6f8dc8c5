// ABOUTME: Subscription and listened-state store over the SQLite layer
// ABOUTME: Computes per-user feed views and applies idempotent mark operations

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/models"
)

// ErrNotSubscribed is returned by operations that require an existing
// subscription, such as MarkAllForPodcast. Unsubscribe deliberately does not
// return it - a missing subscription there is a silent no-op.
var ErrNotSubscribed = errors.New("not subscribed to podcast")

// Store tracks per-user subscriptions and listened markers.
type Store struct {
	db *sql.DB
}

// New creates a Store backed by the given database.
func New(dbc *sql.DB) *Store {
	return &Store{db: dbc}
}

// DB exposes the underlying connection for collaborators that share it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Subscribe creates a subscription for the user. No-op if one exists.
func (s *Store) Subscribe(userID, podcastID string) error {
	_, err := db.GetSubscription(s.db, userID, podcastID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}
	return db.CreateSubscription(s.db, models.NewSubscription(userID, podcastID))
}

// Unsubscribe deletes the user's subscription. A missing subscription is a
// silent no-op. When the last subscriber leaves, the podcast and its
// episodes are deleted - they are shared reference data with no owner left.
func (s *Store) Unsubscribe(userID, podcastID string) error {
	if err := db.DeleteSubscription(s.db, userID, podcastID); err != nil {
		return err
	}
	return s.reapOrphanedPodcast(podcastID)
}

func (s *Store) reapOrphanedPodcast(podcastID string) error {
	remaining, err := db.CountSubscribers(s.db, podcastID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return db.DeletePodcast(s.db, podcastID)
	}
	return nil
}

// MarkListened records that the user listened to the episode. Idempotent.
func (s *Store) MarkListened(userID, episodeID string) error {
	return db.CreateListenedMark(s.db, models.NewListenedMark(userID, episodeID))
}

// MarkUnlistened removes the user's listened mark. Idempotent.
func (s *Store) MarkUnlistened(userID, episodeID string) error {
	return db.DeleteListenedMark(s.db, userID, episodeID)
}

// MarkMany applies MarkListened to each episode ID in one batch. IDs already
// marked are skipped without creating duplicate marks.
func (s *Store) MarkMany(userID string, episodeIDs []string) error {
	for _, episodeID := range episodeIDs {
		if err := s.MarkListened(userID, episodeID); err != nil {
			return fmt.Errorf("failed to mark episode %s: %w", episodeID, err)
		}
	}
	return nil
}

// MarkAllForPodcast marks every currently-unarchived, currently-unlistened
// episode of one podcast as listened. Returns ErrNotSubscribed when the user
// has no subscription to the podcast.
func (s *Store) MarkAllForPodcast(userID, podcastID string) error {
	if _, err := db.GetSubscription(s.db, userID, podcastID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotSubscribed
		}
		return err
	}

	episodes, err := db.ListUnlistenedEpisodesByPodcast(s.db, userID, podcastID)
	if err != nil {
		return err
	}
	return s.MarkMany(userID, episodeIDs(episodes))
}

// MarkAllForFeed marks every currently-unarchived, currently-unlistened
// episode across all of the user's subscriptions as listened.
func (s *Store) MarkAllForFeed(userID string) error {
	episodes, err := db.ListUnlistenedEpisodes(s.db, userID, 0)
	if err != nil {
		return err
	}
	return s.MarkMany(userID, episodeIDs(episodes))
}

// UnlistenedFeed returns non-archived, unlistened episodes of all subscribed
// podcasts, newest-first, truncated to limit. hasMore reports whether
// episodes beyond the limit exist; callers needing the full set use the
// archive view.
func (s *Store) UnlistenedFeed(userID string, limit int) ([]*models.Episode, bool, error) {
	if limit <= 0 {
		episodes, err := db.ListUnlistenedEpisodes(s.db, userID, 0)
		return episodes, false, err
	}

	episodes, err := db.ListUnlistenedEpisodes(s.db, userID, limit+1)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(episodes) > limit
	if hasMore {
		episodes = episodes[:limit]
	}
	return episodes, hasMore, nil
}

// ArchiveFeed returns all episodes of subscribed podcasts, archived or not,
// newest-first, each annotated with the user's listened flag.
func (s *Store) ArchiveFeed(userID string, limit int) ([]db.ArchiveEpisodeRow, bool, error) {
	if limit <= 0 {
		rows, err := db.ListArchiveEpisodes(s.db, userID, 0)
		return rows, false, err
	}

	rows, err := db.ListArchiveEpisodes(s.db, userID, limit+1)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	return rows, hasMore, nil
}

// UnlistenedForPodcast returns the single-podcast unlistened view.
func (s *Store) UnlistenedForPodcast(userID, podcastID string) ([]*models.Episode, error) {
	return db.ListUnlistenedEpisodesByPodcast(s.db, userID, podcastID)
}

// SubscribedPodcasts returns the podcasts the user subscribes to.
func (s *Store) SubscribedPodcasts(userID string) ([]*models.Podcast, error) {
	return db.ListPodcastsForUser(s.db, userID)
}

// SetSubscriptionNotifications toggles new-episode notifications for one
// subscription. Requires an existing subscription.
func (s *Store) SetSubscriptionNotifications(userID, podcastID string, enabled bool) error {
	if _, err := db.GetSubscription(s.db, userID, podcastID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotSubscribed
		}
		return err
	}
	return db.SetSubscriptionNotifications(s.db, userID, podcastID, enabled)
}

// DeleteUser removes the user and everything they own: listened marks,
// subscriptions, and import jobs go via cascade; podcasts left with no
// remaining subscriber are deleted along with their episodes.
func (s *Store) DeleteUser(userID string) error {
	subs, err := db.ListSubscriptionsByUser(s.db, userID)
	if err != nil {
		return err
	}

	if err := db.DeleteUser(s.db, userID); err != nil {
		return err
	}

	for _, sub := range subs {
		if err := s.reapOrphanedPodcast(sub.PodcastID); err != nil {
			return err
		}
	}
	return nil
}

func episodeIDs(episodes []*models.Episode) []string {
	ids := make([]string, len(episodes))
	for i, episode := range episodes {
		ids[i] = episode.ID
	}
	return ids
}
