// ABOUTME: Subscription database operations
// ABOUTME: Links users to podcasts and exposes the notification subscriber list

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harper/podkeep/internal/models"
)

const subscriptionColumns = "id, user_id, podcast_id, notifications_enabled, subscribed_at"

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := row.Scan(&s.ID, &s.UserID, &s.PodcastID, &s.NotificationsEnabled, &s.SubscribedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func CreateSubscription(db *sql.DB, sub *models.Subscription) error {
	_, err := db.Exec(`
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.PodcastID, sub.NotificationsEnabled, sub.SubscribedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func GetSubscription(db *sql.DB, userID, podcastID string) (*models.Subscription, error) {
	sub, err := scanSubscription(db.QueryRow(`
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ? AND podcast_id = ?`, userID, podcastID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func ListSubscriptionsByUser(db *sql.DB, userID string) ([]*models.Subscription, error) {
	rows, err := db.Query(`
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ? ORDER BY subscribed_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

func DeleteSubscription(db *sql.DB, userID, podcastID string) error {
	_, err := db.Exec(`
		DELETE FROM subscriptions WHERE user_id = ? AND podcast_id = ?`,
		userID, podcastID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// CountSubscribers returns the number of users subscribed to a podcast.
func CountSubscribers(db *sql.DB, podcastID string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM subscriptions WHERE podcast_id = ?`, podcastID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return count, nil
}

// SetSubscriptionNotifications toggles the per-subscription notification flag.
func SetSubscriptionNotifications(db *sql.DB, userID, podcastID string, enabled bool) error {
	_, err := db.Exec(`
		UPDATE subscriptions SET notifications_enabled = ?
		WHERE user_id = ? AND podcast_id = ?`,
		enabled, userID, podcastID)
	if err != nil {
		return fmt.Errorf("failed to update subscription notifications: %w", err)
	}
	return nil
}

// NotifiableSubscriber is a subscriber eligible for notification screening:
// both the account-level preference and the per-subscription flag are on.
// The publish-time eligibility rule is applied by the notify package.
type NotifiableSubscriber struct {
	Email        string
	SubscribedAt time.Time
}

// ListNotifiableSubscribers returns subscribers of a podcast who have
// notifications enabled globally and on the subscription itself.
func ListNotifiableSubscribers(db *sql.DB, podcastID string) ([]NotifiableSubscriber, error) {
	rows, err := db.Query(`
		SELECT u.email, s.subscribed_at
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.podcast_id = ?
		  AND s.notifications_enabled = TRUE
		  AND u.notify_on_new_episodes = TRUE`, podcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifiable subscribers: %w", err)
	}
	defer rows.Close()

	var subs []NotifiableSubscriber
	for rows.Next() {
		var s NotifiableSubscriber
		if err := rows.Scan(&s.Email, &s.SubscribedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}

	return subs, nil
}
