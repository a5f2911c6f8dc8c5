// ABOUTME: Notification decision engine and email dispatch for new episodes
// ABOUTME: Applies the subscribed-before-published anti-spam rule per subscriber

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harper/podkeep/internal/models"
)

// Subscriber is one podcast subscriber as seen by the decision engine.
type Subscriber struct {
	Email         string
	NotifyEnabled bool
	SubscribedAt  time.Time
}

// Notification is one (recipient, episode) pair to deliver.
type Notification struct {
	Email   string
	Episode *models.Episode
}

// Decide computes which (email, episode) pairs to notify for a podcast's
// newly-inserted episodes. A subscriber is eligible for an episode only if
// notifications are enabled and the subscription began before the episode
// was published. The second condition prevents a user who just bulk-imported
// a backlog-heavy podcast from receiving a storm of "new episode" emails -
// only episodes published after the subscription began can trigger one.
func Decide(episodes []*models.Episode, subscribers []Subscriber) []Notification {
	var notifications []Notification
	for _, episode := range episodes {
		for _, sub := range subscribers {
			if !sub.NotifyEnabled {
				continue
			}
			if !sub.SubscribedAt.Before(episode.PublishedAt) {
				continue
			}
			notifications = append(notifications, Notification{
				Email:   sub.Email,
				Episode: episode,
			})
		}
	}
	return notifications
}

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends a plain-text email with the given parameters.
	Send(ctx context.Context, to, subject, text string) error
}

// Sender delivers new-episode notifications through a pluggable provider.
// The provider is constructed lazily on first use and cached; concurrent
// first use initializes it at most once.
type Sender struct {
	provider func() (Provider, error)
	logger   *slog.Logger
}

// NewSender creates a Sender. The factory runs at most once, on the first
// delivery attempt.
func NewSender(factory func() (Provider, error), logger *slog.Logger) *Sender {
	return &Sender{
		provider: sync.OnceValues(factory),
		logger:   logger,
	}
}

// SendAll delivers the given notifications for one podcast. Each recipient
// is tolerated independently: a failed send is logged and does not block the
// others, and no failure here ever affects reconciliation state. Returns the
// number of successful deliveries.
func (s *Sender) SendAll(ctx context.Context, podcast *models.Podcast, notifications []Notification) int {
	if len(notifications) == 0 {
		return 0
	}

	provider, err := s.provider()
	if err != nil {
		s.logger.Error("email provider unavailable", "error", err)
		return 0
	}

	sent := 0
	for _, n := range notifications {
		subject := fmt.Sprintf("New episode of %s: %s", podcast.Title, n.Episode.Title)
		text := notificationBody(podcast.Title, n.Episode.Title)

		if err := provider.Send(ctx, n.Email, subject, text); err != nil {
			s.logger.Warn("notification delivery failed",
				"to", n.Email,
				"podcast", podcast.Title,
				"episode", n.Episode.Title,
				"error", err)
			continue
		}
		sent++
	}

	s.logger.Info("notifications sent",
		"podcast", podcast.Title,
		"sent", sent,
		"failed", len(notifications)-sent)
	return sent
}

func notificationBody(podcastTitle, episodeTitle string) string {
	return strings.Join([]string{
		fmt.Sprintf("A new episode of %q is now available:", podcastTitle),
		"",
		episodeTitle,
		"",
		"Log in to podkeep to listen.",
		"",
		"---",
		"To manage notification preferences, visit your podkeep settings.",
	}, "\n")
}
