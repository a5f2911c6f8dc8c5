// ABOUTME: Scheduled feed refresher discovering new episodes and archiving removed ones
// ABOUTME: Runs hourly, notifies eligible subscribers, and cleans up stale import jobs

package refresh

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/models"
	"github.com/harper/podkeep/internal/notify"
	"github.com/harper/podkeep/internal/reconcile"
)

// jobRetention is how long finished import jobs stay queryable before the
// cleanup pass removes them.
const jobRetention = 24 * time.Hour

// Refresher re-fetches every known podcast feed on a schedule.
type Refresher struct {
	dbc       *sql.DB
	fetchFeed fetch.PodcastFetcher
	sender    *notify.Sender
	logger    *slog.Logger
}

// New creates a Refresher.
func New(dbc *sql.DB, fetchFeed fetch.PodcastFetcher, sender *notify.Sender, logger *slog.Logger) *Refresher {
	return &Refresher{
		dbc:       dbc,
		fetchFeed: fetchFeed,
		sender:    sender,
		logger:    logger,
	}
}

// Run refreshes all feeds on the given interval until the context is
// cancelled. Each cycle also prunes finished import jobs past retention.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshAll(ctx)
			r.cleanup()
		}
	}
}

// RefreshAll fetches and reconciles every podcast. One feed's failure is
// counted and logged without aborting the remaining feeds. Returns the
// refreshed and failed counts.
func (r *Refresher) RefreshAll(ctx context.Context) (refreshed, failed int) {
	podcasts, err := db.ListPodcasts(r.dbc)
	if err != nil {
		r.logger.Error("failed to list podcasts for refresh", "error", err)
		return 0, 0
	}

	for _, podcast := range podcasts {
		if ctx.Err() != nil {
			r.logger.Info("refresh cancelled", "error", ctx.Err())
			return refreshed, failed
		}

		if err := r.RefreshPodcast(ctx, podcast); err != nil {
			r.logger.Warn("failed to refresh podcast",
				"podcast", podcast.Title,
				"url", podcast.RSSURL,
				"error", err)
			failed++
			continue
		}
		refreshed++
	}

	r.logger.Info("feed refresh complete", "refreshed", refreshed, "failed", failed)
	return refreshed, failed
}

// RefreshPodcast re-fetches one feed, reconciles it with the archival sweep
// enabled, and notifies eligible subscribers about newly-inserted episodes.
// Delivery failures never roll back reconciliation state.
func (r *Refresher) RefreshPodcast(ctx context.Context, podcast *models.Podcast) error {
	parsed, err := r.fetchFeed(ctx, podcast.RSSURL)
	if err != nil {
		return err
	}

	result, err := reconcile.Reconcile(r.dbc, podcast.RSSURL, parsed, true)
	if err != nil {
		return err
	}

	if len(result.NewEpisodes) > 0 && r.sender != nil {
		r.notifySubscribers(ctx, result.Podcast, result.NewEpisodes)
	}
	return nil
}

func (r *Refresher) notifySubscribers(ctx context.Context, podcast *models.Podcast, newEpisodes []*models.Episode) {
	rows, err := db.ListNotifiableSubscribers(r.dbc, podcast.ID)
	if err != nil {
		r.logger.Error("failed to list subscribers", "podcast", podcast.Title, "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	subscribers := make([]notify.Subscriber, len(rows))
	for i, row := range rows {
		subscribers[i] = notify.Subscriber{
			Email:         row.Email,
			NotifyEnabled: true,
			SubscribedAt:  row.SubscribedAt,
		}
	}

	notifications := notify.Decide(newEpisodes, subscribers)
	r.sender.SendAll(ctx, podcast, notifications)
}

func (r *Refresher) cleanup() {
	removed, err := db.DeleteFinishedImportJobsBefore(r.dbc, time.Now().Add(-jobRetention))
	if err != nil {
		r.logger.Error("import job cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		r.logger.Info("cleaned up finished import jobs", "removed", removed)
	}
}
