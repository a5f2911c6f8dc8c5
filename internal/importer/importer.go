// ABOUTME: Bulk import orchestrator driving fetch+reconcile+subscribe across many feeds
// ABOUTME: Bounded-concurrency batches with per-feed failure capture and live job progress

package importer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/models"
	"github.com/harper/podkeep/internal/reconcile"
	"github.com/harper/podkeep/internal/store"
)

// DefaultBatchSize bounds how many feeds are fetched in parallel. Larger
// values speed throughput at the cost of load on remote RSS servers.
const DefaultBatchSize = 10

// FeedRef identifies one feed to import: the URL to fetch and the
// user-facing title used when reporting failures.
type FeedRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Orchestrator runs bulk imports: search-add, URL-add, and OPML import all
// funnel through it. One feed's failure never aborts sibling feeds in the
// batch or subsequent batches.
type Orchestrator struct {
	dbc       *sql.DB
	store     *store.Store
	fetchFeed fetch.PodcastFetcher
	logger    *slog.Logger
	batchSize int

	tasks chan task
}

type task struct {
	job             *models.ImportJob
	feeds           []FeedRef
	markAllListened bool
}

// New creates an Orchestrator with the default batch size.
func New(dbc *sql.DB, st *store.Store, fetchFeed fetch.PodcastFetcher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		dbc:       dbc,
		store:     st,
		fetchFeed: fetchFeed,
		logger:    logger,
		batchSize: DefaultBatchSize,
		tasks:     make(chan task, 16),
	}
}

// SetBatchSize overrides the per-batch concurrency bound.
func (o *Orchestrator) SetBatchSize(n int) {
	if n > 0 {
		o.batchSize = n
	}
}

// Submit creates a pending job record and queues the import for the worker.
// It returns immediately so callers can observe progress via the job ID.
func (o *Orchestrator) Submit(userID string, feeds []FeedRef, markAllListened bool) (*models.ImportJob, error) {
	job := models.NewImportJob(userID, len(feeds))
	if err := db.CreateImportJob(o.dbc, job); err != nil {
		return nil, err
	}
	o.tasks <- task{job: job, feeds: feeds, markAllListened: markAllListened}
	return job, nil
}

// RunWorker consumes queued imports until the context is cancelled. A caller
// that stops observing a job does not stop the underlying work, only the
// flow of progress updates.
func (o *Orchestrator) RunWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-o.tasks:
			o.Process(ctx, t.job, t.feeds, t.markAllListened)
		}
	}
}

// Process runs one import job to completion. The terminal "done" transition
// and completion timestamp are written unconditionally, even if an
// unexpected error occurs mid-batch.
func (o *Orchestrator) Process(ctx context.Context, job *models.ImportJob, feeds []FeedRef, markAllListened bool) {
	defer func() {
		if err := db.CompleteImportJob(o.dbc, job.ID, time.Now()); err != nil {
			o.logger.Error("failed to finalize import job", "job_id", job.ID, "error", err)
		}
	}()

	if err := db.SetImportJobStatus(o.dbc, job.ID, models.JobRunning); err != nil {
		o.logger.Error("failed to start import job", "job_id", job.ID, "error", err)
		return
	}

	var mu sync.Mutex
	succeeded := 0
	failedTitles := []string{}

	for start := 0; start < len(feeds); start += o.batchSize {
		end := start + o.batchSize
		if end > len(feeds) {
			end = len(feeds)
		}

		var wg sync.WaitGroup
		for _, feed := range feeds[start:end] {
			wg.Add(1)
			go func(feed FeedRef) {
				defer wg.Done()

				err := o.importFeed(ctx, job.UserID, feed, markAllListened)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					o.logger.Warn("feed import failed",
						"job_id", job.ID, "url", feed.URL, "error", err)
					failedTitles = append(failedTitles, failureTitle(feed))
				} else {
					succeeded++
				}
				// Persist after every feed so observers see live progress
				if err := db.UpdateImportJobProgress(o.dbc, job.ID, succeeded, failedTitles); err != nil {
					o.logger.Error("failed to persist import progress",
						"job_id", job.ID, "error", err)
				}
			}(feed)
		}
		wg.Wait()
	}

	o.logger.Info("import job finished",
		"job_id", job.ID,
		"total", job.Total,
		"succeeded", succeeded,
		"failed", len(failedTitles))
}

// importFeed fetches, reconciles, and subscribes one feed for the importing
// user. With markAllListened set, every episode just inserted is immediately
// archived and listen-marked - how a user declares "I'm already caught up"
// on a backlog-heavy podcast.
func (o *Orchestrator) importFeed(ctx context.Context, userID string, feed FeedRef, markAllListened bool) error {
	parsed, err := o.fetchFeed(ctx, feed.URL)
	if err != nil {
		return err
	}

	result, err := reconcile.Reconcile(o.dbc, feed.URL, parsed, false)
	if err != nil {
		return fmt.Errorf("failed to reconcile feed: %w", err)
	}

	if err := o.store.Subscribe(userID, result.Podcast.ID); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	if markAllListened && len(result.NewEpisodes) > 0 {
		ids := make([]string, len(result.NewEpisodes))
		for i, episode := range result.NewEpisodes {
			ids[i] = episode.ID
		}
		if err := db.ArchiveEpisodes(o.dbc, ids); err != nil {
			return err
		}
		if err := o.store.MarkMany(userID, ids); err != nil {
			return err
		}
	}

	return nil
}

// failureTitle reports failures by title rather than URL for readability.
func failureTitle(feed FeedRef) string {
	if feed.Title != "" {
		return feed.Title
	}
	return feed.URL
}
