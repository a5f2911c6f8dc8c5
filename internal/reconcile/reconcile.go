// ABOUTME: Episode reconciliation engine merging fetched feeds against stored state
// ABOUTME: Upserts podcast metadata, inserts new episodes, and runs the archival sweep

package reconcile

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/models"
	"github.com/harper/podkeep/internal/parse"
)

// Result reports what one reconcile call changed.
type Result struct {
	Podcast     *models.Podcast   // podcast row after the upsert
	NewEpisodes []*models.Episode // episodes inserted by this call
	Created     bool              // podcast did not exist before this call
	Archived    int64             // episodes archived by the sweep
}

// Reconcile merges one fetched feed into stored state. Order within a call:
// podcast-metadata upsert, then episode upserts, then the archival sweep.
//
// The podcast row is keyed by feed URL: created if absent, otherwise its
// mutable metadata is overwritten and lastFetchedAt refreshed. Each fetched
// episode is inserted only if (podcastID, guid) is absent; stored episodes
// are never modified. When sweep is true, every already-stored episode whose
// guid is missing from this fetch is marked archived. The sweep never runs
// when the podcast was created by this call - on a first add there is no
// prior episode set to compare against.
//
// Re-running with an identical fetch result is a no-op beyond bumping
// lastFetchedAt.
func Reconcile(dbc *sql.DB, feedURL string, feed *parse.ParsedPodcast, sweep bool) (*Result, error) {
	result := &Result{}

	podcast, err := db.GetPodcastByURL(dbc, feedURL)
	switch {
	case errors.Is(err, db.ErrNotFound):
		podcast = models.NewPodcast(feedURL, feed.Title)
		podcast.Description = feed.Description
		podcast.ImageURL = feed.ImageURL
		podcast.Author = feed.Author
		if err := db.CreatePodcast(dbc, podcast); err != nil {
			return nil, err
		}
		result.Created = true
	case err != nil:
		return nil, err
	default:
		podcast.Title = feed.Title
		podcast.Description = feed.Description
		podcast.ImageURL = feed.ImageURL
		podcast.Author = feed.Author
		podcast.LastFetchedAt = time.Now()
		if err := db.UpdatePodcastMetadata(dbc, podcast.ID, feed.Title,
			feed.Description, feed.ImageURL, feed.Author, podcast.LastFetchedAt); err != nil {
			return nil, err
		}
	}
	result.Podcast = podcast

	fetchedGUIDs := make([]string, 0, len(feed.Episodes))
	for _, fetched := range feed.Episodes {
		fetchedGUIDs = append(fetchedGUIDs, fetched.GUID)

		exists, err := db.EpisodeExists(dbc, podcast.ID, fetched.GUID)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		episode := models.NewEpisode(podcast.ID, fetched.GUID, fetched.Title,
			fetched.AudioURL, fetched.PublishedAt)
		episode.Description = fetched.Description
		episode.DurationSeconds = fetched.DurationSeconds
		if err := db.CreateEpisode(dbc, episode); err != nil {
			return nil, fmt.Errorf("failed to insert episode %q: %w", fetched.GUID, err)
		}
		result.NewEpisodes = append(result.NewEpisodes, episode)
	}

	if sweep && !result.Created {
		archived, err := db.ArchiveEpisodesNotIn(dbc, podcast.ID, fetchedGUIDs)
		if err != nil {
			return nil, err
		}
		result.Archived = archived
	}

	return result, nil
}
