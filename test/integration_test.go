// ABOUTME: Integration tests for the full podcast subscription workflow
// ABOUTME: Tests end-to-end scenarios including fetch, reconcile, marks, and OPML

package test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/models"
	"github.com/harper/podkeep/internal/opml"
	"github.com/harper/podkeep/internal/reconcile"
	"github.com/harper/podkeep/internal/store"
)

const feedV1 = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
<title>Integration Show</title>
<description>A show for integration testing</description>
<item><title>Episode One</title><guid>ep-1</guid>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
<enclosure url="https://example.com/1.mp3" type="audio/mpeg" length="1"/>
<itunes:duration>30:00</itunes:duration>
</item>
<item><title>Episode Two</title><guid>ep-2</guid>
<pubDate>Tue, 03 Jan 2006 15:04:05 GMT</pubDate>
<enclosure url="https://example.com/2.mp3" type="audio/mpeg" length="1"/>
</item>
</channel>
</rss>`

// feedV2 drops ep-1 and adds ep-3
const feedV2 = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Integration Show</title>
<item><title>Episode Two</title><guid>ep-2</guid>
<pubDate>Tue, 03 Jan 2006 15:04:05 GMT</pubDate>
<enclosure url="https://example.com/2.mp3" type="audio/mpeg" length="1"/>
</item>
<item><title>Episode Three</title><guid>ep-3</guid>
<pubDate>Wed, 04 Jan 2006 15:04:05 GMT</pubDate>
<enclosure url="https://example.com/3.mp3" type="audio/mpeg" length="1"/>
</item>
</channel>
</rss>`

// TestFullWorkflow runs the complete flow: fetch, reconcile, subscribe, mark
// listened, re-fetch with a changed feed, and observe the archival sweep.
func TestFullWorkflow(t *testing.T) {
	var version atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if version.Load() == 0 {
			w.Write([]byte(feedV1))
			return
		}
		w.Write([]byte(feedV2))
	}))
	defer server.Close()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.InitDB(dbPath)
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	defer database.Close()

	st := store.New(database)
	user := models.NewUser("integration@example.com", "Integration")
	if err := db.CreateUser(database, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	// Fetch and reconcile the initial feed
	ctx := context.Background()
	parsed, err := fetch.FetchPodcast(ctx, server.URL)
	if err != nil {
		t.Fatalf("failed to fetch feed: %v", err)
	}
	if parsed.Title != "Integration Show" {
		t.Errorf("expected Integration Show, got %s", parsed.Title)
	}
	if len(parsed.Episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(parsed.Episodes))
	}
	if d := parsed.Episodes[0].DurationSeconds; d == nil || *d != 1800 {
		t.Errorf("expected 1800 second duration, got %v", d)
	}

	result, err := reconcile.Reconcile(database, server.URL, parsed, false)
	if err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}
	if !result.Created || len(result.NewEpisodes) != 2 {
		t.Fatalf("expected new podcast with 2 episodes, got created=%v new=%d",
			result.Created, len(result.NewEpisodes))
	}

	if err := st.Subscribe(user.ID, result.Podcast.ID); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	// The unlistened feed shows both episodes, newest first
	episodes, _, err := st.UnlistenedFeed(user.ID, 0)
	if err != nil {
		t.Fatalf("failed to compute feed: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 unlistened episodes, got %d", len(episodes))
	}
	if episodes[0].GUID != "ep-2" {
		t.Errorf("expected ep-2 first, got %s", episodes[0].GUID)
	}

	// Mark the older episode listened
	if err := st.MarkListened(user.ID, episodes[1].ID); err != nil {
		t.Fatalf("failed to mark listened: %v", err)
	}
	episodes, _, _ = st.UnlistenedFeed(user.ID, 0)
	if len(episodes) != 1 {
		t.Errorf("expected 1 unlistened episode after marking, got %d", len(episodes))
	}

	// The feed changes: ep-1 vanishes, ep-3 appears
	version.Store(1)
	parsed, err = fetch.FetchPodcast(ctx, server.URL)
	if err != nil {
		t.Fatalf("failed to re-fetch feed: %v", err)
	}
	result, err = reconcile.Reconcile(database, server.URL, parsed, true)
	if err != nil {
		t.Fatalf("failed to re-reconcile: %v", err)
	}
	if len(result.NewEpisodes) != 1 || result.NewEpisodes[0].GUID != "ep-3" {
		t.Errorf("expected one new episode ep-3, got %d", len(result.NewEpisodes))
	}
	if result.Archived != 1 {
		t.Errorf("expected 1 archived episode, got %d", result.Archived)
	}

	// ep-1 was already listened, so the unlistened feed shows ep-2 and ep-3
	episodes, _, _ = st.UnlistenedFeed(user.ID, 0)
	guids := make([]string, len(episodes))
	for i, e := range episodes {
		guids[i] = e.GUID
	}
	if len(episodes) != 2 || guids[0] != "ep-3" || guids[1] != "ep-2" {
		t.Errorf("expected [ep-3, ep-2], got %v", guids)
	}

	// The archive view still shows all three, with the listened flag
	rows, _, err := st.ArchiveFeed(user.ID, 0)
	if err != nil {
		t.Fatalf("failed to compute archive: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected 3 episodes in archive, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Episode.GUID == "ep-1" {
			if !row.Episode.Archived {
				t.Error("ep-1 should be archived")
			}
			if !row.Listened {
				t.Error("ep-1 should be listened")
			}
		}
	}
}

// TestOPMLRoundTrip exports subscriptions to OPML and imports the list back.
func TestOPMLRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.InitDB(dbPath)
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	defer database.Close()

	st := store.New(database)
	user := models.NewUser("opml@example.com", "OPML")
	_ = db.CreateUser(database, user)

	urls := []string{
		"https://example.com/one.xml",
		"https://example.com/two.xml",
	}
	for i, url := range urls {
		podcast := models.NewPodcast(url, "Show "+string(rune('A'+i)))
		if err := db.CreatePodcast(database, podcast); err != nil {
			t.Fatalf("failed to create podcast: %v", err)
		}
		if err := st.Subscribe(user.ID, podcast.ID); err != nil {
			t.Fatalf("failed to subscribe: %v", err)
		}
	}

	podcasts, err := st.SubscribedPodcasts(user.ID)
	if err != nil {
		t.Fatalf("failed to list subscriptions: %v", err)
	}
	feeds := make([]opml.Feed, len(podcasts))
	for i, p := range podcasts {
		feeds[i] = opml.Feed{URL: p.RSSURL, Title: p.Title}
	}

	var buf bytes.Buffer
	if err := opml.Write(&buf, "podkeep subscriptions", feeds); err != nil {
		t.Fatalf("failed to write OPML: %v", err)
	}

	parsed, err := opml.Parse(&buf)
	if err != nil {
		t.Fatalf("failed to parse written OPML: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(parsed))
	}

	got := map[string]bool{}
	for _, feed := range parsed {
		got[feed.URL] = true
	}
	for _, url := range urls {
		if !got[url] {
			t.Errorf("missing feed %s after round trip", url)
		}
	}
}
