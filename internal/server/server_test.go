// ABOUTME: Tests for the HTTP API server
// ABOUTME: Covers authentication, the core endpoints, and the error taxonomy

package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/importer"
	"github.com/harper/podkeep/internal/models"
	"github.com/harper/podkeep/internal/parse"
	"github.com/harper/podkeep/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubFetcher serves a canned two-episode feed and fails "broken" URLs.
func stubFetcher(ctx context.Context, feedURL string) (*parse.ParsedPodcast, error) {
	if strings.Contains(feedURL, "broken") {
		return nil, &fetch.Error{URL: feedURL, Err: fmt.Errorf("connection refused")}
	}
	return &parse.ParsedPodcast{
		Title: "Stub Show",
		Episodes: []parse.ParsedEpisode{
			{GUID: "a", Title: "Ep A", AudioURL: "https://example.com/a.mp3", PublishedAt: time.Now().Add(-time.Hour)},
			{GUID: "b", Title: "Ep B", AudioURL: "https://example.com/b.mp3", PublishedAt: time.Now()},
		},
	}, nil
}

func setupServer(t *testing.T) (*Server, *sql.DB, *models.User) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.InitDB(dbPath)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	user := models.NewUser("api@example.com", "API User")
	if err := db.CreateUser(conn, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	st := store.New(conn)
	orch := importer.New(conn, st, stubFetcher, testLogger())
	srv := New(conn, st, orch, nil, stubFetcher, testLogger())
	return srv, conn, user
}

func doRequest(t *testing.T, srv *Server, user *models.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != nil {
		req.Header.Set("X-API-Key", user.APIKey)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	srv, _, _ := setupServer(t)

	w := doRequest(t, srv, nil, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAPIRequiresAuthentication(t *testing.T) {
	srv, _, _ := setupServer(t)

	w := doRequest(t, srv, nil, http.MethodGet, "/api/podcasts", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/podcasts", nil)
	req.Header.Set("X-API-Key", "bogus")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad key, got %d", rec.Code)
	}
}

func TestBearerTokenAuthentication(t *testing.T) {
	srv, _, user := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/podcasts", nil)
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with bearer token, got %d", w.Code)
	}
}

func TestAddPodcastAndList(t *testing.T) {
	srv, _, user := setupServer(t)

	w := doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "https://example.com/feed.xml"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created podcastJSON
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Title != "Stub Show" {
		t.Errorf("expected Stub Show, got %s", created.Title)
	}

	w = doRequest(t, srv, user, http.MethodGet, "/api/podcasts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var podcasts []podcastJSON
	_ = json.Unmarshal(w.Body.Bytes(), &podcasts)
	if len(podcasts) != 1 {
		t.Errorf("expected 1 podcast, got %d", len(podcasts))
	}
}

func TestAddPodcastInvalidURL(t *testing.T) {
	srv, _, user := setupServer(t)

	// Malformed URL is rejected before any fetch
	w := doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "not a url"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAddPodcastFetchFailure(t *testing.T) {
	srv, _, user := setupServer(t)

	w := doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "https://example.com/broken.xml"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestUnsubscribe(t *testing.T) {
	srv, _, user := setupServer(t)

	w := doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "https://example.com/feed.xml"})
	var created podcastJSON
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = doRequest(t, srv, user, http.MethodDelete, "/api/podcasts/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}

	// Unsubscribing again is a silent no-op
	w = doRequest(t, srv, user, http.MethodDelete, "/api/podcasts/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for repeated unsubscribe, got %d", w.Code)
	}
}

func TestUnlistenedFeedAndMarkListened(t *testing.T) {
	srv, _, user := setupServer(t)

	doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "https://example.com/feed.xml"})

	w := doRequest(t, srv, user, http.MethodGet, "/api/feed", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var feed struct {
		Episodes []episodeJSON `json:"episodes"`
		HasMore  bool          `json:"hasMore"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &feed)
	if len(feed.Episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(feed.Episodes))
	}
	if feed.HasMore {
		t.Error("expected hasMore=false")
	}
	// Newest first
	if feed.Episodes[0].GUID != "b" {
		t.Errorf("expected newest episode first, got %s", feed.Episodes[0].GUID)
	}

	w = doRequest(t, srv, user, http.MethodPost, "/api/episodes/"+feed.Episodes[0].ID+"/listened", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = doRequest(t, srv, user, http.MethodGet, "/api/feed", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &feed)
	if len(feed.Episodes) != 1 {
		t.Errorf("expected 1 episode after marking, got %d", len(feed.Episodes))
	}
}

func TestFeedLimitAndHasMore(t *testing.T) {
	srv, _, user := setupServer(t)

	doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "https://example.com/feed.xml"})

	w := doRequest(t, srv, user, http.MethodGet, "/api/feed?limit=1", nil)
	var feed struct {
		Episodes []episodeJSON `json:"episodes"`
		HasMore  bool          `json:"hasMore"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &feed)
	if len(feed.Episodes) != 1 {
		t.Errorf("expected 1 episode, got %d", len(feed.Episodes))
	}
	if !feed.HasMore {
		t.Error("expected hasMore=true")
	}
}

func TestMarkAllForPodcastNotSubscribed(t *testing.T) {
	srv, conn, user := setupServer(t)

	// Podcast exists but the user is not subscribed
	podcast := models.NewPodcast("https://example.com/other.xml", "Other")
	_ = db.CreatePodcast(conn, podcast)

	w := doRequest(t, srv, user, http.MethodPost, "/api/podcasts/"+podcast.ID+"/listened", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestArchiveFeedAnnotatesListened(t *testing.T) {
	srv, conn, user := setupServer(t)

	doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "https://example.com/feed.xml"})

	// Archive one episode directly and mark it listened
	episodes, _ := db.ListUnlistenedEpisodes(conn, user.ID, 0)
	_ = db.ArchiveEpisodes(conn, []string{episodes[0].ID})
	doRequest(t, srv, user, http.MethodPost, "/api/episodes/"+episodes[0].ID+"/listened", nil)

	w := doRequest(t, srv, user, http.MethodGet, "/api/archive", nil)
	var archive struct {
		Episodes []episodeJSON `json:"episodes"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &archive)
	if len(archive.Episodes) != 2 {
		t.Fatalf("expected 2 episodes in archive, got %d", len(archive.Episodes))
	}
	for _, e := range archive.Episodes {
		if e.Listened == nil {
			t.Fatal("expected listened annotation on archive rows")
		}
		if e.ID == episodes[0].ID && !*e.Listened {
			t.Error("expected archived episode to be listened")
		}
	}
}

func TestImportLifecycle(t *testing.T) {
	srv, conn, user := setupServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.orchestrator.RunWorker(ctx)

	w := doRequest(t, srv, user, http.MethodPost, "/api/imports", map[string]any{
		"feeds": []map[string]string{
			{"url": "https://example.com/one.xml", "title": "One"},
			{"url": "https://example.com/broken.xml", "title": "Broken"},
		},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var job importJobJSON
	_ = json.Unmarshal(w.Body.Bytes(), &job)
	if job.Status != "pending" {
		t.Errorf("expected pending, got %s", job.Status)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("import did not finish in time")
		case <-time.After(50 * time.Millisecond):
		}
		got, err := db.GetImportJob(conn, job.ID)
		if err != nil {
			t.Fatalf("GetImportJob failed: %v", err)
		}
		if got.Status == models.JobDone {
			if got.Succeeded != 1 {
				t.Errorf("expected 1 succeeded, got %d", got.Succeeded)
			}
			if len(got.FailedTitles) != 1 || got.FailedTitles[0] != "Broken" {
				t.Errorf("expected [Broken], got %v", got.FailedTitles)
			}
			return
		}
	}
}

func TestImportEmptyFeeds(t *testing.T) {
	srv, _, user := setupServer(t)

	w := doRequest(t, srv, user, http.MethodPost, "/api/imports", map[string]any{"feeds": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGetImportOtherUsersJobIsNotFound(t *testing.T) {
	srv, conn, user := setupServer(t)

	other := models.NewUser("other@example.com", "Other")
	_ = db.CreateUser(conn, other)
	job := models.NewImportJob(other.ID, 1)
	_ = db.CreateImportJob(conn, job)

	w := doRequest(t, srv, user, http.MethodGet, "/api/imports/"+job.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's job, got %d", w.Code)
	}
}

func TestNotifyPreferenceAndSubscriptionToggle(t *testing.T) {
	srv, conn, user := setupServer(t)

	w := doRequest(t, srv, user, http.MethodPut, "/api/settings/notifications",
		map[string]bool{"enabled": true})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	got, _ := db.GetUserByID(conn, user.ID)
	if !got.NotifyOnNewEpisodes {
		t.Error("expected user preference enabled")
	}

	addResp := doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "https://example.com/feed.xml"})
	var created podcastJSON
	_ = json.Unmarshal(addResp.Body.Bytes(), &created)

	w = doRequest(t, srv, user, http.MethodPut, "/api/podcasts/"+created.ID+"/notifications",
		map[string]bool{"enabled": true})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	sub, _ := db.GetSubscription(conn, user.ID, created.ID)
	if !sub.NotificationsEnabled {
		t.Error("expected subscription notifications enabled")
	}
}

func TestDeleteAccount(t *testing.T) {
	srv, conn, user := setupServer(t)

	doRequest(t, srv, user, http.MethodPost, "/api/podcasts",
		map[string]string{"rssUrl": "https://example.com/feed.xml"})

	w := doRequest(t, srv, user, http.MethodDelete, "/api/account", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	if _, err := db.GetUserByID(conn, user.ID); err == nil {
		t.Error("expected user deleted")
	}

	// The deleted user's API key no longer authenticates
	w = doRequest(t, srv, user, http.MethodGet, "/api/podcasts", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after deletion, got %d", w.Code)
	}
}
