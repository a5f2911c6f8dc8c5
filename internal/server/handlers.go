// ABOUTME: HTTP handlers for podcast, episode, import, and settings operations
// ABOUTME: Maps store/reconciler results and error taxonomy onto JSON responses

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/importer"
	"github.com/harper/podkeep/internal/models"
	"github.com/harper/podkeep/internal/reconcile"
	"github.com/harper/podkeep/internal/store"
)

// defaultFeedLimit caps feed views so the UI never renders unbounded lists.
const defaultFeedLimit = 100

type podcastJSON struct {
	ID            string    `json:"id"`
	RSSURL        string    `json:"rssUrl"`
	Title         string    `json:"title"`
	Description   *string   `json:"description,omitempty"`
	ImageURL      *string   `json:"imageUrl,omitempty"`
	Author        *string   `json:"author,omitempty"`
	LastFetchedAt time.Time `json:"lastFetchedAt"`
}

type episodeJSON struct {
	ID              string    `json:"id"`
	PodcastID       string    `json:"podcastId"`
	GUID            string    `json:"guid"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	AudioURL        string    `json:"audioUrl"`
	DurationSeconds *int      `json:"durationSeconds,omitempty"`
	PublishedAt     time.Time `json:"publishedAt"`
	Archived        bool      `json:"archived"`
	Listened        *bool     `json:"listened,omitempty"`
}

type importJobJSON struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Total        int        `json:"total"`
	Succeeded    int        `json:"succeeded"`
	FailedTitles []string   `json:"failedTitles"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

func toPodcastJSON(p *models.Podcast) podcastJSON {
	return podcastJSON{
		ID:            p.ID,
		RSSURL:        p.RSSURL,
		Title:         p.Title,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		Author:        p.Author,
		LastFetchedAt: p.LastFetchedAt,
	}
}

func toEpisodeJSON(e *models.Episode) episodeJSON {
	return episodeJSON{
		ID:              e.ID,
		PodcastID:       e.PodcastID,
		GUID:            e.GUID,
		Title:           e.Title,
		Description:     e.Description,
		AudioURL:        e.AudioURL,
		DurationSeconds: e.DurationSeconds,
		PublishedAt:     e.PublishedAt,
		Archived:        e.Archived,
	}
}

func toImportJobJSON(j *models.ImportJob) importJobJSON {
	return importJobJSON{
		ID:           j.ID,
		Status:       string(j.Status),
		Total:        j.Total,
		Succeeded:    j.Succeeded,
		FailedTitles: j.FailedTitles,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

func (s *Server) handleListPodcasts(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	podcasts, err := s.store.SubscribedPodcasts(user.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list podcasts")
		return
	}

	result := make([]podcastJSON, 0, len(podcasts))
	for _, p := range podcasts {
		result = append(result, toPodcastJSON(p))
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleAddPodcast fetches a feed URL, reconciles it, and subscribes the
// user. Malformed URLs are rejected before any fetch attempt; fetch failures
// surface to the caller so the UI can show a message and allow retry.
func (s *Server) handleAddPodcast(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req struct {
		RSSURL string `json:"rssUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	parsed, err := url.Parse(req.RSSURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		s.writeError(w, http.StatusBadRequest, "invalid feed URL")
		return
	}

	feed, err := s.fetchFeed(r.Context(), req.RSSURL)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			s.writeError(w, http.StatusBadGateway, fetchErr.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to fetch feed")
		return
	}

	result, err := reconcile.Reconcile(s.dbc, req.RSSURL, feed, false)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to store feed")
		return
	}
	if err := s.store.Subscribe(user.ID, result.Podcast.ID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}

	s.writeJSON(w, http.StatusCreated, toPodcastJSON(result.Podcast))
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	podcastID := chi.URLParam(r, "podcastID")

	// Unsubscribing without a subscription is a silent no-op
	if err := s.store.Unsubscribe(user.ID, podcastID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlistenedForPodcast(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	podcastID := chi.URLParam(r, "podcastID")

	episodes, err := s.store.UnlistenedForPodcast(user.ID, podcastID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list episodes")
		return
	}

	result := make([]episodeJSON, 0, len(episodes))
	for _, e := range episodes {
		result = append(result, toEpisodeJSON(e))
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMarkAllForPodcast(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	podcastID := chi.URLParam(r, "podcastID")

	err := s.store.MarkAllForPodcast(user.ID, podcastID)
	if errors.Is(err, store.ErrNotSubscribed) {
		s.writeError(w, http.StatusConflict, "not subscribed to podcast")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to mark episodes")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubscriptionNotifications(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	podcastID := chi.URLParam(r, "podcastID")

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.store.SetSubscriptionNotifications(user.ID, podcastID, req.Enabled)
	if errors.Is(err, store.ErrNotSubscribed) {
		s.writeError(w, http.StatusConflict, "not subscribed to podcast")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlistenedFeed(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	limit := queryLimit(r)

	episodes, hasMore, err := s.store.UnlistenedFeed(user.ID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to compute feed")
		return
	}

	result := make([]episodeJSON, 0, len(episodes))
	for _, e := range episodes {
		result = append(result, toEpisodeJSON(e))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"episodes": result,
		"hasMore":  hasMore,
	})
}

func (s *Server) handleMarkAllForFeed(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := s.store.MarkAllForFeed(user.ID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to mark episodes")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveFeed(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	limit := queryLimit(r)

	rows, hasMore, err := s.store.ArchiveFeed(user.ID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to compute archive")
		return
	}

	result := make([]episodeJSON, 0, len(rows))
	for _, row := range rows {
		e := toEpisodeJSON(row.Episode)
		listened := row.Listened
		e.Listened = &listened
		result = append(result, e)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"episodes": result,
		"hasMore":  hasMore,
	})
}

func (s *Server) handleMarkListened(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	episodeID := chi.URLParam(r, "episodeID")

	if err := s.store.MarkListened(user.ID, episodeID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to mark listened")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkUnlistened(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	episodeID := chi.URLParam(r, "episodeID")

	if err := s.store.MarkUnlistened(user.ID, episodeID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to mark unlistened")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkMany(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req struct {
		EpisodeIDs []string `json:"episodeIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.MarkMany(user.ID, req.EpisodeIDs); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to mark episodes")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req struct {
		Feeds           []importer.FeedRef `json:"feeds"`
		MarkAllListened bool               `json:"markAllListened"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Feeds) == 0 {
		s.writeError(w, http.StatusBadRequest, "no feeds to import")
		return
	}

	job, err := s.orchestrator.Submit(user.ID, req.Feeds, req.MarkAllListened)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to start import")
		return
	}
	s.writeJSON(w, http.StatusAccepted, toImportJobJSON(job))
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	jobID := chi.URLParam(r, "jobID")

	job, err := db.GetImportJob(s.dbc, jobID)
	if errors.Is(err, db.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "import job not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to get import job")
		return
	}
	// A job belonging to a different user is indistinguishable from a
	// missing one
	if job.UserID != user.ID {
		s.writeError(w, http.StatusNotFound, "import job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toImportJobJSON(job))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	results, err := s.directory.Search(r.Context(), query, 20)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "directory search failed")
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleNotifyPreference(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := db.SetUserNotifyPreference(s.dbc, user.ID, req.Enabled); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to update preference")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := s.store.DeleteUser(user.ID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultFeedLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultFeedLimit
	}
	return limit
}
