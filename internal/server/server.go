// ABOUTME: HTTP API server exposing subscriptions, feed views, marks, and imports
// ABOUTME: chi router with API-key authentication resolving the acting user

package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harper/podkeep/internal/db"
	"github.com/harper/podkeep/internal/directory"
	"github.com/harper/podkeep/internal/fetch"
	"github.com/harper/podkeep/internal/importer"
	"github.com/harper/podkeep/internal/models"
	"github.com/harper/podkeep/internal/store"
)

type contextKey string

const userContextKey contextKey = "user"

// Server is the HTTP API server.
type Server struct {
	dbc          *sql.DB
	store        *store.Store
	orchestrator *importer.Orchestrator
	directory    *directory.Client
	fetchFeed    fetch.PodcastFetcher
	logger       *slog.Logger
	router       chi.Router
}

// New creates a Server with all routes registered.
func New(dbc *sql.DB, st *store.Store, orch *importer.Orchestrator, dir *directory.Client, fetchFeed fetch.PodcastFetcher, logger *slog.Logger) *Server {
	s := &Server{
		dbc:          dbc,
		store:        st,
		orchestrator: orch,
		directory:    dir,
		fetchFeed:    fetchFeed,
		logger:       logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireUser)

		r.Get("/podcasts", s.handleListPodcasts)
		r.Post("/podcasts", s.handleAddPodcast)
		r.Delete("/podcasts/{podcastID}", s.handleUnsubscribe)
		r.Get("/podcasts/{podcastID}/unlistened", s.handleUnlistenedForPodcast)
		r.Post("/podcasts/{podcastID}/listened", s.handleMarkAllForPodcast)
		r.Put("/podcasts/{podcastID}/notifications", s.handleSubscriptionNotifications)

		r.Get("/feed", s.handleUnlistenedFeed)
		r.Post("/feed/listened", s.handleMarkAllForFeed)
		r.Get("/archive", s.handleArchiveFeed)

		r.Post("/episodes/{episodeID}/listened", s.handleMarkListened)
		r.Delete("/episodes/{episodeID}/listened", s.handleMarkUnlistened)
		r.Post("/episodes/listened", s.handleMarkMany)

		r.Post("/imports", s.handleStartImport)
		r.Get("/imports/{jobID}", s.handleGetImport)

		r.Get("/search", s.handleSearch)

		r.Put("/settings/notifications", s.handleNotifyPreference)
		r.Delete("/account", s.handleDeleteAccount)
	})

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requireUser resolves the acting user from the API key header. Requests
// without a valid key fail fast with no partial side effects.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key == "" {
			s.writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		user, err := db.GetUserByAPIKey(s.dbc, key)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				s.writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			s.writeError(w, http.StatusInternalServerError, "failed to resolve user")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
