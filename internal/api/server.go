package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/loreworks/chanlore/internal/indexer"
	"github.com/loreworks/chanlore/internal/store"
)

// Searcher answers similarity queries.
type Searcher interface {
	Search(ctx context.Context, channelID, query string, topK int) ([]store.SearchResult, error)
}

// Indexer runs one channel indexing pass.
type Indexer interface {
	IndexChannel(ctx context.Context, channelRef, oldest string) (*indexer.Result, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	searcher Searcher
	indexer  Indexer
}

func NewServer(port int, searcher Searcher, ix Indexer) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		searcher: searcher,
		indexer:  ix,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/chanlore/status", s.status)
	router.Post("/api/v1/chanlore/search", s.search)
	router.Post("/api/v1/chanlore/index", s.index)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "chanlore",
		"status":  "ready",
	})
}

type searchRequest struct {
	ChannelID string `json:"channel_id,omitempty"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
}

type searchResponse struct {
	Results []store.SearchResult `json:"results"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := s.searcher.Search(r.Context(), req.ChannelID, req.Query, req.TopK)
	if err != nil {
		slog.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

type indexRequest struct {
	Channel string `json:"channel"`
	Oldest  string `json:"oldest,omitempty"`
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Channel == "" {
		writeError(w, http.StatusBadRequest, "channel is required")
		return
	}

	result, err := s.indexer.IndexChannel(r.Context(), req.Channel, req.Oldest)
	if err != nil {
		slog.Error("index run failed", "channel", req.Channel, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
