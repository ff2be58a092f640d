// Package api exposes the HTTP interface for the claim search service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veritium/crawler/internal/embed"
	"github.com/veritium/crawler/internal/store/postgres"
	"github.com/veritium/crawler/internal/store/qdrant"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

// SearchIndex is the vector-index surface the API needs.
type SearchIndex interface {
	Search(ctx context.Context, vector []float32, limit uint64) ([]qdrant.Hit, error)
}

// ClaimFinder looks stored claims up by their natural key.
type ClaimFinder interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (postgres.StoredClaim, error)
}

// Server wires HTTP handlers to the embedder, vector index, and store.
type Server struct {
	router   chi.Router
	embedder embed.Embedder
	index    SearchIndex
	claims   ClaimFinder
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(embedder embed.Embedder, index SearchIndex, claims ClaimFinder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		embedder: embedder,
		index:    index,
		claims:   claims,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.search)
		r.Get("/claims", s.claimBySourceURL)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

type searchResult struct {
	ID        uint64  `json:"id"`
	Score     float32 `json:"score"`
	Text      string  `json:"text"`
	Verdict   string  `json:"verdict"`
	SourceURL string  `json:"source_url"`
	Date      string  `json:"date,omitempty"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	vector, err := s.embedder.Embed(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, embed.ErrBlankInput) {
			s.writeError(w, http.StatusBadRequest, "text is required")
			return
		}
		s.logger.Error("embedding query failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "embedding provider unavailable")
		return
	}

	hits, err := s.index.Search(r.Context(), vector, uint64(topK))
	if err != nil {
		s.logger.Error("vector search failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "vector index unavailable")
		return
	}

	results := make([]searchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, searchResult{
			ID:        hit.ID,
			Score:     hit.Score,
			Text:      hit.Payload["text"],
			Verdict:   hit.Payload["verdict"],
			SourceURL: hit.Payload["source_url"],
			Date:      hit.Payload["date"],
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type claimResponse struct {
	ID          int64  `json:"id"`
	ClaimText   string `json:"claim_text"`
	Verdict     string `json:"verdict"`
	SourceURL   string `json:"source_url"`
	PublishedAt string `json:"published_at,omitempty"`
}

func (s *Server) claimBySourceURL(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("source_url")
	if sourceURL == "" {
		s.writeError(w, http.StatusBadRequest, "source_url query parameter is required")
		return
	}
	row, err := s.claims.FindBySourceURL(r.Context(), sourceURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.writeError(w, http.StatusNotFound, "claim not found")
			return
		}
		s.logger.Error("claim lookup failed", zap.String("source_url", sourceURL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "claim lookup failed")
		return
	}
	resp := claimResponse{
		ID:        row.ID,
		ClaimText: row.ClaimText,
		Verdict:   row.Verdict,
		SourceURL: row.SourceURL,
	}
	if row.PublishedAt != nil {
		resp.PublishedAt = row.PublishedAt.Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
