package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moviestream/catalogservice/internal/catalog"
	"moviestream/catalogservice/internal/domain"
)

type CatalogService interface {
	ListPage(ctx context.Context, request domain.PageRequest) (domain.MovieList, error)
	SearchKeyword(ctx context.Context, request domain.KeywordRequest) (domain.MovieList, error)
	LookupByImdbCode(ctx context.Context, imdbCode string) (domain.Movie, error)
	ListGenre(ctx context.Context, request domain.GenreRequest) (domain.MovieList, error)
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

const maxKeywordLength = 200

type Server struct {
	catalog CatalogService
	logger  *slog.Logger
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(catalogService CatalogService, options ...ServerOption) *Server {
	server := &Server{
		catalog: catalogService,
		logger:  slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /movies/page", s.handleListPage)
	mux.HandleFunc("GET /movies/keyword/{keyword}", s.handleSearchKeyword)
	mux.HandleFunc("GET /movies/imdb_code/{imdb_code}", s.handleLookup)
	mux.HandleFunc("GET /movies/genre/{genre}", s.handleListGenre)
	mux.HandleFunc("GET /movies/providers", s.handleProviders)
	mux.HandleFunc("GET /movies/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("GET /movies/cover", s.handleCoverProxy)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "movie-catalog",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListPage(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	page, err := parsePositiveInt(r, "page", 0)
	if err != nil || page == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "page must be a positive number")
		return
	}
	limit, err := parsePositiveInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}

	request := domain.PageRequest{
		Page:      page,
		Limit:     limit,
		SortBy:    domain.NormalizeSortBy(r.URL.Query().Get("sort_by")),
		SortOrder: domain.NormalizeSortOrder(r.URL.Query().Get("order_by")),
		Genre:     strings.TrimSpace(r.URL.Query().Get("genre")),
		NoCache:   parseOptionalBool(r.URL.Query().Get("nocache")),
	}

	list, err := s.catalog.ListPage(r.Context(), request)
	if err != nil {
		s.writeCatalogError(w, r, err, "page listing failed")
		return
	}
	s.logListResult(r, list)
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearchKeyword(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	keyword := strings.TrimSpace(r.PathValue("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "keyword is required")
		return
	}
	if len(keyword) > maxKeywordLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "keyword too long")
		return
	}

	request := domain.KeywordRequest{
		Keyword:   keyword,
		SortBy:    domain.NormalizeSortBy(r.URL.Query().Get("sort_by")),
		SortOrder: domain.NormalizeSortOrder(r.URL.Query().Get("order_by")),
		NoCache:   parseOptionalBool(r.URL.Query().Get("nocache")),
	}

	list, err := s.catalog.SearchKeyword(r.Context(), request)
	if err != nil {
		s.writeCatalogError(w, r, err, "keyword search failed")
		return
	}
	s.logListResult(r, list)
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	imdbCode := strings.TrimSpace(r.PathValue("imdb_code"))
	if imdbCode == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "imdb code is required")
		return
	}

	movie, err := s.catalog.LookupByImdbCode(r.Context(), imdbCode)
	if err != nil {
		s.writeCatalogError(w, r, err, "imdb lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (s *Server) handleListGenre(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	page, err := parsePositiveInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page")
		return
	}

	request := domain.GenreRequest{
		Genre:   strings.TrimSpace(r.PathValue("genre")),
		Page:    page,
		NoCache: parseOptionalBool(r.URL.Query().Get("nocache")),
	}

	list, err := s.catalog.ListGenre(r.Context(), request)
	if err != nil {
		s.writeCatalogError(w, r, err, "genre listing failed")
		return
	}
	s.logListResult(r, list)
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.catalog.Providers(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.catalog.ProviderDiagnostics(),
	})
}

// writeCatalogError maps service errors onto the HTTP taxonomy: validation
// failures are 400, missing data 404, everything else a generic 500.
func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error, logMessage string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidPage),
		errors.Is(err, catalog.ErrInvalidKeyword),
		errors.Is(err, catalog.ErrInvalidImdbCode),
		errors.Is(err, catalog.ErrInvalidGenre):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no movies found")
	default:
		s.logger.Warn(logMessage,
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "request failed")
	}
}

func (s *Server) logListResult(r *http.Request, list domain.MovieList) {
	failed := make([]string, 0, len(list.Providers))
	for _, status := range list.Providers {
		if !status.OK {
			failed = append(failed, status.Name)
		}
	}
	s.logger.Info("catalog request completed",
		slog.String("path", r.URL.Path),
		slog.Int("totalItems", list.TotalItems),
		slog.Int64("elapsedMs", list.ElapsedMS),
		slog.Int("failedProviders", len(failed)),
	)
	if len(failed) > 0 {
		s.logger.Warn("catalog providers partially failed",
			slog.String("path", r.URL.Path),
			slog.Any("failedProviders", failed),
		)
	}
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
