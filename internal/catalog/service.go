// Package catalog merges the primary and secondary movie providers into one
// deduplicated, sorted catalog and backs the HTTP listing, keyword, lookup
// and genre flows.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"moviestream/catalogservice/internal/domain"
)

var (
	ErrInvalidPage     = errors.New("page must be >= 1")
	ErrInvalidKeyword  = errors.New("keyword is required")
	ErrInvalidImdbCode = errors.New("imdb code is required")
	ErrInvalidGenre    = errors.New("unknown genre")
	ErrNotFound        = errors.New("no movies found")
	ErrNoProviders     = errors.New("no catalog providers configured")
)

// Provider is a movie catalog upstream. An empty slice with a nil error means
// the upstream answered but has no data for the request; an error means the
// upstream was unavailable.
type Provider interface {
	Name() string
	Info() domain.ProviderInfo
	ListPage(ctx context.Context, request domain.PageRequest) ([]domain.Movie, error)
	GetByImdbCode(ctx context.Context, imdbCode string) (domain.Movie, bool, error)
}

// GenreLister is the optional interface behind the genre browsing flow.
type GenreLister interface {
	ListGenre(ctx context.Context, request domain.GenreRequest) ([]domain.Movie, error)
}

// DetailFetcher is an optional interface for enriching a lookup result with
// cast and extended descriptions.
type DetailFetcher interface {
	Details(ctx context.Context, imdbCode string) (domain.Movie, bool, error)
}

// TitleSearcher resolves free-text keywords into imdb candidates.
type TitleSearcher interface {
	Enabled() bool
	SearchTitles(ctx context.Context, keyword string, page int) ([]domain.TitleMatch, error)
}

type Service struct {
	primary   Provider
	secondary Provider
	searcher  TitleSearcher
	timeout   time.Duration

	cacheDisabled bool
	cacheMu       sync.Mutex
	cache         map[string]*cachedMovieList
	popular       map[string]*popularRequest
	warmerCfg     warmerConfig
	warmerRun     atomic.Bool
	redisCache    *RedisCacheBackend

	healthMu sync.Mutex
	health   map[string]*providerHealth
}

type ServiceOption func(*Service)

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.warmerCfg.cacheTTL = ttl
			s.warmerCfg.staleTTL = ttl * 3
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithTitleSearcher(searcher TitleSearcher) ServiceOption {
	return func(s *Service) {
		s.searcher = searcher
	}
}

// NewService wires the two catalog providers. primary is required; secondary
// and the title searcher are optional and their flows degrade when absent.
func NewService(primary, secondary Provider, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	svc := &Service{
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
		cache:     make(map[string]*cachedMovieList),
		popular:   make(map[string]*popularRequest),
		warmerCfg: defaultWarmerConfig(),
		health:    make(map[string]*providerHealth),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// StartBackground launches the cache warmer. Safe to call more than once.
func (s *Service) StartBackground(ctx context.Context) {
	if s.warmerRun.CompareAndSwap(false, true) {
		go s.runWarmer(ctx)
	}
}

func (s *Service) Providers() []domain.ProviderInfo {
	items := make([]domain.ProviderInfo, 0, 2)
	for _, provider := range []Provider{s.primary, s.secondary} {
		if provider == nil {
			continue
		}
		info := provider.Info()
		if info.Name == "" {
			info.Name = provider.Name()
		}
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
