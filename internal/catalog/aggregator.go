package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"moviestream/catalogservice/internal/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 50

	// maxKeywordCandidates caps how many title-search candidates are resolved
	// against the catalog providers per keyword request.
	maxKeywordCandidates = 10

	// maxConcurrentLookups bounds the per-candidate fan-out so one keyword
	// request cannot flood the upstreams.
	maxConcurrentLookups = 8
)

// ListPage returns one merged catalog page. The primary provider decides
// whether the page exists; the secondary only enriches it.
func (s *Service) ListPage(ctx context.Context, request domain.PageRequest) (domain.MovieList, error) {
	if request.Page < 1 {
		return domain.MovieList{}, ErrInvalidPage
	}
	if s.primary == nil {
		return domain.MovieList{}, ErrNoProviders
	}
	if request.Limit <= 0 {
		request.Limit = defaultPageLimit
	}
	if request.Limit > maxPageLimit {
		request.Limit = maxPageLimit
	}
	request.SortBy = domain.NormalizeSortBy(string(request.SortBy))
	request.SortOrder = domain.NormalizeSortOrder(string(request.SortOrder))
	if raw := strings.TrimSpace(request.Genre); raw != "" {
		genre, ok := domain.NormalizeGenre(raw)
		if !ok {
			return domain.MovieList{}, ErrInvalidGenre
		}
		request.Genre = genre
	} else {
		request.Genre = ""
	}

	if s.cacheDisabled || request.NoCache {
		return s.executeListPage(ctx, request)
	}

	startedAt := time.Now()
	key := pageCacheKey(request)
	if cached, ok, needsRefresh := s.cacheLookup(key, startedAt); ok {
		s.markPopular(key, popularRequest{kind: opPage, page: request}, startedAt)
		if needsRefresh {
			s.refreshCacheAsync(key, popularRequest{kind: opPage, page: request})
		}
		cached.ElapsedMS = time.Since(startedAt).Milliseconds()
		return cached, nil
	}

	list, err := s.executeListPage(ctx, request)
	if err != nil {
		return domain.MovieList{}, err
	}
	s.cacheStore(key, list, time.Now())
	s.markPopular(key, popularRequest{kind: opPage, page: request}, time.Now())
	return list, nil
}

func (s *Service) executeListPage(ctx context.Context, request domain.PageRequest) (domain.MovieList, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	startedAt := time.Now()

	var (
		wg                          sync.WaitGroup
		primaryMovies, secondMovies []domain.Movie
		primaryErr, secondErr       error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		primaryMovies, primaryErr = s.fetchGuarded(runCtx, s.primary, func(ctx context.Context) ([]domain.Movie, error) {
			return s.primary.ListPage(ctx, request)
		})
	}()
	if s.secondary != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			secondMovies, secondErr = s.fetchGuarded(runCtx, s.secondary, func(ctx context.Context) ([]domain.Movie, error) {
				return s.secondary.ListPage(ctx, request)
			})
		}()
	}
	wg.Wait()

	if primaryErr != nil {
		return domain.MovieList{}, fmt.Errorf("primary provider: %w", primaryErr)
	}
	if len(primaryMovies) == 0 {
		return domain.MovieList{}, ErrNotFound
	}

	statuses := s.buildStatuses(
		providerOutcome{provider: s.primary, count: len(primaryMovies), err: primaryErr},
		providerOutcome{provider: s.secondary, count: len(secondMovies), err: secondErr},
	)

	movies := primaryMovies
	if secondErr == nil && len(secondMovies) > 0 {
		movies = DedupFirstSeen(Union(primaryMovies, secondMovies))
	} else if secondErr != nil {
		slog.Warn("secondary provider skipped for page listing",
			slog.Int("page", request.Page),
			slog.String("error", secondErr.Error()),
		)
	}

	SortMovies(movies, request.SortBy, request.SortOrder)

	return domain.MovieList{
		Movies:     movies,
		Providers:  statuses,
		TotalItems: len(movies),
		ElapsedMS:  time.Since(startedAt).Milliseconds(),
		SortBy:     request.SortBy,
		SortOrder:  request.SortOrder,
	}, nil
}

// SearchKeyword resolves a keyword to imdb candidates through the title
// searcher and fans the candidates out to both providers with bounded
// concurrency. Individual candidate failures are skipped; the request only
// fails as a whole when the searcher itself is unavailable.
func (s *Service) SearchKeyword(ctx context.Context, request domain.KeywordRequest) (domain.MovieList, error) {
	keyword := strings.TrimSpace(request.Keyword)
	if keyword == "" {
		return domain.MovieList{}, ErrInvalidKeyword
	}
	if s.primary == nil {
		return domain.MovieList{}, ErrNoProviders
	}
	if s.searcher == nil || !s.searcher.Enabled() {
		return domain.MovieList{}, fmt.Errorf("title search is not configured")
	}
	request.Keyword = keyword
	request.SortBy = domain.NormalizeSortBy(string(request.SortBy))
	request.SortOrder = domain.NormalizeSortOrder(string(request.SortOrder))

	if s.cacheDisabled || request.NoCache {
		return s.executeSearchKeyword(ctx, request)
	}

	startedAt := time.Now()
	key := keywordCacheKey(request)
	if cached, ok, needsRefresh := s.cacheLookup(key, startedAt); ok {
		s.markPopular(key, popularRequest{kind: opKeyword, keyword: request}, startedAt)
		if needsRefresh {
			s.refreshCacheAsync(key, popularRequest{kind: opKeyword, keyword: request})
		}
		cached.ElapsedMS = time.Since(startedAt).Milliseconds()
		return cached, nil
	}

	list, err := s.executeSearchKeyword(ctx, request)
	if err != nil {
		return domain.MovieList{}, err
	}
	s.cacheStore(key, list, time.Now())
	s.markPopular(key, popularRequest{kind: opKeyword, keyword: request}, time.Now())
	return list, nil
}

func (s *Service) executeSearchKeyword(ctx context.Context, request domain.KeywordRequest) (domain.MovieList, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	startedAt := time.Now()

	candidates, err := s.searcher.SearchTitles(runCtx, request.Keyword, 1)
	if err != nil {
		return domain.MovieList{}, fmt.Errorf("title search: %w", err)
	}
	if len(candidates) == 0 {
		return domain.MovieList{}, ErrNotFound
	}
	if len(candidates) > maxKeywordCandidates {
		candidates = candidates[:maxKeywordCandidates]
	}

	var (
		mu            sync.Mutex
		primaryMovies []domain.Movie
		secondMovies  []domain.Movie
		primaryErr    error
		secondErr     error
		wg            sync.WaitGroup
	)
	sem := semaphore.NewWeighted(maxConcurrentLookups)

	for _, candidate := range candidates {
		wg.Add(1)
		go func(match domain.TitleMatch) {
			defer wg.Done()
			if err := sem.Acquire(runCtx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			movie, found, err := s.lookupGuarded(runCtx, s.primary, match.ImdbCode)
			mu.Lock()
			if err != nil && primaryErr == nil {
				primaryErr = err
			}
			if err == nil && found {
				primaryMovies = append(primaryMovies, movie)
			}
			mu.Unlock()

			if s.secondary == nil {
				return
			}
			movie, found, err = s.lookupGuarded(runCtx, s.secondary, match.ImdbCode)
			mu.Lock()
			if err != nil && secondErr == nil {
				secondErr = err
			}
			if err == nil && found {
				secondMovies = append(secondMovies, movie)
			}
			mu.Unlock()
		}(candidate)
	}
	wg.Wait()

	// Per-candidate failures are tolerated, but the keyword flow answers
	// not-found when the primary never produced a record.
	if len(primaryMovies) == 0 {
		return domain.MovieList{}, ErrNotFound
	}

	statuses := s.buildStatuses(
		providerOutcome{provider: s.primary, count: len(primaryMovies), err: primaryErr},
		providerOutcome{provider: s.secondary, count: len(secondMovies), err: secondErr},
	)

	// Primary records go first so an equal-seed duplicate resolves to the
	// primary provider.
	movies := DedupMaxSeeds(Union(primaryMovies, secondMovies))
	SortMovies(movies, request.SortBy, request.SortOrder)

	return domain.MovieList{
		Movies:     movies,
		Providers:  statuses,
		TotalItems: len(movies),
		ElapsedMS:  time.Since(startedAt).Milliseconds(),
		SortBy:     request.SortBy,
		SortOrder:  request.SortOrder,
	}, nil
}

// LookupByImdbCode returns the single best record for an imdb code. When both
// providers know the movie, the one with the higher maximum seed count wins;
// equal counts resolve to the primary.
func (s *Service) LookupByImdbCode(ctx context.Context, rawCode string) (domain.Movie, error) {
	code, ok := domain.NormalizeImdbCode(rawCode)
	if !ok {
		return domain.Movie{}, ErrInvalidImdbCode
	}
	if s.primary == nil {
		return domain.Movie{}, ErrNoProviders
	}

	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	var (
		wg                        sync.WaitGroup
		primaryMovie, secondMovie domain.Movie
		primaryFound, secondFound bool
		primaryErr, secondErr     error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		primaryMovie, primaryFound, primaryErr = s.lookupGuarded(runCtx, s.primary, code)
	}()
	if s.secondary != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			secondMovie, secondFound, secondErr = s.lookupGuarded(runCtx, s.secondary, code)
		}()
	}
	wg.Wait()

	if primaryErr != nil {
		return domain.Movie{}, fmt.Errorf("primary provider: %w", primaryErr)
	}
	if !primaryFound {
		return domain.Movie{}, ErrNotFound
	}
	if secondErr != nil {
		slog.Warn("secondary provider skipped for lookup",
			slog.String("imdbCode", code),
			slog.String("error", secondErr.Error()),
		)
	}

	best := primaryMovie
	if secondFound && secondMovie.MaxSeeds() > primaryMovie.MaxSeeds() {
		best = secondMovie
	}

	return s.enrichDetails(runCtx, best), nil
}

// enrichDetails layers the primary's extended record over the chosen movie.
// Enrichment is best effort: a failed or empty detail fetch leaves the movie
// as is.
func (s *Service) enrichDetails(ctx context.Context, movie domain.Movie) domain.Movie {
	fetcher, ok := s.primary.(DetailFetcher)
	if !ok {
		return movie
	}

	details, found, err := fetcher.Details(ctx, movie.ImdbCode)
	if err != nil || !found {
		if err != nil {
			slog.Warn("detail enrichment failed",
				slog.String("imdbCode", movie.ImdbCode),
				slog.String("error", err.Error()),
			)
		}
		return movie
	}

	if movie.DescriptionFull == "" {
		movie.DescriptionFull = details.DescriptionFull
	}
	if movie.TrailerCode == "" {
		movie.TrailerCode = details.TrailerCode
	}
	if movie.Summary == "" {
		movie.Summary = details.Summary
	}
	if movie.CoverImage == "" {
		movie.CoverImage = details.CoverImage
	}
	if len(movie.Cast) == 0 {
		movie.Cast = details.Cast
	}
	if len(movie.Screenshots) == 0 {
		movie.Screenshots = details.Screenshots
	}
	return movie
}

// ListGenre serves the genre flow from the secondary provider alone. A genre
// the secondary has no movies for is an empty list, not an error.
func (s *Service) ListGenre(ctx context.Context, request domain.GenreRequest) (domain.MovieList, error) {
	genre, ok := domain.NormalizeGenre(request.Genre)
	if !ok {
		return domain.MovieList{}, ErrInvalidGenre
	}
	request.Genre = genre
	if request.Page < 1 {
		request.Page = 1
	}

	lister, ok := s.secondary.(GenreLister)
	if s.secondary == nil || !ok {
		return domain.MovieList{}, ErrNoProviders
	}

	if s.cacheDisabled || request.NoCache {
		return s.executeListGenre(ctx, lister, request)
	}

	startedAt := time.Now()
	key := genreCacheKey(request)
	if cached, ok, needsRefresh := s.cacheLookup(key, startedAt); ok {
		s.markPopular(key, popularRequest{kind: opGenre, genre: request}, startedAt)
		if needsRefresh {
			s.refreshCacheAsync(key, popularRequest{kind: opGenre, genre: request})
		}
		cached.ElapsedMS = time.Since(startedAt).Milliseconds()
		return cached, nil
	}

	list, err := s.executeListGenre(ctx, lister, request)
	if err != nil {
		return domain.MovieList{}, err
	}
	s.cacheStore(key, list, time.Now())
	s.markPopular(key, popularRequest{kind: opGenre, genre: request}, time.Now())
	return list, nil
}

func (s *Service) executeListGenre(ctx context.Context, lister GenreLister, request domain.GenreRequest) (domain.MovieList, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	startedAt := time.Now()

	movies, err := s.fetchGuarded(runCtx, s.secondary, func(ctx context.Context) ([]domain.Movie, error) {
		return lister.ListGenre(ctx, request)
	})
	if err != nil {
		return domain.MovieList{}, fmt.Errorf("secondary provider: %w", err)
	}

	movies = DedupFirstSeen(movies)
	SortMovies(movies, domain.SortByRating, domain.SortOrderDesc)

	return domain.MovieList{
		Movies:     movies,
		Providers:  s.buildStatuses(providerOutcome{provider: s.secondary, count: len(movies), err: nil}),
		TotalItems: len(movies),
		ElapsedMS:  time.Since(startedAt).Milliseconds(),
		SortBy:     domain.SortByRating,
		SortOrder:  domain.SortOrderDesc,
	}, nil
}

func (s *Service) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// fetchGuarded wraps a list fetch with circuit breaker bookkeeping. Each call
// hits the upstream at most once.
func (s *Service) fetchGuarded(ctx context.Context, provider Provider, fetch func(context.Context) ([]domain.Movie, error)) ([]domain.Movie, error) {
	name := provider.Name()
	now := time.Now()
	if blocked, until, lastErr := s.isProviderBlocked(name, now); blocked {
		return nil, fmt.Errorf("provider temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr)
	}

	started := time.Now()
	movies, err := fetch(ctx)
	s.recordProviderResult(name, err, time.Since(started), time.Now())
	return movies, err
}

func (s *Service) lookupGuarded(ctx context.Context, provider Provider, imdbCode string) (domain.Movie, bool, error) {
	name := provider.Name()
	now := time.Now()
	if blocked, until, lastErr := s.isProviderBlocked(name, now); blocked {
		return domain.Movie{}, false, fmt.Errorf("provider temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr)
	}

	started := time.Now()
	movie, found, err := provider.GetByImdbCode(ctx, imdbCode)
	s.recordProviderResult(name, err, time.Since(started), time.Now())
	return movie, found, err
}

type providerOutcome struct {
	provider Provider
	count    int
	err      error
}

func (s *Service) buildStatuses(outcomes ...providerOutcome) []domain.ProviderStatus {
	statuses := make([]domain.ProviderStatus, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.provider == nil {
			continue
		}
		status := domain.ProviderStatus{
			Name:  outcome.provider.Name(),
			OK:    outcome.err == nil,
			Count: outcome.count,
		}
		if outcome.err != nil {
			status.Error = outcome.err.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}
