package catalog

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/metrics"
)

const (
	defaultCacheTTL          = 10 * time.Minute
	defaultStaleTTL          = 30 * time.Minute
	defaultWarmInterval      = 5 * time.Minute
	defaultWarmTopRequests   = 8
	defaultCacheMaxEntries   = 300
	defaultPopularMaxEntries = 150

	// Bounded so warm refreshes never crowd out live traffic at the upstreams.
	maxConcurrentWarmRefreshes = 2
)

const (
	opPage    = "page"
	opKeyword = "keyword"
	opGenre   = "genre"
)

type warmerConfig struct {
	cacheTTL          time.Duration
	staleTTL          time.Duration
	warmInterval      time.Duration
	warmTopRequests   int
	cacheMaxEntries   int
	popularMaxEntries int
}

func defaultWarmerConfig() warmerConfig {
	return warmerConfig{
		cacheTTL:          defaultCacheTTL,
		staleTTL:          defaultStaleTTL,
		warmInterval:      defaultWarmInterval,
		warmTopRequests:   defaultWarmTopRequests,
		cacheMaxEntries:   defaultCacheMaxEntries,
		popularMaxEntries: defaultPopularMaxEntries,
	}
}

type cachedMovieList struct {
	list        domain.MovieList
	updatedAt   time.Time
	expiresAt   time.Time
	staleUntil  time.Time
	refreshing  bool
	refreshOnce sync.Once // one refresh per stale period
}

// popularRequest remembers a cacheable request so the warmer can replay it.
// kind selects which of the embedded requests is live.
type popularRequest struct {
	kind    string
	page    domain.PageRequest
	keyword domain.KeywordRequest
	genre   domain.GenreRequest

	hits     int
	lastSeen time.Time
	lastWarm time.Time
}

type warmSpec struct {
	key     string
	request popularRequest
}

func (s *Service) runWarmer(ctx context.Context) {
	ticker := time.NewTicker(s.warmerCfg.warmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runWarmCycle(ctx)
		}
	}
}

func (s *Service) runWarmCycle(ctx context.Context) {
	now := time.Now()
	specs := s.collectWarmSpecs(now)
	if len(specs) == 0 {
		return
	}

	sem := semaphore.NewWeighted(maxConcurrentWarmRefreshes)
	var wg sync.WaitGroup

	for _, spec := range specs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		wg.Add(1)
		go func(spec warmSpec) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				s.cacheClearRefreshing(spec.key)
				return
			}
			defer sem.Release(1)

			refreshCtx, cancel := context.WithTimeout(ctx, s.timeout+2*time.Second)
			defer cancel()

			list, err := s.executeForRefresh(refreshCtx, spec.request)
			if err != nil {
				s.cacheClearRefreshing(spec.key)
				return
			}
			s.cacheStore(spec.key, list, time.Now())
		}(spec)
	}

	wg.Wait()
}

func (s *Service) refreshCacheAsync(key string, request popularRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+2*time.Second)
		defer cancel()
		list, err := s.executeForRefresh(ctx, request)
		if err != nil {
			s.cacheClearRefreshing(key)
			return
		}
		s.cacheStore(key, list, time.Now())
	}()
}

func (s *Service) executeForRefresh(ctx context.Context, request popularRequest) (domain.MovieList, error) {
	switch request.kind {
	case opKeyword:
		return s.executeSearchKeyword(ctx, request.keyword)
	case opGenre:
		lister, ok := s.secondary.(GenreLister)
		if !ok {
			return domain.MovieList{}, ErrNoProviders
		}
		return s.executeListGenre(ctx, lister, request.genre)
	default:
		return s.executeListPage(ctx, request.page)
	}
}

func (s *Service) collectWarmSpecs(now time.Time) []warmSpec {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if len(s.popular) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s.popular))
	for key := range s.popular {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		left := s.popular[keys[i]]
		right := s.popular[keys[j]]
		if left.hits != right.hits {
			return left.hits > right.hits
		}
		return left.lastSeen.After(right.lastSeen)
	})

	limit := s.warmerCfg.warmTopRequests
	if limit <= 0 {
		limit = defaultWarmTopRequests
	}
	if len(keys) < limit {
		limit = len(keys)
	}

	specs := make([]warmSpec, 0, limit)
	for _, key := range keys[:limit] {
		pop := s.popular[key]
		if pop == nil {
			continue
		}
		if !pop.lastWarm.IsZero() && now.Sub(pop.lastWarm) < s.warmerCfg.warmInterval/2 {
			continue
		}
		if entry, ok := s.cache[key]; ok && now.Before(entry.expiresAt) {
			continue
		}
		pop.lastWarm = now
		if entry := s.cache[key]; entry != nil {
			entry.refreshing = true
		}
		specs = append(specs, warmSpec{key: key, request: *pop})
	}
	return specs
}

// cacheLookup returns a cached list plus whether the caller should kick off a
// background refresh (stale-while-revalidate).
func (s *Service) cacheLookup(key string, now time.Time) (domain.MovieList, bool, bool) {
	if s.redisCache != nil {
		list, found, err := s.redisCache.Get(context.Background(), key)
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			// Keep a local copy so the warmer can reason about freshness
			// without re-querying Redis.
			s.cacheStoreMemoryOnly(key, list, now)
			return list, true, false
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.MovieList{}, false, false
	}

	if now.Before(entry.expiresAt) {
		metrics.CacheHitsTotal.Inc()
		return cloneMovieList(entry.list), true, false
	}

	if now.Before(entry.staleUntil) {
		metrics.CacheHitsTotal.Inc()
		needsRefresh := false
		entry.refreshOnce.Do(func() {
			needsRefresh = true
			entry.refreshing = true
		})
		return cloneMovieList(entry.list), true, needsRefresh
	}

	metrics.CacheMissesTotal.Inc()
	delete(s.cache, key)
	delete(s.popular, key)
	return domain.MovieList{}, false, false
}

func (s *Service) cacheStore(key string, list domain.MovieList, now time.Time) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.warmerCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	if s.redisCache != nil {
		_ = s.redisCache.Set(context.Background(), key, list, cacheTTL)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedMovieList{
		list:       cloneMovieList(list),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheStoreMemoryOnly(key string, list domain.MovieList, now time.Time) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.warmerCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedMovieList{
		list:       cloneMovieList(list),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheClearRefreshing(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if entry := s.cache[key]; entry != nil {
		entry.refreshing = false
	}
}

func (s *Service) markPopular(key string, request popularRequest, now time.Time) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	pop, ok := s.popular[key]
	if !ok {
		request.hits = 1
		request.lastSeen = now
		s.popular[key] = &request
	} else {
		hits := pop.hits + 1
		lastWarm := pop.lastWarm
		*pop = request
		pop.hits = hits
		pop.lastSeen = now
		pop.lastWarm = lastWarm
	}

	limit := s.warmerCfg.popularMaxEntries
	if limit <= 0 {
		limit = defaultPopularMaxEntries
	}
	if len(s.popular) <= limit {
		return
	}

	// Drop least popular, oldest first.
	type pair struct {
		key   string
		value *popularRequest
	}
	items := make([]pair, 0, len(s.popular))
	for popKey, value := range s.popular {
		items = append(items, pair{key: popKey, value: value})
	}
	sort.Slice(items, func(i, j int) bool {
		left := items[i].value
		right := items[j].value
		if left.hits != right.hits {
			return left.hits < right.hits
		}
		return left.lastSeen.Before(right.lastSeen)
	})
	for i := 0; i < len(items)-limit; i++ {
		delete(s.popular, items[i].key)
	}
}

func (s *Service) trimCacheLocked(now time.Time) {
	maxEntries := s.warmerCfg.cacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}

	for key, entry := range s.cache {
		if now.After(entry.staleUntil) {
			delete(s.cache, key)
		}
	}

	if len(s.cache) <= maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedMovieList
	}
	items := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-maxEntries; i++ {
		delete(s.cache, items[i].key)
	}
}

func cloneMovieList(list domain.MovieList) domain.MovieList {
	cloned := list
	if list.Movies != nil {
		cloned.Movies = make([]domain.Movie, len(list.Movies))
		for i, movie := range list.Movies {
			copied := movie
			copied.Genres = append([]string(nil), movie.Genres...)
			copied.Torrents = append([]domain.Torrent(nil), movie.Torrents...)
			copied.Cast = append([]domain.CastMember(nil), movie.Cast...)
			copied.Screenshots = append([]string(nil), movie.Screenshots...)
			cloned.Movies[i] = copied
		}
	}
	if list.Providers != nil {
		cloned.Providers = append([]domain.ProviderStatus(nil), list.Providers...)
	}
	return cloned
}

func pageCacheKey(request domain.PageRequest) string {
	return strings.Join([]string{
		"op=" + opPage,
		"p=" + strconv.Itoa(request.Page),
		"l=" + strconv.Itoa(request.Limit),
		"sb=" + string(request.SortBy),
		"so=" + string(request.SortOrder),
		"g=" + request.Genre,
	}, "|")
}

func keywordCacheKey(request domain.KeywordRequest) string {
	return strings.Join([]string{
		"op=" + opKeyword,
		"k=" + strings.ToLower(strings.TrimSpace(request.Keyword)),
		"sb=" + string(request.SortBy),
		"so=" + string(request.SortOrder),
	}, "|")
}

func genreCacheKey(request domain.GenreRequest) string {
	return strings.Join([]string{
		"op=" + opGenre,
		"g=" + request.Genre,
		"p=" + strconv.Itoa(request.Page),
	}, "|")
}
