// Package popcorn implements the secondary catalog provider backed by a
// popcorn-time style API. Its payloads are looser than the primary's:
// numbers arrive as strings, ratings as percentages and torrents as nested
// maps keyed by language and quality.
package popcorn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"moviestream/catalogservice/internal/domain"
)

const (
	defaultEndpoint  = "https://movies-v2.api-fetch.sh"
	defaultUserAgent = "movie-catalog/1.0"

	maxPayloadBytes = 4 * 1024 * 1024
)

type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

type Provider struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

type apiMovie struct {
	ID       string                          `json:"_id"`
	ImdbID   string                          `json:"imdb_id"`
	Title    string                          `json:"title"`
	Year     string                          `json:"year"`
	Synopsis string                          `json:"synopsis"`
	Runtime  string                          `json:"runtime"`
	Genres   []string                        `json:"genres"`
	Images   apiImages                       `json:"images"`
	Rating   apiRating                       `json:"rating"`
	Torrents map[string]map[string]apiTorrent `json:"torrents"`
}

type apiImages struct {
	Poster string `json:"poster"`
	Fanart string `json:"fanart"`
}

type apiRating struct {
	Percentage float64 `json:"percentage"`
	Votes      int     `json:"votes"`
}

type apiTorrent struct {
	URL      string `json:"url"`
	Seed     int    `json:"seed"`
	Peer     int    `json:"peer"`
	Filesize int64  `json:"filesize"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Provider{
		client:    client,
		endpoint:  endpoint,
		userAgent: userAgent,
	}
}

func (p *Provider) Name() string {
	return "popcorn"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Popcorn",
		Kind:    "secondary",
		Enabled: true,
	}
}

func (p *Provider) ListPage(ctx context.Context, request domain.PageRequest) ([]domain.Movie, error) {
	query := url.Values{}
	query.Set("sort", sortParam(request.SortBy))
	query.Set("order", orderParam(request.SortOrder))
	if request.Genre != "" {
		query.Set("genre", request.Genre)
	}
	return p.fetchList(ctx, request.Page, query)
}

// SearchTitle filters the first catalog page by keyword upstream.
func (p *Provider) SearchTitle(ctx context.Context, term string) ([]domain.Movie, error) {
	query := url.Values{}
	query.Set("sort", "rating")
	query.Set("order", "-1")
	query.Set("keywords", strings.TrimSpace(term))
	return p.fetchList(ctx, 1, query)
}

// ListGenre serves the genre browsing flow, which this provider alone backs.
func (p *Provider) ListGenre(ctx context.Context, request domain.GenreRequest) ([]domain.Movie, error) {
	page := request.Page
	if page <= 0 {
		page = 1
	}
	query := url.Values{}
	query.Set("sort", "rating")
	query.Set("order", "-1")
	query.Set("genre", request.Genre)
	return p.fetchList(ctx, page, query)
}

func (p *Provider) GetByImdbCode(ctx context.Context, imdbCode string) (domain.Movie, bool, error) {
	payload, status, err := p.fetch(ctx, "/movie/"+url.PathEscape(imdbCode), nil)
	if err != nil {
		return domain.Movie{}, false, err
	}
	if status == http.StatusNotFound {
		return domain.Movie{}, false, nil
	}

	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" || trimmed == "false" {
		return domain.Movie{}, false, nil
	}

	var item apiMovie
	if err := json.Unmarshal(payload, &item); err != nil {
		return domain.Movie{}, false, fmt.Errorf("decode movie payload: %w", err)
	}
	movie, ok := p.toMovie(item)
	if !ok {
		return domain.Movie{}, false, nil
	}
	return movie, true, nil
}

func (p *Provider) fetchList(ctx context.Context, page int, query url.Values) ([]domain.Movie, error) {
	if page <= 0 {
		page = 1
	}
	payload, status, err := p.fetch(ctx, "/movies/"+strconv.Itoa(page), query)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return []domain.Movie{}, nil
	}

	items, err := parseMovieArray(payload)
	if err != nil {
		return nil, err
	}

	movies := make([]domain.Movie, 0, len(items))
	for _, item := range items {
		if movie, ok := p.toMovie(item); ok {
			movies = append(movies, movie)
		}
	}
	return movies, nil
}

// fetch issues exactly one GET per call.
func (p *Provider) fetch(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	uri := p.endpoint + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, resp.StatusCode, fmt.Errorf("provider HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return payload, resp.StatusCode, nil
}

// parseMovieArray tolerates the upstream's habit of answering false or null
// instead of an empty array when a page is past the end.
func parseMovieArray(payload []byte) ([]apiMovie, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" || trimmed == "false" {
		return []apiMovie{}, nil
	}

	var items []apiMovie
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode list payload: %w", err)
	}
	return items, nil
}

func (p *Provider) toMovie(item apiMovie) (domain.Movie, bool) {
	imdbCode := strings.ToLower(strings.TrimSpace(item.ImdbID))
	if imdbCode == "" {
		imdbCode = strings.ToLower(strings.TrimSpace(item.ID))
	}
	title := strings.TrimSpace(item.Title)
	if imdbCode == "" || title == "" {
		return domain.Movie{}, false
	}

	return domain.Movie{
		ImdbCode:   imdbCode,
		Title:      title,
		Year:       atoi(item.Year),
		Runtime:    atoi(item.Runtime),
		Rating:     item.Rating.Percentage / 10,
		Genres:     item.Genres,
		Summary:    strings.TrimSpace(item.Synopsis),
		CoverImage: item.Images.Poster,
		Torrents:   flattenTorrents(item.Torrents),
		Source:     p.Name(),
	}, true
}

// flattenTorrents walks the language and quality maps in a fixed order so the
// same payload always yields the same torrent slice.
func flattenTorrents(nested map[string]map[string]apiTorrent) []domain.Torrent {
	if len(nested) == 0 {
		return nil
	}

	languages := make([]string, 0, len(nested))
	for lang := range nested {
		languages = append(languages, lang)
	}
	sort.Slice(languages, func(i, j int) bool {
		// English first, then alphabetical.
		if languages[i] == "en" {
			return true
		}
		if languages[j] == "en" {
			return false
		}
		return languages[i] < languages[j]
	})

	var torrents []domain.Torrent
	for _, lang := range languages {
		byQuality := nested[lang]
		qualities := make([]string, 0, len(byQuality))
		for quality := range byQuality {
			qualities = append(qualities, quality)
		}
		sort.Strings(qualities)
		for _, quality := range qualities {
			t := byQuality[quality]
			torrents = append(torrents, domain.Torrent{
				Quality:   quality,
				Seeds:     t.Seed,
				Peers:     t.Peer,
				URL:       t.URL,
				SizeBytes: t.Filesize,
			})
		}
	}
	return torrents
}

func atoi(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

func sortParam(sortBy domain.SortBy) string {
	switch sortBy {
	case domain.SortByTitle:
		return "title"
	case domain.SortByYear:
		return "year"
	default:
		return "rating"
	}
}

func orderParam(order domain.SortOrder) string {
	if order == domain.SortOrderAsc {
		return "1"
	}
	return "-1"
}
