// Package yts implements the primary catalog provider backed by the
// YTS-style movie list API.
package yts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/providers/flaresolverr"
)

const (
	defaultEndpoint  = "https://yts.mx"
	defaultUserAgent = "movie-catalog/1.0"

	maxPayloadBytes = 4 * 1024 * 1024
)

type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
	Solver    *flaresolverr.Client
}

type Provider struct {
	client    *http.Client
	endpoint  string
	userAgent string
	solver    *flaresolverr.Client
}

type listResponse struct {
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Data          struct {
		MovieCount int        `json:"movie_count"`
		Limit      int        `json:"limit"`
		PageNumber int        `json:"page_number"`
		Movies     []apiMovie `json:"movies"`
	} `json:"data"`
}

type detailsResponse struct {
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Data          struct {
		Movie apiMovie `json:"movie"`
	} `json:"data"`
}

type apiMovie struct {
	ID               int          `json:"id"`
	ImdbCode         string       `json:"imdb_code"`
	Title            string       `json:"title"`
	TitleEnglish     string       `json:"title_english"`
	Year             int          `json:"year"`
	Rating           float64      `json:"rating"`
	Runtime          int          `json:"runtime"`
	Genres           []string     `json:"genres"`
	Summary          string       `json:"summary"`
	DescriptionFull  string       `json:"description_full"`
	Synopsis         string       `json:"synopsis"`
	YTTrailerCode    string       `json:"yt_trailer_code"`
	Language         string       `json:"language"`
	MediumCoverImage string       `json:"medium_cover_image"`
	LargeCoverImage  string       `json:"large_cover_image"`
	MediumScreenshot string       `json:"medium_screenshot_image1"`
	Torrents         []apiTorrent `json:"torrents"`
	Cast             []apiCast    `json:"cast"`
}

type apiTorrent struct {
	URL       string `json:"url"`
	Hash      string `json:"hash"`
	Quality   string `json:"quality"`
	Seeds     int    `json:"seeds"`
	Peers     int    `json:"peers"`
	SizeBytes int64  `json:"size_bytes"`
}

type apiCast struct {
	Name          string `json:"name"`
	CharacterName string `json:"character_name"`
	ImdbCode      string `json:"imdb_code"`
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
		solver:    cfg.Solver,
	}
}

func (p *Provider) Name() string {
	return "yts"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "YTS",
		Kind:    "primary",
		Enabled: true,
	}
}

// ListPage fetches one page of the upstream catalog. An empty slice with a
// nil error means the upstream has no movies for the request.
func (p *Provider) ListPage(ctx context.Context, request domain.PageRequest) ([]domain.Movie, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(request.Page))
	if request.Limit > 0 {
		query.Set("limit", strconv.Itoa(request.Limit))
	}
	query.Set("sort_by", sortParam(request.SortBy))
	query.Set("order_by", string(domain.NormalizeSortOrder(string(request.SortOrder))))
	if request.Genre != "" {
		query.Set("genre", request.Genre)
	}

	payload, err := p.fetch(ctx, "/api/v2/list_movies.json", query)
	if err != nil {
		return nil, err
	}
	return p.decodeList(payload)
}

// SearchTitle lists the upstream movies matching a free-text query term.
func (p *Provider) SearchTitle(ctx context.Context, term string) ([]domain.Movie, error) {
	query := url.Values{}
	query.Set("query_term", strings.TrimSpace(term))
	query.Set("limit", "50")

	payload, err := p.fetch(ctx, "/api/v2/list_movies.json", query)
	if err != nil {
		return nil, err
	}
	return p.decodeList(payload)
}

// GetByImdbCode resolves a single movie by its imdb code. found is false when
// the upstream has no exact match.
func (p *Provider) GetByImdbCode(ctx context.Context, imdbCode string) (domain.Movie, bool, error) {
	movies, err := p.SearchTitle(ctx, imdbCode)
	if err != nil {
		return domain.Movie{}, false, err
	}
	// query_term matching is fuzzy upstream; require the exact code.
	for _, movie := range movies {
		if strings.EqualFold(movie.ImdbCode, imdbCode) {
			return movie, true, nil
		}
	}
	return domain.Movie{}, false, nil
}

// Details fetches the extended record (cast, full description, screenshots)
// for a movie already known by imdb code.
func (p *Provider) Details(ctx context.Context, imdbCode string) (domain.Movie, bool, error) {
	query := url.Values{}
	query.Set("imdb_id", imdbCode)
	query.Set("with_images", "true")
	query.Set("with_cast", "true")

	payload, err := p.fetch(ctx, "/api/v2/movie_details.json", query)
	if err != nil {
		return domain.Movie{}, false, err
	}

	var decoded detailsResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return domain.Movie{}, false, fmt.Errorf("decode details payload: %w", err)
	}
	if decoded.Status != "ok" {
		return domain.Movie{}, false, fmt.Errorf("upstream status %q: %s", decoded.Status, decoded.StatusMessage)
	}
	if decoded.Data.Movie.ID == 0 || strings.TrimSpace(decoded.Data.Movie.ImdbCode) == "" {
		return domain.Movie{}, false, nil
	}
	return p.toMovie(decoded.Data.Movie), true, nil
}

// fetch issues a single GET. When the upstream answers with a browser
// challenge (403 or 503) and a solver is configured, the same URL is fetched
// once more through FlareSolverr. There are no retries beyond that fallback.
func (p *Provider) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	uri := p.endpoint + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if p.solver.Enabled() {
			body, solveErr := p.solver.Solve(ctx, uri)
			if solveErr != nil {
				return nil, fmt.Errorf("provider HTTP %d, solver fallback failed: %w", resp.StatusCode, solveErr)
			}
			return []byte(body), nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("provider HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
}

func (p *Provider) decodeList(payload []byte) ([]domain.Movie, error) {
	var decoded listResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode list payload: %w", err)
	}
	if decoded.Status != "ok" {
		return nil, fmt.Errorf("upstream status %q: %s", decoded.Status, decoded.StatusMessage)
	}

	movies := make([]domain.Movie, 0, len(decoded.Data.Movies))
	for _, item := range decoded.Data.Movies {
		if strings.TrimSpace(item.ImdbCode) == "" {
			continue
		}
		movies = append(movies, p.toMovie(item))
	}
	return movies, nil
}

func (p *Provider) toMovie(item apiMovie) domain.Movie {
	torrents := make([]domain.Torrent, 0, len(item.Torrents))
	for _, t := range item.Torrents {
		torrents = append(torrents, domain.Torrent{
			Quality:   t.Quality,
			Seeds:     t.Seeds,
			Peers:     t.Peers,
			URL:       t.URL,
			Hash:      t.Hash,
			SizeBytes: t.SizeBytes,
		})
	}

	cover := item.LargeCoverImage
	if cover == "" {
		cover = item.MediumCoverImage
	}
	summary := item.Summary
	if summary == "" {
		summary = item.Synopsis
	}

	movie := domain.Movie{
		ImdbCode:        strings.ToLower(strings.TrimSpace(item.ImdbCode)),
		Title:           strings.TrimSpace(item.Title),
		Year:            item.Year,
		Runtime:         item.Runtime,
		Rating:          item.Rating,
		Genres:          item.Genres,
		Summary:         summary,
		Language:        item.Language,
		CoverImage:      cover,
		Torrents:        torrents,
		Source:          p.Name(),
		DescriptionFull: item.DescriptionFull,
		TrailerCode:     item.YTTrailerCode,
	}
	if item.MediumScreenshot != "" {
		movie.Screenshots = []string{item.MediumScreenshot}
	}
	for _, member := range item.Cast {
		movie.Cast = append(movie.Cast, domain.CastMember{
			Name:          member.Name,
			CharacterName: member.CharacterName,
			ImdbCode:      member.ImdbCode,
		})
	}
	return movie
}

func sortParam(sortBy domain.SortBy) string {
	switch sortBy {
	case domain.SortByTitle:
		return "title"
	case domain.SortByYear:
		return "year"
	case domain.SortBySeeds:
		return "seeds"
	default:
		return "rating"
	}
}
