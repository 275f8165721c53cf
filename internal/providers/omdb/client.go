// Package omdb is a client for the OMDb-style title search API. The keyword
// flow uses it to turn free text into imdb codes before asking the catalog
// providers for the actual records.
package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/metrics"
)

const (
	defaultBaseURL = "https://www.omdbapi.com"
	redisCacheKey  = "catalog:omdb:"
)

type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

type searchItem struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	ImdbID string `json:"imdbID"`
	Type   string `json:"Type"`
}

type searchResponse struct {
	Search   []searchItem `json:"Search"`
	Response string       `json:"Response"`
	Error    string       `json:"Error"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 7 * 24 * time.Hour
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// SearchTitles returns the imdb candidates for a keyword. A keyword the
// upstream knows nothing about yields an empty slice and a nil error; only
// transport and quota failures surface as errors.
func (c *Client) SearchTitles(ctx context.Context, keyword string, page int) ([]domain.TitleMatch, error) {
	if !c.Enabled() {
		return nil, nil
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	if page <= 0 {
		page = 1
	}

	cacheKey := fmt.Sprintf("titles:%s:%d", strings.ToLower(keyword), page)

	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisCacheKey+cacheKey).Bytes()
		if err == nil {
			var matches []domain.TitleMatch
			if json.Unmarshal(data, &matches) == nil {
				return matches, nil
			}
		}
	}

	params := url.Values{
		"apikey": {c.apiKey},
		"s":      {keyword},
		"type":   {"movie"},
		"page":   {strconv.Itoa(page)},
	}

	reqURL := c.baseURL + "/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.TitleSearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.TitleSearchRequestsTotal.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("title search HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	// Response "False" covers both "movie not found" and real API errors
	// like a bad key. Only the former is an empty result.
	if !strings.EqualFold(response.Response, "True") {
		if isNotFoundError(response.Error) {
			metrics.TitleSearchRequestsTotal.WithLabelValues("empty").Inc()
			return []domain.TitleMatch{}, nil
		}
		metrics.TitleSearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("title search failed: %s", response.Error)
	}

	matches := make([]domain.TitleMatch, 0, len(response.Search))
	for _, item := range response.Search {
		code, ok := domain.NormalizeImdbCode(item.ImdbID)
		if !ok {
			continue
		}
		matches = append(matches, domain.TitleMatch{
			ImdbCode: code,
			Title:    strings.TrimSpace(item.Title),
			Year:     parseYear(item.Year),
		})
	}
	metrics.TitleSearchRequestsTotal.WithLabelValues("ok").Inc()

	if c.redis != nil {
		if data, err := json.Marshal(matches); err == nil {
			_ = c.redis.Set(ctx, redisCacheKey+cacheKey, data, c.cacheTTL).Err()
		}
	}

	return matches, nil
}

func isNotFoundError(message string) bool {
	message = strings.ToLower(strings.TrimSpace(message))
	return strings.Contains(message, "not found") || strings.Contains(message, "too many results")
}

// parseYear handles both "1999" and series-style ranges like "1999-2003".
func parseYear(raw string) int {
	raw = strings.TrimSpace(raw)
	if len(raw) > 4 {
		raw = raw[:4]
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return year
}
