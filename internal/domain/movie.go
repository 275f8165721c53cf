package domain

import (
	"strings"
	"time"
)

type SortBy string

const (
	SortByRating SortBy = "rating"
	SortByTitle  SortBy = "title"
	SortByYear   SortBy = "year"
	SortBySeeds  SortBy = "seeds"
)

type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// Torrent is a single release of a movie on one provider.
type Torrent struct {
	Quality   string `json:"quality,omitempty"`
	Seeds     int    `json:"seeds"`
	Peers     int    `json:"peers"`
	URL       string `json:"url,omitempty"`
	Hash      string `json:"hash,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// CastMember is part of the enrichment payload from a detail fetch.
type CastMember struct {
	Name          string `json:"name"`
	CharacterName string `json:"character_name,omitempty"`
	ImdbCode      string `json:"imdb_code,omitempty"`
}

// Movie is the normalized record shared by every provider. Fields a provider
// does not supply stay zero-valued and are omitted from JSON rather than
// defaulted.
type Movie struct {
	ImdbCode        string       `json:"imdb_code"`
	Title           string       `json:"title"`
	Year            int          `json:"year,omitempty"`
	Runtime         int          `json:"runtime,omitempty"`
	Rating          float64      `json:"rating,omitempty"`
	Genres          []string     `json:"genres,omitempty"`
	Summary         string       `json:"summary,omitempty"`
	Language        string       `json:"language,omitempty"`
	CoverImage      string       `json:"cover_image,omitempty"`
	Torrents        []Torrent    `json:"torrents,omitempty"`
	Source          string       `json:"source,omitempty"`
	DescriptionFull string       `json:"description_full,omitempty"`
	TrailerCode     string       `json:"yt_trailer_code,omitempty"`
	Cast            []CastMember `json:"cast,omitempty"`
	Screenshots     []string     `json:"screenshots,omitempty"`
}

// MaxSeeds returns the largest seed count across the movie's torrents,
// the availability proxy used when the same imdb code appears on both
// providers.
func (m Movie) MaxSeeds() int {
	max := 0
	for _, torrent := range m.Torrents {
		if torrent.Seeds > max {
			max = torrent.Seeds
		}
	}
	return max
}

// TitleMatch is one candidate returned by the external title-search API.
type TitleMatch struct {
	ImdbCode string `json:"imdb_code"`
	Title    string `json:"title"`
	Year     int    `json:"year,omitempty"`
}

type PageRequest struct {
	Page      int
	Limit     int
	SortBy    SortBy
	SortOrder SortOrder
	Genre     string
	NoCache   bool
}

type KeywordRequest struct {
	Keyword   string
	SortBy    SortBy
	SortOrder SortOrder
	NoCache   bool
}

type GenreRequest struct {
	Genre   string
	Page    int
	NoCache bool
}

type ProviderInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

type ProviderStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type ProviderDiagnostics struct {
	Name                string     `json:"name"`
	Label               string     `json:"label"`
	Kind                string     `json:"kind"`
	Enabled             bool       `json:"enabled"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

// MovieList is the unified response body for every list-shaped endpoint.
type MovieList struct {
	Movies     []Movie          `json:"movies"`
	Providers  []ProviderStatus `json:"providers,omitempty"`
	TotalItems int              `json:"total_items"`
	ElapsedMS  int64            `json:"elapsed_ms"`
	SortBy     SortBy           `json:"sort_by,omitempty"`
	SortOrder  SortOrder        `json:"sort_order,omitempty"`
}

func NormalizeSortBy(raw string) SortBy {
	switch SortBy(strings.ToLower(strings.TrimSpace(raw))) {
	case SortByTitle:
		return SortByTitle
	case SortByYear:
		return SortByYear
	case SortBySeeds:
		return SortBySeeds
	default:
		return SortByRating
	}
}

func NormalizeSortOrder(raw string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case SortOrderAsc:
		return SortOrderAsc
	default:
		return SortOrderDesc
	}
}

// genres recognized by the genre listing flow; matches the union of what the
// upstream catalogs accept.
var genres = map[string]struct{}{
	"action": {}, "adventure": {}, "animation": {}, "biography": {},
	"comedy": {}, "crime": {}, "documentary": {}, "drama": {},
	"family": {}, "fantasy": {}, "film-noir": {}, "history": {},
	"horror": {}, "music": {}, "musical": {}, "mystery": {},
	"romance": {}, "sci-fi": {}, "sport": {}, "thriller": {},
	"war": {}, "western": {},
}

// NormalizeGenre lowercases and trims raw and reports whether the result is a
// recognized genre.
func NormalizeGenre(raw string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", false
	}
	_, ok := genres[value]
	return value, ok
}

// NormalizeImdbCode trims and lowercases an imdb code ("tt0137523"). It
// returns false when the value is empty or clearly not an imdb code.
func NormalizeImdbCode(raw string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if len(value) < 3 || !strings.HasPrefix(value, "tt") {
		return "", false
	}
	for _, c := range value[2:] {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return value, true
}
