package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moviestream/catalogservice/internal/domain"
)

// fakeCatalogWithTorrents returns fully populated movies, simulating the real
// aggregation output the frontend renders as browse cards and detail pages.
type fakeCatalogWithTorrents struct {
	fakeCatalogService
}

func populatedList() domain.MovieList {
	movies := []domain.Movie{
		{
			ImdbCode:   "tt0137523",
			Title:      "Fight Club",
			Year:       1999,
			Rating:     8.8,
			Runtime:    139,
			Genres:     []string{"Drama", "Thriller"},
			Summary:    "An insomniac office worker crosses paths with a soap maker.",
			CoverImage: "https://img.example.org/fight-club/cover.jpg",
			Source:     "yts",
			Torrents: []domain.Torrent{
				{URL: "https://example.org/t/1080p", Quality: "1080p", Seeds: 120, Peers: 14, SizeBytes: 2_147_483_648},
				{URL: "https://example.org/t/720p", Quality: "720p", Seeds: 80, Peers: 9, SizeBytes: 1_073_741_824},
			},
		},
		{
			ImdbCode:   "tt0110912",
			Title:      "Pulp Fiction",
			Year:       1994,
			Rating:     8.9,
			Runtime:    154,
			Genres:     []string{"Crime", "Drama"},
			Summary:    "The lives of two mob hitmen, a boxer and a pair of bandits intertwine.",
			CoverImage: "https://img.example.org/pulp-fiction/cover.jpg",
			Source:     "popcorn",
			Torrents: []domain.Torrent{
				{URL: "magnet:?xt=urn:btih:def456789abc123def456789abc123def456789ab", Quality: "1080p", Seeds: 95, Peers: 7, SizeBytes: 1_900_000_000},
			},
		},
	}
	return domain.MovieList{
		Movies: movies,
		Providers: []domain.ProviderStatus{
			{Name: "yts", OK: true, Count: 1},
			{Name: "popcorn", OK: true, Count: 1},
		},
		TotalItems: len(movies),
		ElapsedMS:  250,
		SortBy:     domain.SortByRating,
		SortOrder:  domain.SortOrderDesc,
	}
}

func (f *fakeCatalogWithTorrents) ListPage(ctx context.Context, request domain.PageRequest) (domain.MovieList, error) {
	_ = ctx
	f.lastPageRequest = request
	return populatedList(), nil
}

func (f *fakeCatalogWithTorrents) LookupByImdbCode(ctx context.Context, imdbCode string) (domain.Movie, error) {
	_ = ctx
	f.lastImdbCode = imdbCode
	list := populatedList()
	movie := list.Movies[0]
	movie.DescriptionFull = "A detailed synopsis for the detail page."
	movie.TrailerCode = "SUXWAEX2jlg"
	movie.Cast = []domain.CastMember{
		{Name: "Edward Norton", CharacterName: "The Narrator"},
		{Name: "Brad Pitt", CharacterName: "Tyler Durden"},
	}
	movie.Screenshots = []string{"https://img.example.org/fight-club/shot1.jpg"}
	return movie, nil
}

// TestE2EBrowseReturnsPlayableResults validates that page listings carry the
// torrent link, quality and seed data the streaming frontend needs before a
// title can be played.
func TestE2EBrowseReturnsPlayableResults(t *testing.T) {
	fake := &fakeCatalogWithTorrents{}
	server := NewServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/movies/page?page=1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp domain.MovieList
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Movies) == 0 {
		t.Fatalf("page listing returned no movies")
	}

	for i, movie := range resp.Movies {
		if movie.ImdbCode == "" {
			t.Errorf("movie[%d] %q: missing imdb code", i, movie.Title)
		}
		if movie.Title == "" {
			t.Errorf("movie[%d]: missing title", i)
		}
		if movie.CoverImage == "" {
			t.Errorf("movie[%d] %q: cover required for browse cards", i, movie.Title)
		}
		if len(movie.Torrents) == 0 {
			t.Errorf("movie[%d] %q: no torrents to play", i, movie.Title)
			continue
		}
		for _, torrent := range movie.Torrents {
			if torrent.URL == "" {
				t.Errorf("movie[%d] %q: torrent missing url", i, movie.Title)
			}
			if torrent.Quality == "" {
				t.Errorf("movie[%d] %q: torrent missing quality label", i, movie.Title)
			}
			if torrent.Seeds < 0 {
				t.Errorf("movie[%d] %q: seeds should be non-negative", i, movie.Title)
			}
		}
	}

	// Provider status feeds the UI source badges.
	if len(resp.Providers) == 0 {
		t.Fatalf("provider status required for UI badges")
	}
	for _, p := range resp.Providers {
		if p.Name == "" {
			t.Errorf("provider status missing name")
		}
	}
}

// TestE2ELookupProvidesDetailPageData validates that the single-movie lookup
// returns the enriched fields the detail page renders.
func TestE2ELookupProvidesDetailPageData(t *testing.T) {
	fake := &fakeCatalogWithTorrents{}
	server := NewServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/movies/imdb_code/tt0137523", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var movie domain.Movie
	if err := json.Unmarshal(rec.Body.Bytes(), &movie); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if movie.DescriptionFull == "" {
		t.Errorf("detail page needs a full description")
	}
	if movie.TrailerCode == "" {
		t.Errorf("detail page needs a trailer code")
	}
	if len(movie.Cast) == 0 {
		t.Errorf("detail page needs cast entries")
	}
	if len(movie.Torrents) == 0 {
		t.Errorf("detail page needs torrents for the play button")
	}
	if !strings.HasPrefix(movie.ImdbCode, "tt") {
		t.Errorf("imdb code should be normalized, got %q", movie.ImdbCode)
	}
}
