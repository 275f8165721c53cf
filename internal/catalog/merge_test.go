package catalog

import (
	"testing"

	"moviestream/catalogservice/internal/domain"
)

func TestDedupFirstSeen(t *testing.T) {
	movies := []domain.Movie{
		{ImdbCode: "tt0000001", Title: "One", Rating: 8},
		{ImdbCode: "tt0000002", Title: "Two", Rating: 9},
		{ImdbCode: "tt0000001", Title: "One again", Rating: 5},
	}
	deduped := DedupFirstSeen(movies)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(deduped))
	}
	if deduped[0].Title != "One" {
		t.Fatalf("first occurrence should survive, got %q", deduped[0].Title)
	}
}

func TestDedupFirstSeenTitleFallback(t *testing.T) {
	movies := []domain.Movie{
		{Title: "Amélie", Year: 2001},
		{Title: "amelie", Year: 2001},
		{Title: "Amelie", Year: 2011},
	}
	deduped := DedupFirstSeen(movies)
	if len(deduped) != 2 {
		t.Fatalf("title+year fallback should collapse the first two, got %d", len(deduped))
	}
}

func TestDedupMaxSeeds(t *testing.T) {
	movies := []domain.Movie{
		{ImdbCode: "tt0000001", Source: "primary", Torrents: []domain.Torrent{{Seeds: 50}}},
		{ImdbCode: "tt0000001", Source: "secondary", Torrents: []domain.Torrent{{Seeds: 80}}},
		{ImdbCode: "tt0000002", Source: "primary", Torrents: []domain.Torrent{{Seeds: 30}}},
		{ImdbCode: "tt0000002", Source: "secondary", Torrents: []domain.Torrent{{Seeds: 30}}},
	}
	deduped := DedupMaxSeeds(movies)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(deduped))
	}
	if deduped[0].Source != "secondary" {
		t.Fatalf("higher seed count should win, got %q", deduped[0].Source)
	}
	if deduped[1].Source != "primary" {
		t.Fatalf("equal seeds should keep the earlier record, got %q", deduped[1].Source)
	}
}

func TestSortMoviesByRatingDesc(t *testing.T) {
	movies := []domain.Movie{
		{ImdbCode: "tt0000001", Title: "A", Rating: 8},
		{ImdbCode: "tt0000002", Title: "B", Rating: 9},
		{ImdbCode: "tt0000003", Title: "C", Rating: 8.5},
	}
	SortMovies(movies, domain.SortByRating, domain.SortOrderDesc)
	if movies[0].Rating != 9 || movies[2].Rating != 8 {
		t.Fatalf("not sorted desc by rating: %+v", movies)
	}
}

func TestSortMoviesByTitle(t *testing.T) {
	movies := []domain.Movie{
		{ImdbCode: "tt0000001", Title: "Zodiac"},
		{ImdbCode: "tt0000002", Title: "Amélie"},
		{ImdbCode: "tt0000003", Title: "Brazil"},
	}
	SortMovies(movies, domain.SortByTitle, domain.SortOrderDesc)
	if movies[0].Title != "Amélie" || movies[2].Title != "Zodiac" {
		t.Fatalf("default title order should read A to Z: %+v", movies)
	}

	SortMovies(movies, domain.SortByTitle, domain.SortOrderAsc)
	if movies[0].Title != "Zodiac" {
		t.Fatalf("asc title order should be reversed: %+v", movies)
	}
}

func TestSortMoviesBySeeds(t *testing.T) {
	movies := []domain.Movie{
		{ImdbCode: "tt0000001", Torrents: []domain.Torrent{{Seeds: 5}}},
		{ImdbCode: "tt0000002", Torrents: []domain.Torrent{{Seeds: 50}}},
	}
	SortMovies(movies, domain.SortBySeeds, domain.SortOrderDesc)
	if movies[0].MaxSeeds() != 50 {
		t.Fatalf("not sorted by seeds: %+v", movies)
	}
}

func TestSortMoviesDeterministicTies(t *testing.T) {
	build := func() []domain.Movie {
		return []domain.Movie{
			{ImdbCode: "tt0000002", Title: "Same", Rating: 8},
			{ImdbCode: "tt0000001", Title: "Same", Rating: 8},
		}
	}
	first := build()
	second := build()
	second[0], second[1] = second[1], second[0]

	SortMovies(first, domain.SortByRating, domain.SortOrderDesc)
	SortMovies(second, domain.SortByRating, domain.SortOrderDesc)
	if first[0].ImdbCode != second[0].ImdbCode {
		t.Fatalf("tie order not deterministic: %s vs %s", first[0].ImdbCode, second[0].ImdbCode)
	}
}

func TestUnionOrder(t *testing.T) {
	a := []domain.Movie{{ImdbCode: "tt0000001"}}
	b := []domain.Movie{{ImdbCode: "tt0000002"}}
	merged := Union(a, b)
	if len(merged) != 2 || merged[0].ImdbCode != "tt0000001" {
		t.Fatalf("union must preserve argument order: %+v", merged)
	}
}
