package omdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchTitles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "key123" || q.Get("s") != "fight club" || q.Get("type") != "movie" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{
  "Search": [
    {"Title": "Fight Club", "Year": "1999", "imdbID": "tt0137523", "Type": "movie"},
    {"Title": "Fight Club: Members Only", "Year": "2006", "imdbID": "tt0462407", "Type": "movie"},
    {"Title": "Bad Record", "Year": "2000", "imdbID": "not-an-id", "Type": "movie"}
  ],
  "totalResults": "3",
  "Response": "True"
}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "key123", BaseURL: srv.URL, Client: srv.Client()})
	matches, err := c.SearchTitles(context.Background(), "fight club", 1)
	if err != nil {
		t.Fatalf("SearchTitles: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches (bad imdb id dropped), got %d", len(matches))
	}
	if matches[0].ImdbCode != "tt0137523" || matches[0].Year != 1999 {
		t.Fatalf("unexpected first match: %+v", matches[0])
	}
}

func TestSearchTitlesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "key123", BaseURL: srv.URL, Client: srv.Client()})
	matches, err := c.SearchTitles(context.Background(), "zzzzzz", 1)
	if err != nil {
		t.Fatalf("not-found should not be an error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected empty matches, got %d", len(matches))
	}
}

func TestSearchTitlesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "bad", BaseURL: srv.URL, Client: srv.Client()})
	if _, err := c.SearchTitles(context.Background(), "fight club", 1); err == nil {
		t.Fatal("expected error for invalid api key")
	}
}

func TestSearchTitlesDisabled(t *testing.T) {
	c := NewClient(Config{})
	if c.Enabled() {
		t.Fatal("client without api key must be disabled")
	}
	matches, err := c.SearchTitles(context.Background(), "fight club", 1)
	if err != nil || matches != nil {
		t.Fatalf("disabled client should be a silent no-op, got %v, %v", matches, err)
	}
}

func TestParseYear(t *testing.T) {
	cases := map[string]int{
		"1999":      1999,
		"1999-2003": 1999,
		"":          0,
		"n/a":       0,
	}
	for raw, want := range cases {
		if got := parseYear(raw); got != want {
			t.Errorf("parseYear(%q) = %d, want %d", raw, got, want)
		}
	}
}
