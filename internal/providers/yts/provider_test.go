package yts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/providers/flaresolverr"
)

const listPayload = `{
  "status": "ok",
  "status_message": "Query was successful",
  "data": {
    "movie_count": 2,
    "limit": 20,
    "page_number": 1,
    "movies": [
      {
        "id": 10,
        "imdb_code": "tt0137523",
        "title": "Fight Club",
        "year": 1999,
        "rating": 8.8,
        "runtime": 139,
        "genres": ["Drama"],
        "summary": "An insomniac office worker.",
        "language": "en",
        "large_cover_image": "https://img.example/fc-large.jpg",
        "torrents": [
          {"url": "https://yts.example/t/1", "hash": "aaa", "quality": "1080p", "seeds": 120, "peers": 40, "size_bytes": 2147483648}
        ]
      },
      {
        "id": 11,
        "imdb_code": "",
        "title": "Broken Record"
      }
    ]
  }
}`

func TestListPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/list_movies.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("sort_by") != "rating" || q.Get("order_by") != "desc" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("genre") != "drama" {
			t.Errorf("genre not forwarded: %s", r.URL.RawQuery)
		}
		w.Write([]byte(listPayload))
	}))
	defer srv.Close()

	p := NewProvider(Config{Endpoint: srv.URL, Client: srv.Client()})
	movies, err := p.ListPage(context.Background(), domain.PageRequest{
		Page:      2,
		SortBy:    domain.SortByRating,
		SortOrder: domain.SortOrderDesc,
		Genre:     "drama",
	})
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(movies) != 1 {
		t.Fatalf("expected 1 movie (record without imdb code dropped), got %d", len(movies))
	}
	movie := movies[0]
	if movie.ImdbCode != "tt0137523" || movie.Title != "Fight Club" {
		t.Fatalf("unexpected movie: %+v", movie)
	}
	if movie.Source != "yts" {
		t.Fatalf("source not tagged: %q", movie.Source)
	}
	if movie.MaxSeeds() != 120 {
		t.Fatalf("torrents not mapped: %+v", movie.Torrents)
	}
}

func TestListPageUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","status_message":"bad page"}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{Endpoint: srv.URL, Client: srv.Client()})
	if _, err := p.ListPage(context.Background(), domain.PageRequest{Page: 1}); err == nil {
		t.Fatal("expected error for non-ok upstream status")
	}
}

func TestGetByImdbCodeExactMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query_term"); got != "tt0137523" {
			t.Errorf("unexpected query_term: %s", got)
		}
		w.Write([]byte(listPayload))
	}))
	defer srv.Close()

	p := NewProvider(Config{Endpoint: srv.URL, Client: srv.Client()})
	movie, found, err := p.GetByImdbCode(context.Background(), "tt0137523")
	if err != nil {
		t.Fatalf("GetByImdbCode: %v", err)
	}
	if !found || movie.Title != "Fight Club" {
		t.Fatalf("expected exact match, got found=%v movie=%+v", found, movie)
	}

	if _, found, err = p.GetByImdbCode(context.Background(), "tt9999999"); err != nil || found {
		t.Fatalf("expected miss for unknown code, found=%v err=%v", found, err)
	}
}

func TestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/movie_details.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("imdb_id") != "tt0137523" || q.Get("with_cast") != "true" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{
  "status": "ok",
  "data": {"movie": {
    "id": 10,
    "imdb_code": "tt0137523",
    "title": "Fight Club",
    "year": 1999,
    "description_full": "The full description.",
    "yt_trailer_code": "SUXWAEX2jlg",
    "cast": [{"name": "Brad Pitt", "character_name": "Tyler Durden", "imdb_code": "0000093"}]
  }}
}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{Endpoint: srv.URL, Client: srv.Client()})
	movie, found, err := p.Details(context.Background(), "tt0137523")
	if err != nil || !found {
		t.Fatalf("Details: found=%v err=%v", found, err)
	}
	if movie.DescriptionFull != "The full description." {
		t.Fatalf("description not mapped: %+v", movie)
	}
	if len(movie.Cast) != 1 || movie.Cast[0].CharacterName != "Tyler Durden" {
		t.Fatalf("cast not mapped: %+v", movie.Cast)
	}
}

func TestDetailsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","data":{"movie":{"id":0,"imdb_code":""}}}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{Endpoint: srv.URL, Client: srv.Client()})
	_, found, err := p.Details(context.Background(), "tt9999999")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if found {
		t.Fatal("expected not found for empty detail record")
	}
}

func TestFetchSolverFallback(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	solver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","solution":{"status":200,"response":` + jsonString(listPayload) + `}}`))
	}))
	defer solver.Close()

	p := NewProvider(Config{
		Endpoint: upstream.URL,
		Client:   upstream.Client(),
		Solver:   flaresolverr.New(solver.URL+"/", solver.Client()),
	})
	movies, err := p.ListPage(context.Background(), domain.PageRequest{Page: 1})
	if err != nil {
		t.Fatalf("ListPage via solver: %v", err)
	}
	if len(movies) != 1 {
		t.Fatalf("expected solver payload to be parsed, got %d movies", len(movies))
	}
}

func TestFetchBlockedWithoutSolver(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	p := NewProvider(Config{Endpoint: upstream.URL, Client: upstream.Client()})
	if _, err := p.ListPage(context.Background(), domain.PageRequest{Page: 1}); err == nil {
		t.Fatal("expected error when blocked and no solver configured")
	}
}

func jsonString(raw string) string {
	encoded, _ := json.Marshal(raw)
	return string(encoded)
}
