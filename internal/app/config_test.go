package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":8091" {
		t.Fatalf("unexpected default addr: %s", cfg.HTTPAddr)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected default timeout: %v", cfg.RequestTimeout)
	}
	if cfg.YTSEndpoint == "" || cfg.PopcornEndpoint == "" {
		t.Fatal("provider endpoints must have defaults")
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Fatalf("unexpected default cache ttl: %v", cfg.CacheTTL)
	}
	if cfg.CacheDisabled {
		t.Fatal("cache should be enabled by default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("CATALOG_TIMEOUT_SECONDS", "30")
	t.Setenv("CATALOG_PROVIDER_YTS_ENDPOINT", "https://yts.example")
	t.Setenv("OMDB_API_KEY", " secret ")
	t.Setenv("CATALOG_CACHE_DISABLED", "yes")

	cfg := LoadConfig()

	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("addr override lost: %s", cfg.HTTPAddr)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("timeout override lost: %v", cfg.RequestTimeout)
	}
	if cfg.YTSEndpoint != "https://yts.example" {
		t.Fatalf("yts endpoint override lost: %s", cfg.YTSEndpoint)
	}
	if cfg.OMDBAPIKey != "secret" {
		t.Fatalf("api key should be trimmed, got %q", cfg.OMDBAPIKey)
	}
	if !cfg.CacheDisabled {
		t.Fatal("cache disable flag lost")
	}
}

func TestLoadConfigInvalidInt(t *testing.T) {
	t.Setenv("CATALOG_TIMEOUT_SECONDS", "not-a-number")
	cfg := LoadConfig()
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("expected fallback timeout, got %v", cfg.RequestTimeout)
	}
}

func TestNormalizeFlareSolverrURL(t *testing.T) {
	cases := map[string]string{
		"":                        "",
		"flaresolverr:8191":       "http://flaresolverr:8191/",
		"http://solver:8191":      "http://solver:8191/",
		"https://solver.example/": "https://solver.example/",
	}
	for raw, want := range cases {
		if got := normalizeFlareSolverrURL(raw); got != want {
			t.Errorf("normalizeFlareSolverrURL(%q) = %q, want %q", raw, got, want)
		}
	}
}
