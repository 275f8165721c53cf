package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	RequestTimeout  time.Duration
	LogLevel        string
	LogFormat       string
	UserAgent       string
	YTSEndpoint     string
	PopcornEndpoint string
	OMDBAPIKey      string
	OMDBBaseURL     string
	FlareSolverrURL string
	RedisURL        string
	CacheTTL        time.Duration
	CacheDisabled   bool
	TitleCacheTTL   time.Duration
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8091"),
		RequestTimeout:  time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:       getEnv("CATALOG_USER_AGENT", "movie-catalog/1.0"),
		YTSEndpoint:     getEnv("CATALOG_PROVIDER_YTS_ENDPOINT", "https://yts.mx"),
		PopcornEndpoint: getEnv("CATALOG_PROVIDER_POPCORN_ENDPOINT", "https://movies-v2.api-fetch.sh"),
		OMDBAPIKey:      strings.TrimSpace(os.Getenv("OMDB_API_KEY")),
		OMDBBaseURL:     getEnv("OMDB_BASE_URL", "https://www.omdbapi.com"),
		FlareSolverrURL: normalizeFlareSolverrURL(getEnv("FLARESOLVERR_URL", "")),
		RedisURL:        getEnv("REDIS_URL", ""),
		CacheTTL:        time.Duration(getEnvInt("CATALOG_CACHE_TTL_MINUTES", 10)) * time.Minute,
		CacheDisabled:   getEnvBool("CATALOG_CACHE_DISABLED", false),
		TitleCacheTTL:   time.Duration(getEnvInt("OMDB_CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func normalizeFlareSolverrURL(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "http://" + value
	}
	if !strings.HasSuffix(value, "/") {
		value += "/"
	}
	return value
}
