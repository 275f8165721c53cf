package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "moviestream/catalogservice/internal/api/http"
	"moviestream/catalogservice/internal/app"
	"moviestream/catalogservice/internal/catalog"
	"moviestream/catalogservice/internal/metrics"
	"moviestream/catalogservice/internal/providers/flaresolverr"
	"moviestream/catalogservice/internal/providers/omdb"
	"moviestream/catalogservice/internal/providers/popcorn"
	"moviestream/catalogservice/internal/providers/yts"
	"moviestream/catalogservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "movie-catalog")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "movie-catalog"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("ytsEndpoint", cfg.YTSEndpoint),
		slog.String("popcornEndpoint", cfg.PopcornEndpoint),
		slog.String("flareSolverrURL", strings.TrimSpace(cfg.FlareSolverrURL)),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasOMDBKey", strings.TrimSpace(cfg.OMDBAPIKey) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	ytsClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	popcornClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}

	var solver *flaresolverr.Client
	if strings.TrimSpace(cfg.FlareSolverrURL) != "" {
		solver = flaresolverr.New(cfg.FlareSolverrURL, nil)
		logger.Info("flaresolverr fallback enabled", slog.String("url", cfg.FlareSolverrURL))
	}

	primary := yts.NewProvider(yts.Config{
		Endpoint:  cfg.YTSEndpoint,
		UserAgent: cfg.UserAgent,
		Client:    ytsClient,
		Solver:    solver,
	})
	secondary := popcorn.NewProvider(popcorn.Config{
		Endpoint:  cfg.PopcornEndpoint,
		UserAgent: cfg.UserAgent,
		Client:    popcornClient,
	})

	redisClient := buildRedisClient(cfg, logger)

	serviceOpts := buildServiceOptions(cfg, redisClient)
	omdbClient := buildOMDBClient(cfg, redisClient, logger)
	if omdbClient != nil && omdbClient.Enabled() {
		serviceOpts = append(serviceOpts, catalog.WithTitleSearcher(omdbClient))
	}

	catalogService := catalog.NewService(primary, secondary, cfg.RequestTimeout, serviceOpts...)

	handler := apihttp.NewServer(catalogService, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The cover proxy streams image bodies; rely on the proxy client's
		// own timeout instead of a server-level write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	catalogService.StartBackground(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("movie catalog service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("movie catalog service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildRedisClient(cfg app.Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

func buildServiceOptions(cfg app.Config, redisClient *redis.Client) []catalog.ServiceOption {
	var opts []catalog.ServiceOption

	if cfg.CacheDisabled {
		opts = append(opts, catalog.WithCacheDisabled(true))
		return opts
	}

	if cfg.CacheTTL > 0 {
		opts = append(opts, catalog.WithCacheTTL(cfg.CacheTTL))
	}
	if redisClient != nil {
		opts = append(opts, catalog.WithRedisCache(catalog.NewRedisCacheBackend(redisClient)))
	}
	return opts
}

func buildOMDBClient(cfg app.Config, redisClient *redis.Client, logger *slog.Logger) *omdb.Client {
	apiKey := strings.TrimSpace(cfg.OMDBAPIKey)
	if apiKey == "" {
		logger.Info("omdb api key not configured, keyword title expansion disabled")
		return nil
	}
	client := omdb.NewClient(omdb.Config{
		APIKey:   apiKey,
		BaseURL:  cfg.OMDBBaseURL,
		Client:   &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Redis:    redisClient,
		CacheTTL: cfg.TitleCacheTTL,
	})
	logger.Info("omdb client initialized", slog.Bool("enabled", client.Enabled()))
	return client
}
