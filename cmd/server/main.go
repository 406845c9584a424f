package main

import (
	"context"
	"distance-matrix-service/internal/adapters/cache"
	"distance-matrix-service/internal/adapters/events"
	"distance-matrix-service/internal/adapters/geocode"
	"distance-matrix-service/internal/adapters/repositories"
	"distance-matrix-service/internal/adapters/routing"
	"distance-matrix-service/internal/api"
	"distance-matrix-service/internal/config"
	"distance-matrix-service/internal/platform/db"
	"distance-matrix-service/internal/platform/logger"
	"distance-matrix-service/internal/ports"
	"distance-matrix-service/internal/services"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// main is the application composition root.
// It wires concrete adapters (SQL, Nominatim, OSRM, Redis, Kafka) behind
// ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, "distance-matrix")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

type storage struct {
	state        ports.StateStore
	geocodeCache ports.GeocodeCache
	routeCache   ports.RouteCache
	closers      []func() error
}

func (s *storage) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Background work (geocoding, route passes) outlives single requests
	// and stops with the process.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := seedIfEmpty(ctx, store.state, cfg.SeedPath, log); err != nil {
		return err
	}

	searcher, err := geocode.NewNominatimClient(cfg.NominatimURL, cfg.UserAgent, cfg.RequestTimeout, log.Named("nominatim"))
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	geocoder := services.NewGeocoder(searcher, store.geocodeCache, log.Named("geocoder"))

	providers, err := routing.NewOSRMProviders(cfg.RoutingEndpoints, cfg.RequestTimeout, log.Named("osrm"))
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	resolver := services.NewRouteResolver(providers, store.routeCache, log.Named("resolver"))

	var publisher ports.ResultsPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaResultsPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log.Named("kafka"))
		defer func() { _ = kp.Close() }()
		publisher = kp
		log.Info("publishing results to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	recomputer := services.NewRecomputer(ctx, resolver, publisher, log.Named("recompute"))
	points := services.NewPointStore(ctx, services.PointStoreOptions{
		Geocoder:   geocoder,
		Recomputer: recomputer,
		State:      store.state,
		Log:        log.Named("points"),
	})
	if err := points.Restore(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.NewRouter(api.RouterConfig{
		Store:              points,
		Resolver:           resolver,
		Geocoder:           geocoder,
		Log:                log.Named("http"),
		RoutingUpstream:    cfg.RoutingUpstream,
		UserAgent:          cfg.UserAgent,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	// Timeouts allow for a full provider chain with retries behind /routes.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("run: http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	// Let in-flight lookups and passes finish, then stop anything still
	// waiting on a backoff.
	done := make(chan struct{})
	go func() {
		points.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("abandoning in-flight resolutions")
		cancel()
		<-done
	}

	log.Info("server stopped")
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	s := &storage{}

	switch cfg.DBDriver {
	case db.DriverPostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, conn.Close)

		if err := repositories.InitPostgresSchema(ctx, conn); err != nil {
			s.Close()
			return nil, err
		}
		s.state = repositories.NewSQLStateStore(conn, log.Named("state"))
		s.geocodeCache = cache.NewSQLGeocodeCache(conn, log.Named("geocode-cache"))
		s.routeCache = cache.NewSQLRouteCache(conn, cfg.RouteCacheTTL, log.Named("route-cache"))

	default:
		conn, err := db.OpenSqlite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, conn.Close)

		if err := repositories.InitSchema(ctx, conn); err != nil {
			s.Close()
			return nil, err
		}
		s.state = repositories.NewSqliteStateStore(conn)
		s.geocodeCache = cache.NewSqliteGeocodeCache(conn)
		s.routeCache = cache.NewSqliteRouteCache(conn, cfg.RouteCacheTTL)
	}

	// Redis, when configured, replaces the SQL route cache.
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		s.routeCache = cache.NewRedisRouteCache(client, cfg.RouteCacheTTL, log.Named("route-cache"))
	}

	log.Info("storage ready",
		zap.String("driver", cfg.DBDriver),
		zap.Bool("redis", cfg.RedisURL != ""),
	)
	return s, nil
}

// seedIfEmpty loads the seed file on first start, when nothing has been
// persisted yet. A missing seed file is not an error.
func seedIfEmpty(ctx context.Context, state ports.StateStore, seedPath string, log *zap.Logger) error {
	if seedPath == "" {
		return nil
	}

	_, found, err := state.Load(ctx, services.KeyOrigins)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if found {
		return nil
	}

	if err := repositories.SeedFromJSON(ctx, state, seedPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("no seed file", zap.String("path", seedPath))
			return nil
		}
		return fmt.Errorf("seed: %w", err)
	}

	log.Info("state seeded", zap.String("path", seedPath))
	return nil
}
