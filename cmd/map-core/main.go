package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crave/map-core/internal/catalog"
	"crave/map-core/internal/config"
	"crave/map-core/internal/db"
	"crave/map-core/internal/httpapi"
	"crave/map-core/internal/lod"
	"crave/map-core/internal/metrics"
	"crave/map-core/internal/sqlcgen"
)

func main() {
	_ = godotenv.Load(".env")

	configPath := flag.String("config", os.Getenv("MAP_CORE_CONFIG"), "path to a YAML config file")
	importPath := flag.String("import", "", "store the result set in this YAML/JSON file into Postgres and exit")
	importLabel := flag.String("label", "", "label for the imported result set")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger level is not known yet.
		bootLogger := httpapi.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := httpapi.NewLoggerWith(httpapi.LogOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	if *importPath != "" {
		if err := importResultSet(ctx, logger, pool, *importPath, *importLabel); err != nil {
			logger.Fatal().Err(err).Str("path", *importPath).Msg("import failed")
		}
		return
	}

	m := metrics.New()

	var driver *lod.Driver
	opts := cfg.LOD.EngineOptions()
	opts.Logger = logger.With().Str("component", "lod").Logger()
	opts.Metrics = m
	opts.OnSelect = func(id string) {
		// Runs on the driver goroutine; a tap selects the marker.
		logger.Info().Str("id", id).Msg("marker tapped")
		driver.SetSelection(id)
	}
	engine := lod.New(opts)
	driver = lod.NewDriver(engine, lod.DriverOptions{
		Frame:   cfg.LOD.FrameInterval,
		Logger:  logger.With().Str("component", "driver").Logger(),
		Metrics: m,
	})
	go driver.Run(ctx)

	if src := newSource(logger, cfg, pool); src != nil {
		poller := catalog.NewPoller(
			logger.With().Str("component", "catalog").Logger(),
			src,
			driver.ReplaceCatalog,
			catalog.PollerOptions{Interval: cfg.Catalog.PollInterval},
		)
		go poller.Run(ctx)
	}

	h := httpapi.NewHandler(logger, driver, pool, m)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddr).
			Str("device_class", cfg.DeviceClass).
			Str("catalog_source", cfg.Catalog.Source).
			Msg("map-core listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

func newSource(logger zerolog.Logger, cfg config.Config, pool *db.Pool) catalog.Source {
	switch cfg.Catalog.Source {
	case config.SourceFile:
		return catalog.NewFileSource(cfg.Catalog.Path)
	case config.SourcePostgres:
		return catalog.NewPostgresSource(pool.Queries())
	case config.SourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return catalog.NewRedisSource(client, cfg.Redis.Key)
	default:
		logger.Info().Msg("no catalog source configured, waiting for PUT /api/v1/catalog")
		return nil
	}
}

func importResultSet(ctx context.Context, logger zerolog.Logger, pool *db.Pool, path, label string) error {
	if pool == nil {
		return errors.New("DATABASE_URL is required for -import")
	}
	rs, err := catalog.NewFileSource(path).Fetch(ctx)
	if err != nil {
		return err
	}
	if label == "" {
		label = rs.Version
	}

	var id int64
	err = pool.InTx(ctx, func(q *sqlcgen.Queries) error {
		var err error
		id, err = catalog.Publish(ctx, q, label, rs.Entries)
		return err
	})
	if err != nil {
		return err
	}
	logger.Info().Int64("result_set_id", id).Int("markers", len(rs.Entries)).Msg("result set imported")
	return nil
}
