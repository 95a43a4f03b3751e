package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/couchcryptid/broadband-data-etl/internal/adapter/arcgis"
	"github.com/couchcryptid/broadband-data-etl/internal/adapter/bdc"
	"github.com/couchcryptid/broadband-data-etl/internal/adapter/hexcache"
	httpadapter "github.com/couchcryptid/broadband-data-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/broadband-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/broadband-data-etl/internal/config"
	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/observability"
	"github.com/couchcryptid/broadband-data-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// memoryCacheEntries holds every hex resolution with room to spare.
const memoryCacheEntries = 16

func main() {
	// Optional .env for local runs.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("job", cfg.JobName)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	extractor := bdc.NewClient(bdc.Options{
		BaseURL:       cfg.BDCBaseURL,
		Username:      cfg.BDCUsername,
		HashValue:     cfg.BDCHashValue,
		State:         cfg.BDCState,
		FilesPerPause: cfg.BDCFilesPerPause,
		Pause:         cfg.BDCPause,
		Timeout:       cfg.BDCTimeout,
	}, clock, metrics, logger)

	gis := arcgis.NewClient(cfg.ArcGISToken, cfg.ArcGISTimeout, cfg.HexLayerURLs, logger)

	checks := readiness{}
	var store hexcache.Store
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rs := hexcache.NewRedisStore(redisClient)
		store = rs
		checks = append(checks, rs)
		logger.Info("hex cache using redis", "addr", cfg.RedisAddr, "ttl", cfg.HexCacheTTL)
	} else {
		store = hexcache.NewMemoryStore(memoryCacheEntries, clock)
		logger.Info("hex cache in memory", "ttl", cfg.HexCacheTTL)
	}
	hexes := hexcache.NewCachedHexSource(gis, store, cfg.HexCacheTTL, cfg.JobName, metrics, logger)

	var notifier domain.Notifier
	var kafkaNotifier *kafkaadapter.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier = kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaReportTopic, logger)
		notifier = kafkaNotifier
		logger.Info("run reports go to kafka", "topic", cfg.KafkaReportTopic)
	} else {
		notifier = pipeline.NewLogNotifier(logger)
	}

	p := pipeline.New(cfg.JobName, extractor, hexes, gis, notifier, destinations(cfg), logger, metrics, clock)
	checks = append(checks, p)

	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	exitCode := 0
	if cfg.RunInterval > 0 {
		p.RunEvery(ctx, cfg.RunInterval)
	} else if _, err := p.Run(ctx); err != nil {
		exitCode = 1
	}
	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func destinations(cfg *config.Config) pipeline.Destinations {
	d := pipeline.Destinations{
		Coverage: make(map[int]domain.Destination, len(domain.Resolutions)),
		Summary: domain.Destination{
			Name:       "service_records",
			ServiceURL: cfg.RecordsURL,
			Kind:       domain.KindTable,
			Index:      cfg.RecordsTable,
		},
		SummaryHexes: domain.Destination{
			Name:              "service_record_hexes",
			ServiceURL:        cfg.RecordsURL,
			Kind:              domain.KindLayer,
			Index:             cfg.RecordsHexLayer,
			RelationshipBound: cfg.RecordsRelateIDs,
		},
	}
	for _, res := range domain.Resolutions {
		d.Coverage[res] = domain.Destination{
			Name:       "service_hexes_" + strconv.Itoa(res),
			ServiceURL: cfg.ServiceHexURLs[res],
			Kind:       domain.KindLayer,
			Index:      cfg.ServiceHexIndex,
		}
	}
	return d
}
