package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"caseflow/internal/audit"
	blockhandler "caseflow/internal/block/handler"
	blockmetrics "caseflow/internal/block/metrics"
	blockservice "caseflow/internal/block/service"
	blockstore "caseflow/internal/block/store"
	caseviewhandler "caseflow/internal/caseview/handler"
	caseviewservice "caseflow/internal/caseview/service"
	"caseflow/internal/eventbus"
	hithandler "caseflow/internal/hit/handler"
	hitservice "caseflow/internal/hit/service"
	hitstore "caseflow/internal/hit/store"
	"caseflow/internal/integration"
	jwttoken "caseflow/internal/jwt_token"
	partyhandler "caseflow/internal/party/handler"
	partyservice "caseflow/internal/party/service"
	partystore "caseflow/internal/party/store"
	"caseflow/internal/platform/config"
	"caseflow/internal/platform/httpserver"
	"caseflow/internal/platform/logger"
	platformmetrics "caseflow/internal/platform/metrics"
	"caseflow/internal/platform/middleware"
	platformredis "caseflow/internal/platform/redis"
	reviewservice "caseflow/internal/review/service"
	reviewstore "caseflow/internal/review/store"
	"caseflow/internal/storage"
	"caseflow/pkg/tx"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		parties     partystore.Store
		hits        hitstore.Store
		blocks      blockstore.Store
		reviews     reviewstore.Store
		outbox      integration.Store
		busOpts     []eventbus.Option
		db          *sql.DB
		pool        *pgxpool.Pool
		healthCheck func(context.Context) error
	)

	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		if err := storage.Apply(ctx, db); err != nil {
			return err
		}
		if err := storage.SeedRelationScopes(ctx, db); err != nil {
			return err
		}

		pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open pgx pool: %w", err)
		}
		defer pool.Close()

		parties = partystore.NewPostgres(db)
		hits = hitstore.NewPostgres(db)
		blocks = blockstore.NewPostgres(db)
		reviews = reviewstore.NewPostgres(db)
		outbox = integration.NewPostgresStore(pool)
		busOpts = append(busOpts, eventbus.WithTxStarter(tx.NewSQLRunner(db)))
		healthCheck = db.PingContext
		log.Info("using postgres storage")
	} else {
		parties = partystore.NewMemory()
		hits = hitstore.NewMemory()
		blocks = blockstore.NewMemory()
		reviews = reviewstore.NewMemory()
		outbox = integration.NewMemoryStore()
		log.Info("using in-memory storage")
	}

	busOpts = append(busOpts, eventbus.WithMetrics(eventbus.NewMetrics(registry)))
	bus := eventbus.NewBus(log, busOpts...)

	partySvc := partyservice.New(parties, log)
	hitSvc := hitservice.New(hits, parties, bus, log)
	blockSvc := blockservice.New(blocks, parties, bus, log,
		blockservice.WithMetrics(blockmetrics.New(registry)))
	reviewSvc := reviewservice.New(reviews, hits, parties, log)
	caseviewSvc := caseviewservice.New(parties, blocks, reviews, hits, log)

	blockSvc.RegisterListeners(bus)
	reviewservice.NewListener(reviewSvc, reviewservice.PivotOnlyPolicy{}, bus).Register(bus)
	integration.NewListener(outbox, log).Register(bus)
	audit.NewListener(log).Register(bus)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "caseflow", "caseflow-api")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	httpMetrics := platformmetrics.New(registry)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(httpMetrics))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthCheck != nil {
			if err := healthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("storage unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	router.Group(func(r chi.Router) {
		partyhandler.New(partySvc, log).Register(r)
		hithandler.New(hitSvc, log).Register(r)
		caseviewhandler.New(caseviewSvc, log).Register(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, log))
		blockhandler.New(blockSvc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting caseflow", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := integration.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("kafka sink: %w", err)
		}
		defer sink.Close()

		relayOpts := []integration.RelayOption{
			integration.WithRelayLogger(log),
			integration.WithRelayMetrics(integration.NewMetrics(registry)),
			integration.WithRelayInterval(cfg.Relay.Interval),
		}

		redisClient, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if redisClient != nil {
			defer redisClient.Close()
			relayOpts = append(relayOpts,
				integration.WithRelayDeduper(integration.NewRedisDeduper(redisClient.Client, cfg.Relay.DedupeTTL)))
		}

		relay := integration.NewRelay(outbox, sink, relayOpts...)
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("outbox relay started", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	return g.Wait()
}
