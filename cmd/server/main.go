package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/batch/exporter"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/batch/importer"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/export/watermark"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
	ledgermem "github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger/memory"
	ledgerpg "github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger/postgres"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/events"
	eventskafka "github.com/DFE-Digital/teaching-record-system-sub012/internal/person/events/kafka"
	personstore "github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store"
	personmem "github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store/memory"
	personpg "github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store/postgres"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/blob"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/config"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/httpserver"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/logger"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/postgres"
	platformredis "github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/redis"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/match"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/metrics"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/policy"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/rowparser"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/tasks"
	tasksmem "github.com/DFE-Digital/teaching-record-system-sub012/internal/tasks/memory"
	taskspg "github.com/DFE-Digital/teaching-record-system-sub012/internal/tasks/postgres"
	httpapi "github.com/DFE-Digital/teaching-record-system-sub012/internal/transport/http"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/middleware/auth"
)

// main wires the batch engine's collaborators and exposes the scheduler
// trigger API. Stores fall back to in-memory implementations when postgres,
// redis, or kafka are not configured, so the binary runs standalone.
func main() {
	cfg := config.FromEnv()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}

	var (
		persons     personstore.Store
		ledgerStore ledger.Store
		taskStore   tasks.Store
	)
	if pool != nil {
		defer pool.Close()
		personStore := personpg.New(pool)
		ledgerPg := ledgerpg.New(pool)
		tasksPg := taskspg.New(pool)
		for _, m := range []interface {
			Migrate(context.Context) error
		}{personStore, ledgerPg, tasksPg} {
			if err := m.Migrate(ctx); err != nil {
				log.Error("migration failed", "error", err)
				os.Exit(1)
			}
		}
		persons, ledgerStore, taskStore = personStore, ledgerPg, tasksPg
	} else {
		persons, ledgerStore, taskStore = personmem.New(), ledgermem.New(), tasksmem.New()
	}

	var watermarks watermark.Store = watermark.NewInMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		watermarks = watermark.NewRedis(redisClient.Client)
	}

	var publisher events.Publisher = events.NewRecorder()
	if cfg.KafkaBrokers != "" {
		kafkaPublisher, err := eventskafka.New(cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	blobs, err := blob.NewFilesystem(cfg.InterchangeDir)
	if err != nil {
		log.Error("interchange directory unavailable", "error", err)
		os.Exit(1)
	}

	engine, err := match.New(persons, match.WithLogger(log))
	if err != nil {
		log.Error("matching engine setup failed", "error", err)
		os.Exit(1)
	}
	reconciler, err := policy.New(engine, persons, taskStore, publisher, policy.WithLogger(log))
	if err != nil {
		log.Error("reconciliation policy setup failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	imp, err := importer.New(blobs, rowparser.New(), reconciler, ledgerStore,
		importer.WithLogger(log), importer.WithMetrics(m))
	if err != nil {
		log.Error("import driver setup failed", "error", err)
		os.Exit(1)
	}
	exp, err := exporter.New(persons, blobs, ledgerStore, watermarks,
		exporter.WithLogger(log), exporter.WithMetrics(m))
	if err != nil {
		log.Error("export driver setup failed", "error", err)
		os.Exit(1)
	}

	handler := httpapi.NewHandler(imp, exp, log)
	router := httpapi.NewRouter(handler, auth.NewVerifier(cfg.JWTSigningKey))
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting trs batch engine", "addr", cfg.Addr)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gCtx.Done():
			return nil
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
