// Command server wires the trialgate dependencies and runs the HTTP API.
// Business logic lives in the internal services; main only assembles them,
// picks memory or postgres stores from configuration, and owns the lifecycle
// of the server and the ledger fan-out worker.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"trialgate/internal/access"
	accesshandler "trialgate/internal/access/handler"
	"trialgate/internal/identity"
	identityhandler "trialgate/internal/identity/handler"
	"trialgate/internal/ledger"
	"trialgate/internal/participant"
	pmetrics "trialgate/internal/participant/metrics"
	"trialgate/internal/platform/config"
	"trialgate/internal/platform/httpserver"
	"trialgate/internal/platform/logger"
	"trialgate/internal/platform/metrics"
	"trialgate/internal/platform/middleware"
	platformredis "trialgate/internal/platform/redis"
	"trialgate/internal/provisioning"
	"trialgate/internal/supply"
	"trialgate/internal/token"
	id "trialgate/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
	}

	// Stores: postgres when a database is configured, in-memory otherwise.
	var (
		participantStore participant.Store
		supplyStore      supply.Store
		actorStore       identity.Store
		ledgerStore      ledger.Store
		siteStore        provisioning.SiteStore
		codeStore        provisioning.CodeStore
	)
	if db != nil {
		participantStore = participant.NewPostgres(db)
		supplyStore = supply.NewPostgres(db)
		actorStore = identity.NewPostgres(db)
		ledgerStore = ledger.NewPostgres(db)
		siteStore = provisioning.NewSitePostgres(db)
		codeStore = provisioning.NewCodePostgres(db)
	} else {
		participantStore = participant.NewInMemoryStore()
		supplyStore = supply.NewInMemoryStore()
		actorStore = identity.NewInMemoryStore()
		ledgerStore = ledger.NewInMemoryStore()
		siteStore = provisioning.NewSiteMemoryStore()
		codeStore = provisioning.NewCodeMemoryStore()
	}

	// A Redis code store supersedes the local one so several instances share
	// a single pool of unconsumed registration codes.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		codeStore = provisioning.NewCodeRedis(redisClient)
		log.Info("registration codes backed by redis")
	}

	// Ledger pipeline: synchronous store append plus an optional Kafka sink
	// drained by a background worker.
	sink, err := ledger.NewKafkaSink(cfg.Kafka)
	if err != nil {
		return err
	}
	var events *ledger.Publisher
	if sink != nil {
		defer sink.Close()
		events = ledger.NewPublisher(ledgerStore, ledger.WithSinkBuffer(256))
	} else {
		events = ledger.NewPublisher(ledgerStore)
	}

	// Services.
	chain := supply.NewService(supplyStore, events)
	allocator := supply.NewInventoryAllocator(supplyStore)
	participants := participant.NewService(participantStore, allocator, events,
		participant.WithMetrics(pmetrics.New()))
	provisioner := provisioning.NewService(siteStore, codeStore, events,
		chain,
		provisioning.ReferenceCheckerFunc(func(ctx context.Context, site id.SiteCode) (bool, error) {
			ps, err := participantStore.ListBySite(ctx, site)
			return len(ps) > 0, err
		}),
	)
	tokens := token.NewService([]byte(cfg.JWTSigningKey), cfg.TokenTTL)
	actors := identity.NewService(actorStore, provisioner, tokens, events)

	var accessOpts []access.Option
	if cfg.RequireActiveSite {
		accessOpts = append(accessOpts, access.WithActiveSitePolicy())
	}
	gate := access.NewService(participants, chain, provisioner, actors, accessOpts...)

	if cfg.SeedPacks > 0 {
		if err := chain.SeedPacks(ctx, cfg.SeedPacks); err != nil {
			return err
		}
		log.Info("depot inventory seeded", "packs", cfg.SeedPacks)
	}

	router := newRouter(log, actors, gate)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting trialgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if sink != nil {
		worker := ledger.NewWorker(sink, events.Inbox())
		g.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRouter(log *slog.Logger, actors *identity.Service, gate *access.Service) chi.Router {
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(httpMetrics))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	identityhandler.New(actors, log).Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(actors, log))
		accesshandler.New(gate, log).Register(r)
	})

	return r
}
