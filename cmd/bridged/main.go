// Command bridged hosts the HTTP surface of this agent economy: C5's
// webhook intake, C6's query API, /healthz, and /metrics, plus the C9
// orchestrator tick loop running in the background — mirroring the
// teacher's walletserver/main.go single-process wiring (router +
// controllers + services assembled in one place), adapted from
// gorilla/mux to chi.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"fibermesh/internal/bridge"
	"fibermesh/internal/config"
	"fibermesh/internal/dataclient"
	"fibermesh/internal/indexer"
	"fibermesh/internal/intake"
	"fibermesh/internal/orchestrator"
	"fibermesh/internal/population"
	"fibermesh/internal/reconciler"
	"fibermesh/internal/walletpool"
	"fibermesh/internal/workflow"
)

func main() {
	log := logrus.StandardLogger()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, closeStore := openStore(log)
	defer closeStore()

	broker := intake.NewBroker()
	intakeHandler := intake.NewHandler(store, broker, log)

	data := dataclient.New([]string{cfg.DL1URL}, cfg.GL0URL)

	recon := reconciler.New(data, reconciler.DefaultConfig())
	memStore, isMemStore := store.(*intake.MemoryStore)
	if isMemStore {
		recon.OnRecord = func(fiberID, eventName, hash string) {
			memStore.RecordTransition(fiberID, eventName, hash, time.Now())
		}
	}

	workflows := workflow.Default()
	engine := bridge.New(recon, workflows)

	var transitions indexer.TransitionLister
	if isMemStore {
		transitions = memStore
	}
	indexerHandler := indexer.NewHandler(store, data, transitions)

	wallets, err := walletpool.Open(cfg.WalletPoolPath, 10*time.Second)
	if err != nil {
		log.Fatalf("walletpool: %v", err)
	}
	defer wallets.Close()

	pop := population.New()
	reg := orchestrator.NewRegistry()
	orch := orchestrator.New(engine, data, pop, reg, workflows, wallets, cfg.OrchestratorConfig(), log, time.Now().UnixNano())

	bindAddr := os.Getenv("BRIDGED_BIND")
	if bindAddr == "" {
		bindAddr = ":8090"
	}
	callbackURL := os.Getenv("WEBHOOK_CALLBACK_URL")
	if callbackURL != "" {
		sub := &intake.Subscriber{Data: data, CallbackURL: callbackURL, Secret: os.Getenv("WEBHOOK_SECRET"), Log: log}
		if err := sub.EnsureSubscribed(context.Background()); err != nil {
			log.WithError(err).Warn("webhook subscription failed at boot; continuing")
		}
	}

	r := chi.NewRouter()
	intakeHandler.Routes(r)
	indexerHandler.Routes(r)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: bindAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("bridged: listening on %s", bindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("bridged: server: %v", err)
		}
	}()

	go func() {
		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("orchestrator stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info("bridged: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// openStore selects the rejection/snapshot store: Postgres when
// REJECTION_DB_DSN is set, else an in-memory store (suitable for local
// development and the zero-dependency demo path).
func openStore(log *logrus.Logger) (store intake.Store, closeFn func()) {
	dsn := os.Getenv("REJECTION_DB_DSN")
	if dsn == "" {
		log.Info("bridged: REJECTION_DB_DSN not set, using in-memory rejection store")
		return intake.NewMemoryStore(), func() {}
	}

	pg, err := intake.OpenPostgresStore(dsn)
	if err != nil {
		log.Fatalf("bridged: opening postgres store: %v", err)
	}
	if err := pg.Migrate(context.Background()); err != nil {
		log.Fatalf("bridged: migrating postgres store: %v", err)
	}
	return pg, func() { _ = pg.Close() }
}
