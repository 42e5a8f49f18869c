/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the revision engine server, or runs one-off
  maintenance commands against the same store. Handles configuration,
  dependency injection and graceful shutdown.

COMMANDS:
  serve       HTTP API plus the background reconciler (default)
  reconcile   One reconciliation sweep, then exit
  rates       Print the effective rate table as JSON

STARTUP SEQUENCE (serve):
  1. Load config (defaults, file, REVURDERING_* env, flags)
  2. Open the store (sqlite or memory)
  3. Load the rate table
  4. Wire ledger and collaborator clients, service, metrics
  5. Start reconciler and HTTP server
  6. Wait for SIGINT/SIGTERM, then shut down

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reconciler after its current sweep
  4. Close database connection

EXAMPLES:
  ./server serve --db ./data/revurdering.db
  ./server serve --store memory --port 3000
  REVURDERING_RECONCILER_INTERVAL=1m ./server serve
  ./server reconcile --db ./data/revurdering.db

COLLABORATORS:
  The ledger, document, task and identity clients are the in-process stubs
  from client/stubs until the real integrations exist.

SEE ALSO:
  - config/config.go: Keys and precedence
  - api/server.go: Router configuration
  - execution/reconciler.go: Background sweeps
*/
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/navikt/su-se-bakover-sub005/api"
	"github.com/navikt/su-se-bakover-sub005/calculation"
	"github.com/navikt/su-se-bakover-sub005/client/stubs"
	"github.com/navikt/su-se-bakover-sub005/config"
	"github.com/navikt/su-se-bakover-sub005/execution"
	"github.com/navikt/su-se-bakover-sub005/factory"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/service"
	"github.com/navikt/su-se-bakover-sub005/store"
	"github.com/navikt/su-se-bakover-sub005/store/memory"
	"github.com/navikt/su-se-bakover-sub005/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	root := &cobra.Command{
		Use:          "server",
		Short:        "Benefit revision engine",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./revurdering.yaml if present)")
	flags.Int("port", 8080, "HTTP server port")
	flags.String("db", "./revurdering.db", `SQLite database path (":memory:" for in-memory)`)
	flags.String("store", "sqlite", "store backend: sqlite or memory")
	flags.String("rates", "", "rate table file, JSON or YAML (default: built-in)")
	for key, name := range map[string]string{"port": "port", "db": "db", "store": "store", "rates_file": "rates"} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	load := func() (*config.Config, error) { return config.Load(v, configFile) }

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	root.RunE = serve.RunE

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runReconcile(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	rates := &cobra.Command{
		Use:   "rates",
		Short: "Print the effective rate table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			f := factory.NewRateFactory()
			rt, err := f.LoadFile(cfg.RatesFile)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(f.ToJSON(rt))
		},
	}

	root.AddCommand(serve, reconcile, rates)
	return root
}

// =============================================================================
// WIRING
// =============================================================================

type app struct {
	repo    store.TxRepository
	closer  io.Closer
	rates   calculation.RateTable
	ledger  *stubs.Ledger
	clock   generic.Clock
	reg     *prometheus.Registry
	service *service.Service
}

func wire(cfg *config.Config) (*app, error) {
	a := &app{clock: generic.SystemClock{}, reg: prometheus.NewRegistry()}

	switch cfg.Store {
	case "memory":
		a.repo = memory.NewTx()
		log.Println("[Server] Using in-memory store")
	default:
		db, err := sqlite.New(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.repo, a.closer = db, db
		log.Printf("[Server] Using SQLite store at %s", cfg.DB)
	}

	rates, err := factory.NewRateFactory().LoadFile(cfg.RatesFile)
	if err != nil {
		a.close()
		return nil, err
	}
	a.rates = rates

	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.ledger = stubs.NewLedger(a.clock)
	a.service = service.New(service.Config{
		Repo:      a.repo,
		Rates:     rates,
		Ledger:    a.ledger,
		Documents: stubs.NewDocuments(a.clock),
		Tasks:     stubs.NewTasks(),
		Identity:  stubs.NewIdentity(),
		Clock:     a.clock,
		Metrics:   execution.MustNewMetrics(a.reg),
	})
	return a, nil
}

func (a *app) close() {
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			log.Printf("[Server] Failed to close store: %v", err)
		}
	}
}

func (a *app) reconciler(cfg *config.Config) *execution.Reconciler {
	r := execution.NewReconciler(a.service.Orchestrator(), a.repo, a.service.Locks())
	r.Enabled = cfg.Reconciler.Enabled
	r.Interval = cfg.Reconciler.Interval
	r.Concurrency = cfg.Reconciler.Concurrency
	return r
}

// =============================================================================
// COMMANDS
// =============================================================================

func runServe(cfg *config.Config) error {
	a, err := wire(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	rec := a.reconciler(cfg)
	handler := api.NewHandler(a.service, rec, api.NewScenarios(a.service, a.rates, a.ledger, a.clock))
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORSOrigins,
		Gatherer:       a.reg,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	rec.Start()
	errs := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on http://localhost:%d", cfg.Port)
		log.Printf("[Server] API at http://localhost:%d/api, metrics at /metrics", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errs:
		rec.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("[Server] Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		rec.Stop()
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	rec.Stop()
	log.Println("[Server] Stopped")
	return nil
}

func runReconcile(ctx context.Context, cfg *config.Config, out io.Writer) error {
	a, err := wire(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.reconciler(cfg).RunOnce(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(res)
}
