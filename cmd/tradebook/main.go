package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/tradebook/cmd/tradebook/cli"
	"github.com/odyssey-erp/tradebook/internal/accounting/journals"
	"github.com/odyssey-erp/tradebook/internal/app"
	"github.com/odyssey-erp/tradebook/internal/ar"
	"github.com/odyssey-erp/tradebook/internal/inventory"
	"github.com/odyssey-erp/tradebook/internal/observability"
	"github.com/odyssey-erp/tradebook/internal/platform/cache"
	"github.com/odyssey-erp/tradebook/internal/platform/db"
	"github.com/odyssey-erp/tradebook/internal/sales"
	"github.com/odyssey-erp/tradebook/internal/shared"
	"github.com/odyssey-erp/tradebook/jobs"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "calc":
			os.Exit(runCalc(os.Args[2:]))
		case "jobs":
			os.Exit(runJobs(os.Args[2:]))
		case "serve":
		default:
			_, _ = fmt.Fprintf(os.Stderr, "usage: tradebook [serve|calc|jobs]\n")
			os.Exit(2)
		}
	}

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	if err := serve(); err != nil {
		slog.Default().Error("tradebook", slog.Any("error", err))
		os.Exit(1)
	}
}

func runCalc(args []string) int {
	cfg, err := app.LoadConfig(".env")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "calc: load config: %v\n", err)
		return 1
	}
	fs := flag.NewFlagSet("calc", flag.ContinueOnError)
	locale := fs.String("locale", cfg.DefaultLocale, "BCP 47 locale used to format amounts")
	currency := fs.String("currency", cfg.DefaultCurrency, "ISO 4217 currency code")
	jsonOut := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return cli.CalcCommand(cli.CalcOptions{Locale: *locale, Currency: *currency, JSONOutput: *jsonOut})
}

func runJobs(args []string) int {
	cfg, err := app.LoadConfig(".env")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jobs: load config: %v\n", err)
		return 1
	}
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	trigger := fs.String("trigger", "", "job to enqueue (sales:totals_refresh or ar:settlement_sweep)")
	kind := fs.String("kind", "INVOICE", "document kind for sales:totals_refresh")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	jobsCLI := cli.NewJobsCLI(redisOpts(cfg))
	defer func() { _ = jobsCLI.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if *trigger != "" {
		info, err := jobsCLI.Trigger(ctx, *trigger, *kind)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	}
	stats, err := jobsCLI.InspectQueue()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(os.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return 0
}

func redisOpts(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: "tradebook"})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	locker := shared.NewRedisLocker(redisClient, cfg.LockTTL)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	totalsCache := cache.NewJSONCache(redisClient, "sales:totals", cfg.TotalsCacheTTL)

	arService := ar.NewService(ar.NewRepository(dbpool), locker, idempotencyStore, logger)
	salesService := sales.NewService(sales.NewRepository(dbpool), totalsCache, arService, logger)
	journalsService := journals.NewService(journals.NewRepository(dbpool), logger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), locker, idempotencyStore, logger)

	inspector := asynq.NewInspector(redisOpts(cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SalesHandler:     sales.NewHandler(logger, salesService, metrics),
		JournalsHandler:  journals.NewHandler(logger, journalsService, metrics),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, metrics),
		ARHandler:        ar.NewHandler(logger, arService, metrics),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Health: map[string]app.HealthCheck{
			"postgres": func(r *http.Request) error { return pingPool(r.Context(), dbpool) },
			"redis":    func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func pingPool(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pool.Ping(ctx)
}
