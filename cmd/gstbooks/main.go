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

	"github.com/odyssey-erp/gstbooks/cmd/gstbooks/cli"
	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/mappings"
	"github.com/odyssey-erp/gstbooks/internal/accounting/reports"
	"github.com/odyssey-erp/gstbooks/internal/accounting/vouchers"
	"github.com/odyssey-erp/gstbooks/internal/app"
	"github.com/odyssey-erp/gstbooks/internal/masterdata/taxes"
	"github.com/odyssey-erp/gstbooks/internal/observability"
	"github.com/odyssey-erp/gstbooks/internal/platform/cache"
	"github.com/odyssey-erp/gstbooks/internal/platform/db"
	"github.com/odyssey-erp/gstbooks/internal/shared"
	"github.com/odyssey-erp/gstbooks/jobs"
)

const usage = `usage: gstbooks <command> [flags]

commands:
  serve                          run the HTTP API (default)
  migrate [up|down] [-steps N]   apply or roll back schema migrations
  rates import [-dry-run] [-json] FILE
                                 import GST rates from CSV ("-" for stdin)
  jobs trigger gl-integrity [-tenant ID] [-lookback DAYS]
  jobs stats [-queue NAME]
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	var code int
	switch cmd {
	case "serve":
		code = serve(ctx, cfg, logger)
	case "migrate":
		code = migrateCmd(cfg, logger, args)
	case "rates":
		code = ratesCmd(ctx, cfg, logger, args)
	case "jobs":
		code = jobsCmd(ctx, cfg, args)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		code = 2
	}
	stop()
	os.Exit(code)
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	pool, err := db.New(ctx, cfg.PoolConfig())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisConfig())
	if err != nil {
		logger.Warn("redis unavailable, rate cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	redisOpts := cfg.RedisConfig().QueueOpt()
	queue := jobs.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	svc, err := app.NewServices(app.ServiceDeps{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Queue:   queue.Enqueuer(),
		Metrics: metrics,
	})
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		return 1
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accounts.NewHandler(logger, svc.Accounts),
		VouchersHandler: vouchers.NewHandler(logger, svc.Vouchers),
		BillsHandler:    bills.NewHandler(logger, svc.Bills),
		ReportsHandler:  reports.NewHandler(logger, svc.Reports),
		TaxesHandler:    taxes.NewHandler(logger, svc.Rates),
		MappingsHandler: mappings.NewHandler(logger, svc.Mappings),
		JobHandler:      jobs.NewHandler(inspector, logger, jobs.QueueDefault, cfg.EInvoiceQueue),
		Metrics:         metrics,
		Idempotency:     shared.NewIdempotencyStore(pool),
		Ready: func(r *http.Request) error {
			return pool.Ping(r.Context())
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server", slog.Any("error", err))
			return 1
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}

func migrateCmd(cfg *app.Config, logger *slog.Logger, args []string) int {
	direction := "up"
	if len(args) > 0 && (args[0] == "up" || args[0] == "down") {
		direction, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	steps := fs.Int("steps", 0, "number of migrations to apply (down defaults to 1)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m, err := db.NewMigrator(cfg.PGDSN, logger)
	if err != nil {
		logger.Error("open migrator", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", slog.Any("error", err))
		}
	}()

	switch {
	case direction == "down":
		n := *steps
		if n <= 0 {
			n = 1
		}
		err = m.Steps(-n)
	case *steps > 0:
		err = m.Steps(*steps)
	default:
		err = m.Up()
	}
	if err != nil {
		logger.Error("migrate", slog.String("direction", direction), slog.Any("error", err))
		return 1
	}
	return 0
}

func ratesCmd(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if len(args) == 0 || args[0] != "import" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet("rates import", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "parse and validate the file without storing it")
	jsonOut := fs.Bool("json", false, "print a JSON summary")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	opts := cli.RatesImportOptions{Path: fs.Arg(0), DryRun: *dryRun, JSONOutput: *jsonOut}
	if *dryRun {
		return cli.NewRatesCLI(nil).ImportCommand(ctx, opts)
	}

	pool, err := db.New(ctx, cfg.PoolConfig())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	var rateCache *taxes.Cache
	if redisClient, err := cache.New(ctx, cfg.RedisConfig()); err != nil {
		logger.Warn("redis unavailable, cached rates will expire by ttl", slog.Any("error", err))
	} else {
		defer redisClient.Close()
		rateCache = taxes.NewCache(redisClient, cfg.RateCacheTTL)
	}
	policy, err := cfg.MoneyPolicy()
	if err != nil {
		logger.Error("money policy", slog.Any("error", err))
		return 1
	}
	resolver := taxes.NewResolver(taxes.NewRepository(pool, cfg.TxOptions()), rateCache, policy, logger)
	return cli.NewRatesCLI(resolver).ImportCommand(ctx, opts)
}

func jobsCmd(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	c := cli.NewJobsCLI(cfg.RedisConfig().QueueOpt())
	defer c.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		tenant := fs.Int64("tenant", 0, "restrict the scan to one tenant")
		lookback := fs.Int("lookback", 0, "only scan vouchers touched in the last N days")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		info, err := c.Trigger(ctx, args[1], cli.TriggerOptions{TenantID: *tenant, LookbackDays: *lookback})
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		fs := flag.NewFlagSet("jobs stats", flag.ContinueOnError)
		queue := fs.String("queue", jobs.QueueDefault, "queue name")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		stats, err := c.InspectQueue(ctx, *queue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}
