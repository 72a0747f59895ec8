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

	"github.com/odyssey-erp/odyssey-ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/auth"
	"github.com/odyssey-erp/odyssey-ledger/internal/dashboard"
	"github.com/odyssey-erp/odyssey-ledger/internal/hr/leave"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/quotations"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

const usage = `usage: odyssey <command>

commands:
  serve                         run the HTTP API (default)
  migrate up|down               apply or revert schema migrations
  jobs trigger <task>           enqueue a periodic task now
  jobs list                     list periodic tasks and schedules
  jobs stats                    show default queue counters
  token -org <id> [-role admin] mint an access token`

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
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		direction := "up"
		if len(args) > 0 {
			direction = args[0]
		}
		err = db.Migrate(cfg.PGDSN, direction)
		if err == nil {
			logger.Info("migrations applied", slog.String("direction", direction))
		}
	case "jobs":
		err = runJobs(ctx, cfg, args)
	case "token":
		err = issueToken(cfg, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.PGDSN, "up"); err != nil {
			return err
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services := app.NewServices(cfg, pool, redisClient, metrics, logger)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	inspector := asynq.NewInspector(redisOpts(cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		Tokens:            auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		DB:                pool,
		MasterDataHandler: masterdata.NewHandler(logger, services.MasterData, rbacMiddleware),
		QuoteHandler:      quotations.NewHandler(logger, services.Quotes, rbacMiddleware),
		OrderHandler:      orders.NewHandler(logger, services.Orders, rbacMiddleware),
		InvoiceHandler:    invoices.NewHandler(logger, services.Invoices, rbacMiddleware),
		ARHandler:         ar.NewHandler(logger, services.AR, rbacMiddleware),
		InventoryHandler:  inventory.NewHandler(logger, services.Inventory, rbacMiddleware),
		LeaveHandler:      leave.NewHandler(logger, services.Leave, rbacMiddleware),
		DashboardHandler:  dashboard.NewHandler(logger, services.Dashboard, rbacMiddleware),
		JobHandler:        jobs.NewHandler(inspector, logger),
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
	return server.Shutdown(shutdownCtx)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("jobs: missing subcommand")
	}
	c := cli.NewJobsCLI(redisOpts(cfg))
	defer func() { _ = c.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("jobs trigger: missing task type")
		}
		info, err := c.Trigger(ctx, args[1], time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "list":
		for _, task := range cli.Tasks() {
			fmt.Printf("%-30s %s\n", task.Type, task.Cron)
		}
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
	return nil
}

func issueToken(cfg *app.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	var req cli.TokenRequest
	fs.StringVar(&req.OrgID, "org", "", "organization id")
	fs.StringVar(&req.UserID, "user", "", "user id (random when empty)")
	fs.StringVar(&req.Role, "role", "user", "user or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := cli.IssueToken(auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL), req)
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func redisOpts(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
