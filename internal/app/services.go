package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/dashboard"
	"github.com/odyssey-erp/odyssey-ledger/internal/hr/leave"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/quotations"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Services holds every domain service, wired against one pool and one redis client.
type Services struct {
	Audit       *shared.AuditLogger
	Idempotency *shared.IdempotencyStore
	Cache       *dashboard.Cache

	MasterData *masterdata.Service
	Quotes     *quotations.Service
	Orders     *orders.Service
	Invoices   *invoices.Service
	AR         *ar.Engine
	Inventory  *inventory.Service
	Leave      *leave.Service
	Dashboard  *dashboard.Service
}

// NewServices builds the service graph. The dashboard cache doubles as the change
// notifier so ledger writes invalidate cached summaries.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) *Services {
	audit := shared.NewAuditLogger(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)
	cache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)

	md := masterdata.NewService(masterdata.NewRepository(pool), logger)

	stock := inventory.NewService(inventory.NewRepository(pool), md, audit, cache, metrics, logger.With(slog.String("module", "inventory")))

	engine := ar.NewEngine(ar.NewRepository(pool), idempotency, cache, audit, metrics, logger.With(slog.String("module", "ar")), ar.Config{
		DefaultCurrency: cfg.DefaultCurrency,
	})

	quotes := quotations.NewService(quotations.NewRepository(pool), md, audit, metrics, logger.With(slog.String("module", "quotations")), quotations.ServiceConfig{
		DefaultCurrency: cfg.DefaultCurrency,
	})
	salesOrders := orders.NewService(orders.NewRepository(pool), md, quotes, stock, audit, metrics, logger.With(slog.String("module", "orders")), orders.ServiceConfig{
		DefaultCurrency: cfg.DefaultCurrency,
	})
	salesInvoices := invoices.NewService(invoices.NewRepository(pool), invoices.Ports{
		Refs:       md,
		Orders:     salesOrders,
		Receivable: engine,
		Settlement: engine,
		Notifier:   cache,
		Audit:      audit,
	}, metrics, logger.With(slog.String("module", "invoices")), invoices.ServiceConfig{
		DefaultCurrency: cfg.DefaultCurrency,
	})

	return &Services{
		Audit:       audit,
		Idempotency: idempotency,
		Cache:       cache,
		MasterData:  md,
		Quotes:      quotes,
		Orders:      salesOrders,
		Invoices:    salesInvoices,
		AR:          engine,
		Inventory:   stock,
		Leave:       leave.NewService(leave.NewRepository(pool), audit, logger.With(slog.String("module", "leave"))),
		Dashboard:   dashboard.NewService(dashboard.NewRepository(pool), engine, cache, logger.With(slog.String("module", "dashboard"))),
	}
}
