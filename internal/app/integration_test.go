//go:build integration

package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/quotations"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LedgerIntegrationSuite runs the services against real Postgres and Redis containers.
type LedgerIntegrationSuite struct {
	suite.Suite
	ctx      context.Context
	pool     *pgxpool.Pool
	redis    *redis.Client
	services *Services
}

func TestLedgerIntegration(t *testing.T) {
	suite.Run(t, new(LedgerIntegrationSuite))
}

func (s *LedgerIntegrationSuite) SetupSuite() {
	t := s.T()
	s.ctx = context.Background()

	pgC, err := tcPostgres.RunContainer(s.ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcPostgres.WithDatabase("odyssey_test"),
		tcPostgres.WithUsername("odyssey"),
		tcPostgres.WithPassword("odyssey"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	dsn, err := pgC.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(dsn, "up"))

	rdC, err := tcRedis.RunContainer(s.ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })

	redisURL, err := rdC.ConnectionString(s.ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	s.redis = redis.NewClient(opts)
	t.Cleanup(func() { _ = s.redis.Close() })

	s.pool, err = db.New(s.ctx, dsn, db.PoolOptions{MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(s.pool.Close)

	cfg := &Config{DefaultCurrency: "TRY", DashboardCacheTTL: time.Minute}
	s.services = NewServices(cfg, s.pool, s.redis, observability.NewMetrics(), NewLogger(&Config{LogFormat: "json"}))
}

type fixture struct {
	org       uuid.UUID
	partner   masterdata.Partner
	product   masterdata.Product
	warehouse masterdata.Warehouse
}

func (s *LedgerIntegrationSuite) newFixture(stock string) fixture {
	t := s.T()
	org := uuid.New()
	md := s.services.MasterData

	partner, err := md.CreatePartner(s.ctx, org, masterdata.CreatePartnerRequest{Name: "Acme", Kind: "customer"})
	require.NoError(t, err)
	product, err := md.CreateProduct(s.ctx, org, masterdata.CreateProductRequest{
		SKU: "SKU-1", Name: "Widget", Price: decimal.RequireFromString("100"), RestockLevel: decimal.RequireFromString("5"),
	})
	require.NoError(t, err)
	warehouse, err := md.CreateWarehouse(s.ctx, org, masterdata.CreateWarehouseRequest{Code: "MAIN", Name: "Main", IsDefault: true})
	require.NoError(t, err)

	if stock != "" {
		_, err = s.services.Inventory.CreateMovement(s.ctx, org, inventory.MovementInput{
			ProductID:   product.ID,
			WarehouseID: warehouse.ID,
			Direction:   inventory.DirectionIn,
			Quantity:    decimal.RequireFromString(stock),
			Reason:      "opening",
		})
		require.NoError(t, err)
	}
	return fixture{org: org, partner: partner, product: product, warehouse: warehouse}
}

func (s *LedgerIntegrationSuite) TestQuoteToCashFlow() {
	t := s.T()
	f := s.newFixture("10")

	quote, err := s.services.Quotes.Create(s.ctx, f.org, quotations.CreateQuoteRequest{
		PartnerID: f.partner.ID,
		Items: []sales.LineInput{{
			ProductID: f.product.ID,
			Quantity:  decimal.RequireFromString("4"),
			UnitPrice: decimal.RequireFromString("100"),
		}},
	})
	require.NoError(t, err)
	_, err = s.services.Quotes.Transition(s.ctx, f.org, quote.ID, sales.QuoteSent)
	require.NoError(t, err)
	_, err = s.services.Quotes.Transition(s.ctx, f.org, quote.ID, sales.QuoteApproved)
	require.NoError(t, err)

	order, err := s.services.Orders.ConvertQuote(s.ctx, f.org, quote.ID)
	require.NoError(t, err)
	require.Equal(t, sales.OrderNew, order.Status)
	require.True(t, quote.GrandTotal.Equal(order.GrandTotal))

	_, err = s.services.Orders.Transition(s.ctx, f.org, order.ID, sales.OrderConfirmed)
	require.NoError(t, err)
	order, err = s.services.Orders.Fulfill(s.ctx, f.org, order.ID)
	require.NoError(t, err)
	require.Equal(t, sales.OrderFulfilled, order.Status)

	stock, err := s.services.Inventory.GetStock(s.ctx, f.org, f.product.ID, nil)
	require.NoError(t, err)
	require.True(t, stock.Quantity.Equal(decimal.RequireFromString("6")), "got %s", stock.Quantity)

	invoice, err := s.services.Invoices.Create(s.ctx, f.org, invoices.CreateInvoiceRequest{
		PartnerID: f.partner.ID,
		OrderID:   &order.ID,
	})
	require.NoError(t, err)
	require.Len(t, invoice.Items, 1)
	invoice, err = s.services.Invoices.Transition(s.ctx, f.org, invoice.ID, sales.InvoiceIssued)
	require.NoError(t, err)

	balance, err := s.services.AR.PartnerBalance(s.ctx, f.org, f.partner.ID)
	require.NoError(t, err)
	require.True(t, balance.TotalDue.Equal(invoice.GrandTotal))

	_, err = s.services.Invoices.Transition(s.ctx, f.org, invoice.ID, sales.InvoicePaid)
	require.ErrorIs(t, err, shared.ErrUnsettledBalance)

	result, err := s.services.AR.PostPayment(s.ctx, f.org, ar.PaymentRequest{
		PartnerID: f.partner.ID,
		Amount:    invoice.GrandTotal,
	}, "pay-"+invoice.ID.String())
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.True(t, result.UnappliedAmount.IsZero())

	_, err = s.services.AR.PostPayment(s.ctx, f.org, ar.PaymentRequest{
		PartnerID: f.partner.ID,
		Amount:    invoice.GrandTotal,
	}, "pay-"+invoice.ID.String())
	require.Error(t, err, "replayed idempotency key")

	invoice, err = s.services.Invoices.Transition(s.ctx, f.org, invoice.ID, sales.InvoicePaid)
	require.NoError(t, err)
	require.Equal(t, sales.InvoicePaid, invoice.Status)

	summary, err := s.services.Dashboard.Summary(s.ctx, f.org, 5)
	require.NoError(t, err)
	require.True(t, summary.Sales.Today.Equal(invoice.GrandTotal))
	require.True(t, summary.Receivables.OpenTotal.IsZero())
	require.Len(t, summary.TopCustomers, 1)
}

func (s *LedgerIntegrationSuite) TestConcurrentStockOutNeverGoesNegative() {
	t := s.T()
	f := s.newFixture("5")

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		failures  []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.services.Inventory.CreateMovement(s.ctx, f.org, inventory.MovementInput{
				ProductID:   f.product.ID,
				WarehouseID: f.warehouse.ID,
				Direction:   inventory.DirectionOut,
				Quantity:    decimal.RequireFromString("1"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shared.ErrInsufficientStock):
				rejected++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
	require.Equal(t, 5, succeeded)
	require.Equal(t, workers-5, rejected)

	stock, err := s.services.Inventory.GetStock(s.ctx, f.org, f.product.ID, &f.warehouse.ID)
	require.NoError(t, err)
	require.True(t, stock.Quantity.IsZero(), "got %s", stock.Quantity)

	report, err := s.services.Inventory.Reconcile(s.ctx)
	require.NoError(t, err)
	require.Empty(t, report.Drifts)
}

func (s *LedgerIntegrationSuite) TestConcurrentPaymentsNeverOverallocate() {
	t := s.T()
	f := s.newFixture("")

	invoice, err := s.services.Invoices.Create(s.ctx, f.org, invoices.CreateInvoiceRequest{
		PartnerID: f.partner.ID,
		Items: []sales.LineInput{{
			ProductID: f.product.ID,
			Quantity:  decimal.RequireFromString("1"),
			UnitPrice: decimal.RequireFromString("100"),
		}},
	})
	require.NoError(t, err)
	invoice, err = s.services.Invoices.Transition(s.ctx, f.org, invoice.ID, sales.InvoiceIssued)
	require.NoError(t, err)

	const workers = 6
	share := invoice.GrandTotal.Div(decimal.NewFromInt(3)).Round(2)
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.services.AR.PostPayment(s.ctx, f.org, ar.PaymentRequest{
				PartnerID: f.partner.ID,
				Amount:    share,
			}, "")
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	remaining, err := s.services.AR.Remaining(s.ctx, f.org, invoice.ID)
	require.NoError(t, err)
	require.False(t, remaining.IsNegative(), "remaining %s", remaining)
	require.True(t, remaining.IsZero(), "remaining %s", remaining)

	var allocated decimal.Decimal
	require.NoError(t, s.pool.QueryRow(s.ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ar_allocations WHERE invoice_id = $1`, invoice.ID).Scan(&allocated))
	require.True(t, allocated.Equal(invoice.GrandTotal), "allocated %s of %s", allocated, invoice.GrandTotal)
}
