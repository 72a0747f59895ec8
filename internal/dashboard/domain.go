package dashboard

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
)

// DefaultTopCustomers is the size of the top customers panel.
const DefaultTopCustomers = 5

// topCustomerWindow is how far back the top customers panel looks.
const topCustomerWindow = 90 * 24 * time.Hour

// SalesSummary totals ISSUED and PAID invoices.
type SalesSummary struct {
	Today       decimal.Decimal `json:"today"`
	MonthToDate decimal.Decimal `json:"month_to_date"`
}

// ARSummary is the receivable position of the org.
type ARSummary struct {
	OpenTotal decimal.Decimal `json:"open_total"`
	Aging     ar.AgingReport  `json:"aging"`
}

// LowStockItem is an active product below its restock level.
type LowStockItem struct {
	ProductID    uuid.UUID       `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	RestockLevel decimal.Decimal `json:"restock_level"`
}

// CustomerTotal is the invoiced amount of one partner.
type CustomerTotal struct {
	PartnerID uuid.UUID       `json:"partner_id"`
	Name      string          `json:"name"`
	Total     decimal.Decimal `json:"total"`
}

// Summary is the response of GET /dashboard/summary.
type Summary struct {
	AsOf         time.Time       `json:"as_of"`
	Sales        SalesSummary    `json:"sales"`
	Receivables  ARSummary       `json:"receivables"`
	LowStock     []LowStockItem  `json:"low_stock"`
	TopCustomers []CustomerTotal `json:"top_customers"`
}
