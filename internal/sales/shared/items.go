package shared

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// ItemTable names one of the line item tables.
type ItemTable string

const (
	QuoteItems   ItemTable = "quote_items"
	OrderItems   ItemTable = "sales_order_items"
	InvoiceItems ItemTable = "sales_invoice_items"
)

// ReferenceChecker validates that referenced master data exists in the org.
type ReferenceChecker interface {
	CheckPartner(ctx context.Context, orgID, partnerID uuid.UUID) error
	CheckProducts(ctx context.Context, orgID uuid.UUID, productIDs []uuid.UUID) error
}

// ProductIDs lists the distinct products referenced by lines.
func ProductIDs(lines []LineInput) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

// LoadItems reads the items of one document ordered by position.
func LoadItems(ctx context.Context, conn db.DBTX, table ItemTable, documentID uuid.UUID) ([]Item, error) {
	rows, err := conn.Query(ctx, fmt.Sprintf(`
		SELECT id, position, product_id, COALESCE(description, ''), quantity, unit_price,
		       line_discount_rate, tax_rate, line_subtotal, line_tax, line_total
		FROM %s WHERE document_id = $1 ORDER BY position`, table), documentID)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.Position, &it.ProductID, &it.Description, &it.Quantity, &it.UnitPrice,
			&it.LineDiscountRate, &it.TaxRate, &it.LineSubtotal, &it.LineTax, &it.LineTotal)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return items, nil
}

// ReplaceItems deletes the current items of a document and inserts items.
func ReplaceItems(ctx context.Context, conn db.DBTX, table ItemTable, documentID uuid.UUID, items []Item) error {
	if _, err := conn.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, table), documentID); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	insert := fmt.Sprintf(`
		INSERT INTO %s (document_id, position, product_id, description, quantity, unit_price,
		                line_discount_rate, tax_rate, line_subtotal, line_tax, line_total)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`, table)
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(insert, documentID, it.Position, it.ProductID, it.Description, it.Quantity, it.UnitPrice,
			it.LineDiscountRate, it.TaxRate, it.LineSubtotal, it.LineTax, it.LineTotal)
	}
	return sendBatch(ctx, conn, batch, len(items))
}

type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func sendBatch(ctx context.Context, conn db.DBTX, batch *pgx.Batch, n int) error {
	if n == 0 {
		return nil
	}
	b, ok := conn.(batcher)
	if !ok {
		for _, q := range batch.QueuedQueries {
			if _, err := conn.Exec(ctx, q.SQL, q.Arguments...); err != nil {
				return err
			}
		}
		return nil
	}
	results := b.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < n; i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert item %d: %w", i+1, err)
		}
	}
	return nil
}
