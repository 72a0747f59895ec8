package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Document number prefixes.
const (
	PrefixQuote   = "Q"
	PrefixOrder   = "S"
	PrefixInvoice = "I"
)

// FormatNumber renders {PREFIX}-{year}-{seq:05d}.
func FormatNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq)
}

// NextNumber allocates the next number for prefix in the year of date.
// The upsert takes a row lock on the counter that is held until the surrounding
// transaction ends, so concurrent creators serialize on it.
func NextNumber(ctx context.Context, conn db.DBTX, prefix string, date time.Time) (string, error) {
	year := date.Year()
	var seq int64
	err := conn.QueryRow(ctx, `
		INSERT INTO document_sequences (prefix, year, last_value) VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year) DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value`, prefix, year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", prefix, err)
	}
	return FormatNumber(prefix, year, seq), nil
}
