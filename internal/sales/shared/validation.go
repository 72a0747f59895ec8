package shared

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RatePlaces is the stored scale of every percentage column.
const RatePlaces = 2

// ValidateRate checks a percentage lies in [0, 100] and fits the stored scale,
// so totals recomputed from persisted rates match the ones returned on write.
func ValidateRate(field string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s must be between 0 and 100", httpx.ErrValidation, field)
	}
	if !rate.Equal(rate.Round(RatePlaces)) {
		return fmt.Errorf("%w: %s allows %d decimals", httpx.ErrValidation, field, RatePlaces)
	}
	return nil
}

// ValidateLines checks quantities, prices, rates and scales of line inputs.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one item is required", httpx.ErrValidation)
	}
	for i, line := range lines {
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: items[%d].quantity must be positive", httpx.ErrValidation, i)
		}
		if !line.Quantity.Equal(line.Quantity.Round(3)) {
			return fmt.Errorf("%w: items[%d].quantity allows 3 decimals", httpx.ErrValidation, i)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: items[%d].unit_price must not be negative", httpx.ErrValidation, i)
		}
		if !line.UnitPrice.Equal(line.UnitPrice.Round(MoneyPlaces)) {
			return fmt.Errorf("%w: items[%d].unit_price allows 2 decimals", httpx.ErrValidation, i)
		}
		if err := ValidateRate(fmt.Sprintf("items[%d].line_discount_rate", i), line.LineDiscountRate); err != nil {
			return err
		}
		if line.TaxRate != nil {
			if err := ValidateRate(fmt.Sprintf("items[%d].tax_rate", i), *line.TaxRate); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResolveCurrency normalizes requested, falling back to the configured default.
func ResolveCurrency(requested, fallback string) (string, error) {
	if requested == "" {
		return fallback, nil
	}
	code, err := shared.NormalizeCurrency(requested)
	if err != nil {
		return "", fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return code, nil
}
