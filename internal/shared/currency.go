package shared

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// NormalizeCurrency validates an ISO 4217 code and returns its canonical form.
func NormalizeCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return unit.String(), nil
}
