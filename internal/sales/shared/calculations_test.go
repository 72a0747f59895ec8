package shared

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s got %s", want, got)
}

func TestCalculateLineReferenceExample(t *testing.T) {
	item := CalculateLine(1, LineInput{
		ProductID:        uuid.New(),
		Quantity:         d("2"),
		UnitPrice:        d("100"),
		LineDiscountRate: d("10"),
	})
	requireDecimal(t, "180", item.LineSubtotal)
	requireDecimal(t, "36", item.LineTax)
	requireDecimal(t, "216", item.LineTotal)
	requireDecimal(t, "20", item.TaxRate)

	totals := CalculateTotals([]Item{item}, decimal.Zero)
	requireDecimal(t, "180", totals.Subtotal)
	requireDecimal(t, "36", totals.TaxTotal)
	require.Equal(t, "216.00", totals.GrandTotal.StringFixed(2))
}

func TestDocumentDiscountReducesSubtotalOnly(t *testing.T) {
	zero := decimal.Zero
	items := BuildItems([]LineInput{
		{ProductID: uuid.New(), Quantity: d("1"), UnitPrice: d("100"), TaxRate: &zero},
		{ProductID: uuid.New(), Quantity: d("3"), UnitPrice: d("10.50")},
	})
	require.Equal(t, 1, items[0].Position)
	require.Equal(t, 2, items[1].Position)

	totals := CalculateTotals(items, d("10"))
	// line subtotals 100 + 31.50, taxes 0 + 6.30
	requireDecimal(t, "118.35", totals.Subtotal)
	requireDecimal(t, "6.30", totals.TaxTotal)
	requireDecimal(t, "124.65", totals.GrandTotal)
}

func TestLineAmountsRoundHalfUpOnce(t *testing.T) {
	rate := d("18")
	item := CalculateLine(1, LineInput{ProductID: uuid.New(), Quantity: d("1.005"), UnitPrice: d("9.99"), LineDiscountRate: d("2.5"), TaxRate: &rate})
	// 1.005 * 9.99 = 10.03995, * 0.975 = 9.78895125 -> 9.79
	requireDecimal(t, "9.79", item.LineSubtotal)
	// 9.79 * 0.18 = 1.7622 -> 1.76
	requireDecimal(t, "1.76", item.LineTax)
	requireDecimal(t, "11.55", item.LineTotal)
}

func TestTotalsRoundTripFromItems(t *testing.T) {
	inputs := []LineInput{
		{ProductID: uuid.New(), Quantity: d("7"), UnitPrice: d("3.33"), LineDiscountRate: d("12.5")},
		{ProductID: uuid.New(), Quantity: d("0.333"), UnitPrice: d("1200")},
	}
	items := BuildItems(inputs)
	first := CalculateTotals(items, d("7.5"))

	again := CalculateTotals(BuildItems(Inputs(items)), d("7.5"))
	require.True(t, first.Subtotal.Equal(again.Subtotal))
	require.True(t, first.TaxTotal.Equal(again.TaxTotal))
	require.True(t, first.GrandTotal.Equal(again.GrandTotal))
	require.True(t, first.GrandTotal.Equal(first.Subtotal.Add(first.TaxTotal)))
}

func TestValidateLines(t *testing.T) {
	ok := []LineInput{{ProductID: uuid.New(), Quantity: d("1.125"), UnitPrice: d("10.10")}}
	require.NoError(t, ValidateLines(ok))

	require.Error(t, ValidateLines(nil))
	require.Error(t, ValidateLines([]LineInput{{ProductID: uuid.New(), Quantity: d("0"), UnitPrice: d("1")}}))
	require.Error(t, ValidateLines([]LineInput{{ProductID: uuid.New(), Quantity: d("1.0001"), UnitPrice: d("1")}}))
	require.Error(t, ValidateLines([]LineInput{{ProductID: uuid.New(), Quantity: d("1"), UnitPrice: d("-1")}}))
	require.Error(t, ValidateLines([]LineInput{{ProductID: uuid.New(), Quantity: d("1"), UnitPrice: d("1.001")}}))
	require.Error(t, ValidateLines([]LineInput{{ProductID: uuid.New(), Quantity: d("1"), UnitPrice: d("1"), LineDiscountRate: d("101")}}))
}

func TestValidateRateRejectsUnstorableScale(t *testing.T) {
	require.NoError(t, ValidateRate("discount_rate", d("12.34")))
	require.ErrorIs(t, ValidateRate("discount_rate", d("12.345")), httpx.ErrValidation)

	product := uuid.New()
	fine := []LineInput{{ProductID: product, Quantity: d("1"), UnitPrice: d("100"), LineDiscountRate: d("33.33")}}
	require.NoError(t, ValidateLines(fine))
	require.Error(t, ValidateLines([]LineInput{{ProductID: product, Quantity: d("1"), UnitPrice: d("100"), LineDiscountRate: d("33.335")}}))
	tax := d("7.125")
	require.Error(t, ValidateLines([]LineInput{{ProductID: product, Quantity: d("1"), UnitPrice: d("100"), TaxRate: &tax}}))

	// an accepted rate survives a NUMERIC(5,2) round trip, so totals do too
	created := CalculateTotals(BuildItems(fine), d("12.34"))
	stored := Inputs(BuildItems(fine))
	for i := range stored {
		stored[i].LineDiscountRate = stored[i].LineDiscountRate.Round(RatePlaces)
	}
	reread := CalculateTotals(BuildItems(stored), d("12.34").Round(RatePlaces))
	require.True(t, created.GrandTotal.Equal(reread.GrandTotal), "created=%s reread=%s", created.GrandTotal, reread.GrandTotal)
}
