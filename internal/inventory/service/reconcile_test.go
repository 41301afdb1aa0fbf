package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestReplayBalance(t *testing.T) {
	t.Run("applies movements in order", func(t *testing.T) {
		movements := []repository.Movement{
			{Kind: repository.MovementDelivery, RefID: 1, Quantity: dec("10")},
			{Kind: repository.MovementUsage, RefID: 1, Quantity: dec("-4")},
			{Kind: repository.MovementWaste, RefID: 1, Quantity: dec("-1.5")},
		}

		balance, err := ReplayBalance(dec("2"), movements)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec("6.5")), "got %s", balance)
	})

	t.Run("no movements keeps the opening balance", func(t *testing.T) {
		balance, err := ReplayBalance(dec("3"), nil)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec("3")))
	})

	t.Run("reaching exactly zero is allowed", func(t *testing.T) {
		balance, err := ReplayBalance(dec("5"), []repository.Movement{
			{Kind: repository.MovementUsage, RefID: 7, Quantity: dec("-5")},
		})
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("fails on the first negative prefix", func(t *testing.T) {
		movements := []repository.Movement{
			{Kind: repository.MovementUsage, RefID: 1, Quantity: dec("-2")},
			{Kind: repository.MovementUsage, RefID: 2, Quantity: dec("-2")},
			{Kind: repository.MovementDelivery, RefID: 3, Quantity: dec("10")},
		}

		_, err := ReplayBalance(dec("3"), movements)
		require.Error(t, err)

		var negErr *NegativeBalanceError
		require.ErrorAs(t, err, &negErr)
		assert.Equal(t, 1, negErr.Index)
		assert.Equal(t, int64(2), negErr.Movement.RefID)
		assert.True(t, negErr.Balance.Equal(dec("-1")))
		assert.Contains(t, err.Error(), "movement 1 (usage 2)")
	})
}

func TestReconcileTotals(t *testing.T) {
	totals := []repository.ItemTotals{
		{
			ItemID: 1, ItemName: "Flour",
			QuantityOnHand: dec("12"), OpeningQuantity: dec("5"),
			Delivered: dec("10"), Used: dec("2.5"), Wasted: dec("0.5"),
		},
		{
			ItemID: 2, ItemName: "Sugar",
			QuantityOnHand: dec("9"), OpeningQuantity: dec("0"),
			Delivered: dec("10"), Used: dec("0"), Wasted: dec("0"),
		},
	}

	report := reconcileTotals(totals)

	require.Len(t, report.Items, 2)
	assert.Equal(t, 2, report.ItemsChecked)
	assert.Equal(t, 1, report.ItemsDrifting)
	assert.False(t, report.Consistent)

	flour := report.Items[0]
	assert.True(t, flour.Expected.Equal(dec("12")))
	assert.True(t, flour.Drift.IsZero())
	assert.True(t, flour.Consistent)

	sugar := report.Items[1]
	assert.True(t, sugar.Expected.Equal(dec("10")))
	assert.True(t, sugar.Drift.Equal(dec("-1")))
	assert.False(t, sugar.Consistent)
}

func TestReconcileTotals_Empty(t *testing.T) {
	report := reconcileTotals(nil)

	assert.NotNil(t, report.Items)
	assert.Empty(t, report.Items)
	assert.Equal(t, 0, report.ItemsChecked)
	assert.True(t, report.Consistent)
}

func TestLowStockSeverity(t *testing.T) {
	tests := []struct {
		name     string
		onHand   string
		reorder  string
		expected string
	}{
		{"out of stock", "0", "10", repository.SeverityCritical},
		{"below half the reorder point", "4", "10", repository.SeverityHigh},
		{"exactly half the reorder point", "5", "10", repository.SeverityMedium},
		{"at the reorder point", "10", "10", repository.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &repository.StockBalance{QuantityOnHand: dec(tt.onHand), ReorderPoint: dec(tt.reorder)}
			assert.Equal(t, tt.expected, LowStockSeverity(b))
		})
	}
}

func TestExpirySeverity(t *testing.T) {
	assert.Equal(t, repository.SeverityCritical, ExpirySeverity(-1))
	assert.Equal(t, repository.SeverityHigh, ExpirySeverity(0))
	assert.Equal(t, repository.SeverityHigh, ExpirySeverity(2))
	assert.Equal(t, repository.SeverityMedium, ExpirySeverity(3))
	assert.Equal(t, repository.SeverityMedium, ExpirySeverity(7))
}

func TestStockBalance_IsLow(t *testing.T) {
	low := repository.StockBalance{QuantityOnHand: dec("3"), ReorderPoint: dec("3")}
	assert.True(t, low.IsLow())

	healthy := repository.StockBalance{QuantityOnHand: dec("3.01"), ReorderPoint: dec("3")}
	assert.False(t, healthy.IsLow())

	noReorderPoint := repository.StockBalance{QuantityOnHand: dec("0"), ReorderPoint: dec("0")}
	assert.False(t, noReorderPoint.IsLow())
}

func TestOptionalTimestamp(t *testing.T) {
	zero, err := optionalTimestamp(nil)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	ts := "2024-03-01T12:30:00Z"
	parsed, err := optionalTimestamp(&ts)
	require.NoError(t, err)
	assert.Equal(t, 12, parsed.Hour())

	date := "2024-03-01"
	parsed, err = optionalTimestamp(&date)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", parsed.Format("2006-01-02"))

	bad := "yesterday"
	_, err = optionalTimestamp(&bad)
	assert.Error(t, err)
}

func TestSaleMessage(t *testing.T) {
	withRecipe := &SaleSummary{
		MenuItemName: "Pancakes",
		QuantitySold: 2,
		Deductions: []SaleDeduction{
			{ItemName: "Flour"},
			{ItemName: "Milk"},
		},
	}
	assert.Equal(t, "Recorded sale of 2 x Pancakes; deducted Flour, Milk", saleMessage(withRecipe))

	withoutRecipe := &SaleSummary{MenuItemName: "Tap Water", QuantitySold: 1}
	assert.Contains(t, saleMessage(withoutRecipe), "no stock was deducted")
}

func TestQuantityError(t *testing.T) {
	tests := []struct {
		name      string
		qty       string
		allowZero bool
		expected  string
	}{
		{"whole quantity", "12", false, ""},
		{"three decimal places", "0.125", false, ""},
		{"trailing zeros", "2.5000", false, ""},
		{"largest storable value", "99999999999.999", false, ""},
		{"zero movement", "0", false, "must be greater than zero"},
		{"zero opening balance", "0", true, ""},
		{"negative opening balance", "-1", true, "must not be negative"},
		{"negative movement", "-0.5", false, "must be greater than zero"},
		{"four decimal places", "1.0005", false, "must have at most 3 decimal places"},
		{"too large", "100000000000", false, "must be less than 100000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, quantityError(dec(tt.qty), tt.allowZero))
		})
	}
}
