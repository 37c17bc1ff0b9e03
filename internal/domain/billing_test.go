package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(menuID uuid.UUID, name string, qty int, price string) OrderItem {
	return OrderItem{ID: uuid.New(), MenuItemID: menuID, Name: name, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestComputeBill(t *testing.T) {
	pasta := uuid.New()
	tea := uuid.New()

	t.Run("single order without discount", func(t *testing.T) {
		orders := []Order{{Items: []OrderItem{line(pasta, "Pasta", 1, "250"), line(tea, "Tea", 2, "70")}}}
		got := ComputeBill(orders, decimal.Zero)
		assert.Equal(t, "390.00", got.ItemsTotal.StringFixed(2))
		assert.Equal(t, "0.00", got.DiscountAmount.StringFixed(2))
		assert.Equal(t, "390.00", got.FinalTotal.StringFixed(2))
	})

	t.Run("percentage discount", func(t *testing.T) {
		orders := []Order{{
			Items:           []OrderItem{line(pasta, "Pasta", 1, "200")},
			DiscountPercent: decimal.NewFromInt(15),
		}}
		got := ComputeBill(orders, decimal.Zero)
		assert.Equal(t, "200.00", got.ItemsTotal.StringFixed(2))
		assert.Equal(t, "30.00", got.DiscountAmount.StringFixed(2))
		assert.Equal(t, "170.00", got.FinalTotal.StringFixed(2))
	})

	t.Run("merges identical lines across orders", func(t *testing.T) {
		orders := []Order{
			{Items: []OrderItem{line(tea, "Tea", 1, "70")}},
			{Items: []OrderItem{line(tea, "Tea", 2, "70"), line(pasta, "Pasta", 1, "250")}},
		}
		got := ComputeBill(orders, decimal.Zero)
		require.Len(t, got.Items, 2)
		assert.Equal(t, 3, got.Items[0].Quantity)
		assert.Equal(t, "210.00", got.Items[0].Subtotal.StringFixed(2))

		sum := decimal.Zero
		for _, item := range got.Items {
			sum = sum.Add(item.Subtotal)
		}
		assert.True(t, sum.Equal(got.ItemsTotal), "items total equals sum of bill item subtotals")
		assert.True(t, got.FinalTotal.Equal(got.ItemsTotal.Sub(got.DiscountAmount)))
	})

	t.Run("price change keeps lines apart", func(t *testing.T) {
		orders := []Order{
			{Items: []OrderItem{line(tea, "Tea", 1, "70")}},
			{Items: []OrderItem{line(tea, "Tea", 1, "80")}},
		}
		assert.Len(t, ComputeBill(orders, decimal.Zero).Items, 2)
	})

	t.Run("discount capped at items total", func(t *testing.T) {
		orders := []Order{{Items: []OrderItem{line(tea, "Tea", 1, "70")}}}
		got := ComputeBill(orders, decimal.NewFromInt(500))
		assert.Equal(t, "70.00", got.DiscountAmount.StringFixed(2))
		assert.True(t, got.FinalTotal.IsZero())
	})

	t.Run("staff meal contributes nothing", func(t *testing.T) {
		got := ComputeBill([]Order{{Notes: StaffMealNote}}, decimal.Zero)
		assert.True(t, got.FinalTotal.IsZero())
		assert.Empty(t, got.Items)
	})
}

func TestAmountOwedSkipsCancelled(t *testing.T) {
	tea := uuid.New()
	orders := []Order{
		{Status: StatusReady, Items: []OrderItem{line(tea, "Tea", 1, "70")}},
		{Status: StatusCancelled, Items: []OrderItem{line(tea, "Tea", 5, "70")}},
	}
	assert.Equal(t, "70.00", AmountOwed(orders, decimal.Zero).StringFixed(2))
}

func TestSortOrdersByCreated(t *testing.T) {
	now := time.Now()
	orders := []Order{{ID: uuid.New(), CreatedAt: now}, {ID: uuid.New(), CreatedAt: now.Add(-time.Minute)}}
	SortOrdersByCreated(orders)
	assert.True(t, orders[0].CreatedAt.Before(orders[1].CreatedAt))
}
