package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds a money amount to two decimal places, half away from zero.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// LineRequest is one requested menu line before pricing.
type LineRequest struct {
	MenuItemID uuid.UUID `json:"menuItemId"`
	Quantity   int       `json:"quantity" validate:"gte=1,lte=99"`
}

// PriceLines is the only place that turns requested lines into priced order items. It
// rejects the whole request when any referenced item is missing or unavailable, and takes
// unit prices from menu, never from the caller.
func PriceLines(menu map[uuid.UUID]MenuItem, lines []LineRequest) ([]OrderItem, decimal.Decimal, error) {
	items := make([]OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, decimal.Zero, ValidationError("Quantity must be at least 1", map[string]any{"menuItemId": line.MenuItemID})
		}
		menuItem, ok := menu[line.MenuItemID]
		if !ok {
			return nil, decimal.Zero, StateError(ErrCodeItemNotFound, "Menu item not found", map[string]any{"menuItemId": line.MenuItemID})
		}
		if !menuItem.Available {
			return nil, decimal.Zero, StateError(ErrCodeItemUnavailable, menuItem.Name+" is not available", map[string]any{"menuItemId": line.MenuItemID})
		}
		item := OrderItem{
			MenuItemID: menuItem.ID,
			Name:       menuItem.Name,
			Quantity:   line.Quantity,
			UnitPrice:  Round2(menuItem.Price),
		}
		items = append(items, item)
		total = total.Add(item.Subtotal())
	}
	return items, Round2(total), nil
}

// PercentOf returns round2(amount * pct / 100).
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(pct).Div(hundred))
}

func ValidDiscountPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}

// ItemsTotal sums line subtotals.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Subtotal())
	}
	return Round2(sum)
}
