package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillTotals is the computed, not yet persisted, content of a bill.
type BillTotals struct {
	ItemsTotal     decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalTotal     decimal.Decimal
	Items          []BillItem
}

type billLineKey struct {
	menuItemID uuid.UUID
	unitPrice  string
}

// OrderDiscount is the discount the kitchen granted on one order, derived from its
// percentage when one is set and from the stored amount otherwise.
func OrderDiscount(o Order) decimal.Decimal {
	subtotal := Round2(o.Subtotal())
	if o.DiscountPercent.IsPositive() {
		return PercentOf(subtotal, o.DiscountPercent)
	}
	if o.DiscountAmount.IsPositive() {
		return decimal.Min(Round2(o.DiscountAmount), subtotal)
	}
	return decimal.Zero
}

// ComputeBill snapshots orders into bill lines and totals. Lines with the same menu item
// and unit price are merged; the original order of first appearance is kept. The
// discount never exceeds the items total.
func ComputeBill(orders []Order, sessionDiscount decimal.Decimal) BillTotals {
	lines := make([]BillItem, 0)
	index := make(map[billLineKey]int)
	itemsTotal := decimal.Zero
	discount := decimal.Zero

	for _, o := range orders {
		for _, item := range o.Items {
			key := billLineKey{menuItemID: item.MenuItemID, unitPrice: item.UnitPrice.StringFixed(2)}
			sub := Round2(item.Subtotal())
			itemsTotal = itemsTotal.Add(sub)
			if i, ok := index[key]; ok {
				lines[i].Quantity += item.Quantity
				lines[i].Subtotal = lines[i].Subtotal.Add(sub)
				continue
			}
			index[key] = len(lines)
			lines = append(lines, BillItem{
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: Round2(item.UnitPrice),
				Subtotal:  sub,
			})
		}
		discount = discount.Add(OrderDiscount(o))
	}

	if sessionDiscount.IsPositive() {
		discount = discount.Add(Round2(sessionDiscount))
	}
	itemsTotal = Round2(itemsTotal)
	if discount.GreaterThan(itemsTotal) {
		discount = itemsTotal
	}
	return BillTotals{
		ItemsTotal:     itemsTotal,
		DiscountAmount: discount,
		FinalTotal:     itemsTotal.Sub(discount),
		Items:          lines,
	}
}

// AmountOwed is the running total of a session's non-cancelled orders.
func AmountOwed(orders []Order, sessionDiscount decimal.Decimal) decimal.Decimal {
	billable := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Status != StatusCancelled {
			billable = append(billable, o)
		}
	}
	return ComputeBill(billable, sessionDiscount).FinalTotal
}

// SortOrdersByCreated orders oldest first, breaking ties by id for stable output.
func SortOrdersByCreated(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID.String() < orders[j].ID.String()
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
