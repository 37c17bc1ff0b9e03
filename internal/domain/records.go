package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckInRecord is the normalized input for the guest user and session upsert.
type CheckInRecord struct {
	Name      string
	Phone     string
	TableName string
	NumGuests int
}

// OrderEdit replaces the line items and discount of one order. The write only applies
// while the order still has ExpectStatus and is unbilled.
type OrderEdit struct {
	OrderID         uuid.UUID
	ExpectStatus    OrderStatus
	Items           []OrderItem
	Total           decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
}

// BillDraft is everything the bill writer needs to claim orders and persist one bill.
type BillDraft struct {
	NumberDate    string
	SessionID     *uuid.UUID
	UserID        *uuid.UUID
	OrderID       *uuid.UUID
	GuestName     string
	GuestPhone    string
	TableName     string
	Totals        BillTotals
	PaymentMethod PaymentMethod
	OrderIDs      []uuid.UUID
	EndedAt       time.Time
}

type StatusCount struct {
	Status OrderStatus `json:"status"`
	Count  int         `json:"count"`
}

type BillAggregate struct {
	Count     int             `json:"count"`
	Revenue   decimal.Decimal `json:"revenue"`
	Discounts decimal.Decimal `json:"discounts"`
}

type TopItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}
