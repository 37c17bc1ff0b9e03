package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleGuest   Role = "OUTSIDER"
	RoleRider   Role = "STUDENT"
	RoleStaff   Role = "STAFF"
	RoleKitchen Role = "KITCHEN"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole accepts stored role names and their product aliases (GUEST, RIDER).
func ParseRole(value string) (Role, bool) {
	switch value {
	case "OUTSIDER", "GUEST", "outsider", "guest":
		return RoleGuest, true
	case "STUDENT", "RIDER", "student", "rider":
		return RoleRider, true
	case "STAFF", "staff":
		return RoleStaff, true
	case "KITCHEN", "kitchen":
		return RoleKitchen, true
	case "ADMIN", "admin":
		return RoleAdmin, true
	}
	return "", false
}

func (r Role) IsGuest() bool { return r == RoleGuest }

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email,omitempty"`
	Role      Role      `json:"role"`
	PinHash   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Actor is the verified identity behind a request. Services receive it explicitly.
type Actor struct {
	UserID    uuid.UUID
	Role      Role
	SessionID *uuid.UUID
}

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sortOrder"`
}

type MenuItem struct {
	ID            uuid.UUID       `json:"id"`
	CategoryID    *uuid.UUID      `json:"categoryId,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Available     bool            `json:"available"`
	ImageURL      *string         `json:"imageUrl,omitempty"`
	ImageThumbURL *string         `json:"imageThumbUrl,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type DailySpecial struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menuItemId"`
	Date       string    `json:"date"`
	Period     string    `json:"period"`
	Item       *MenuItem `json:"item,omitempty"`
}

type Announcement struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

const StaffMealNote = "REGULAR_STAFF_MEAL"

type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	SessionID       *uuid.UUID      `json:"sessionId,omitempty"`
	TableName       string          `json:"tableName"`
	LocationType    string          `json:"locationType"`
	NumGuests       int             `json:"numGuests"`
	Status          OrderStatus     `json:"status"`
	Total           decimal.Decimal `json:"total"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	Notes           string          `json:"notes"`
	Billed          bool            `json:"billed"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Items           []OrderItem     `json:"items"`

	UserName string `json:"userName,omitempty"`
	UserRole Role   `json:"userRole,omitempty"`
}

func (o Order) IsStaffMeal() bool { return o.Notes == StaffMealNote }

// Subtotal is the sum of line subtotals, independent of the stored total.
func (o Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

type OrderItem struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"orderId"`
	MenuItemID uuid.UUID       `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

type GuestSession struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	GuestName       string          `json:"guestName"`
	GuestPhone      string          `json:"guestPhone"`
	TableName       string          `json:"tableName"`
	NumGuests       int             `json:"numGuests"`
	Status          SessionStatus   `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	BillRequestedAt *time.Time      `json:"billRequestedAt,omitempty"`
	StartedAt       time.Time       `json:"startedAt"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`
}

func (s GuestSession) IsActive() bool { return s.Status == SessionActive }

// SessionSummary is a session plus aggregates computed from its orders at read time.
type SessionSummary struct {
	GuestSession
	OrderCount int             `json:"orderCount"`
	AmountOwed decimal.Decimal `json:"amountOwed"`
	Orders     []Order         `json:"orders"`
}

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentUPI     PaymentMethod = "upi"
	PaymentAccount PaymentMethod = "account"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentAccount:
		return true
	}
	return false
}

type Bill struct {
	ID             uuid.UUID       `json:"id"`
	BillNumber     string          `json:"billNumber"`
	SessionID      *uuid.UUID      `json:"sessionId,omitempty"`
	OrderID        *uuid.UUID      `json:"orderId,omitempty"`
	UserID         *uuid.UUID      `json:"userId,omitempty"`
	GuestName      string          `json:"guestName"`
	GuestPhone     string          `json:"guestPhone"`
	TableName      string          `json:"tableName"`
	ItemsTotal     decimal.Decimal `json:"itemsTotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	CreatedAt      time.Time       `json:"createdAt"`
	PrintedAt      *time.Time      `json:"printedAt,omitempty"`
	Items          []BillItem      `json:"items"`
	OrderIDs       []uuid.UUID     `json:"orderIds"`
}

type BillItem struct {
	ID        uuid.UUID       `json:"id"`
	BillID    uuid.UUID       `json:"billId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
