package queue

import (
	"time"

	"github.com/google/uuid"
)

const (
	RKOrderCreated       = "order.created"
	RKOrderStatusUpdated = "order.status.updated"
	RKBillRequested      = "bill.requested"
	RKBillGenerated      = "bill.generated"
)

type OrderCreatedEvent struct {
	Type      string     `json:"type"`
	OrderID   uuid.UUID  `json:"orderId"`
	UserID    uuid.UUID  `json:"userId"`
	SessionID *uuid.UUID `json:"sessionId,omitempty"`
	TableName string     `json:"tableName"`
	StaffMeal bool       `json:"staffMeal"`
	Total     string     `json:"total"`
	CreatedAt time.Time  `json:"createdAt"`
}

type OrderStatusUpdatedEvent struct {
	Type      string    `json:"type"`
	OrderID   uuid.UUID `json:"orderId"`
	UserID    uuid.UUID `json:"userId"`
	TableName string    `json:"tableName"`
	From      string    `json:"from"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type BillRequestedEvent struct {
	Type        string    `json:"type"`
	SessionID   uuid.UUID `json:"sessionId"`
	UserID      uuid.UUID `json:"userId"`
	GuestName   string    `json:"guestName"`
	TableName   string    `json:"tableName"`
	RequestedAt time.Time `json:"requestedAt"`
}

type BillGeneratedEvent struct {
	Type       string     `json:"type"`
	BillID     uuid.UUID  `json:"billId"`
	BillNumber string     `json:"billNumber"`
	SessionID  *uuid.UUID `json:"sessionId,omitempty"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	TableName  string     `json:"tableName"`
	FinalTotal string     `json:"finalTotal"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// envelope reads only the discriminator of any event body.
type envelope struct {
	Type string `json:"type"`
}
