// Package services holds the order and billing lifecycle. Every operation receives the
// verified Actor explicitly and talks to storage through the interfaces below.
package services

import (
	"context"
	"errors"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
	FindInternalUserByPhone(ctx context.Context, phone string) (domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
}

type MenuStore interface {
	MenuItemsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItem, error)
	ListMenu(ctx context.Context, onlyAvailable bool) ([]domain.Category, []domain.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, id uuid.UUID, available bool) (domain.MenuItem, error)
	SetMenuItemImage(ctx context.Context, id uuid.UUID, imageURL, thumbURL string) (domain.MenuItem, error)
	CreateCategory(ctx context.Context, category domain.Category) (domain.Category, error)
}

type ContentStore interface {
	SpecialsForDate(ctx context.Context, date string) ([]domain.DailySpecial, error)
	CreateSpecial(ctx context.Context, special domain.DailySpecial) (domain.DailySpecial, error)
	ListAnnouncements(ctx context.Context, activeOnly bool) ([]domain.Announcement, error)
	CreateAnnouncement(ctx context.Context, announcement domain.Announcement) (domain.Announcement, error)
}

type OrderStore interface {
	// CreateOrder writes the order and its items in one transaction. When the order names
	// a session that is no longer active it writes nothing and returns ErrStaleWrite.
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Order, error)
	ActiveOrders(ctx context.Context) ([]domain.Order, error)
	// UpdateOrderStatus applies only while the stored status still equals from.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (domain.Order, error)
	SaveOrderEdit(ctx context.Context, edit domain.OrderEdit) (domain.Order, error)
}

type SessionStore interface {
	CheckIn(ctx context.Context, record domain.CheckInRecord) (domain.User, domain.GuestSession, bool, error)
	GetSession(ctx context.Context, id uuid.UUID) (domain.GuestSession, error)
	ActiveSessionForUser(ctx context.Context, userID uuid.UUID) (domain.GuestSession, error)
	ListActiveSessions(ctx context.Context) ([]domain.GuestSession, error)
	OrdersForSession(ctx context.Context, sessionID uuid.UUID) ([]domain.Order, error)
	// MarkBillRequested stamps bill_requested_at on an active session.
	MarkBillRequested(ctx context.Context, id uuid.UUID, at time.Time) (domain.GuestSession, error)
}

type BillStore interface {
	UnbilledOrdersForSession(ctx context.Context, sessionID uuid.UUID) ([]domain.Order, error)
	UnbilledOrdersForUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
	// CreateBill claims every draft order, writes the bill and ends the session in one
	// transaction. It returns ErrScopeChanged and writes nothing when any order was
	// already claimed.
	CreateBill(ctx context.Context, draft domain.BillDraft) (domain.Bill, error)
	FindBillBySession(ctx context.Context, sessionID uuid.UUID) (domain.Bill, error)
	FindBillByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (domain.Bill, error)
	FindBillForUserOrders(ctx context.Context, userID uuid.UUID) (domain.Bill, error)
	FindBillByPhone(ctx context.Context, phone string) (domain.Bill, error)
	GetBill(ctx context.Context, id uuid.UUID) (domain.Bill, error)
	ListBills(ctx context.Context, limit int) ([]domain.Bill, error)
	// MarkBillPrinted keeps the first printed_at.
	MarkBillPrinted(ctx context.Context, id uuid.UUID, at time.Time) (domain.Bill, error)
}

type AnalyticsStore interface {
	OrderCountsByStatus(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error)
	BillAggregate(ctx context.Context, from, to time.Time) (domain.BillAggregate, error)
	TopItems(ctx context.Context, from, to time.Time, limit int) ([]domain.TopItem, error)
}

// EventPublisher is the routing-key publish of the queue client.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// BlobStore is the part of the object store used for receipts and menu images.
type BlobStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error)
	DeleteURL(ctx context.Context, raw string) error
}

// sideEffects runs best-effort work after a commit. Failures are logged and counted,
// never returned.
type sideEffects struct {
	events EventPublisher
	logger *zap.Logger
}

func (s sideEffects) publish(ctx context.Context, routingKey string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, routingKey, payload); err != nil {
		metrics.SideEffectFailures.WithLabelValues("event").Inc()
		s.logger.Warn("event publish failed", zap.String("routingKey", routingKey), zap.Error(err))
	}
}

func (s sideEffects) failed(effect string, err error, fields ...zap.Field) {
	metrics.SideEffectFailures.WithLabelValues(effect).Inc()
	s.logger.Warn(effect+" failed", append(fields, zap.Error(err))...)
}

func requireActor(actor *domain.Actor) error {
	if actor == nil {
		return domain.UnauthorizedError("Authentication required")
	}
	return nil
}

func requireCapability(actor *domain.Actor, capability auth.Capability) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !auth.HasCapability(actor.Role, capability) {
		return domain.ForbiddenError("Access denied")
	}
	return nil
}

// canView reports whether actor may read a resource owned by ownerID.
func canView(actor *domain.Actor, ownerID uuid.UUID) bool {
	if actor == nil {
		return false
	}
	return actor.UserID == ownerID || auth.HasCapability(actor.Role, auth.CapKitchenManage)
}

// storeError maps storage sentinels onto domain errors for one resource.
func storeError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.NotFoundError(notFound)
	}
	return domain.AsError(err)
}

func decimalFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func clock(now func() time.Time) func() time.Time {
	if now != nil {
		return now
	}
	return time.Now
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
