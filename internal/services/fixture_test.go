package services

import (
	"context"
	"testing"
	"time"

	"aicavalli-order-service/internal/cache"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/receipt"
	"aicavalli-order-service/internal/services/servicetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret     = "test-jwt-secret"
	testSessionSecret = "test-session-secret"
)

type fixture struct {
	store     *servicetest.Memory
	events    *servicetest.Events
	clock     *servicetest.Clock
	locker    *cache.MemoryLocker
	orders    *OrderService
	kitchen   *KitchenService
	sessions  *SessionService
	billing   *BillingService
	users     *UserService
	menu      *MenuService
	analytics *AnalyticsService

	kitchenActor *domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := servicetest.NewClock(time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC))
	store := servicetest.NewMemory()
	store.Now = clock.Now
	events := &servicetest.Events{}
	locker := cache.NewMemoryLocker()

	f := &fixture{store: store, events: events, clock: clock, locker: locker}
	f.orders = NewOrderService(OrderServiceConfig{
		Orders:        store,
		Menu:          store,
		Sessions:      store,
		Users:         store,
		Events:        events,
		Now:           clock.Now,
		EditWindow:    2 * time.Minute,
		SessionSecret: testSessionSecret,
	})
	f.kitchen = NewKitchenService(store, store, store, events, nil, clock.Now)
	f.sessions = NewSessionService(SessionServiceConfig{
		Sessions:      store,
		Locker:        locker,
		Events:        events,
		Now:           clock.Now,
		JWTSecret:     testJWTSecret,
		SessionSecret: testSessionSecret,
		Cooldown:      time.Minute,
	})
	f.billing = NewBillingService(BillingServiceConfig{
		Bills:    store,
		Sessions: store,
		Users:    store,
		Locker:   locker,
		Events:   events,
		Now:      clock.Now,
		Header:   receipt.Header{Name: "Ai Cavalli", Currency: "Rs."},
	})
	f.users = NewUserService(store, nil, testJWTSecret, time.Hour, clock.Now)
	f.menu = NewMenuService(store, store, nil, nil, "Asia/Kolkata", clock.Now)
	f.analytics = NewAnalyticsService(store, time.UTC, clock.Now)

	cook := store.AddUser("Cook", "9000000001", domain.RoleKitchen)
	f.kitchenActor = &domain.Actor{UserID: cook.ID, Role: domain.RoleKitchen}
	return f
}

func actorFor(u domain.User) *domain.Actor {
	return &domain.Actor{UserID: u.ID, Role: u.Role}
}

// checkIn starts a guest session and returns the guest's actor and the result.
func (f *fixture) checkIn(t *testing.T, name, phone, table string) (*domain.Actor, CheckInResult) {
	t.Helper()
	res, err := f.sessions.CheckIn(context.Background(), CheckInInput{Name: name, Phone: phone, TableName: table, NumGuests: 2})
	require.NoError(t, err)
	sessionID := res.Session.ID
	return &domain.Actor{UserID: res.User.ID, Role: domain.RoleGuest, SessionID: &sessionID}, res
}

func (f *fixture) placeOrder(t *testing.T, actor *domain.Actor, table string, lines ...domain.LineRequest) domain.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), actor, CreateOrderInput{
		UserID:    actor.UserID,
		TableName: table,
		Items:     lines,
	})
	require.NoError(t, err)
	return order
}

func line(id uuid.UUID, qty int) domain.LineRequest {
	return domain.LineRequest{MenuItemID: id, Quantity: qty}
}

func requireCode(t *testing.T, err error, code domain.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, domain.HasCode(err, code), "expected %s, got %v", code, err)
}
