package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "ws-test-secret"

type fakeSources struct {
	mu      sync.Mutex
	board   []services.BoardOrder
	session domain.SessionSummary
}

func (f *fakeSources) ActiveBoard(_ context.Context, _ *domain.Actor) ([]services.BoardOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	board := make([]services.BoardOrder, 0, len(f.board))
	return append(board, f.board...), nil
}

func (f *fakeSources) Get(_ context.Context, _ *domain.Actor, id uuid.UUID) (domain.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.session.ID {
		return domain.SessionSummary{}, domain.NotFoundError("Session not found")
	}
	return f.session, nil
}

type noOrders struct{}

func (noOrders) Get(context.Context, *domain.Actor, uuid.UUID) (domain.Order, error) {
	return domain.Order{}, domain.NotFoundError("Order not found")
}

func newTestServer(t *testing.T, sources *fakeSources) (*Feed, *httptest.Server) {
	t.Helper()
	feed := NewFeed(nil, zap.NewNop())
	srv := &Server{
		Feed:      feed,
		Board:     sources,
		Orders:    noOrders{},
		Sessions:  sources,
		JWTSecret: testSecret,
		Heartbeat: time.Second,
		Logger:    zap.NewNop(),
	}
	r := chi.NewRouter()
	r.Get("/ws/kitchen/orders", srv.KitchenOrdersWS)
	r.Get("/ws/orders/{orderId}", srv.OrderWS)
	r.Get("/ws/sessions/{sessionId}", srv.SessionWS)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return feed, ts
}

func tokenFor(t *testing.T, role domain.Role) string {
	t.Helper()
	token, _, err := auth.IssueAccessToken(testSecret, domain.User{ID: uuid.New(), Name: "Test", Role: role}, nil, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func dial(t *testing.T, ts *httptest.Server, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg struct {
		Type    string          `json:"type"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg.Type, msg.Data
}

func waitForSubscribers(t *testing.T, feed *Feed, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		feed.mu.RLock()
		defer feed.mu.RUnlock()
		return len(feed.subs) >= n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestKitchenBoardPushesOnChange(t *testing.T) {
	sources := &fakeSources{}
	feed, ts := newTestServer(t, sources)
	conn := dial(t, ts, "/ws/kitchen/orders", tokenFor(t, domain.RoleKitchen))

	typ, data := readType(t, conn)
	assert.Equal(t, "orders.state", typ)
	assert.JSONEq(t, "[]", string(data))

	orderID := uuid.New()
	sources.mu.Lock()
	sources.board = []services.BoardOrder{{Order: domain.Order{ID: orderID, Status: domain.StatusPending}}}
	sources.mu.Unlock()
	waitForSubscribers(t, feed, 1)
	feed.dispatch(Change{Entity: EntityOrder, ID: orderID})

	typ, data = readType(t, conn)
	assert.Equal(t, "orders.state", typ)
	assert.Contains(t, string(data), orderID.String())
}

type emptyBoard struct{ fakeSources }

func (*emptyBoard) ActiveBoard(context.Context, *domain.Actor) ([]services.BoardOrder, error) {
	return nil, nil
}

func TestKitchenBoardStateIsAlwaysAnArray(t *testing.T) {
	feed := NewFeed(nil, zap.NewNop())
	srv := &Server{Feed: feed, Board: &emptyBoard{}, Orders: noOrders{}, Sessions: &fakeSources{}, JWTSecret: testSecret, Heartbeat: time.Second, Logger: zap.NewNop()}
	ts := httptest.NewServer(http.HandlerFunc(srv.KitchenOrdersWS))
	t.Cleanup(ts.Close)

	conn := dial(t, ts, "", tokenFor(t, domain.RoleKitchen))
	typ, data := readType(t, conn)
	assert.Equal(t, "orders.state", typ)
	assert.JSONEq(t, "[]", string(data))
}

func TestKitchenBoardRejectsGuests(t *testing.T) {
	_, ts := newTestServer(t, &fakeSources{})

	conn := dial(t, ts, "/ws/kitchen/orders", tokenFor(t, domain.RoleGuest))
	typ, _ := readType(t, conn)
	assert.Equal(t, "error", typ)

	anon := dial(t, ts, "/ws/kitchen/orders", "not-a-token")
	typ, _ = readType(t, anon)
	assert.Equal(t, "error", typ)
}

func TestSessionStreamEndsAfterBill(t *testing.T) {
	sessionID := uuid.New()
	sources := &fakeSources{session: domain.SessionSummary{GuestSession: domain.GuestSession{
		ID: sessionID, Status: domain.SessionActive, TotalAmount: decimal.Zero,
	}}}
	feed, ts := newTestServer(t, sources)
	conn := dial(t, ts, "/ws/sessions/"+sessionID.String(), tokenFor(t, domain.RoleGuest))

	typ, _ := readType(t, conn)
	assert.Equal(t, "session.state", typ)

	ended := time.Now()
	sources.mu.Lock()
	sources.session.Status = domain.SessionEnded
	sources.session.EndedAt = &ended
	sources.session.TotalAmount = decimal.NewFromInt(390)
	sources.mu.Unlock()
	waitForSubscribers(t, feed, 2)
	feed.dispatch(Change{Entity: EntitySession, ID: sessionID})

	typ, _ = readType(t, conn)
	assert.Equal(t, "session.state", typ)
	typ, data := readType(t, conn)
	assert.Equal(t, "session.ended", typ)
	assert.Contains(t, string(data), `"totalAmount":"390"`)
}

func TestOrderStreamHidesUnknownOrder(t *testing.T) {
	_, ts := newTestServer(t, &fakeSources{})
	conn := dial(t, ts, "/ws/orders/"+uuid.NewString(), tokenFor(t, domain.RoleGuest))
	typ, _ := readType(t, conn)
	assert.Equal(t, "error", typ)
}

func TestFeedFiltersAndUnsubscribes(t *testing.T) {
	feed := NewFeed(nil, zap.NewNop())
	target := uuid.New()
	ch, cancel := feed.Subscribe(EntityOrder, func(c Change) bool { return c.ID == target })

	feed.dispatch(Change{Entity: EntitySession, ID: target})
	feed.dispatch(Change{Entity: EntityOrder, ID: uuid.New()})
	feed.dispatch(Change{Entity: EntityOrder, ID: target})

	select {
	case c := <-ch:
		assert.Equal(t, target, c.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a change")
	}
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %v", c)
	default:
	}

	cancel()
	cancel()
	feed.mu.RLock()
	assert.Empty(t, feed.subs)
	feed.mu.RUnlock()
}
