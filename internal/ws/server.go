package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

type BoardSource interface {
	ActiveBoard(ctx context.Context, actor *domain.Actor) ([]services.BoardOrder, error)
}

type OrderSource interface {
	Get(ctx context.Context, actor *domain.Actor, id uuid.UUID) (domain.Order, error)
}

type SessionSource interface {
	Get(ctx context.Context, actor *domain.Actor, id uuid.UUID) (domain.SessionSummary, error)
}

type Server struct {
	Feed      ChangeFeed
	Board     BoardSource
	Orders    OrderSource
	Sessions  SessionSource
	JWTSecret string
	Heartbeat time.Duration
	Logger    *zap.Logger
}

type message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// snapshotFunc loads the current state to push. done ends the stream after the push.
type snapshotFunc func(ctx context.Context) (msgs []message, done bool, err error)

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *wsClient) writeRaw(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) KitchenOrdersWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	client := &wsClient{conn: conn}

	actor, ok := s.authenticate(r)
	if !ok {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	if !auth.HasCapability(actor.Role, auth.CapKitchenManage) {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "forbidden"})
		return
	}

	changes, cancel := s.Feed.Subscribe(EntityOrder, nil)
	defer cancel()

	s.stream(r.Context(), client, changes, func(ctx context.Context) ([]message, bool, error) {
		board, err := s.Board.ActiveBoard(ctx, actor)
		if err != nil {
			return nil, false, err
		}
		if board == nil {
			board = []services.BoardOrder{}
		}
		return []message{{Type: "orders.state", Data: board}}, false, nil
	})
}

func (s *Server) OrderWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	client := &wsClient{conn: conn}

	actor, ok := s.authenticate(r)
	if !ok {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "invalid request"})
		return
	}

	changes, cancel := s.Feed.Subscribe(EntityOrder, func(c Change) bool { return c.ID == orderID })
	defer cancel()

	s.stream(r.Context(), client, changes, func(ctx context.Context) ([]message, bool, error) {
		order, err := s.Orders.Get(ctx, actor, orderID)
		if err != nil {
			return nil, false, err
		}
		return []message{{Type: "order.state", Data: order}}, false, nil
	})
}

func (s *Server) SessionWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	client := &wsClient{conn: conn}

	actor, ok := s.authenticate(r)
	if !ok {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "invalid request"})
		return
	}

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// Order changes carry no session id, so every order change triggers a re-fetch and
	// unchanged summaries are not re-sent.
	sessionChanges, cancelSessions := s.Feed.Subscribe(EntitySession, func(c Change) bool { return c.ID == sessionID })
	defer cancelSessions()
	orderChanges, cancelOrders := s.Feed.Subscribe(EntityOrder, nil)
	defer cancelOrders()

	s.stream(ctx, client, merge(ctx, sessionChanges, orderChanges), func(ctx context.Context) ([]message, bool, error) {
		summary, err := s.Sessions.Get(ctx, actor, sessionID)
		if err != nil {
			return nil, false, err
		}
		msgs := []message{{Type: "session.state", Data: summary}}
		if summary.IsActive() {
			return msgs, false, nil
		}
		msgs = append(msgs, message{Type: "session.ended", Data: map[string]any{
			"sessionId":   summary.ID,
			"totalAmount": summary.TotalAmount,
			"endedAt":     summary.EndedAt,
		}})
		return msgs, true, nil
	})
}

// stream pushes a snapshot now and after every change until the client leaves, a ping
// fails or the snapshot reports done.
func (s *Server) stream(ctx context.Context, client *wsClient, changes <-chan Change, snapshot snapshotFunc) {
	heartbeat := s.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	closed := readLoop(client.conn, heartbeat)

	var last []byte
	push := func() bool {
		msgs, done, err := snapshot(ctx)
		if err != nil {
			if domain.HasCode(err, domain.ErrCodeNotFound) || domain.HasCode(err, domain.ErrCodeForbidden) {
				_ = client.writeJSON(map[string]any{"type": "error", "message": "not found"})
				return false
			}
			s.Logger.Warn("realtime snapshot failed", zap.Error(err))
			return true
		}
		encoded := make([][]byte, 0, len(msgs))
		for _, msg := range msgs {
			payload, err := json.Marshal(msg)
			if err != nil {
				s.Logger.Warn("realtime encode failed", zap.String("type", msg.Type), zap.Error(err))
				return true
			}
			encoded = append(encoded, payload)
		}
		joined := bytes.Join(encoded, []byte{'\n'})
		if bytes.Equal(joined, last) {
			return !done
		}
		last = joined
		for _, payload := range encoded {
			if err := client.writeRaw(payload); err != nil {
				return false
			}
		}
		return !done
	}

	if !push() {
		return
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		case _, ok := <-changes:
			if !ok || !push() {
				return
			}
		}
	}
}

// readLoop drains client frames so pongs are processed. The returned channel closes
// when the client goes away or misses two heartbeats.
func readLoop(conn *websocket.Conn, heartbeat time.Duration) <-chan struct{} {
	closed := make(chan struct{})
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

func merge(ctx context.Context, inputs ...<-chan Change) <-chan Change {
	out := make(chan Change, 16)
	for _, in := range inputs {
		go func(in <-chan Change) {
			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- c:
					default:
					}
				}
			}
		}(in)
	}
	return out
}

// authenticate reads the access token from the token query parameter, bare or with a
// Bearer prefix.
func (s *Server) authenticate(r *http.Request) (*domain.Actor, bool) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if strings.Contains(token, " ") {
		token = auth.ParseBearerToken(token)
	}
	if token == "" {
		return nil, false
	}
	claims, err := auth.VerifyAccessToken(token, s.JWTSecret)
	if err != nil {
		return nil, false
	}
	actor, err := claims.Actor()
	if err != nil {
		return nil, false
	}
	return actor, true
}
