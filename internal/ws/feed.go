package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"aicavalli-order-service/internal/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	EntityOrder   = "order"
	EntitySession = "session"
)

// channelEntities maps the LISTEN channels fed by the table triggers onto entities.
var channelEntities = map[string]string{
	"orders_updates":         EntityOrder,
	"guest_sessions_updates": EntitySession,
}

// Change says that one row changed. Consumers re-fetch the full state by id.
type Change struct {
	Entity string
	ID     uuid.UUID
}

// ChangeFeed delivers changes for one entity, optionally narrowed by filter.
type ChangeFeed interface {
	Subscribe(entity string, filter func(Change) bool) (<-chan Change, func())
}

type subscription struct {
	entity string
	filter func(Change) bool
	ch     chan Change
}

// Feed fans Postgres notifications out to in-process subscribers.
type Feed struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	started sync.Once
	mu      sync.RWMutex
	subs    map[*subscription]struct{}
}

func NewFeed(db *pgxpool.Pool, logger *zap.Logger) *Feed {
	return &Feed{
		db:     db,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

// Start launches the LISTEN loop once. It stops when ctx ends.
func (f *Feed) Start(ctx context.Context) {
	if f.db == nil {
		return
	}
	f.started.Do(func() {
		go f.listenLoop(ctx)
	})
}

func (f *Feed) Subscribe(entity string, filter func(Change) bool) (<-chan Change, func()) {
	sub := &subscription{entity: entity, filter: filter, ch: make(chan Change, 16)}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	metrics.RealtimeSubscribers.WithLabelValues(entity).Inc()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, sub)
			f.mu.Unlock()
			metrics.RealtimeSubscribers.WithLabelValues(entity).Dec()
		})
	}
}

// dispatch hands the change to every matching subscriber. A subscriber whose buffer is
// full already has a pending refresh, so the change is dropped for it.
func (f *Feed) dispatch(change Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs {
		if sub.entity != change.Entity {
			continue
		}
		if sub.filter != nil && !sub.filter(change) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
}

func (f *Feed) listenLoop(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := f.db.Acquire(ctx)
		if err != nil {
			f.logger.Warn("change feed acquire failed", zap.Error(err))
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		listenErr := error(nil)
		for channel := range channelEntities {
			if _, err := conn.Exec(ctx, "listen "+channel); err != nil {
				listenErr = err
				break
			}
		}
		if listenErr != nil {
			conn.Release()
			f.logger.Warn("change feed LISTEN failed", zap.Error(listenErr))
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Warn("change feed connection lost", zap.Error(err))
				}
				break
			}
			entity, ok := channelEntities[n.Channel]
			if !ok {
				continue
			}
			id, err := uuid.Parse(strings.TrimSpace(n.Payload))
			if err != nil {
				continue
			}
			f.dispatch(Change{Entity: entity, ID: id})
		}

		// The connection may still hold LISTEN state; drop it rather than return it to the pool.
		_ = conn.Conn().Close(context.Background())
		conn.Release()
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
