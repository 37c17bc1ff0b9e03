package servicetest

import (
	"context"
	"sync"
	"time"
)

type Published struct {
	RoutingKey string
	Payload    any
}

// Events records published events. Err, when set, is returned from every Publish.
type Events struct {
	mu        sync.Mutex
	published []Published
	Err       error
}

func (e *Events) Publish(_ context.Context, routingKey string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.published = append(e.published, Published{RoutingKey: routingKey, Payload: payload})
	return nil
}

func (e *Events) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.published))
	for _, p := range e.published {
		keys = append(keys, p.RoutingKey)
	}
	return keys
}

// Clock is a manual clock for deterministic timestamps; every call advances by Step.
type Clock struct {
	mu   sync.Mutex
	at   time.Time
	Step time.Duration
}

func NewClock(start time.Time) *Clock {
	return &Clock{at: start, Step: time.Second}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.at
	c.at = c.at.Add(c.Step)
	return now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}
