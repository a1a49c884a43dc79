// Package realtime turns database row changes into in-process subscription
// streams.
package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/metrics"
)

const DefaultBufferSize = 64

// Hub fans change events out to subscriptions. It is process-local; every
// instance runs its own listener and hub.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	log    zerolog.Logger
}

func NewHub(bufferSize int) *Hub {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: bufferSize,
		log:    logging.Component("realtime"),
	}
}

// Subscribe opens a stream of changes on table. An empty types list accepts
// every change type.
func (h *Hub) Subscribe(table string, types []ChangeType, filter Filter) *Subscription {
	accept := make(map[ChangeType]bool, len(types))
	for _, t := range types {
		accept[t] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		hub:    h,
		table:  table,
		types:  accept,
		filter: filter,
		ch:     make(chan ChangeEvent, h.buffer),
		done:   make(chan struct{}),
	}
	h.subs[sub.id] = sub
	metrics.ActiveSubscriptions.Inc()
	return sub
}

// Publish delivers ev to every matching subscription in arrival order. A
// subscription whose buffer is full loses the event.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.accepts(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			metrics.ChangeFeedDropped.Inc()
			h.log.Warn().Str("table", ev.Table).Str("type", string(ev.Type)).Uint64("subscription", sub.id).
				Msg("subscriber buffer full, dropping change event")
		}
	}
}

// Len reports the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every open subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.finish()
	}
}

func (h *Hub) remove(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; !ok {
		return false
	}
	delete(h.subs, id)
	return true
}

type Subscription struct {
	id     uint64
	hub    *Hub
	table  string
	types  map[ChangeType]bool
	filter Filter
	ch     chan ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) accepts(ev ChangeEvent) bool {
	if ev.Table != s.table {
		return false
	}
	if len(s.types) > 0 && !s.types[ev.Type] {
		return false
	}
	return s.filter.matches(ev)
}

// Events is closed once the subscription ends.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.ch
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops delivery. It is safe to call more than once and after the hub
// itself was closed.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
	s.finish()
}

func (s *Subscription) finish() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
		metrics.ActiveSubscriptions.Dec()
	})
}

// Run calls fn for each event until the subscription is closed or ctx ends.
// Events already handed to fn complete before Run returns.
func (s *Subscription) Run(ctx context.Context, fn func(context.Context, ChangeEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.ch:
			if !ok {
				return
			}
			fn(ctx, ev)
		}
	}
}
