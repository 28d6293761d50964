// Package changefeed delivers row-level change notifications for the
// watched tables to in-process subscribers.
//
// The Hub is the registry subscribers talk to. A Listener feeds it from
// Postgres LISTEN/NOTIFY; tests can call Dispatch directly.
package changefeed

import (
	"fmt"
	"log/slog"
	"sync"
)

// Watched tables.
const (
	TableRides    = "rides"
	TableSegments = "segments"
)

// Notification describes one row change. Op is INSERT, UPDATE or DELETE;
// subscribers are free to ignore it.
type Notification struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
}

// Handler is invoked for every notification on the subscribed table.
// Handlers run on the dispatching goroutine and must not block.
type Handler func(Notification)

// SubscriptionID identifies one registered handler.
type SubscriptionID uint64

// Hub fans notifications out to subscribers by table name.
type Hub struct {
	mu     sync.RWMutex
	next   SubscriptionID
	tables map[string]map[SubscriptionID]Handler
	log    *slog.Logger
}

// NewHub returns a Hub that accepts subscriptions for the given tables.
// With no tables it watches rides and segments.
func NewHub(log *slog.Logger, tables ...string) *Hub {
	if len(tables) == 0 {
		tables = []string{TableRides, TableSegments}
	}
	h := &Hub{
		tables: make(map[string]map[SubscriptionID]Handler, len(tables)),
		log:    log,
	}
	for _, t := range tables {
		h.tables[t] = make(map[SubscriptionID]Handler)
	}
	return h
}

// Tables returns the table names this hub accepts.
func (h *Hub) Tables() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.tables))
	for t := range h.tables {
		out = append(out, t)
	}
	return out
}

// Subscribe registers fn for every change on table.
func (h *Hub) Subscribe(table string, fn Handler) (SubscriptionID, error) {
	if fn == nil {
		return 0, fmt.Errorf("changefeed.Hub.Subscribe: nil handler")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.tables[table]
	if !ok {
		return 0, fmt.Errorf("changefeed.Hub.Subscribe: table %q is not watched", table)
	}
	h.next++
	subs[h.next] = fn
	h.log.Debug("changefeed: subscribed", "table", table, "subscription", h.next)
	return h.next, nil
}

// Unsubscribe removes a handler. Unknown IDs are ignored so callers can
// release unconditionally.
func (h *Hub) Unsubscribe(id SubscriptionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for table, subs := range h.tables {
		if _, ok := subs[id]; ok {
			delete(subs, id)
			h.log.Debug("changefeed: unsubscribed", "table", table, "subscription", id)
			return
		}
	}
}

// Subscribers returns the number of handlers registered for table.
func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tables[table])
}

// Dispatch delivers n to every handler subscribed to n.Table.
// Notifications for unwatched tables are dropped.
func (h *Hub) Dispatch(n Notification) {
	h.mu.RLock()
	subs := h.tables[n.Table]
	handlers := make([]Handler, 0, len(subs))
	for _, fn := range subs {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(n)
	}
}
