// Package notify delivers persisted preference changes between open tabs of the same visitor.
package notify

import (
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/viktokle/folio/app/theme"
)

const defaultQueueSize = 16

// Change is a single persisted key/value change. Own marks a change written by the receiving tab.
type Change struct {
	Key   string
	Value string
	Own   bool
}

// Hub is an in-process publish/subscribe broker keyed by visitor id.
// Each subscriber gets its own queue and goroutine, so a slow subscriber never blocks a publisher.
type Hub struct {
	queueSize int

	mu       sync.RWMutex
	visitors map[string]map[*subscriber]struct{}
}

type subscriber struct {
	tab   string
	queue chan Change
	done  chan struct{}
	once  sync.Once
}

// NewHub makes a hub. queueSize limits pending changes per subscriber, 0 means default.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{queueSize: queueSize, visitors: map[string]map[*subscriber]struct{}{}}
}

// Subscribe registers fn for changes of the visitor. Changes published by tab itself arrive with
// own set, in the same order as the rest, so the subscriber always knows what its tab shows.
// The returned func unsubscribes and waits for the delivery goroutine to exit.
func (h *Hub) Subscribe(visitor, tab string, fn func(key, value string, own bool)) (unsubscribe func()) {
	sub := &subscriber{tab: tab, queue: make(chan Change, h.queueSize), done: make(chan struct{})}

	h.mu.Lock()
	subs, ok := h.visitors[visitor]
	if !ok {
		subs = map[*subscriber]struct{}{}
		h.visitors[visitor] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer close(sub.done)
		for ch := range sub.queue {
			fn(ch.Key, ch.Value, ch.Own)
		}
	}()

	return func() {
		sub.once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.visitors[visitor]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.visitors, visitor)
				}
			}
			close(sub.queue)
			h.mu.Unlock()
		})
		<-sub.done
	}
}

// Publish sends the change to all subscribers of the visitor, marked as own for the origin tab.
// Changes for a subscriber with a full queue are dropped.
// Returns the number of deliveries queued for tabs other than the origin.
func (h *Hub) Publish(visitor, origin, key, value string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.visitors[visitor] {
		own := origin != "" && sub.tab == origin
		select {
		case sub.queue <- Change{Key: key, Value: value, Own: own}:
			if !own {
				delivered++
			}
		default:
			log.Printf("[WARN] drop %s change for tab %s of visitor %s, queue is full", key, sub.tab, visitor)
		}
	}
	return delivered
}

// Subscribers returns the number of active subscribers of the visitor.
func (h *Hub) Subscribers(visitor string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.visitors[visitor])
}

// Channel returns a theme.Notifier bound to the visitor and tab.
func (h *Hub) Channel(visitor, tab string) theme.Notifier {
	return channel{hub: h, visitor: visitor, tab: tab}
}

type channel struct {
	hub     *Hub
	visitor string
	tab     string
}

func (c channel) Subscribe(fn func(key, value string, own bool)) func() {
	return c.hub.Subscribe(c.visitor, c.tab, fn)
}
