package stream

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Collection names one independently ordered change feed. Feeds are not
// ordered relative to each other; a viewer may see a team budget move
// before or after the matching player status change from the same sale.
type Collection string

const (
	CollectionAuction    Collection = "auction"
	CollectionTeams      Collection = "teams"
	CollectionPlayers    Collection = "players"
	CollectionCategories Collection = "categories"
	CollectionSponsors   Collection = "sponsors"
)

// Kinds of events carried on a feed.
const (
	KindSnapshot = "snapshot"
	KindUpdate   = "update"
	KindTick     = "tick"
	KindLog      = "log"
)

// ErrSubscriptionLagged is reported on subscriptions that fell too far
// behind and were disconnected. Engine state is unaffected; the subscriber
// should resubscribe and treat its view as stale until the next snapshot.
var ErrSubscriptionLagged = errors.New("subscription lagged behind, resubscribe")

type Event struct {
	Collection Collection `json:"collection"`
	Kind       string     `json:"kind"`
	Payload    any        `json:"payload"`
	At         time.Time  `json:"at"`
}

// Subscription is one viewer's handle on a collection feed. Delivery is
// at-least-once: the latest event is replayed on subscribe, so a consumer
// may see it twice across a reconnect.
type Subscription struct {
	C <-chan Event

	hub        *Hub
	collection Collection
	id         int64
	ch         chan Event

	mu     sync.Mutex
	err    error
	closed bool
}

// Err reports why the subscription's channel closed, or nil after a plain
// Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.collection, s.id, nil)
}

func (s *Subscription) closeWith(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	s.mu.Unlock()
	close(s.ch)
}

// Hub is the in-process change feed every viewer observes the engine
// through. Publishing never blocks on consumers; a subscriber whose buffer
// fills is disconnected with ErrSubscriptionLagged instead of stalling the
// auction.
type Hub struct {
	mu      sync.Mutex
	subs    map[Collection]map[int64]*Subscription
	last    map[Collection]Event
	nextID  int64
	bufSize int
	closed  bool
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		subs:    make(map[Collection]map[int64]*Subscription),
		last:    make(map[Collection]Event),
		bufSize: bufSize,
	}
}

// Subscribe attaches a new consumer to a collection feed. The most recent
// event on the feed, if any, is replayed immediately.
func (h *Hub) Subscribe(c Collection) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		hub:        h,
		collection: c,
		id:         h.nextID,
		ch:         make(chan Event, h.bufSize),
	}
	sub.C = sub.ch

	if h.closed {
		sub.closeWith(nil)
		return sub
	}

	if h.subs[c] == nil {
		h.subs[c] = make(map[int64]*Subscription)
	}
	h.subs[c][sub.id] = sub

	if last, ok := h.last[c]; ok {
		sub.ch <- last
	}
	return sub
}

// Publish fans an event out to every subscriber of the collection.
func (h *Hub) Publish(c Collection, kind string, payload any) {
	ev := Event{Collection: c, Kind: kind, Payload: payload, At: time.Now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.last[c] = ev

	for id, sub := range h.subs[c] {
		select {
		case sub.ch <- ev:
		default:
			delete(h.subs[c], id)
			sub.closeWith(ErrSubscriptionLagged)
			slog.Warn("Dropped lagging stream subscriber",
				slog.String("collection", string(c)),
				slog.Int64("subscriber", id))
		}
	}
}

// Close shuts the hub down and closes every open subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.subs {
		for _, sub := range subs {
			sub.closeWith(nil)
		}
	}
	h.subs = make(map[Collection]map[int64]*Subscription)
}

func (h *Hub) unsubscribe(c Collection, id int64, err error) {
	h.mu.Lock()
	if subs, ok := h.subs[c]; ok {
		if sub, ok := subs[id]; ok {
			delete(subs, id)
			h.mu.Unlock()
			sub.closeWith(err)
			return
		}
	}
	h.mu.Unlock()
}
