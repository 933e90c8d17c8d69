package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oggyb/heartline/internal/metrics"
)

// ErrSlowConsumer ends a subscription whose buffer overflowed. There is no
// replay: the consumer must re-fetch and subscribe again.
var ErrSlowConsumer = errors.New("subscriber too slow, changes dropped")

// Publisher accepts committed changes in commit order.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Subscription is one attached consumer.
type Subscription struct {
	Filter Filter

	ch   chan Change
	hub  *Hub
	once sync.Once
	mu   sync.Mutex
	err  error
}

// C delivers matching changes until the subscription ends, then is closed.
func (s *Subscription) C() <-chan Change { return s.ch }

// Err reports why C was closed; nil after a normal Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() { s.hub.remove(s, nil) }

func (s *Subscription) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	})
}

// Hub routes changes to the subscriptions whose filter matches. It is the
// in-process Publisher and the sink of the Redis/Kafka buses.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{} // table -> subs
	buffer  int
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(buffer int, log *slog.Logger, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:    make(map[string]map[*Subscription]struct{}),
		buffer:  buffer,
		log:     log,
		metrics: m,
	}
}

// Subscribe attaches a consumer for the rows selected by f.
func (h *Hub) Subscribe(f Filter) *Subscription {
	s := &Subscription{Filter: f, ch: make(chan Change, h.buffer), hub: h}

	h.mu.Lock()
	set, ok := h.subs[f.Table]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[f.Table] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	h.metrics.Subscribers.Inc()
	return s
}

func (h *Hub) remove(s *Subscription, reason error) {
	h.mu.Lock()
	set := h.subs[s.Filter.Table]
	_, attached := set[s]
	if attached {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.Filter.Table)
		}
	}
	h.mu.Unlock()

	if attached {
		h.metrics.Subscribers.Dec()
	}
	s.end(reason)
}

// Publish delivers c to every matching subscription without blocking.
func (h *Hub) Publish(_ context.Context, c Change) error {
	var slow []*Subscription

	h.mu.RLock()
	for s := range h.subs[c.Table] {
		if !s.Filter.Matches(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.log.Warn("dropping slow subscriber", "filter", s.Filter.String())
		h.remove(s, ErrSlowConsumer)
	}
	return nil
}

// Len returns the number of attached subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// CloseAll ends every subscription, used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range all {
		h.remove(s, nil)
	}
}
