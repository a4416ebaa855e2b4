package live

import (
	"encoding/json"
	"log/slog"
	"sync"

	"live-relay/internal/platform/metrics"
)

// Bus delivers events to registered sessions. Each event is queued on every
// recipient without blocking; a recipient that cannot take it is dropped and
// the fan-out carries on. Enqueues are serialized, and each session has a
// single writer, so every recipient sees events in the order they were sent.
type Bus struct {
	mu       sync.Mutex
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewBus returns a Bus delivering to sessions in registry. m may be nil.
func NewBus(registry *Registry, log *slog.Logger, m *metrics.Metrics) *Bus {
	return &Bus{registry: registry, log: log, metrics: m}
}

// Broadcast queues evt for every session except exclude (which may be
// empty) and returns how many sessions accepted it.
func (b *Bus) Broadcast(evt Event, exclude string) int {
	msg, err := json.Marshal(evt)
	if err != nil {
		b.log.Error("encode event failed", slog.String("type", evt.Type), slog.String("error", err.Error()))
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, s := range b.registry.Snapshot() {
		if s.ID == exclude {
			continue
		}
		if s.enqueue(msg) {
			delivered++
			continue
		}
		b.drop(s, evt.Type)
	}
	return delivered
}

// SendTo queues evt for one session.
func (b *Bus) SendTo(id string, evt Event) error {
	s, ok := b.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !s.enqueue(msg) {
		b.drop(s, evt.Type)
		return ErrDeliveryFailed
	}
	return nil
}

// drop closes a recipient that could not take an event. Removal from the
// registry runs on its own goroutine because removal hooks may publish
// events themselves.
func (b *Bus) drop(s *Session, eventType string) {
	if s.closed() {
		return
	}
	b.metrics.IncFanoutDropped()
	b.log.Info("dropping session that cannot keep up",
		slog.String("session_id", s.ID),
		slog.String("event", eventType))
	s.close()
	go b.registry.Unregister(s.ID)
}
