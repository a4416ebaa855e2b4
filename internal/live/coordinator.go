package live

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"live-relay/internal/platform/metrics"

	"github.com/google/uuid"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

// Coordinator owns the one manual broadcast. It is Idle when current is nil
// and Live otherwise. State checks, the transition and the resulting event
// all happen under mu, so two racing starts cannot both win and listeners
// see transitions in order.
type Coordinator struct {
	mu      sync.Mutex
	current *BroadcastSession

	registry *Registry
	bus      *Bus
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewCoordinator returns an Idle Coordinator. m may be nil.
func NewCoordinator(registry *Registry, bus *Bus, log *slog.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{registry: registry, bus: bus, log: log, metrics: m, now: time.Now}
}

// StartBroadcast moves Idle to Live on behalf of a broadcaster session and
// announces broadcast_started to everyone, the caller included.
func (c *Coordinator) StartBroadcast(s *Session, title, description string) (BroadcastSession, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength || utf8.RuneCountInString(description) > maxDescriptionLength {
		return BroadcastSession{}, ErrInvalidBroadcast
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// a session that is already gone must not leave a dangling broadcast
	if _, ok := c.registry.Get(s.ID); !ok {
		return BroadcastSession{}, ErrSessionNotFound
	}
	if s.Role() != RoleBroadcaster {
		return BroadcastSession{}, ErrNotBroadcaster
	}
	if c.current != nil {
		return BroadcastSession{}, ErrAlreadyLive
	}

	b := BroadcastSession{
		ID:                   uuid.NewString(),
		Title:                title,
		Description:          description,
		BroadcasterSessionID: s.ID,
		StartedAt:            c.now().UTC(),
	}
	c.current = &b
	c.metrics.IncBroadcastsStarted()
	c.log.Info("broadcast started",
		slog.String("broadcast_id", b.ID),
		slog.String("session_id", s.ID),
		slog.String("title", b.Title))

	c.bus.Broadcast(Event{Type: TypeBroadcastStarted, Data: broadcastStartedPayload{
		StreamData:  b,
		ViewerCount: c.registry.Count(),
	}}, "")
	return b, nil
}

// StopBroadcast moves Live to Idle. Only the session that started the
// broadcast may stop it; anyone else gets ErrNotOwner and state is unchanged.
func (c *Coordinator) StopBroadcast(s *Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ErrNotLive
	}
	if c.current.BroadcasterSessionID != s.ID {
		c.log.Info("stop broadcast rejected",
			slog.String("broadcast_id", c.current.ID),
			slog.String("session_id", s.ID))
		return ErrNotOwner
	}
	c.endLocked("stopped")
	return nil
}

// HandleDisconnect ends the broadcast if sessionID was its broadcaster and
// reports whether it did.
func (c *Coordinator) HandleDisconnect(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.BroadcasterSessionID != sessionID {
		return false
	}
	c.endLocked("broadcaster disconnected")
	return true
}

// Current returns the live broadcast, if any.
func (c *Coordinator) Current() (BroadcastSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return BroadcastSession{}, false
	}
	return *c.current, true
}

// withState runs fn with the current broadcast (nil when Idle) while holding
// the coordinator lock, so a snapshot sent by fn cannot interleave with a
// transition event.
func (c *Coordinator) withState(fn func(current *BroadcastSession)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		fn(nil)
		return
	}
	cp := *c.current
	fn(&cp)
}

func (c *Coordinator) endLocked(reason string) {
	b := c.current
	c.current = nil
	c.registry.demote(b.BroadcasterSessionID)

	c.log.Info("broadcast ended",
		slog.String("broadcast_id", b.ID),
		slog.String("session_id", b.BroadcasterSessionID),
		slog.String("reason", reason),
		slog.Duration("duration", c.now().Sub(b.StartedAt)))

	c.bus.Broadcast(Event{Type: TypeBroadcastEnded, Data: struct{}{}}, "")
}
