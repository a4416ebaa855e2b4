package live

import (
	"log/slog"
	"sync"
	"time"

	"live-relay/internal/platform/metrics"

	"github.com/google/uuid"
)

const (
	defaultQueueSize  = 64
	defaultWriteWait  = 10 * time.Second
	defaultPingPeriod = 30 * time.Second
)

// RegistryOptions tunes per-session delivery. Zero values use defaults.
type RegistryOptions struct {
	QueueSize  int
	WriteWait  time.Duration
	PingPeriod time.Duration
	Now        func() time.Time
}

// Registry is the set of connected sessions. Only connection lifecycle code
// (connect, disconnect, promote) mutates it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	onRemove []func(*Session)

	queueSize  int
	writeWait  time.Duration
	pingPeriod time.Duration
	now        func() time.Time

	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewRegistry returns an empty Registry. m may be nil.
func NewRegistry(log *slog.Logger, m *metrics.Metrics, opts RegistryOptions) *Registry {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		queueSize:  opts.QueueSize,
		writeWait:  opts.WriteWait,
		pingPeriod: opts.PingPeriod,
		now:        opts.Now,
		log:        log,
		metrics:    m,
	}
}

// OnRemove adds a hook that runs once for every session removed by
// Unregister, after its connection is closed and outside registry locks.
func (r *Registry) OnRemove(fn func(*Session)) {
	r.mu.Lock()
	r.onRemove = append(r.onRemove, fn)
	r.mu.Unlock()
}

// Register stores a new listener session for conn and starts its writer.
func (r *Registry) Register(conn Conn) *Session {
	s := newSession(uuid.NewString(), conn, r.now(), r.queueSize)
	s.setRole(RoleListener)

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetSessions(n)
	r.log.Debug("session registered", slog.String("session_id", s.ID), slog.Int("sessions", n))

	go s.writeLoop(r.writeWait, r.pingPeriod, func(err error) {
		r.log.Debug("session write failed", slog.String("session_id", s.ID), slog.String("error", err.Error()))
		r.Unregister(s.ID)
	})
	return s
}

// Unregister removes and closes the session. It reports whether the session
// was present; repeated calls are no-ops.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	hooks := append([]func(*Session){}, r.onRemove...)
	r.mu.Unlock()

	if !ok {
		return false
	}

	s.close()
	r.metrics.SetSessions(n)
	r.log.Debug("session unregistered", slog.String("session_id", id), slog.Int("sessions", n))

	for _, fn := range hooks {
		fn(s)
	}
	return true
}

// Promote changes a session's role. Only listener to broadcaster is allowed;
// promoting a broadcaster again is a no-op.
func (r *Registry) Promote(id string, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if role != RoleBroadcaster {
		return ErrInvalidTransition
	}
	s.setRole(RoleBroadcaster)
	return nil
}

// demote returns a broadcaster to listener once its broadcast is over.
func (r *Registry) demote(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.setRole(RoleListener)
	}
}

// Get returns the registered session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of live sessions, or only those with one of
// roles. A session that has been closed but not yet removed is not counted.
func (r *Registry) Count(roles ...Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.closed() {
			continue
		}
		if len(roles) == 0 {
			n++
			continue
		}
		role := s.Role()
		for _, want := range roles {
			if role == want {
				n++
				break
			}
		}
	}
	return n
}

// Snapshot returns the live sessions registered at the time of the call.
func (r *Registry) Snapshot() []*Session {
	return r.sessionList(false)
}

// CloseAll unregisters every session, including closed ones still pending
// removal.
func (r *Registry) CloseAll() {
	for _, s := range r.sessionList(true) {
		r.Unregister(s.ID)
	}
}

func (r *Registry) sessionList(includeClosed bool) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if includeClosed || !s.closed() {
			out = append(out, s)
		}
	}
	return out
}
