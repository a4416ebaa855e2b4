package live

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"live-relay/internal/platform/metrics"
	"live-relay/internal/upstream"

	"github.com/oklog/ulid/v2"
)

const (
	maxUsernameLength    = 80
	maxChatMessageLength = 2000
)

// Hub wires the registry, bus and coordinator to realtime connections.
type Hub struct {
	registry    *Registry
	bus         *Bus
	coordinator *Coordinator
	log         *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	upstreamMu   sync.Mutex
	lastUpstream *upstream.StreamStatus
}

// NewHub builds a Hub and its components. m may be nil.
func NewHub(log *slog.Logger, m *metrics.Metrics, opts RegistryOptions) *Hub {
	registry := NewRegistry(log, m, opts)
	bus := NewBus(registry, log, m)
	h := &Hub{
		registry:    registry,
		bus:         bus,
		coordinator: NewCoordinator(registry, bus, log, m),
		log:         log,
		metrics:     m,
		now:         time.Now,
	}
	registry.OnRemove(h.sessionRemoved)
	return h
}

// Registry returns the hub's session registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Bus returns the hub's fan-out bus.
func (h *Hub) Bus() *Bus { return h.bus }

// Coordinator returns the hub's broadcast coordinator.
func (h *Hub) Coordinator() *Coordinator { return h.coordinator }

// Connect registers conn, sends the new session a state snapshot and tells
// everyone the new viewer count.
func (h *Hub) Connect(conn Conn) *Session {
	s := h.registry.Register(conn)

	h.coordinator.withState(func(current *BroadcastSession) {
		_ = h.bus.SendTo(s.ID, Event{Type: TypeStreamStatus, Data: streamStatusPayload{
			IsLive:      current != nil,
			ViewerCount: h.registry.Count(),
			StreamData:  current,
		}})
	})
	if st, ok := h.LastUpstreamStatus(); ok {
		_ = h.bus.SendTo(s.ID, Event{Type: TypeUpstreamStatus, Data: st})
	}

	h.broadcastViewerCount()
	h.log.Info("session connected", slog.String("session_id", s.ID))
	return s
}

// Disconnect removes the session. Safe to call more than once.
func (h *Hub) Disconnect(id string) {
	h.registry.Unregister(id)
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.registry.CloseAll()
}

func (h *Hub) sessionRemoved(s *Session) {
	h.log.Info("session disconnected",
		slog.String("session_id", s.ID),
		slog.Duration("connected_for", h.now().Sub(s.ConnectedAt)))
	h.coordinator.HandleDisconnect(s.ID)
	h.broadcastViewerCount()
}

func (h *Hub) broadcastViewerCount() {
	h.bus.Broadcast(Event{Type: TypeViewerCountUpdate, Data: viewerCountPayload{ViewerCount: h.registry.Count()}}, "")
}

// HandleMessage decodes and applies one client message. Failures are
// reported back to the sender as an error event.
func (h *Hub) HandleMessage(s *Session, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		_ = h.bus.SendTo(s.ID, Event{Type: TypeError, Data: errorPayload{Message: "Malformed message"}})
		return
	}

	var err error
	switch msg.Type {
	case TypeJoinAsBroadcaster:
		if err = h.registry.Promote(s.ID, RoleBroadcaster); err == nil {
			_ = h.bus.SendTo(s.ID, Event{Type: TypeRoleUpdate, Data: rolePayload{Role: RoleBroadcaster}})
		}
	case TypeStartBroadcast:
		var req startBroadcastRequest
		if err = decodeData(msg.Data, &req); err != nil {
			err = ErrInvalidBroadcast
			break
		}
		_, err = h.coordinator.StartBroadcast(s, req.Title, req.Description)
	case TypeStopBroadcast:
		if err = h.coordinator.StopBroadcast(s); err == nil {
			_ = h.bus.SendTo(s.ID, Event{Type: TypeRoleUpdate, Data: rolePayload{Role: RoleListener}})
		}
	case TypeChatMessage:
		err = h.chat(msg.Data)
	default:
		_ = h.bus.SendTo(s.ID, Event{Type: TypeError, Data: errorPayload{Message: "Unknown message type"}})
		return
	}

	if err != nil {
		h.log.Debug("client request rejected",
			slog.String("session_id", s.ID),
			slog.String("type", msg.Type),
			slog.String("error", err.Error()))
		if !errors.Is(err, ErrSessionNotFound) {
			_ = h.bus.SendTo(s.ID, errorEvent(err))
		}
	}
}

func (h *Hub) chat(data json.RawMessage) error {
	var req chatRequest
	if err := decodeData(data, &req); err != nil {
		return ErrInvalidChat
	}
	username := strings.TrimSpace(req.Username)
	text := strings.TrimSpace(req.Message)
	if username == "" || text == "" ||
		utf8.RuneCountInString(username) > maxUsernameLength ||
		utf8.RuneCountInString(text) > maxChatMessageLength {
		return ErrInvalidChat
	}

	h.metrics.IncChatMessages()
	h.bus.Broadcast(Event{Type: TypeChatMessage, Data: ChatMessage{
		ID:        ulid.Make().String(),
		Username:  username,
		Message:   text,
		Timestamp: h.now().UTC(),
	}}, "")
	return nil
}

// PublishUpstreamStatus remembers st and broadcasts it when it differs from
// the last published status. It reports whether a broadcast happened.
func (h *Hub) PublishUpstreamStatus(st upstream.StreamStatus) bool {
	h.upstreamMu.Lock()
	changed := h.lastUpstream == nil || !sameStatus(*h.lastUpstream, st)
	h.lastUpstream = &st
	h.upstreamMu.Unlock()

	if changed {
		h.bus.Broadcast(Event{Type: TypeUpstreamStatus, Data: st}, "")
	}
	return changed
}

// LastUpstreamStatus returns the most recently published upstream status.
func (h *Hub) LastUpstreamStatus() (upstream.StreamStatus, bool) {
	h.upstreamMu.Lock()
	defer h.upstreamMu.Unlock()

	if h.lastUpstream == nil {
		return upstream.StreamStatus{}, false
	}
	return *h.lastUpstream, true
}

func sameStatus(a, b upstream.StreamStatus) bool {
	return a.Online == b.Online &&
		a.ViewerCount == b.ViewerCount &&
		a.StreamTitle == b.StreamTitle &&
		a.Source == b.Source
}

// decodeData accepts a missing payload as an empty object.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
