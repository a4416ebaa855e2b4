package live

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"live-relay/internal/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(t *testing.T, h *Hub, s *Session, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": typ, "data": data})
	require.NoError(t, err)
	h.HandleMessage(s, raw)
}

func errorMessage(t *testing.T, c *fakeConn) string {
	t.Helper()
	e := waitForType(t, c, TypeError)
	var p errorPayload
	require.NoError(t, json.Unmarshal(e.Data, &p))
	return p.Message
}

func lastViewerCount(c *fakeConn) int {
	n := -1
	for _, e := range c.Events() {
		var p viewerCountPayload
		if e.Type == TypeViewerCountUpdate && json.Unmarshal(e.Data, &p) == nil {
			n = p.ViewerCount
		}
	}
	return n
}

func TestHub_connect_sends_snapshot_first(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	h.Connect(conn)

	waitForType(t, conn, TypeViewerCountUpdate)
	events := conn.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, TypeStreamStatus, events[0].Type)

	var p streamStatusPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &p))
	assert.False(t, p.IsLive)
	assert.Nil(t, p.StreamData)
	assert.Equal(t, 1, p.ViewerCount)
}

func TestHub_connect_while_live(t *testing.T) {
	h := newTestHub()
	bc := &fakeConn{}
	owner := h.Connect(bc)
	send(t, h, owner, TypeJoinAsBroadcaster, nil)
	send(t, h, owner, TypeStartBroadcast, map[string]string{"title": "Sunday Service"})
	waitForType(t, bc, TypeBroadcastStarted)

	late := &fakeConn{}
	h.Connect(late)
	e := waitForType(t, late, TypeStreamStatus)

	var p streamStatusPayload
	require.NoError(t, json.Unmarshal(e.Data, &p))
	assert.True(t, p.IsLive)
	require.NotNil(t, p.StreamData)
	assert.Equal(t, "Sunday Service", p.StreamData.Title)
	assert.Equal(t, owner.ID, p.StreamData.BroadcasterSessionID)
	assert.Equal(t, 2, p.ViewerCount)
}

func TestHub_broadcast_lifecycle(t *testing.T) {
	h := newTestHub()
	bc, listener := &fakeConn{}, &fakeConn{}
	owner := h.Connect(bc)
	l := h.Connect(listener)

	send(t, h, l, TypeStartBroadcast, map[string]string{"title": "Too early"})
	assert.Equal(t, "Join as broadcaster before starting a broadcast", errorMessage(t, listener))

	send(t, h, owner, TypeJoinAsBroadcaster, nil)
	e := waitForType(t, bc, TypeRoleUpdate)
	assert.JSONEq(t, `{"role":"broadcaster"}`, string(e.Data))

	send(t, h, owner, TypeStartBroadcast, map[string]string{"title": "Evening Prayer", "description": "Psalms"})
	waitForType(t, listener, TypeBroadcastStarted)

	send(t, h, l, TypeStopBroadcast, nil)
	require.Eventually(t, func() bool { return countType(listener, TypeError) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Only the broadcaster can stop this broadcast", errorMessage(t, listener))

	send(t, h, owner, TypeStopBroadcast, nil)
	waitForType(t, listener, TypeBroadcastEnded)
	require.Eventually(t, func() bool { return countType(bc, TypeRoleUpdate) == 2 }, 2*time.Second, 5*time.Millisecond)
	e = waitForType(t, bc, TypeRoleUpdate)
	assert.JSONEq(t, `{"role":"listener"}`, string(e.Data))
	assert.Equal(t, RoleListener, owner.Role())
}

func TestHub_broadcaster_disconnect_ends_broadcast(t *testing.T) {
	h := newTestHub()
	bc, listener := &fakeConn{}, &fakeConn{}
	owner := h.Connect(bc)
	h.Connect(listener)
	send(t, h, owner, TypeJoinAsBroadcaster, nil)
	send(t, h, owner, TypeStartBroadcast, map[string]string{"title": "Vigil"})
	waitForType(t, listener, TypeBroadcastStarted)

	h.Disconnect(owner.ID)
	h.Disconnect(owner.ID)

	waitForType(t, listener, TypeBroadcastEnded)
	require.Eventually(t, func() bool { return lastViewerCount(listener) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, countType(listener, TypeBroadcastEnded))
	_, live := h.Coordinator().Current()
	assert.False(t, live)
	assert.Equal(t, 1, h.Registry().Count())
}

func TestHub_chat(t *testing.T) {
	h := newTestHub()
	a, b := &fakeConn{}, &fakeConn{}
	sa := h.Connect(a)
	h.Connect(b)

	send(t, h, sa, TypeChatMessage, map[string]string{"username": " Grace ", "message": "Amen"})
	for _, c := range []*fakeConn{a, b} {
		e := waitForType(t, c, TypeChatMessage)
		var m ChatMessage
		require.NoError(t, json.Unmarshal(e.Data, &m))
		assert.Equal(t, "Grace", m.Username)
		assert.Equal(t, "Amen", m.Message)
		assert.Len(t, m.ID, 26)
		assert.False(t, m.Timestamp.IsZero())
	}
}

func TestHub_chat_validation(t *testing.T) {
	tests := []struct {
		name string
		data any
	}{
		{"missing_payload", nil},
		{"empty_username", map[string]string{"username": "", "message": "hi"}},
		{"blank_message", map[string]string{"username": "Ann", "message": "   "}},
		{"long_username", map[string]string{"username": strings.Repeat("u", maxUsernameLength+1), "message": "hi"}},
		{"long_message", map[string]string{"username": "Ann", "message": strings.Repeat("m", maxChatMessageLength+1)}},
		{"wrong_shape", []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub()
			sender, other := &fakeConn{}, &fakeConn{}
			s := h.Connect(sender)
			h.Connect(other)

			send(t, h, s, TypeChatMessage, tt.data)
			assert.Contains(t, errorMessage(t, sender), "username")
			assert.Zero(t, countType(other, TypeChatMessage))
			assert.Zero(t, countType(other, TypeError))
		})
	}
}

func TestHub_bad_messages(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	s := h.Connect(conn)

	h.HandleMessage(s, []byte(`not json`))
	assert.Equal(t, "Malformed message", errorMessage(t, conn))

	h.HandleMessage(s, []byte(`{"type":"dance"}`))
	require.Eventually(t, func() bool { return countType(conn, TypeError) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Unknown message type", errorMessage(t, conn))
	assert.Equal(t, 1, h.Registry().Count(), "bad input does not drop the session")
}

func TestHub_publish_upstream_status(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	h.Connect(conn)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	online := upstream.StreamStatus{Online: true, ViewerCount: 4, StreamTitle: "Hymns", Source: upstream.SourceRadio, LastUpdated: now}

	assert.True(t, h.PublishUpstreamStatus(online))
	later := online
	later.LastUpdated = now.Add(time.Minute)
	assert.False(t, h.PublishUpstreamStatus(later), "only the timestamp changed")
	more := later
	more.ViewerCount = 5
	assert.True(t, h.PublishUpstreamStatus(more))

	require.Eventually(t, func() bool { return countType(conn, TypeUpstreamStatus) == 2 }, 2*time.Second, 5*time.Millisecond)

	late := &fakeConn{}
	h.Connect(late)
	e := waitForType(t, late, TypeUpstreamStatus)
	var st upstream.StreamStatus
	require.NoError(t, json.Unmarshal(e.Data, &st))
	assert.Equal(t, 5, st.ViewerCount)
}

func TestClientMessage_hides_internal_errors(t *testing.T) {
	assert.Equal(t, "Request failed", clientMessage(assert.AnError))
}
