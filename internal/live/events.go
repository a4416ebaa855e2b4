package live

import (
	"encoding/json"
	"time"
)

// Message types, client to server.
const (
	TypeStartBroadcast    = "start_broadcast"
	TypeStopBroadcast     = "stop_broadcast"
	TypeJoinAsBroadcaster = "join_as_broadcaster"
	TypeChatMessage       = "chat_message"
)

// Message types, server to client. chat_message is used both ways.
const (
	TypeStreamStatus      = "stream_status"
	TypeBroadcastStarted  = "broadcast_started"
	TypeBroadcastEnded    = "broadcast_ended"
	TypeViewerCountUpdate = "viewer_count_update"
	TypeRoleUpdate        = "role_update"
	TypeUpstreamStatus    = "upstream_status"
	TypeError             = "error"
)

// Event is the envelope for every realtime message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inbound is an Event whose payload has not been decoded yet.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BroadcastSession is the single manual broadcast, when one is live.
type BroadcastSession struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	BroadcasterSessionID string    `json:"broadcasterSessionId"`
	StartedAt            time.Time `json:"startedAt"`
}

type streamStatusPayload struct {
	IsLive      bool              `json:"isLive"`
	ViewerCount int               `json:"viewerCount"`
	StreamData  *BroadcastSession `json:"streamData"`
}

type broadcastStartedPayload struct {
	StreamData  BroadcastSession `json:"streamData"`
	ViewerCount int              `json:"viewerCount"`
}

type viewerCountPayload struct {
	ViewerCount int `json:"viewerCount"`
}

type rolePayload struct {
	Role Role `json:"role"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type startBroadcastRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type chatRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ChatMessage is a relayed chat line.
type ChatMessage struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func errorEvent(err error) Event {
	return Event{Type: TypeError, Data: errorPayload{Message: clientMessage(err)}}
}
