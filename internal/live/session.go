package live

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the part of a websocket connection a Session writes to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one live realtime connection. Its connection is owned by the
// Registry and closed exactly once.
type Session struct {
	ID          string
	ConnectedAt time.Time

	role atomic.Int32
	conn Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, conn Conn, connectedAt time.Time, queueSize int) *Session {
	return &Session{
		ID:          id,
		ConnectedAt: connectedAt,
		conn:        conn,
		send:        make(chan []byte, queueSize),
		done:        make(chan struct{}),
	}
}

// Role returns the current role.
func (s *Session) Role() Role {
	return Role(s.role.Load())
}

func (s *Session) setRole(r Role) {
	s.role.Store(int32(r))
}

// enqueue queues an encoded event without blocking. It fails when the
// session is closed or its queue is full.
func (s *Session) enqueue(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// close stops the writer and closes the connection. Safe to call repeatedly.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// closed reports whether close has run.
func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// writeLoop drains the send queue in order and keeps the connection alive
// with pings. onError runs once if a write fails.
func (s *Session) writeLoop(writeWait, pingPeriod time.Duration, onError func(error)) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				onError(err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				onError(err)
				return
			}
		case <-s.done:
			return
		}
	}
}
