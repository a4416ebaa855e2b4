package live

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeConn records text frames. It can fail every write, or block writes
// until unblock is closed.
type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	fail    bool
	closes  int
	unblock chan struct{}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if c.unblock != nil {
		<-c.unblock
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	if messageType == websocket.TextMessage {
		c.frames = append(c.frames, append([]byte(nil), data...))
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type decoded struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *fakeConn) Events() []decoded {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]decoded, 0, len(c.frames))
	for _, f := range c.frames {
		var d decoded
		if err := json.Unmarshal(f, &d); err == nil {
			out = append(out, d)
		}
	}
	return out
}

func (c *fakeConn) Types() []string {
	var out []string
	for _, e := range c.Events() {
		out = append(out, e.Type)
	}
	return out
}

// waitForType waits until conn has received an event of type typ and
// returns the last one.
func waitForType(t *testing.T, c *fakeConn, typ string) decoded {
	t.Helper()
	var found decoded
	require.Eventually(t, func() bool {
		for _, e := range c.Events() {
			if e.Type == typ {
				found = e
			}
		}
		return found.Type == typ
	}, 2*time.Second, 5*time.Millisecond, "no %q event, got %v", typ, c.Types())
	return found
}

func countType(c *fakeConn, typ string) int {
	n := 0
	for _, e := range c.Events() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func newTestHub() *Hub {
	return NewHub(quietLogger(), nil, RegistryOptions{QueueSize: 16})
}
