package live

import (
	"context"
	"log/slog"
	"time"

	"live-relay/internal/upstream"

	"github.com/jpillora/backoff"
)

// StatusProber reports the merged upstream status.
type StatusProber interface {
	Status(ctx context.Context) upstream.StreamStatus
}

// Watcher polls the upstream status and pushes changes to realtime clients.
// While upstream is offline it polls less often, up to four intervals apart.
type Watcher struct {
	prober   StatusProber
	hub      *Hub
	interval time.Duration
	backoff  *backoff.Backoff
	log      *slog.Logger
}

// NewWatcher returns a Watcher polling every interval (15s when not
// positive).
func NewWatcher(prober StatusProber, hub *Hub, interval time.Duration, log *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Watcher{
		prober:   prober,
		hub:      hub,
		interval: interval,
		backoff: &backoff.Backoff{
			Min:    interval,
			Max:    4 * interval,
			Factor: 2,
		},
		log: log,
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	for {
		delay := w.poll(ctx)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// poll publishes one status and returns the delay before the next poll.
func (w *Watcher) poll(ctx context.Context) time.Duration {
	st := w.prober.Status(ctx)
	if w.hub.PublishUpstreamStatus(st) {
		w.log.Info("upstream status changed",
			slog.Bool("online", st.Online),
			slog.String("source", string(st.Source)),
			slog.String("title", st.StreamTitle))
	}
	if st.Online {
		w.backoff.Reset()
		return w.interval
	}
	return w.backoff.Duration()
}
