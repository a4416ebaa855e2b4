package upstream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"live-relay/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

// ErrUpstreamStatus marks a non-2xx upstream response.
var ErrUpstreamStatus = errors.New("upstream returned non-2xx status")

// DefaultTimeout bounds every probe call.
const DefaultTimeout = 5 * time.Second

// StatusSource is one upstream that can report a StreamStatus.
type StatusSource interface {
	Name() string
	Probe(ctx context.Context) (StreamStatus, error)
}

// Prober queries the configured sources and absorbs their failures: every
// method returns a usable StreamStatus, never an error.
type Prober struct {
	autoDJ  StatusSource
	relays  []StatusSource
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewProber returns a Prober. autoDJ may be nil; relays are consulted in
// order, and a nil entry is skipped. m may be nil.
func NewProber(autoDJ StatusSource, relays []StatusSource, timeout time.Duration, log *slog.Logger, m *metrics.Metrics) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var rs []StatusSource
	for _, r := range relays {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return &Prober{autoDJ: autoDJ, relays: rs, timeout: timeout, log: log, metrics: m, now: time.Now}
}

// FetchStatus returns the auto-DJ status, or the offline sentinel.
func (p *Prober) FetchStatus(ctx context.Context) StreamStatus {
	if p.autoDJ == nil {
		return Offline(p.now())
	}
	return p.probe(ctx, p.autoDJ)
}

// FetchRelayStatus returns the merged status of the relay sources, or the
// offline sentinel.
func (p *Prober) FetchRelayStatus(ctx context.Context) StreamStatus {
	results := p.probeAll(ctx, p.relays)
	return Merge(p.now(), results...)
}

// Status probes every source concurrently and merges the results so that a
// live relay stream overrides the auto-DJ.
func (p *Prober) Status(ctx context.Context) StreamStatus {
	sources := p.relays
	if p.autoDJ != nil {
		sources = append([]StatusSource{p.autoDJ}, p.relays...)
	}
	return Merge(p.now(), p.probeAll(ctx, sources)...)
}

func (p *Prober) probeAll(ctx context.Context, sources []StatusSource) []StreamStatus {
	results := make([]StreamStatus, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i] = p.probe(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Prober) probe(ctx context.Context, src StatusSource) StreamStatus {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	s, err := src.Probe(ctx)
	if err != nil {
		p.metrics.IncUpstreamErrors(src.Name())
		p.log.Debug("upstream probe failed",
			slog.String("source", src.Name()),
			slog.String("error", err.Error()))
		return Offline(p.now())
	}
	if s.ViewerCount < 0 {
		s.ViewerCount = 0
	}
	return s
}
