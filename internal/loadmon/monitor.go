// Package loadmon classifies host load as normal or high on a throttled cadence.
package loadmon

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults for a zero Options.
const (
	DefaultInterval     = 5 * time.Second
	DefaultCPUThreshold = 0.8
	DefaultMemThreshold = 85.0
)

// Sample is one reading of host load.
type Sample struct {
	CPULoad        float64   `json:"cpu"`
	MemUsedPercent float64   `json:"memoryPercent"`
	FreeMemoryMB   uint64    `json:"freeMemoryMB"`
	SampledAt      time.Time `json:"-"`
	IsHighLoad     bool      `json:"isHighLoad"`
}

// Reading is the raw host data a Reader returns.
type Reading struct {
	CPULoad        float64
	MemUsedPercent float64
	FreeMemoryMB   uint64
}

// Reader reads host counters.
type Reader interface {
	Read() (Reading, error)
}

// Monitor caches the last Sample and refreshes it at most once per interval.
type Monitor struct {
	reader       Reader
	interval     time.Duration
	cpuThreshold float64
	memThreshold float64
	log          *slog.Logger
	now          func() time.Time

	mu      sync.Mutex // serializes refreshes
	current atomic.Pointer[Sample]
}

// Options configures a Monitor. Zero values use the package defaults.
type Options struct {
	Interval     time.Duration
	CPUThreshold float64
	MemThreshold float64
	Now          func() time.Time
}

// New returns a Monitor that has not sampled yet; its Current reading is a
// zero, normal-load Sample.
func New(reader Reader, log *slog.Logger, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CPUThreshold <= 0 {
		opts.CPUThreshold = DefaultCPUThreshold
	}
	if opts.MemThreshold <= 0 {
		opts.MemThreshold = DefaultMemThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Monitor{
		reader:       reader,
		interval:     opts.Interval,
		cpuThreshold: opts.CPUThreshold,
		memThreshold: opts.MemThreshold,
		log:          log,
		now:          opts.Now,
	}
	m.current.Store(&Sample{})
	return m
}

// Sample rereads host counters if the last sample is at least one interval
// old and returns the resulting sample. It never blocks on a timer, so it is
// cheap enough to call on every request.
func (m *Monitor) Sample() Sample {
	now := m.now()
	if last := m.current.Load(); !last.SampledAt.IsZero() && now.Sub(last.SampledAt) < m.interval {
		return *last
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// another caller may have refreshed while we waited
	if last := m.current.Load(); !last.SampledAt.IsZero() && now.Sub(last.SampledAt) < m.interval {
		return *last
	}

	s := Sample{SampledAt: now}
	reading, err := m.reader.Read()
	if err != nil {
		m.log.Debug("load sample unavailable, assuming normal load", slog.String("error", err.Error()))
	} else {
		s.CPULoad = reading.CPULoad
		s.MemUsedPercent = reading.MemUsedPercent
		s.FreeMemoryMB = reading.FreeMemoryMB
		s.IsHighLoad = s.CPULoad > m.cpuThreshold || s.MemUsedPercent > m.memThreshold
	}

	if s.IsHighLoad && !m.current.Load().IsHighLoad {
		m.log.Info("host entered high load",
			slog.Float64("cpu", s.CPULoad),
			slog.Float64("memory_percent", s.MemUsedPercent))
	}

	m.current.Store(&s)
	return s
}

// Current returns the last computed sample without refreshing it.
func (m *Monitor) Current() Sample {
	return *m.current.Load()
}
