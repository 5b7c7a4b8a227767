package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// TimeStartRecording starts a timer. The returned function records the
// elapsed time into m, in unit.
func TimeStartRecording(
	ctx context.Context,
	m metric.Float64Histogram,
	unit time.Duration,
	opts ...metric.RecordOption,
) func() {
	start := time.Now()
	return func() {
		m.Record(ctx, inUnit(time.Since(start), unit), opts...)
	}
}

func inUnit(d time.Duration, unit time.Duration) float64 {
	switch unit {
	case time.Nanosecond:
		return float64(d.Nanoseconds())
	case time.Microsecond:
		return float64(d.Microseconds())
	case time.Millisecond:
		return float64(d.Milliseconds())
	default:
		return d.Seconds()
	}
}

// Timers measures durations that start and end in different goroutines,
// keyed by an identifier. Durations are recorded in seconds.
type Timers struct {
	mu    sync.Mutex
	start map[string]time.Time
}

// NewTimers returns an empty set of timers.
func NewTimers() *Timers {
	return &Timers{start: make(map[string]time.Time)}
}

// Start starts the timer id. A running timer is restarted.
func (t *Timers) Start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start[id] = time.Now()
}

// Stop stops the timer id and records its duration into m. It returns false
// when the timer is not running.
func (t *Timers) Stop(
	ctx context.Context,
	m metric.Float64Histogram,
	id string,
	opts ...metric.RecordOption,
) (time.Duration, bool) {
	t.mu.Lock()
	start, ok := t.start[id]
	delete(t.start, id)
	t.mu.Unlock()
	if !ok {
		return 0, false
	}
	d := time.Since(start)
	m.Record(ctx, d.Seconds(), opts...)
	return d, true
}

// Cancel stops the timer id without recording.
func (t *Timers) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.start, id)
}

// Len returns the number of running timers.
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.start)
}
