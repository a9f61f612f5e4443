// Package telemetry holds the OpenTelemetry instruments reported by the
// simulation loop, the vehicle controller and the viewer transport.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/race/drive"

// Metrics groups the simulator instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ticks      metric.Int64Counter
	tickTime   metric.Float64Histogram
	recoveries metric.Int64Counter
	respawns   metric.Int64Counter
	viewers    metric.Int64UpDownCounter
	frames     metric.Int64Counter
}

// New creates the instruments on the given meter. Pass nil to use the
// global provider (no-op unless the host installed one).
func New(m metric.Meter) (*Metrics, error) {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}

	var (
		out Metrics
		err error
	)

	out.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Fixed physics steps executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	out.tickTime, err = m.Float64Histogram(
		"sim.tick.duration",
		metric.WithDescription("Wall time spent in one simulation step"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	out.recoveries, err = m.Int64Counter(
		"vehicle.recovery.transitions",
		metric.WithDescription("Recovery state machine transitions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating recovery counter: %w", err)
	}

	out.respawns, err = m.Int64Counter(
		"vehicle.respawns",
		metric.WithDescription("Explicit respawns to the spawn pose"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating respawn counter: %w", err)
	}

	out.viewers, err = m.Int64UpDownCounter(
		"sim.viewers",
		metric.WithDescription("Connected viewers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating viewer gauge: %w", err)
	}

	out.frames, err = m.Int64Counter(
		"sim.frames.broadcast",
		metric.WithDescription("Frames sent to viewers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frame counter: %w", err)
	}

	return &out, nil
}

// Tick records one completed simulation step.
func (m *Metrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.ticks.Add(ctx, 1)
	m.tickTime.Record(ctx, d.Seconds())
}

// Recovery records a recovery state machine outcome ("started",
// "cleared", "completed", "aborted").
func (m *Metrics) Recovery(outcome string) {
	if m == nil {
		return
	}
	m.recoveries.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Respawn records an explicit respawn.
func (m *Metrics) Respawn() {
	if m == nil {
		return
	}
	m.respawns.Add(context.Background(), 1)
}

// ViewerDelta adjusts the connected viewer count.
func (m *Metrics) ViewerDelta(n int64) {
	if m == nil {
		return
	}
	m.viewers.Add(context.Background(), n)
}

// Frame records a broadcast frame fanned out to n viewers.
func (m *Metrics) Frame(n int) {
	if m == nil || n == 0 {
		return
	}
	m.frames.Add(context.Background(), int64(n))
}
