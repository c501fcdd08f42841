// Package metrics collects the in-process counters that make the
// backpressure and session-lifecycle behavior of the DAC emulator
// observable beyond the single buffer_fullness field on the wire.
package metrics

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Registry holds the counters exercised by the pipeline and protocol
// engine. It is safe for concurrent use: every counter it exposes is
// itself safe for concurrent Inc/Add.
type Registry struct {
	set *metrics.Set

	PointsDecoded    *metrics.Counter
	FramesDropped    *metrics.Counter
	PointsDropped    *metrics.Counter
	SessionsAccepted *metrics.Counter
	SessionsClosed   *metrics.Counter
}

// New creates a fresh, independently registered counter set so that
// multiple emulator instances in the same process (as in tests) do not
// collide on global VictoriaMetrics/metrics registry names.
func New() *Registry {
	set := metrics.NewSet()

	return &Registry{
		set:              set,
		PointsDecoded:    set.NewCounter("etherdream_points_decoded_total"),
		FramesDropped:    set.NewCounter("etherdream_frames_dropped_total"),
		PointsDropped:    set.NewCounter("etherdream_points_dropped_total"),
		SessionsAccepted: set.NewCounter("etherdream_sessions_accepted_total"),
		SessionsClosed:   set.NewCounter("etherdream_sessions_closed_total"),
	}
}

// CommandReceived increments the per-command-byte counter, creating it
// on first use.
func (r *Registry) CommandReceived(cmd byte) {
	name := fmt.Sprintf(`etherdream_commands_received_total{command=%q}`, string(cmd))
	r.set.GetOrCreateCounter(name).Inc()
}

// WritePrometheus renders every counter in Prometheus text exposition
// format. The emulator itself opens no HTTP listener for this; an
// embedder may serve it on its own mux.
func (r *Registry) WritePrometheus(w io.Writer) {
	r.set.WritePrometheus(w)
}
