// Package render defines the collaborator interface the rest of the
// emulator hands decoded points to, and a headless implementation that
// satisfies it without opening a window or driving any laser hardware.
// This package exists so --headless and a future real renderer are the
// same shape, behind one narrow interface.
package render

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/etherdreamd/internal/dacproto"
	"github.com/doismellburning/etherdreamd/internal/pipeline"
)

// Renderer consumes decoded points. Implementations must not block the
// pipeline's worker; Run calls Consume with each non-empty batch that
// Dequeue returned.
type Renderer interface {
	Consume(points []dacproto.Point)
	Close()
}

// Headless discards every point it receives. It exists so a full
// emulator build and a --headless build share the exact same pipeline
// drain loop, differing only in which Renderer is constructed.
type Headless struct {
	logger     *log.Logger
	pointsSeen uint64
}

// NewHeadless returns a Renderer that only logs the points it discards,
// at Debug, so --headless --debug still shows activity.
func NewHeadless(logger *log.Logger) *Headless {
	return &Headless{logger: logger}
}

// Consume implements Renderer.
func (h *Headless) Consume(points []dacproto.Point) {
	h.pointsSeen += uint64(len(points))
	if len(points) > 0 && h.logger != nil {
		h.logger.Debug("discarding points (headless)", "count", len(points), "total", h.pointsSeen)
	}
}

// Close implements Renderer.
func (h *Headless) Close() {}

// drainInterval is how often the drain loop polls the pipeline for
// freshly decoded points. It is shorter than the pipeline worker's own
// 100ms idle poll, so decoded points are handed on soon after they land.
const drainInterval = 10 * time.Millisecond

// batchSize bounds how many points a single Dequeue call drains at a
// time, keeping each Consume call small regardless of how far the
// producer gets ahead.
const batchSize = 256

// Run drains pl and hands every batch to r until stop is closed. It is
// meant to run in its own goroutine, started once per process.
func Run(pl *pipeline.Pipeline, r Renderer, stop <-chan struct{}) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			points := pl.Dequeue(batchSize)
			if len(points) > 0 {
				r.Consume(points)
			}
		}
	}
}
