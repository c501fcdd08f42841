// Package pipeline implements the two-stage bounded queue that
// decouples the protocol engine's network thread from the decoder and
// from whatever render thread eventually dequeues points: a raw-frame
// input queue feeds a single decoder worker, which appends decoded
// points to a bounded output queue.
package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/etherdreamd/internal/dacproto"
	"github.com/doismellburning/etherdreamd/internal/metrics"
)

// Default queue capacities.
const (
	DefaultFrameLimit = 10
	DefaultPointLimit = 5000
)

// pollInterval is how long the worker sleeps when the input queue is
// empty.
const pollInterval = 100 * time.Millisecond

// ErrPipelineFull is returned by Enqueue when the input queue is over
// capacity. The caller must drop the frame; the producer is never
// blocked.
var ErrPipelineFull = errors.New("pipeline: input queue full")

// Pipeline holds the input (raw frame) and output (decoded point)
// queues. input and output are protected by independent mutexes, held
// only across the push/pop/append itself, never across a decode.
type Pipeline struct {
	frameLimit int
	pointLimit int

	inputMu sync.Mutex
	input   []dacproto.DacFrame

	outputMu sync.Mutex
	output   []dacproto.Point

	stopCh  chan struct{}
	logger  *log.Logger
	metrics *metrics.Registry
}

// New creates a Pipeline with the given capacities. A frameLimit or
// pointLimit of zero uses the package default.
func New(frameLimit, pointLimit int, logger *log.Logger, registry *metrics.Registry) *Pipeline {
	if frameLimit <= 0 {
		frameLimit = DefaultFrameLimit
	}
	if pointLimit <= 0 {
		pointLimit = DefaultPointLimit
	}

	return &Pipeline{
		frameLimit: frameLimit,
		pointLimit: pointLimit,
		stopCh:     make(chan struct{}),
		logger:     logger,
		metrics:    registry,
	}
}

// Enqueue appends frame to the input queue. If the queue's length
// exceeds frameLimit once frame is added, the frame is rejected (not
// retained) and ErrPipelineFull is returned; the producer is never
// blocked waiting for room.
func (p *Pipeline) Enqueue(frame dacproto.DacFrame) error {
	p.inputMu.Lock()
	defer p.inputMu.Unlock()

	p.input = append(p.input, frame)
	if len(p.input) > p.frameLimit {
		p.input = p.input[:len(p.input)-1]
		if p.metrics != nil {
			p.metrics.FramesDropped.Inc()
		}
		return ErrPipelineFull
	}
	return nil
}

// Dequeue returns at most n points from the front of the output queue,
// in order. It never blocks and never waits: if fewer than n points are
// available it returns what exists.
func (p *Pipeline) Dequeue(n int) []dacproto.Point {
	p.outputMu.Lock()
	defer p.outputMu.Unlock()

	if n > len(p.output) {
		n = len(p.output)
	}

	result := make([]dacproto.Point, n)
	copy(result, p.output[:n])
	p.output = p.output[n:]
	return result
}

// Size returns the current output queue length, used for backpressure
// signaling into DacStatus.BufferFullness.
func (p *Pipeline) Size() int {
	p.outputMu.Lock()
	defer p.outputMu.Unlock()

	return len(p.output)
}

// PointLimit returns the configured output queue capacity.
func (p *Pipeline) PointLimit() int {
	return p.pointLimit
}

// Close stops the worker loop started by Run. Safe to call once.
func (p *Pipeline) Close() {
	close(p.stopCh)
}

// Run drains the input queue head-to-tail, decoding each frame and
// appending its points to output, until Close is called. It is meant to
// run in its own goroutine, separate from both the protocol engine and
// the renderer.
func (p *Pipeline) Run() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		frame, ok := p.popInput()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}

		points, err := frame.DecodePoints()
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("discarding malformed frame", "err", err)
			}
			continue
		}

		p.appendOutput(points)
	}
}

func (p *Pipeline) popInput() (dacproto.DacFrame, bool) {
	p.inputMu.Lock()
	defer p.inputMu.Unlock()

	if len(p.input) == 0 {
		return dacproto.DacFrame{}, false
	}

	frame := p.input[0]
	p.input = p.input[1:]
	return frame, true
}

// appendOutput appends points in order, stopping (tail discard) once
// the output queue reaches pointLimit: never reorder, never drop
// older points already queued.
func (p *Pipeline) appendOutput(points []dacproto.Point) {
	p.outputMu.Lock()
	defer p.outputMu.Unlock()

	appended := 0
	for _, pt := range points {
		if len(p.output) >= p.pointLimit {
			break
		}
		p.output = append(p.output, pt)
		appended++
	}

	if p.metrics != nil {
		p.metrics.PointsDecoded.Add(appended)
		if dropped := len(points) - appended; dropped > 0 {
			p.metrics.PointsDropped.Add(dropped)
		}
	}

	if appended < len(points) && p.logger != nil {
		p.logger.Warn("output queue full, discarding tail of frame",
			"appended", appended, "total", len(points))
	}
}
