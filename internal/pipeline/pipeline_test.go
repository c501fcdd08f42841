package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/etherdreamd/internal/dacproto"
)

func onePointPayload(i uint16) []byte {
	var p dacproto.Point
	p.I = i
	buf, _ := p.MarshalBinary()
	return buf
}

func singlePointFrame() dacproto.DacFrame {
	return dacproto.DacFrame{NumPoints: 1, Payload: onePointPayload(1)}
}

// TestEnqueueOverflow checks that, with the worker stalled, the 11th
// enqueue against a 10-frame-limit pipeline fails and the first 10
// frames remain intact.
func TestEnqueueOverflow(t *testing.T) {
	p := New(10, DefaultPointLimit, nil, nil)
	// Worker never started: input queue is never drained.

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Enqueue(singlePointFrame()), "frame %d", i)
	}

	err := p.Enqueue(singlePointFrame())
	assert.ErrorIs(t, err, ErrPipelineFull)

	// The overflowing frame must not be retained: draining exactly 10
	// frames through the worker should yield exactly 10 points.
	go p.Run()
	defer p.Close()

	require.Eventually(t, func() bool {
		return p.Size() == 10
	}, time.Second, time.Millisecond)

	// No eleventh point ever shows up.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 10, p.Size())
}

// TestDequeueOrderPreserved checks FIFO ordering across frames and
// within a frame.
func TestDequeueOrderPreserved(t *testing.T) {
	p := New(DefaultFrameLimit, DefaultPointLimit, nil, nil)

	var payload []byte
	for _, v := range []uint16{1, 2} {
		payload = append(payload, onePointPayload(v)...)
	}
	require.NoError(t, p.Enqueue(dacproto.DacFrame{NumPoints: 2, Payload: payload}))
	require.NoError(t, p.Enqueue(dacproto.DacFrame{NumPoints: 1, Payload: onePointPayload(3)}))

	go p.Run()
	defer p.Close()

	require.Eventually(t, func() bool { return p.Size() == 3 }, time.Second, time.Millisecond)

	points := p.Dequeue(10)
	require.Len(t, points, 3)
	assert.Equal(t, []uint16{1, 2, 3}, []uint16{points[0].I, points[1].I, points[2].I})
}

// TestDequeueReturnsFewerWhenShort checks dequeue never blocks and
// returns what's available.
func TestDequeueReturnsFewerWhenShort(t *testing.T) {
	p := New(DefaultFrameLimit, DefaultPointLimit, nil, nil)
	require.NoError(t, p.Enqueue(dacproto.DacFrame{NumPoints: 1, Payload: onePointPayload(7)}))

	go p.Run()
	defer p.Close()

	require.Eventually(t, func() bool { return p.Size() == 1 }, time.Second, time.Millisecond)

	points := p.Dequeue(10)
	require.Len(t, points, 1)

	// A second dequeue against an empty queue returns immediately,
	// empty, never blocking.
	done := make(chan struct{})
	go func() {
		p.Dequeue(5)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Dequeue blocked on empty queue")
	}
}

// TestOutputOverflowDropsTailNotOlder verifies the output overflow
// policy: drop the newest points within the overflowing frame, never
// reorder, never drop what's already queued.
func TestOutputOverflowDropsTailNotOlder(t *testing.T) {
	p := New(DefaultFrameLimit, 3, nil, nil)

	var payload []byte
	for _, v := range []uint16{1, 2, 3, 4, 5} {
		payload = append(payload, onePointPayload(v)...)
	}
	require.NoError(t, p.Enqueue(dacproto.DacFrame{NumPoints: 5, Payload: payload}))

	go p.Run()
	defer p.Close()

	require.Eventually(t, func() bool { return p.Size() == 3 }, time.Second, time.Millisecond)

	points := p.Dequeue(10)
	require.Len(t, points, 3)
	assert.Equal(t, []uint16{1, 2, 3}, []uint16{points[0].I, points[1].I, points[2].I})
}

// TestMalformedFrameDiscardedWorkerContinues checks that a bad frame
// doesn't wedge the worker: the next good frame still decodes.
func TestMalformedFrameDiscardedWorkerContinues(t *testing.T) {
	p := New(DefaultFrameLimit, DefaultPointLimit, nil, nil)

	require.NoError(t, p.Enqueue(dacproto.DacFrame{NumPoints: 2, Payload: onePointPayload(1)})) // too short
	require.NoError(t, p.Enqueue(dacproto.DacFrame{NumPoints: 1, Payload: onePointPayload(9)}))

	go p.Run()
	defer p.Close()

	require.Eventually(t, func() bool { return p.Size() == 1 }, time.Second, time.Millisecond)
	points := p.Dequeue(10)
	require.Len(t, points, 1)
	assert.Equal(t, uint16(9), points[0].I)
}
