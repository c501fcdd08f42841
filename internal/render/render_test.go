package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/etherdreamd/internal/dacproto"
	"github.com/doismellburning/etherdreamd/internal/metrics"
	"github.com/doismellburning/etherdreamd/internal/pipeline"
)

func TestHeadlessConsumeDoesNotPanic(t *testing.T) {
	h := NewHeadless(nil)
	assert.NotPanics(t, func() {
		h.Consume([]dacproto.Point{{X: 1}, {X: 2}})
		h.Close()
	})
}

func TestRunDrainsPipelineUntilStopped(t *testing.T) {
	pl := pipeline.New(pipeline.DefaultFrameLimit, pipeline.DefaultPointLimit, nil, metrics.New())
	go pl.Run()
	defer pl.Close()

	var p dacproto.Point
	p.X = 5
	payload, err := p.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, pl.Enqueue(dacproto.DacFrame{NumPoints: 1, Payload: payload}))

	h := NewHeadless(nil)
	stop := make(chan struct{})
	go Run(pl, h, stop)

	require.Eventually(t, func() bool {
		return h.pointsSeen == 1
	}, time.Second, time.Millisecond)

	close(stop)
}
