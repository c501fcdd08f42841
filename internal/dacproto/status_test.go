package dacproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRoundTrip(t *testing.T) {
	s := DacStatus{
		Protocol:         1,
		LightEngineState: LightEngineWarmup,
		PlaybackState:    PlaybackPlaying,
		Source:           SourceNetwork,
		LightEngineFlags: 0x0102,
		PlaybackFlags:    0x0304,
		SourceFlags:      0x0506,
		BufferFullness:   4200,
		PointRate:        30000,
		PointCount:       123456,
	}

	buf, err := s.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, StatusSize)

	var round DacStatus
	require.NoError(t, round.UnmarshalBinary(buf))
	assert.Equal(t, s, round)
}

func TestStatusAllZero(t *testing.T) {
	var s DacStatus
	buf, err := s.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, StatusSize), buf)
}

func TestStatusUnmarshalWrongLength(t *testing.T) {
	var s DacStatus
	err := s.UnmarshalBinary(make([]byte, StatusSize+1))
	require.Error(t, err)
}
