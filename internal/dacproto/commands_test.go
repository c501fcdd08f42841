package dacproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPingHandshake checks the literal byte sequence of an ACKed Ping.
func TestPingHandshake(t *testing.T) {
	want := []byte{
		0x61, 0x3f, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}

	resp, err := BuildStandardResponse(RespACK, byte(CmdPing), DacStatus{})
	require.NoError(t, err)
	assert.Equal(t, want, resp)
	assert.Len(t, resp, StandardResponseSize)
}

// TestVersionResponse checks the zero-padded ASCII Version reply.
func TestVersionResponse(t *testing.T) {
	resp := BuildVersionResponse("v0.0.1")
	assert.Len(t, resp, VersionResponseSize)
	assert.Equal(t, []byte{0x76, 0x30, 0x2E, 0x30, 0x2E, 0x31}, resp[:6])
	for _, b := range resp[6:] {
		assert.Zero(t, b)
	}
}

func TestIsKnownCommand(t *testing.T) {
	known := []byte{'?', 'p', 'b', 'd', 'v', 'c', 's', 'q', 0x00, 0xff}
	for _, b := range known {
		assert.True(t, IsKnownCommand(b), "expected %q known", b)
	}

	unknown := []byte{'z', 'Q', 0x7f}
	for _, b := range unknown {
		assert.False(t, IsKnownCommand(b), "expected %q unknown", b)
	}
}

func TestParseBeginTrailer(t *testing.T) {
	// Begin, lwm=0, point_rate=5000.
	buf := []byte{0x00, 0x00, 0x88, 0x13, 0x00, 0x00}
	trailer, err := ParseBeginTrailer(buf)
	require.NoError(t, err)
	assert.Equal(t, BeginTrailer{LowWaterMark: 0, PointRate: 5000}, trailer)
}

func TestParseBeginTrailerWrongLength(t *testing.T) {
	_, err := ParseBeginTrailer([]byte{0x00, 0x00})
	require.Error(t, err)
}

func TestDataFrameSize(t *testing.T) {
	assert.Equal(t, 3+36, DataFrameSize(2))
	assert.Equal(t, 3, DataFrameSize(0))
}
