package dacproto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Command identifies the first byte of a command sent by the client.
type Command byte

const (
	CmdPing             Command = '?'
	CmdPrepare          Command = 'p'
	CmdBegin            Command = 'b'
	CmdData             Command = 'd'
	CmdVersion          Command = 'v'
	CmdClearEStop       Command = 'c'
	CmdStop             Command = 's'
	CmdQueueRateChange  Command = 'q'
	CmdEStopZero        Command = 0x00
	CmdEStopFF          Command = 0xff
)

// ResponseCode is the first byte of a standard response.
type ResponseCode byte

const (
	RespACK       ResponseCode = 'a'
	RespFull      ResponseCode = 'F'
	RespInvalid   ResponseCode = 'I'
	RespEmergency ResponseCode = '!'
)

const (
	// StandardResponseSize is the length of every response except Version's.
	StandardResponseSize = 2 + StatusSize

	// VersionResponseSize is the length of the Version command's raw
	// ASCII reply: no response code, no status trailer.
	VersionResponseSize = 32

	// BeginTrailerSize is the length of the Begin command's trailer:
	// a u16 low-water-mark followed by a u32 point rate.
	BeginTrailerSize = 6

	// DataHeaderSize is the length of the Data command's count field,
	// which precedes num_points*PointSize payload bytes.
	DataHeaderSize = 2

	// QueueRateChangeSize is the length of the Queue rate change trailer.
	QueueRateChangeSize = 4
)

// ErrUnknownCommand names a first command byte that IsKnownCommand
// rejects; such a byte closes the connection. No function in this
// package returns it.
var ErrUnknownCommand = errors.New("dacproto: unknown command byte")

// IsKnownCommand reports whether b is a recognized command byte.
func IsKnownCommand(b byte) bool {
	switch Command(b) {
	case CmdPing, CmdPrepare, CmdBegin, CmdData, CmdVersion,
		CmdClearEStop, CmdStop, CmdQueueRateChange, CmdEStopZero, CmdEStopFF:
		return true
	default:
		return false
	}
}

// BeginTrailer is the Begin command's payload: the low-water mark
// (in points) the client wants honored before further Data is sent, and
// the point rate it intends to stream at.
type BeginTrailer struct {
	LowWaterMark uint16
	PointRate    uint32
}

// ParseBeginTrailer decodes a 6-byte Begin trailer.
func ParseBeginTrailer(buf []byte) (BeginTrailer, error) {
	if len(buf) != BeginTrailerSize {
		return BeginTrailer{}, fmt.Errorf("dacproto: begin trailer is %d bytes, want %d", len(buf), BeginTrailerSize)
	}
	return BeginTrailer{
		LowWaterMark: binary.LittleEndian.Uint16(buf[0:2]),
		PointRate:    binary.LittleEndian.Uint32(buf[2:6]),
	}, nil
}

// DataFrameSize returns the total byte length of a Data command
// (header plus point payload) for the given point count: 3 (command
// byte + u16 count) + 18*n.
func DataFrameSize(numPoints uint16) int {
	return 1 + DataHeaderSize + int(numPoints)*PointSize
}

// BuildStandardResponse serializes a 22-byte standard response: the
// response code, the echoed command byte, and the current status.
func BuildStandardResponse(code ResponseCode, cmd byte, status DacStatus) ([]byte, error) {
	statusBytes, err := status.MarshalBinary()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, StandardResponseSize)
	buf[0] = byte(code)
	buf[1] = cmd
	copy(buf[2:], statusBytes)
	return buf, nil
}

// BuildVersionResponse returns a 32-byte buffer holding the ASCII
// version string, zero-padded to VersionResponseSize. version longer
// than the buffer is truncated.
func BuildVersionResponse(version string) []byte {
	buf := make([]byte, VersionResponseSize)
	n := copy(buf, version)
	_ = n // remaining bytes are already zero
	return buf
}
