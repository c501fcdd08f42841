// Package dacproto implements the wire-level EtherDream DAC protocol: the
// binary point format, the DAC status report, and the command/response
// framing used by the protocol engine.
package dacproto

import (
	"encoding/binary"
	"fmt"
)

// PointSize is the on-wire size of a single Point: nine little-endian
// 16-bit fields.
const PointSize = 18

// Point is a single galvanometer sample: position, intensity, and color.
// Coordinates are full-scale signed 16-bit; intensity and color channels
// are full-scale unsigned 16-bit. Hardware of lesser resolution may
// discard the low bits.
type Point struct {
	Control uint16
	X       int16
	Y       int16
	I       uint16
	R       uint16
	G       uint16
	B       uint16
	U1      uint16
	U2      uint16
}

// MarshalBinary encodes the point as 18 little-endian bytes in the fixed
// field order: control, x, y, i, r, g, b, u1, u2.
func (p Point) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PointSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.Control)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(p.X))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(p.Y))
	binary.LittleEndian.PutUint16(buf[6:8], p.I)
	binary.LittleEndian.PutUint16(buf[8:10], p.R)
	binary.LittleEndian.PutUint16(buf[10:12], p.G)
	binary.LittleEndian.PutUint16(buf[12:14], p.B)
	binary.LittleEndian.PutUint16(buf[14:16], p.U1)
	binary.LittleEndian.PutUint16(buf[16:18], p.U2)
	return buf, nil
}

// UnmarshalBinary decodes a single point from exactly 18 bytes.
func (p *Point) UnmarshalBinary(buf []byte) error {
	if len(buf) != PointSize {
		return fmt.Errorf("dacproto: point payload is %d bytes, want %d", len(buf), PointSize)
	}

	p.Control = binary.LittleEndian.Uint16(buf[0:2])
	p.X = int16(binary.LittleEndian.Uint16(buf[2:4]))
	p.Y = int16(binary.LittleEndian.Uint16(buf[4:6]))
	p.I = binary.LittleEndian.Uint16(buf[6:8])
	p.R = binary.LittleEndian.Uint16(buf[8:10])
	p.G = binary.LittleEndian.Uint16(buf[10:12])
	p.B = binary.LittleEndian.Uint16(buf[12:14])
	p.U1 = binary.LittleEndian.Uint16(buf[14:16])
	p.U2 = binary.LittleEndian.Uint16(buf[16:18])
	return nil
}
