package dacproto

import "fmt"

// DacFrame is one Data command's payload: a point count and the raw
// payload bytes (exactly PointSize*NumPoints), held unparsed until a
// pipeline worker decodes it.
type DacFrame struct {
	NumPoints uint16
	Payload   []byte
}

// Validate checks that Payload is exactly the length NumPoints implies.
func (f DacFrame) Validate() error {
	want := int(f.NumPoints) * PointSize
	if len(f.Payload) != want {
		return fmt.Errorf("dacproto: frame payload is %d bytes, want %d for %d points", len(f.Payload), want, f.NumPoints)
	}
	return nil
}

// DecodePoints decodes every point in the frame in wire order. It is a
// fatal decode error if the payload length does not match
// NumPoints*PointSize.
func (f DacFrame) DecodePoints() ([]Point, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	points := make([]Point, f.NumPoints)
	for i := range points {
		off := i * PointSize
		if err := points[i].UnmarshalBinary(f.Payload[off : off+PointSize]); err != nil {
			return nil, err
		}
	}
	return points, nil
}
