package dacproto

import (
	"encoding/binary"
	"fmt"
)

// StatusSize is the on-wire size of a DacStatus record.
const StatusSize = 20

// LightEngineState mirrors the DAC's laser/galvo light engine state.
type LightEngineState uint8

const (
	LightEngineReady LightEngineState = iota
	LightEngineWarmup
	LightEngineCooldown
	LightEngineEStop
)

// PlaybackState is the DAC's playback state machine: Idle, Prepared, or
// Playing.
type PlaybackState uint8

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPrepared
	PlaybackPlaying
)

// SourceKind identifies where the DAC is (notionally) drawing points from.
type SourceKind uint8

const (
	SourceNetwork SourceKind = iota
	SourceSD
	SourceGenerator
)

// DacStatus is the periodic state report, serialized little-endian in
// the field order below.
type DacStatus struct {
	Protocol          uint8
	LightEngineState  LightEngineState
	PlaybackState     PlaybackState
	Source            SourceKind
	LightEngineFlags  uint16
	PlaybackFlags     uint16
	SourceFlags       uint16
	BufferFullness    uint16
	PointRate         uint32
	PointCount        uint32
}

// MarshalBinary encodes the status as 20 little-endian bytes.
func (s DacStatus) MarshalBinary() ([]byte, error) {
	buf := make([]byte, StatusSize)
	buf[0] = s.Protocol
	buf[1] = uint8(s.LightEngineState)
	buf[2] = uint8(s.PlaybackState)
	buf[3] = uint8(s.Source)
	binary.LittleEndian.PutUint16(buf[4:6], s.LightEngineFlags)
	binary.LittleEndian.PutUint16(buf[6:8], s.PlaybackFlags)
	binary.LittleEndian.PutUint16(buf[8:10], s.SourceFlags)
	binary.LittleEndian.PutUint16(buf[10:12], s.BufferFullness)
	binary.LittleEndian.PutUint32(buf[12:16], s.PointRate)
	binary.LittleEndian.PutUint32(buf[16:20], s.PointCount)
	return buf, nil
}

// UnmarshalBinary decodes a status record from exactly 20 bytes.
func (s *DacStatus) UnmarshalBinary(buf []byte) error {
	if len(buf) != StatusSize {
		return fmt.Errorf("dacproto: status payload is %d bytes, want %d", len(buf), StatusSize)
	}

	s.Protocol = buf[0]
	s.LightEngineState = LightEngineState(buf[1])
	s.PlaybackState = PlaybackState(buf[2])
	s.Source = SourceKind(buf[3])
	s.LightEngineFlags = binary.LittleEndian.Uint16(buf[4:6])
	s.PlaybackFlags = binary.LittleEndian.Uint16(buf[6:8])
	s.SourceFlags = binary.LittleEndian.Uint16(buf[8:10])
	s.BufferFullness = binary.LittleEndian.Uint16(buf[10:12])
	s.PointRate = binary.LittleEndian.Uint32(buf[12:16])
	s.PointCount = binary.LittleEndian.Uint32(buf[16:20])
	return nil
}
