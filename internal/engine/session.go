package engine

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"

	"github.com/doismellburning/etherdreamd/internal/dacproto"
	"github.com/doismellburning/etherdreamd/internal/metrics"
	"github.com/doismellburning/etherdreamd/internal/pipeline"
	"github.com/doismellburning/etherdreamd/internal/status"
)

// traceTimeLayout is the strftime layout used to timestamp --debug trace
// lines for each accepted frame.
const traceTimeLayout = "%Y-%m-%d %H:%M:%S"

// session holds the per-connection state for one DAC client. All
// fields are touched only from the single goroutine running
// handleOneCommand in a loop; there is no internal locking because
// only one client is served at a time.
type session struct {
	conn     net.Conn
	pipeline *pipeline.Pipeline
	store    *status.Store
	cfg      Config
	logger   *log.Logger
	metrics  *metrics.Registry
}

// sendInitialPing writes the unsolicited Ping acknowledgement sent the
// moment a client is accepted, before any command has been read.
func (s *session) sendInitialPing() error {
	return s.writeStandardResponse(dacproto.RespACK, byte(dacproto.CmdPing))
}

// handleOneCommand reads and dispatches exactly one command. A non-nil
// error means the session must end.
func (s *session) handleOneCommand() error {
	chunk := make([]byte, readChunkSize)

	n, err := s.readChunkWaitingForCommand(chunk)
	if err != nil {
		return err
	}

	cmd := chunk[0]
	if !dacproto.IsKnownCommand(cmd) {
		if s.logger != nil {
			s.logger.Warn("unknown command, closing session", "command", cmd)
		}
		return ErrUnknownCommand
	}

	if s.metrics != nil {
		s.metrics.CommandReceived(cmd)
	}
	if s.cfg.Debug && s.logger != nil {
		s.logger.Debug("command received", "command", string(rune(cmd)), "chunk_len", n)
	}

	switch dacproto.Command(cmd) {
	case dacproto.CmdPing:
		return s.handleNoTrailer(cmd)
	case dacproto.CmdPrepare:
		s.store.Update(func(st *dacproto.DacStatus) {
			st.PlaybackState = dacproto.PlaybackPrepared
			st.PointCount = 0
		})
		return s.handleNoTrailer(cmd)
	case dacproto.CmdBegin:
		return s.handleBegin(chunk, n)
	case dacproto.CmdData:
		return s.handleData(chunk, n)
	case dacproto.CmdVersion:
		return s.writeVersionResponse()
	case dacproto.CmdClearEStop:
		s.store.Update(func(st *dacproto.DacStatus) {
			st.LightEngineState = dacproto.LightEngineReady
		})
		return s.handleNoTrailer(cmd)
	case dacproto.CmdStop:
		s.store.Update(func(st *dacproto.DacStatus) {
			st.PlaybackState = dacproto.PlaybackIdle
			st.PointCount = 0
		})
		return s.handleNoTrailer(cmd)
	case dacproto.CmdQueueRateChange:
		return s.handleQueueRateChange(chunk, n)
	case dacproto.CmdEStopZero, dacproto.CmdEStopFF:
		s.store.Update(func(st *dacproto.DacStatus) {
			st.LightEngineState = dacproto.LightEngineEStop
			st.PlaybackState = dacproto.PlaybackIdle
			st.PointCount = 0
		})
		return s.handleNoTrailer(cmd)
	default:
		return ErrUnknownCommand
	}
}

// handleNoTrailer answers a command with no payload beyond its first
// byte: Ping, Prepare, ClearEStop, Stop, and both E-stop bytes.
func (s *session) handleNoTrailer(cmd byte) error {
	return s.writeStandardResponseAutoCode(cmd)
}

func (s *session) handleBegin(chunk []byte, n int) error {
	trailer := make([]byte, dacproto.BeginTrailerSize)
	copied := copy(trailer, chunk[1:n])
	if copied < len(trailer) {
		if _, err := s.readExact(trailer, copied); err != nil {
			return err
		}
	}

	begin, err := dacproto.ParseBeginTrailer(trailer)
	if err != nil {
		return err
	}

	s.store.Update(func(st *dacproto.DacStatus) {
		st.PlaybackState = dacproto.PlaybackPlaying
		st.PointRate = begin.PointRate
	})

	return s.writeStandardResponseAutoCode(byte(dacproto.CmdBegin))
}

func (s *session) handleQueueRateChange(chunk []byte, n int) error {
	trailer := make([]byte, dacproto.QueueRateChangeSize)
	copied := copy(trailer, chunk[1:n])
	if copied < len(trailer) {
		if _, err := s.readExact(trailer, copied); err != nil {
			return err
		}
	}

	rate := binary.LittleEndian.Uint32(trailer)
	s.store.Update(func(st *dacproto.DacStatus) {
		st.PointRate = rate
	})

	return s.writeStandardResponseAutoCode(byte(dacproto.CmdQueueRateChange))
}

// handleData reads a Data command to completion: the header (count)
// and as much of the payload as arrived in the initial chunk are
// already in hand; the rest is read to completion regardless of how
// many additional reads it takes. A zero-length read before the frame
// completes is a client disconnect.
func (s *session) handleData(chunk []byte, n int) error {
	header := make([]byte, dacproto.DataHeaderSize)
	headerHave := copy(header, chunk[1:n])
	bodyFromChunk := chunk[1+headerHave : n]

	if headerHave < len(header) {
		got, err := s.readExact(header, headerHave)
		if err != nil {
			return err
		}
		headerHave = got
		bodyFromChunk = nil
	}

	numPoints := binary.LittleEndian.Uint16(header)
	body := make([]byte, int(numPoints)*dacproto.PointSize)
	bodyHave := copy(body, bodyFromChunk)

	if bodyHave < len(body) {
		if _, err := s.readExact(body, bodyHave); err != nil {
			return err
		}
	}

	frame := dacproto.DacFrame{NumPoints: numPoints, Payload: body}

	if s.cfg.Debug && s.logger != nil {
		if ts, err := strftime.Format(traceTimeLayout, time.Now()); err == nil {
			s.logger.Debug("frame accepted", "trace_time", ts, "num_points", numPoints)
		}
	}

	code := dacproto.RespACK
	if err := s.pipeline.Enqueue(frame); err != nil {
		if s.logger != nil {
			s.logger.Warn("pipeline full, dropping frame", "num_points", numPoints)
		}
		code = dacproto.RespFull
	} else {
		s.store.Update(func(st *dacproto.DacStatus) {
			st.PlaybackState = dacproto.PlaybackPlaying
			st.PointCount += uint32(numPoints)
		})
	}

	return s.writeStandardResponse(s.resolveResponseCode(code), byte(dacproto.CmdData))
}

// resolveResponseCode downgrades an otherwise-successful response to
// the emergency-stop code while the light engine is e-stopped.
func (s *session) resolveResponseCode(preferred dacproto.ResponseCode) dacproto.ResponseCode {
	if s.store.Snapshot().LightEngineState == dacproto.LightEngineEStop {
		return dacproto.RespEmergency
	}
	return preferred
}

func (s *session) writeStandardResponseAutoCode(cmd byte) error {
	return s.writeStandardResponse(s.resolveResponseCode(dacproto.RespACK), cmd)
}

func (s *session) writeStandardResponse(code dacproto.ResponseCode, cmd byte) error {
	s.syncBufferFullness()

	resp, err := dacproto.BuildStandardResponse(code, cmd, s.store.Snapshot())
	if err != nil {
		return err
	}
	return s.write(resp)
}

func (s *session) writeVersionResponse() error {
	return s.write(dacproto.BuildVersionResponse(s.cfg.Version))
}

// syncBufferFullness keeps DacStatus.BufferFullness equal to the
// pipeline's output queue length.
func (s *session) syncBufferFullness() {
	size := s.pipeline.Size()
	if size > 0xFFFF {
		size = 0xFFFF
	}
	s.store.Update(func(st *dacproto.DacStatus) {
		st.BufferFullness = uint16(size)
	})
}

func (s *session) write(buf []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(ioTimeout)); err != nil {
		return err
	}
	_, err := s.conn.Write(buf)
	return err
}

// readChunkWaitingForCommand blocks, retrying on read timeout, until a
// command byte (or more) arrives. A timeout here is the idle-wait case,
// not a partial-payload failure, so it does not end the session.
func (s *session) readChunkWaitingForCommand(buf []byte) (int, error) {
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(ioTimeout)); err != nil {
			return 0, err
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// readExact fills into[already:] by issuing further reads, failing
// (including on timeout) if the frame does not complete. Any read
// failure here, timeout or zero-length, terminates the session.
func (s *session) readExact(into []byte, already int) (int, error) {
	n := already
	for n < len(into) {
		if err := s.conn.SetReadDeadline(time.Now().Add(ioTimeout)); err != nil {
			return n, err
		}

		m, err := s.conn.Read(into[n:])
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.ErrUnexpectedEOF
		}
		n += m
	}
	return n, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
