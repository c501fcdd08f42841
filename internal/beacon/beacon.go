// Package beacon implements the periodic UDP advertisement: a 36-byte
// broadcast datagram naming the emulated DAC's identity, capacity, and
// current status, sent once a second regardless of connection state.
package beacon

import (
	"context"
	"encoding/binary"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/doismellburning/etherdreamd/internal/dacproto"
	"github.com/doismellburning/etherdreamd/internal/status"
)

// DatagramSize is the fixed length of the advertisement payload.
const DatagramSize = 36

// Interval is the fixed cadence of the beacon.
const Interval = 1 * time.Second

// Config describes the identity fields broadcast alongside the current
// DacStatus.
type Config struct {
	MAC            [6]byte
	HWRevision     uint16
	SWRevision     uint16
	BufferCapacity uint16
	MaxPointRate   uint32
	Port           int
}

// DefaultPort is the UDP port the beacon broadcasts on.
const DefaultPort = 7654

// Beacon periodically broadcasts Config and the live DacStatus on the
// LAN. It owns its own UDP socket; nothing else shares it.
type Beacon struct {
	cfg    Config
	store  *status.Store
	logger *log.Logger
	stopCh chan struct{}
}

// New creates a Beacon. If cfg.Port is zero, DefaultPort is used.
func New(cfg Config, store *status.Store, logger *log.Logger) *Beacon {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	return &Beacon{
		cfg:    cfg,
		store:  store,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Close stops Run. Safe to call once.
func (b *Beacon) Close() {
	close(b.stopCh)
}

// Run opens the broadcast-enabled UDP socket and sends a datagram every
// Interval until Close is called. It never blocks on send failures: an
// error is logged and the next tick is retried.
func (b *Beacon) Run() error {
	lc := net.ListenConfig{Control: setReuseAddr}

	packetConn, err := lc.ListenPacket(context.Background(), "udp4", portAddr(b.cfg.Port))
	if err != nil {
		return err
	}
	defer packetConn.Close()

	conn := packetConn.(*net.UDPConn)

	if err := enableBroadcast(conn); err != nil && b.logger != nil {
		b.logger.Warn("could not enable SO_BROADCAST, beacon may not reach the LAN", "err", err)
	}

	dest := &net.UDPAddr{IP: net.IPv4bcast, Port: b.cfg.Port}

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return nil
		case <-ticker.C:
			datagram := b.buildDatagram()
			if _, err := conn.WriteToUDP(datagram, dest); err != nil && b.logger != nil {
				b.logger.Warn("beacon send failed", "err", err)
			}
		}
	}
}

// buildDatagram serializes the 36-byte advertisement payload.
func (b *Beacon) buildDatagram() []byte {
	buf := make([]byte, DatagramSize)
	copy(buf[0:6], b.cfg.MAC[:])
	binary.LittleEndian.PutUint16(buf[6:8], b.cfg.HWRevision)
	binary.LittleEndian.PutUint16(buf[8:10], b.cfg.SWRevision)
	binary.LittleEndian.PutUint16(buf[10:12], b.cfg.BufferCapacity)
	binary.LittleEndian.PutUint32(buf[12:16], b.cfg.MaxPointRate)

	var st dacproto.DacStatus
	if b.store != nil {
		st = b.store.Snapshot()
	}
	statusBytes, _ := st.MarshalBinary()
	copy(buf[16:36], statusBytes)

	return buf
}

// enableBroadcast sets SO_BROADCAST on the beacon socket via its raw
// file descriptor.
func enableBroadcast(conn *net.UDPConn) error {
	file, err := conn.File()
	if err != nil {
		return err
	}
	defer file.Close()

	return unix.SetsockoptInt(int(file.Fd()), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
}

// setReuseAddr sets SO_REUSEADDR before the bind syscall runs, so the
// well-known beacon port can be bound alongside another listener (a
// test harness, or a second emulator instance) instead of failing with
// "address already in use".
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

// portAddr formats port as a udp4 listen address bound to all interfaces.
func portAddr(port int) string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
}
