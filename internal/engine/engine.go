// Package engine implements the TCP protocol engine: the DAC state
// machine and point-acknowledgement handshake. It accepts one client
// at a time, resets status on accept, and runs a command/response loop
// until the client disconnects or sends something it cannot parse.
package engine

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"
	"golang.org/x/sys/unix"

	"github.com/doismellburning/etherdreamd/internal/dacproto"
	"github.com/doismellburning/etherdreamd/internal/metrics"
	"github.com/doismellburning/etherdreamd/internal/pipeline"
	"github.com/doismellburning/etherdreamd/internal/status"
)

// DefaultPort is the TCP port the protocol engine listens on.
const DefaultPort = 7765

// readChunkSize is the size of the initial read buffer used to dispatch
// a command by its first byte.
const readChunkSize = 2048

// ioTimeout bounds every individual socket read/write.
const ioTimeout = 100 * time.Millisecond

// ErrUnknownCommand closes the session; it is not a recognized command
// byte.
var ErrUnknownCommand = errors.New("engine: unknown command byte")

// Config carries the fields the engine needs to answer Version and seed
// a fresh DacStatus.
type Config struct {
	Port       int
	Version    string
	FrameLimit int
	PointLimit int
	Debug      bool
}

// Engine owns the TCP listener. No sharing: one Engine, one listener,
// one client at a time.
type Engine struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	store    *status.Store
	logger   *log.Logger
	metrics  *metrics.Registry
}

// New creates an Engine wired to the given pipeline and status store.
func New(cfg Config, pl *pipeline.Pipeline, store *status.Store, logger *log.Logger, registry *metrics.Registry) *Engine {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Version == "" {
		cfg.Version = "v0.0.1"
	}

	return &Engine{cfg: cfg, pipeline: pl, store: store, logger: logger, metrics: registry}
}

// Serve binds the TCP port and runs the accept loop forever, serving
// exactly one client at a time. It returns only on a fatal listener
// error (e.g. the port is unavailable).
func (e *Engine) Serve() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", e.cfg.Port))
	if err != nil {
		return fmt.Errorf("engine: listen: %w", err)
	}
	defer listener.Close()

	enableReuseAddr(listener, e.logger)

	if e.logger != nil {
		e.logger.Info("listening for DAC client", "port", e.cfg.Port)
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("accept failed", "err", err)
			}
			continue
		}

		e.serveSession(conn)
	}
}

func enableReuseAddr(listener net.Listener, logger *log.Logger) {
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return
	}
	file, err := tcpListener.File()
	if err != nil {
		return
	}
	defer file.Close()

	if err := unix.SetsockoptInt(int(file.Fd()), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil && logger != nil {
		logger.Debug("SO_REUSEADDR failed", "err", err)
	}
}

// serveSession resets status, announces the session, and runs the
// command loop until the client disconnects or a fatal error occurs.
func (e *Engine) serveSession(conn net.Conn) {
	defer conn.Close()

	id := xid.New()
	sessionLog := e.logger
	if sessionLog != nil {
		sessionLog = sessionLog.With("session", id.String(), "remote", conn.RemoteAddr())
	}

	if e.metrics != nil {
		e.metrics.SessionsAccepted.Inc()
	}

	s := &session{
		conn:     conn,
		pipeline: e.pipeline,
		store:    e.store,
		cfg:      e.cfg,
		logger:   sessionLog,
		metrics:  e.metrics,
	}

	s.store.Reset()

	if err := s.sendInitialPing(); err != nil {
		if sessionLog != nil {
			sessionLog.Warn("failed to send initial ping", "err", err)
		}
		return
	}

	if sessionLog != nil {
		sessionLog.Info("session accepted")
	}

	for {
		if err := s.handleOneCommand(); err != nil {
			if sessionLog != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					sessionLog.Info("client disconnected")
				} else {
					sessionLog.Warn("session ending", "err", err)
				}
			}
			break
		}
	}

	if e.metrics != nil {
		e.metrics.SessionsClosed.Inc()
	}

	// Disconnect returns status to Idle; the next accept resets fully
	// again regardless.
	e.store.Reset()
}
