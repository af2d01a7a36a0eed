package ipc

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"splitguard/internal/host"
)

// ResetDisconnect is the reset reason passed to the handler when the host
// goes away.
const ResetDisconnect = "disconnect"

// FrameHandler runs frames. engine.Engine implements it.
type FrameHandler interface {
	Frame(state *host.State, events []host.Event) []host.Command
	Reset(reason string)
}

// ServerStats are the link counters.
type ServerStats struct {
	Connected bool   `json:"connected"`
	Frames    uint64 `json:"frames"`
	Commands  uint64 `json:"commands"`
	Rejected  uint64 `json:"rejected"`
	Errors    uint64 `json:"errors"`
}

// Server accepts one host adapter at a time and answers its frames.
type Server struct {
	socketPath  string
	controllers []string
	handler     FrameHandler
	listener    net.Listener
	log         *logrus.Entry

	client   net.Conn
	clientMu sync.Mutex

	frames   atomic.Uint64
	commands atomic.Uint64
	rejected atomic.Uint64
	errors   atomic.Uint64

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a host link server. controllers is announced to the host
// on connect.
func NewServer(socketPath string, handler FrameHandler, controllers []string, logger *logrus.Logger) *Server {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		socketPath:  socketPath,
		controllers: controllers,
		handler:     handler,
		log:         logger.WithField("component", "ipc"),
	}
}

// Start binds the listener and begins accepting.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	listener, err := CreatePlatformListener(s.socketPath)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.Infof("📡 Host link listening on %s", GetPlatformAddress(s.socketPath))
	return nil
}

// Stop closes the listener and the current host connection.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.clientMu.Lock()
	if s.client != nil {
		s.client.Close()
	}
	s.clientMu.Unlock()

	s.wg.Wait()
	cleanupPlatform(s.socketPath)
	s.log.Info("📡 Host link stopped")
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats returns the link counters.
func (s *Server) Stats() ServerStats {
	s.clientMu.Lock()
	connected := s.client != nil
	s.clientMu.Unlock()

	return ServerStats{
		Connected: connected,
		Frames:    s.frames.Load(),
		Commands:  s.commands.Load(),
		Rejected:  s.rejected.Load(),
		Errors:    s.errors.Load(),
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.log.WithError(err).Warn("⚠️ Host link accept error")
			continue
		}

		if !s.claim(conn) {
			s.rejected.Add(1)
			s.log.Warn("⚠️ Second host rejected, one is already connected")
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.serve(conn)
	}
}

// claim makes conn the current client if there is none.
func (s *Server) claim(conn net.Conn) bool {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if s.client != nil {
		return false
	}
	s.client = conn
	return true
}

func (s *Server) release(conn net.Conn) {
	s.clientMu.Lock()
	if s.client == conn {
		s.client = nil
	}
	s.clientMu.Unlock()
	conn.Close()
}

// serve runs one host session. Losing the host resets the controllers.
func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.release(conn)
		s.handler.Reset(ResetDisconnect)
		s.log.Info("🔌 Host disconnected")
	}()

	s.log.Info("✅ Host connected")
	hello := HelloMessage{Protocol: ProtocolVersion, Controllers: s.controllers}
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteMessage(conn, MsgTypeHello, hello); err != nil {
		s.log.WithError(err).Warn("⚠️ Failed to greet host")
		return
	}

	for {
		conn.SetReadDeadline(time.Now().Add(IdleTimeout))
		msgType, body, err := ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && s.running.Load() {
				s.errors.Add(1)
				s.log.WithError(err).Warn("⚠️ Host link read error")
			}
			return
		}

		if err := s.dispatch(conn, msgType, body); err != nil {
			s.errors.Add(1)
			s.log.WithError(err).Warn("⚠️ Host link write error")
			return
		}
	}
}

func (s *Server) dispatch(conn net.Conn, msgType byte, body []byte) error {
	switch msgType {
	case MsgTypeFrame:
		frame, err := Decode[FrameMessage](body)
		if err != nil {
			s.errors.Add(1)
			s.log.WithError(err).Debug("bad frame")
			return nil
		}
		events, err := frame.ToEvents()
		if err != nil {
			s.log.WithError(err).Debug("frame carried unknown events")
		}

		cmds := s.handler.Frame(&frame.State, events)
		s.frames.Add(1)
		s.commands.Add(uint64(len(cmds)))

		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		return WriteMessage(conn, MsgTypeCommands, CommandsMessage{Seq: frame.Seq, Commands: cmds})

	case MsgTypePing:
		ping, err := Decode[PingMessage](body)
		if err != nil {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		return WriteMessage(conn, MsgTypePong, *ping)

	default:
		s.log.WithField("type", msgType).Debug("unknown message type")
		return nil
	}
}
