// Package tcpserver accepts TCP connections, keeps the live ones in a bounded
// ordered registry and runs one supervised handler goroutine per connection.
package tcpserver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/sensorgate/logger"
	"github.com/cyberinferno/sensorgate/sequence"
)

// ErrServerRunning is returned by Start when the server is already running.
var ErrServerRunning = errors.New("server already running")

// NewSessionFunc creates the session for an accepted connection.
type NewSessionFunc func(id uint64, conn net.Conn) TCPServerSession

// TCPServer accepts connections on Addr and delegates each one to a session
// created by NewSession. Sessions are tracked in Registry from acceptance
// until their handler returns.
type TCPServer struct {
	Logger      logger.Logger
	Name        string
	Addr        string
	Listener    net.Listener
	Registry    *Registry[TCPServerSession]
	Running     atomic.Bool
	NewSession  NewSessionFunc
	IdGenerator *sequence.MemoryCounter

	group    errgroup.Group
	stopOnce sync.Once
}

// NewTCPServer creates a server that allows at most maxClients concurrent
// connections.
func NewTCPServer(name string, addr string, maxClients int, newSession NewSessionFunc, log logger.Logger) *TCPServer {
	return &TCPServer{
		Logger:      log,
		Name:        name,
		Addr:        addr,
		Registry:    NewRegistry[TCPServerSession](maxClients),
		NewSession:  newSession,
		IdGenerator: sequence.NewMemoryCounter(0),
	}
}

// Start binds to Addr and runs the accept loop in a goroutine.
//
// Returns:
//   - ErrServerRunning if already started, or the listen error
func (s *TCPServer) Start() error {
	if s.Running.Load() {
		return fmt.Errorf("%s: %w", s.Name, ErrServerRunning)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Err(err))
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	return s.Serve(ln)
}

// Serve runs the accept loop on an existing listener in a goroutine.
func (s *TCPServer) Serve(ln net.Listener) error {
	if !s.Running.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", s.Name, ErrServerRunning)
	}

	s.Listener = ln
	s.Logger.Info(fmt.Sprintf("%s server started", s.Name),
		logger.Field{Key: "addr", Value: ln.Addr().String()},
		logger.Field{Key: "max_clients", Value: s.Registry.Capacity()})

	s.group.Go(func() error {
		s.AcceptLoop()
		return nil
	})

	return nil
}

// ListenAddr returns the bound address, or nil before Start.
func (s *TCPServer) ListenAddr() net.Addr {
	if s.Listener == nil {
		return nil
	}

	return s.Listener.Addr()
}

// Stop closes the listener and every registered session, then waits for the
// accept loop and all handlers to return. Safe to call more than once.
func (s *TCPServer) Stop() error {
	s.stopOnce.Do(func() {
		s.Running.Store(false)
		if s.Listener != nil {
			_ = s.Listener.Close()
		}

		for _, session := range s.Registry.Snapshot() {
			_ = session.Close()
		}
	})

	err := s.group.Wait()
	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
	return err
}

// AcceptLoop accepts connections until the server is stopped. Each accepted
// connection gets an ID and a session; the session is registered before its
// handler starts. Connections beyond capacity are closed immediately.
func (s *TCPServer) AcceptLoop() {
	for s.Running.Load() {
		conn, err := s.Listener.Accept()
		if err != nil {
			if !s.Running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name), logger.Err(err))
			continue
		}

		id := s.IdGenerator.Id()
		session := s.NewSession(id, conn)
		if err := s.Registry.Register(session); err != nil {
			s.Logger.Warn("connection rejected",
				logger.Field{Key: "remote", Value: conn.RemoteAddr().String()},
				logger.Field{Key: "session", Value: id},
				logger.Err(err))
			_ = session.Close()
			continue
		}

		// A session registered after Stop took its snapshot is closed here.
		if !s.Running.Load() {
			_ = session.Close()
		}

		s.group.Go(func() error {
			s.handle(session)
			return nil
		})
	}
}

func (s *TCPServer) handle(session TCPServerSession) {
	defer func() {
		s.Registry.Deregister(session)
		_ = session.Close()
	}()

	session.Handle()
}
