package fiberstack

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/DataExMachina-dev/fiberstack-go/internal/server"
	"github.com/DataExMachina-dev/fiberstack-go/internal/storeapi"
)

// ErrServing is returned by Start and Serve when the server is already
// serving.
var ErrServing = errors.New("server is already serving")

// Server serves the stored snapshots over gRPC, see fiberstackclient.
type Server struct {
	cfg         config
	fingerprint uuid.UUID

	// Fields that change in Serve/Stop.
	mu struct {
		sync.Mutex
		listener   net.Listener
		grpcServer *grpc.Server
	}

	wg sync.WaitGroup
}

// NewServer creates a stopped server.
func NewServer(opts ...Option) *Server {
	return &Server{
		cfg:         makeConfig(opts),
		fingerprint: uuid.New(),
	}
}

// Fingerprint identifies this server instance.
func (s *Server) Fingerprint() uuid.UUID {
	return s.fingerprint
}

// Start listens on the configured address and serves on it.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.listenAddr, err)
	}
	if err := s.Serve(l); err != nil {
		_ = l.Close()
		return err
	}
	return nil
}

// Serve starts serving on l in a new goroutine. Stop should be called to stop
// serving; l is closed by then.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.listener != nil {
		return ErrServing
	}
	gs := grpc.NewServer()
	fetcher := server.NewDocumentFetcher(s.cfg.snapshotDir)
	storeapi.RegisterSnapshotStoreServer(gs, server.NewServer(
		s.fingerprint, s.cfg.snapshotDir, s.cfg.compression, fetcher, s.cfg.errorLogger))
	s.mu.listener = l
	s.mu.grpcServer = gs

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.stopInner()
		if err := gs.Serve(l); err != nil {
			s.cfg.errorLogger(fmt.Errorf("failed to serve: %w", err))
		}
	}()
	return nil
}

// Addr returns the address the server listens on, or nil if it is stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.listener == nil {
		return nil
	}
	return s.mu.listener.Addr()
}

// Stop stops serving and waits for in-flight requests to be abandoned. It is
// a no-op if the server is not serving. Serve can be called again afterwards.
func (s *Server) Stop() {
	s.stopInner()
	s.wg.Wait()
}

// stopInner stops the server without waiting for the serving goroutine. It
// might be called concurrently with Stop.
func (s *Server) stopInner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.listener == nil {
		return
	}
	s.mu.grpcServer.Stop()
	s.mu.grpcServer = nil
	s.mu.listener = nil
}

// ServerStatus is the state of a Server.
type ServerStatus int

const (
	Stopped ServerStatus = iota
	Serving
)

func (s ServerStatus) String() string {
	if s == Serving {
		return "serving"
	}
	return "stopped"
}

// Status returns whether the server is serving.
func (s *Server) Status() ServerStatus {
	if s.Addr() == nil {
		return Stopped
	}
	return Serving
}
