package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirerelay/internal/session"
)

// Config holds listener and per-connection settings.
type Config struct {
	Addr          string
	MaxFrameBytes int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Handler serves one connection until it closes.
type Handler interface {
	Serve(ctx context.Context, conn session.Conn)
}

// Server accepts TCP connections and hands each one to the handler on its
// own goroutine.
type Server struct {
	handler Handler
	cfg     Config
	log     *zerolog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer builds a TCP server.
func NewServer(handler Handler, cfg Config, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		handler: handler,
		cfg:     cfg,
		log:     logger,
		conns:   make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled. On return the listener and
// every open connection are closed and all handlers have exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("tcp server listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
	}()

	var serveErr error
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn().Err(err).Msg("accept failed, retrying")
				time.Sleep(50 * time.Millisecond)
				continue
			}
			serveErr = fmt.Errorf("accept: %w", err)
			break
		}

		s.track(nc)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(nc)

			conn := NewConn(nc, s.cfg.MaxFrameBytes, s.cfg.ReadTimeout, s.cfg.WriteTimeout)
			s.log.Debug().Str("remote", conn.RemoteAddr()).Msg("connection accepted")
			s.handler.Serve(ctx, conn)
		}()
	}

	s.closeAll()
	s.wg.Wait()
	s.log.Info().Msg("tcp server stopped")
	return serveErr
}

func (s *Server) track(nc net.Conn) {
	s.mu.Lock()
	s.conns[nc] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(nc net.Conn) {
	s.mu.Lock()
	delete(s.conns, nc)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for nc := range s.conns {
		_ = nc.Close()
	}
}
