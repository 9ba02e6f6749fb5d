// Package rpc carries wire frames over TCP between sync clients and the replication server.
package rpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/riftduel/duelsync/internal/dispatcher"
	"github.com/riftduel/duelsync/pkg/wire"
)

// Server accepts connections and answers each request through the dispatcher.
// Requests on one connection are handled in order; each connection has its own goroutine.
type Server struct {
	d      *dispatcher.Dispatcher
	logger *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a server routing calls to d.
func NewServer(d *dispatcher.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		d:      d,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen binds addr. Use ":0" in tests and read Addr afterwards.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve called before listen")
	}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	s.logger.Info("Replication server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// ListenAndServe binds addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Close stops accepting and closes every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	if ln != nil {
		return ln.Close()
	}
	return nil
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)
	logger.Info("Client connected")

	dec := msgpack.NewDecoder(bufio.NewReader(conn))
	bw := bufio.NewWriter(conn)
	enc := msgpack.NewEncoder(bw)

	for {
		f, err := wire.ReadFrame(dec)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Info("Client disconnected")
			} else {
				// the stream position is unknown after a bad frame
				logger.Warn("Dropping connection after unreadable frame", "error", err)
			}
			return
		}
		if f.Type != wire.TypeRequest {
			logger.Warn("Ignoring non-request frame", "type", f.Type, "msgid", f.MsgID)
			continue
		}

		result, err := s.d.Dispatch(ctx, dispatcher.Call{
			Method:   f.Method,
			MsgID:    f.MsgID,
			Params:   f.Params,
			Remote:   remote,
			Received: time.Now(),
		})
		if err != nil && !s.d.HasHandler(f.Method) {
			logger.Warn("Unknown method", "method", f.Method, "msgid", f.MsgID)
		}

		if err := wire.WriteResponse(enc, f.MsgID, wire.ErrorFrom(err), result); err != nil {
			logger.Warn("Failed to encode response", "msgid", f.MsgID, "error", err)
			return
		}
		if err := bw.Flush(); err != nil {
			logger.Warn("Failed to write response", "msgid", f.MsgID, "error", err)
			return
		}
	}
}
