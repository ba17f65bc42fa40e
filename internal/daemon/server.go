// Package daemon implements the connection-acceptor side of spec §5: one
// worker goroutine per client connection, a periodic dead-connection
// reaper, and a watcher over each database's `initialized` flag file
// (spec §3.4), grounded in the teacher's daemon_server.go/daemon_event_loop.go
// accept-loop-plus-ticker shape and daemon_watcher.go's fsnotify FileWatcher.
package daemon

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/siodb/iomgr/internal/engine"
	"github.com/siodb/iomgr/internal/protocol"
)

// Server accepts client connections on a single listener and dispatches
// each one's requests to a Handler.
type Server struct {
	listener net.Listener
	handler  *engine.Handler
	log      *slog.Logger

	reapInterval time.Duration

	mu    sync.Mutex
	conns map[*conn]struct{}
}

type conn struct {
	c        net.Conn
	lastSeen time.Time
}

// NewServer wraps an already-bound listener, ready to Serve.
func NewServer(listener net.Listener, handler *engine.Handler, log *slog.Logger, reapInterval time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}
	if reapInterval <= 0 {
		reapInterval = 30 * time.Second // spec §5 "default 30 s"
	}
	return &Server{listener: listener, handler: handler, log: log, reapInterval: reapInterval, conns: make(map[*conn]struct{})}
}

// Serve runs the accept loop until ctx is cancelled or the listener
// fails. Each accepted connection runs in its own goroutine (spec §5
// "each client connection is bound to one worker").
func (s *Server) Serve(ctx context.Context) error {
	go s.reapLoop(ctx)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c := &conn{c: netConn, lastSeen: time.Now()}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()
		go s.serveConn(ctx, c)
	}
}

// serveConn is one connection's worker loop (spec §5 "cooperative
// cancellation only — workers check an exit_requested flag between
// operations").
func (s *Server) serveConn(ctx context.Context, c *conn) {
	defer func() {
		c.c.Close()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()

	r := bufio.NewReader(c.c)
	for {
		if ctx.Err() != nil {
			return
		}
		typ, payload, err := protocol.ReadMessage(r)
		if err != nil {
			return
		}
		s.mu.Lock()
		c.lastSeen = time.Now()
		s.mu.Unlock()

		if typ != protocol.MessageCommand {
			continue
		}
		req, err := decodeCommandRequest(payload)
		if err != nil {
			s.log.Warn("malformed command", "err", err)
			continue
		}
		resp := s.handler.Handle(req)
		if err := writeResponse(c.c, resp); err != nil {
			s.log.Warn("write response failed", "err", err)
			return
		}
	}
}

// writeResponse frames resp's header followed by its rowset (spec §6.4).
func writeResponse(w net.Conn, resp engine.ServerResponse) error {
	header := protocol.EncodeServerResponse(resp.Header)
	if err := protocol.WriteMessage(w, protocol.MessageServerResponse, header); err != nil {
		return err
	}
	for _, row := range resp.Rows {
		encoded, mask := encodeRow(row, resp.Cols)
		if err := protocol.WriteRow(w, mask, encoded); err != nil {
			return err
		}
	}
	if len(resp.Cols) > 0 {
		return protocol.WriteRowTerminator(w)
	}
	return nil
}

// reapLoop periodically closes connections idle longer than reapInterval
// (spec §5 "the dead-connection recycler periodically reaps closed
// connections").
func (s *Server) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapOnce()
		}
	}
}

func (s *Server) reapOnce() {
	cutoff := time.Now().Add(-s.reapInterval)
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if c.lastSeen.Before(cutoff) {
			c.c.Close()
			delete(s.conns, c)
		}
	}
}
