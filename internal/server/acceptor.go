package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/logging"
	"github.com/muurk/arrayacq/internal/session"
)

// ErrClosed is returned by ServeOne once the acceptor has been closed.
var ErrClosed = errors.New("server: acceptor closed")

// Acceptor owns a listening socket and serves one connection at a time.
type Acceptor struct {
	listener net.Listener
	disp     *session.Dispatcher

	// OnAccept, if set, is called with the client address before the
	// session starts.
	OnAccept func(remote string)

	mu     sync.Mutex
	active net.Conn
	closed bool
}

// NewAcceptor binds addr and starts listening.
func NewAcceptor(addr string, disp *session.Dispatcher) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: bind error: %w", err)
	}
	logging.Info("Server listening for connections", zap.String("addr", ln.Addr().String()))
	return &Acceptor{listener: ln, disp: disp}, nil
}

// Addr returns the bound address.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Port returns the bound TCP port.
func (a *Acceptor) Port() int {
	if tcp, ok := a.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// ServeOne accepts a single connection and runs a session on it until the
// session ends. The connection is closed before returning. A clean
// disconnect returns nil.
func (a *Acceptor) ServeOne(ctx context.Context) error {
	conn, err := a.listener.Accept()
	if err != nil {
		if a.isClosed() || errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("server: error in accept: %w", err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			logging.Warn("Failed to set TCP_NODELAY", zap.Error(err))
		}
	}

	remote := conn.RemoteAddr().String()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	a.active = conn
	a.mu.Unlock()

	defer func() {
		_ = conn.Close()
		a.mu.Lock()
		a.active = nil
		a.mu.Unlock()
		logging.LogConnection(remote, "connection_closed")
	}()

	logging.LogConnection(remote, "connection_accepted")
	if a.OnAccept != nil {
		a.OnAccept(remote)
	}

	err = a.disp.Run(ctx, conn)
	if err != nil && a.isClosed() {
		// Close interrupted the session.
		return ErrClosed
	}
	return err
}

// Close stops listening and drops the active connection, if any. It is the
// only way to interrupt a blocked ServeOne.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	conn := a.active
	a.mu.Unlock()

	err := a.listener.Close()
	if conn != nil {
		logging.Info("Closing active connection", zap.String("remote_addr", conn.RemoteAddr().String()))
		_ = conn.Close()
	}
	return err
}

func (a *Acceptor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
