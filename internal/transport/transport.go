package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

var (
	ErrBind    = errors.New("bind failed")
	ErrConnect = errors.New("connect failed")
)

// Listener accepts exactly one TCP connection and then closes itself.
type Listener struct {
	ln  *net.TCPListener
	cfg Config

	closeOnce sync.Once
	closeErr  error
}

func Listen(ctx context.Context, addr string, cfg Config) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listening on %s: %w", ErrBind, addr, err)
	}

	return &Listener{ln: ln.(*net.TCPListener), cfg: cfg}, nil
}

func (l *Listener) Addr() *net.TCPAddr {
	return l.ln.Addr().(*net.TCPAddr)
}

// Accept blocks until one peer connects, ctx is done or the accept timeout
// expires. The listener is closed when Accept returns.
func (l *Listener) Accept(ctx context.Context) (*net.TCPConn, error) {
	defer func() { _ = l.Close() }()

	if l.cfg.AcceptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.AcceptTimeout)
		defer cancel()
	}

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	conn, err := l.ln.AcceptTCP()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("waiting for peer: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: accepting on %s: %w", ErrBind, l.ln.Addr(), err)
	}

	tune(conn, l.cfg.SocketBuffer)
	return conn, nil
}

func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}

// Dial opens one outbound connection. There is no retry.
func Dial(ctx context.Context, addr string, cfg Config) (*net.TCPConn, error) {
	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("dialing %s: %w", addr, ctxErr)
		}
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrConnect, addr, err)
	}

	tcp := conn.(*net.TCPConn)
	tune(tcp, cfg.SocketBuffer)
	return tcp, nil
}

func tune(conn *net.TCPConn, buf int) {
	_ = conn.SetNoDelay(true)
	if buf > 0 {
		_ = conn.SetReadBuffer(buf)
		_ = conn.SetWriteBuffer(buf)
	}
}

// HostPort joins host and port, bracketing IPv6 literals.
func HostPort(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprint(port))
}
