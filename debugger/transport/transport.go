// Copyright © 2026 The ELPS authors

// Package transport provides the duplex byte streams the debugger session
// runs over. A Transport makes no assumption about message boundaries;
// framing is the job of the wire package.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Transport is a duplex byte stream to a debuggee.
type Transport interface {
	// Read reads the next available bytes. It is only called from the
	// session's reader goroutine.
	Read(p []byte) (int, error)
	// Send writes all of p or returns an error. Concurrent calls are
	// serialized and never interleave.
	Send(p []byte) error
	// Close tears the stream down and unblocks a pending Read.
	Close() error
	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

// Conn is a Transport over a net.Conn.
type Conn struct {
	conn net.Conn

	mu sync.Mutex // serializes Send
}

var _ Transport = (*Conn)(nil)

// DialTCP connects to the debug port at addr. A zero timeout leaves the
// deadline to ctx.
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return FromConn(conn), nil
}

// FromConn wraps an established connection.
func FromConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Read implements Transport.
func (c *Conn) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

// Send implements Transport. Short writes are retried until every byte
// is on the wire.
func (c *Conn) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(p) > 0 {
		n, err := c.conn.Write(p)
		if err != nil {
			return fmt.Errorf("write to %s: %w", c.RemoteAddr(), err)
		}
		if n == 0 {
			return fmt.Errorf("write to %s: %w", c.RemoteAddr(), io.ErrShortWrite)
		}
		p = p[n:]
	}
	return nil
}

// Close implements Transport.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements Transport.
func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
