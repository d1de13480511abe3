// Copyright © 2026 The ELPS authors

// Package bridgetest provides a scripted fake debuggee for testing
// debugger sessions without a real V8 process.
package bridgetest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/luthersystems/v8bridge/debugger/transport"
	"github.com/luthersystems/v8bridge/debugger/wire"
	"github.com/tidwall/gjson"
)

// DefaultWait bounds how long Expect waits for a request.
const DefaultWait = 5 * time.Second

// Request is a request received by the fake debuggee.
type Request struct {
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments"`
}

// Arg returns an argument by gjson path.
func (r Request) Arg(path string) gjson.Result {
	return gjson.GetBytes(r.Arguments, path)
}

// Debuggee is the debuggee end of a connection. Requests written by the
// session are decoded on a background goroutine and handed to Expect in
// arrival order.
type Debuggee struct {
	t    testing.TB
	conn net.Conn

	wmu  sync.Mutex
	reqs chan Request
	errs chan error
	Wait time.Duration
}

// NewPipe returns a fake debuggee and the transport a session should use
// to talk to it. Both ends are closed when the test finishes.
func NewPipe(t testing.TB) (*Debuggee, transport.Transport) {
	client, server := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	return newDebuggee(t, server), transport.FromConn(client)
}

func newDebuggee(t testing.TB, conn net.Conn) *Debuggee {
	d := &Debuggee{
		t:    t,
		conn: conn,
		reqs: make(chan Request, 64),
		errs: make(chan error, 1),
		Wait: DefaultWait,
	}
	go d.read()
	t.Cleanup(func() { _ = d.conn.Close() })
	return d
}

// Listener is a debug port on the loopback interface.
type Listener struct {
	t  testing.TB
	ln net.Listener
}

// Listen opens a debug port for code under test to dial.
func Listen(t testing.TB) *Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("debuggee: listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return &Listener{t: t, ln: ln}
}

// Addr returns the host:port to dial.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Accept waits for a client and returns the debuggee end.
func (l *Listener) Accept() *Debuggee {
	l.t.Helper()
	if tl, ok := l.ln.(*net.TCPListener); ok {
		_ = tl.SetDeadline(time.Now().Add(DefaultWait))
	}
	conn, err := l.ln.Accept()
	if err != nil {
		l.t.Fatalf("debuggee: accept: %v", err)
	}
	return newDebuggee(l.t, conn)
}

func (d *Debuggee) read() {
	dec := wire.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := d.conn.Read(buf)
		if n > 0 {
			frames, _ := dec.Feed(buf[:n])
			for _, f := range frames {
				var req Request
				if err := json.Unmarshal(f.Body, &req); err != nil {
					d.errs <- fmt.Errorf("bad request %q: %w", f.Body, err)
					return
				}
				d.reqs <- req
			}
		}
		if err != nil {
			close(d.reqs)
			return
		}
	}
}

// Next returns the next request, whatever its command.
func (d *Debuggee) Next() Request {
	d.t.Helper()
	select {
	case req, ok := <-d.reqs:
		if !ok {
			d.t.Fatalf("debuggee: connection closed while waiting for a request")
		}
		return req
	case err := <-d.errs:
		d.t.Fatalf("debuggee: %v", err)
	case <-time.After(d.Wait):
		d.t.Fatalf("debuggee: no request within %v", d.Wait)
	}
	return Request{}
}

// Expect returns the next request and fails the test unless it is for
// command.
func (d *Debuggee) Expect(command string) Request {
	d.t.Helper()
	req := d.Next()
	if req.Command != command {
		d.t.Fatalf("debuggee: got request %q (seq %d), want %q", req.Command, req.Seq, command)
	}
	return req
}

// ExpectNone fails the test if a request arrives within wait.
func (d *Debuggee) ExpectNone(wait time.Duration) {
	d.t.Helper()
	select {
	case req, ok := <-d.reqs:
		if ok {
			d.t.Fatalf("debuggee: unexpected request %q (seq %d)", req.Command, req.Seq)
		}
	case <-time.After(wait):
	}
}

// Handshake sends the header-only connect message.
func (d *Debuggee) Handshake(v8Version, host string) {
	d.t.Helper()
	d.WriteRaw([]byte("Type: connect\r\n" +
		"V8-Version: " + v8Version + "\r\n" +
		"Protocol-Version: 1\r\n" +
		"Embedding-Host: " + host + "\r\n" +
		"Content-Length: 0\r\n\r\n"))
}

// Response is the body of a response sent by the debuggee.
type Response struct {
	Success bool
	Running bool
	Message string
	Body    interface{}
	Refs    interface{}
}

// Reply answers req with resp.
func (d *Debuggee) Reply(req Request, resp Response) {
	d.t.Helper()
	msg := map[string]interface{}{
		"seq":         0,
		"type":        "response",
		"request_seq": req.Seq,
		"command":     req.Command,
		"success":     resp.Success,
		"running":     resp.Running,
	}
	if resp.Message != "" {
		msg["message"] = resp.Message
	}
	if resp.Body != nil {
		msg["body"] = resp.Body
	}
	if resp.Refs != nil {
		msg["refs"] = resp.Refs
	}
	d.writeJSON(msg)
}

// Respond answers req successfully with body.
func (d *Debuggee) Respond(req Request, body interface{}) {
	d.t.Helper()
	d.Reply(req, Response{Success: true, Body: body})
}

// RespondError answers req with success=false.
func (d *Debuggee) RespondError(req Request, message string) {
	d.t.Helper()
	d.Reply(req, Response{Message: message})
}

// SendEvent emits an event.
func (d *Debuggee) SendEvent(event string, body interface{}) {
	d.t.Helper()
	d.writeJSON(map[string]interface{}{
		"seq":   0,
		"type":  "event",
		"event": event,
		"body":  body,
	})
}

func (d *Debuggee) writeJSON(msg interface{}) {
	d.t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		d.t.Fatalf("debuggee: %v", err)
	}
	d.wmu.Lock()
	defer d.wmu.Unlock()
	if err := dap.WriteBaseMessage(d.conn, b); err != nil {
		d.t.Errorf("debuggee: write: %v", err)
	}
}

// WriteRaw writes bytes as they are, for malformed or split frames.
func (d *Debuggee) WriteRaw(b []byte) {
	d.t.Helper()
	d.wmu.Lock()
	defer d.wmu.Unlock()
	if _, err := d.conn.Write(b); err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, net.ErrClosed) {
		d.t.Errorf("debuggee: write: %v", err)
	}
}

// Close drops the connection, as a crashed debuggee would.
func (d *Debuggee) Close() {
	_ = d.conn.Close()
}
