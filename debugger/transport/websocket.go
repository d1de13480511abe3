// Copyright © 2026 The ELPS authors

package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket is a Transport over a WebSocket connection, for debug proxies
// that tunnel the framed protocol. Each inbound WebSocket message is one
// chunk of the byte stream; chunk boundaries carry no meaning.
type WebSocket struct {
	conn *websocket.Conn
	url  string

	mu      sync.Mutex // serializes Send and Close
	pending []byte     // unread remainder of the current message
}

var _ Transport = (*WebSocket)(nil)

// DialWebSocket connects to a WebSocket endpoint.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWebSocket(conn, url), nil
}

// NewWebSocket wraps an established WebSocket connection.
func NewWebSocket(conn *websocket.Conn, url string) *WebSocket {
	return &WebSocket{conn: conn, url: url}
}

// Read implements Transport.
func (w *WebSocket) Read(p []byte) (int, error) {
	for len(w.pending) == 0 {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		w.pending = data
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

// Send implements Transport. Each call is one binary message.
func (w *WebSocket) Send(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return fmt.Errorf("write to %s: %w", w.url, err)
	}
	return nil
}

// Close implements Transport. A close frame is sent on a best-effort
// basis before the connection is dropped.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

// RemoteAddr implements Transport.
func (w *WebSocket) RemoteAddr() string {
	return w.url
}
