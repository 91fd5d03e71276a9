package rethinkdb

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer returns a DialFunc that carries the framed byte stream
// inside binary WebSocket messages, for deployments where the database
// port is only reachable through a WebSocket proxy. The handshake and
// framing on the wire are unchanged; the tunnel is invisible to the rest
// of the connection.
//
// The address computed from ConnectOpts is ignored; the endpoint URL names
// the proxy. Pass a nil dialer to use websocket.DefaultDialer.
func WebSocketDialer(endpoint string, dialer *websocket.Dialer) DialFunc {
	return func(ctx context.Context, _ string) (net.Conn, error) {
		if dialer == nil {
			dialer = websocket.DefaultDialer
		}
		conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return &wsConn{conn: conn}, nil
	}
}

// wsConn adapts a WebSocket connection to net.Conn. Reads concatenate
// successive binary messages into one stream; each write becomes one
// binary message.
type wsConn struct {
	conn    *websocket.Conn
	reader  io.Reader
	writeMu sync.Mutex
}

func (w *wsConn) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, reader, err := w.conn.NextReader()
			if err != nil {
				if _, ok := err.(*websocket.CloseError); ok {
					return 0, io.EOF
				}
				return 0, err
			}
			w.reader = reader
		}
		n, err := w.reader.Read(p)
		if err == io.EOF {
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	w.writeMu.Lock()
	// Best effort: the proxy may already be gone.
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	w.writeMu.Unlock()
	return w.conn.Close()
}

func (w *wsConn) LocalAddr() net.Addr  { return w.conn.LocalAddr() }
func (w *wsConn) RemoteAddr() net.Addr { return w.conn.RemoteAddr() }

func (w *wsConn) SetDeadline(t time.Time) error {
	if err := w.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(t)
}

func (w *wsConn) SetReadDeadline(t time.Time) error  { return w.conn.SetReadDeadline(t) }
func (w *wsConn) SetWriteDeadline(t time.Time) error { return w.conn.SetWriteDeadline(t) }
