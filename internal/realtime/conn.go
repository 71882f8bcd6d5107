package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const dialTimeout = 10 * time.Second

// Conn is the minimal transport surface the client needs from a socket.
// Production connections wrap gorilla/websocket; tests use in-memory fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// DialFunc opens a socket to the realtime endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Conn, error)

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func dialWebSocket(ctx context.Context, endpoint string) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}
