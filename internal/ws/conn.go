package ws

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"realtime-collab/internal/session"
)

// Conn is one participant's websocket link plus its outbound queue
type Conn struct {
	id  session.ConnectionID
	ws  *websocket.Conn
	out chan []byte
}

// Accept upgrades HTTP to websocket for the allowed origin patterns
func Accept(w http.ResponseWriter, r *http.Request, origins []string) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  origins,
		CompressionMode: websocket.CompressionDisabled,
	})
}

// NewConn wraps a websocket with a send queue of size buffer
func NewConn(ws *websocket.Conn, id session.ConnectionID, buffer int) *Conn {
	return &Conn{id: id, ws: ws, out: make(chan []byte, buffer)}
}

// ID returns the connection identifier assigned on accept
func (c *Conn) ID() session.ConnectionID { return c.id }

// Read blocks until it receives a text/binary message
// Returns false if connection is closed
func (c *Conn) Read(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// WriteLoop sends queued frames + periodic pings
// Exits when ctx is cancelled or a write fails
func (c *Conn) WriteLoop(ctx context.Context, ping time.Duration) {
	t := time.NewTicker(ping)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			if err := c.ws.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		case <-t.C:
			if err := c.ws.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Enqueue adds a frame without blocking; reports false when the queue is full
func (c *Conn) Enqueue(b []byte) bool {
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

// Close closes the websocket normally
func (c *Conn) Close() error { return c.ws.Close(websocket.StatusNormalClosure, "bye") }
