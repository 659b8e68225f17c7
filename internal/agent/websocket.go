package agent

import (
	"context"
	"sync/atomic"

	"github.com/coder/websocket"
)

// WebsocketConn adapts a websocket connection to Conn.
type WebsocketConn struct {
	ws     *websocket.Conn
	closed atomic.Bool
}

func NewWebsocketConn(ws *websocket.Conn) *WebsocketConn {
	return &WebsocketConn{ws: ws}
}

func (c *WebsocketConn) Write(ctx context.Context, payload []byte) error {
	if err := c.ws.Write(ctx, websocket.MessageText, payload); err != nil {
		c.closed.Store(true)
		return err
	}
	return nil
}

func (c *WebsocketConn) Ready() bool {
	return !c.closed.Load()
}

func (c *WebsocketConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		c.closed.Store(true)
		return nil, err
	}
	return data, nil
}

// Close ends the connection with a normal closure.
func (c *WebsocketConn) Close(reason string) error {
	c.closed.Store(true)
	return c.ws.Close(websocket.StatusNormalClosure, reason)
}
