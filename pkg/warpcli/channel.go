package warpcli

import (
	"context"
	"sync"

	cws "github.com/coder/websocket"
)

// wsChannel carries jrpc2 messages over a websocket and signals when the
// connection ends.
type wsChannel struct {
	conn   *cws.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newWSChannel(conn *cws.Conn) *wsChannel {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsChannel{conn: conn, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		c.finish()
	}
	return data, err
}

func (c *wsChannel) Close() error {
	err := c.conn.Close(cws.StatusNormalClosure, "")
	c.cancel()
	c.finish()
	return err
}

func (c *wsChannel) finish() {
	c.once.Do(func() { close(c.done) })
}
