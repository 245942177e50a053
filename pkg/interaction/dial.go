package interaction

import (
	"context"

	"github.com/oblakr24/blescanner/pkg/transport"
	"github.com/oblakr24/blescanner/pkg/wire"
)

// Conn is a Client bound to its transport connection.
type Conn struct {
	*Client
	conn *transport.Conn
}

// Dial connects to a bridge. The client closes when the connection does.
func Dial(ctx context.Context, address string, config ClientConfig, tc transport.ClientConfig) (*Conn, error) {
	var client *Client
	ready := make(chan struct{})
	tc.OnMessage = func(_ *transport.Conn, m *wire.Message) {
		<-ready
		client.HandleMessage(m)
	}

	conn, err := transport.Dial(ctx, address, tc)
	if err != nil {
		return nil, err
	}
	client = NewClient(conn, config)
	close(ready)

	go func() {
		<-conn.Done()
		client.Close()
	}()
	return &Conn{Client: client, conn: conn}, nil
}

// Close closes the client and its connection.
func (c *Conn) Close() error {
	c.Client.Close()
	return c.conn.Close()
}

// Done is closed when the connection has closed.
func (c *Conn) Done() <-chan struct{} {
	return c.conn.Done()
}
