package cluster

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/andydunstall/rumor/pkg/protocol"
)

// Client sends requests to nodes in the cluster and waits for their
// responses.
type Client struct {
	endpoint *Endpoint

	nextID *atomic.Uint64

	pending map[protocol.MessageID]chan *protocol.Message

	// mu protects the above fields.
	mu sync.Mutex
}

func newClient(endpoint *Endpoint) *Client {
	c := &Client{
		endpoint: endpoint,
		nextID:   atomic.NewUint64(0),
		pending:  make(map[protocol.MessageID]chan *protocol.Message),
	}
	go c.recvLoop()
	return c
}

// RPC sends the request to the node with the given ID and waits for a
// response. The request message ID is assigned by the client.
func (c *Client) RPC(
	ctx context.Context,
	dest string,
	req protocol.Request,
) (*protocol.Message, error) {
	id := protocol.MessageID(c.nextID.Inc())

	ch := make(chan *protocol.Message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.endpoint.Send(&protocol.Message{
		Src:  c.endpoint.ID(),
		Dest: dest,
		Body: req.WithRequestID(id),
	}); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	select {
	case m := <-ch:
		return m, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", req.Type(), ctx.Err())
	}
}

func (c *Client) Broadcast(ctx context.Context, dest string, v protocol.Value) error {
	m, err := c.RPC(ctx, dest, &protocol.Broadcast{Message: v})
	if err != nil {
		return err
	}
	if _, ok := m.Body.(*protocol.BroadcastOK); !ok {
		return fmt.Errorf("unexpected response: %s", m.Body.Type())
	}
	return nil
}

func (c *Client) Read(ctx context.Context, dest string) ([]protocol.Value, error) {
	m, err := c.RPC(ctx, dest, &protocol.Read{})
	if err != nil {
		return nil, err
	}
	readOK, ok := m.Body.(*protocol.ReadOK)
	if !ok {
		return nil, fmt.Errorf("unexpected response: %s", m.Body.Type())
	}
	return readOK.Messages, nil
}

func (c *Client) recvLoop() {
	for {
		m, err := c.endpoint.Recv()
		if err != nil {
			return
		}

		resp, ok := m.Body.(protocol.Response)
		if !ok {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ReplyTo()]
		c.mu.Unlock()

		if ok {
			// Buffered so never blocks. Duplicate responses are discarded.
			select {
			case ch <- m:
			default:
			}
		}
	}
}
