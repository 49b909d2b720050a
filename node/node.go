package node

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/rumor/node/broadcast"
	"github.com/andydunstall/rumor/node/config"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/protocol"
	"github.com/andydunstall/rumor/pkg/transport"
)

var (
	// ErrNotInitialised is returned when the node receives a message before
	// the init handshake.
	ErrNotInitialised = errors.New("not initialised")

	// ErrAlreadyInitialised is returned when the node receives a second init
	// message.
	ErrAlreadyInitialised = errors.New("already initialised")

	// ErrNodeClosed is returned when inspecting a node that has stopped.
	ErrNodeClosed = errors.New("node closed")
)

type inbound struct {
	m   *protocol.Message
	err error
}

type inspectRequest struct {
	f      func(e *broadcast.Engine)
	doneCh chan error
}

// Node is a cluster node that receives broadcast values from clients and
// peers, and propagates new values to its adjacent peers until they
// acknowledge them.
//
// The node starts with an init handshake, which assigns the node its ID,
// followed by a topology message which assigns its peers.
type Node struct {
	// id is the local node ID, assigned by the init message.
	id string

	// engine is created on init.
	engine *broadcast.Engine

	tracker *broadcast.Tracker
	ids     *broadcast.IDAllocator

	transport transport.Transport

	inspectCh chan inspectRequest
	doneCh    chan struct{}

	conf *config.Config

	metrics *broadcast.Metrics

	logger log.Logger
}

func NewNode(
	transport transport.Transport,
	conf *config.Config,
	logger log.Logger,
) *Node {
	ids := broadcast.NewIDAllocator()
	metrics := broadcast.NewMetrics()
	return &Node{
		tracker: broadcast.NewTracker(
			conf.Broadcast.RetryInterval, ids, metrics, logger,
		),
		ids:       ids,
		transport: transport,
		inspectCh: make(chan inspectRequest),
		doneCh:    make(chan struct{}),
		conf:      conf,
		metrics:   metrics,
		logger:    logger.WithSubsystem("node"),
	}
}

func (n *Node) Metrics() *broadcast.Metrics {
	return n.metrics
}

// Inspect runs f on the node's dispatch goroutine, so f may safely read the
// engine state. f must not retain the engine.
//
// Returns ErrNotInitialised if the node hasn't received init.
func (n *Node) Inspect(ctx context.Context, f func(e *broadcast.Engine)) error {
	req := inspectRequest{
		f:      f,
		doneCh: make(chan error, 1),
	}
	select {
	case n.inspectCh <- req:
	case <-n.doneCh:
		return ErrNodeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.doneCh
}

func (n *Node) TrackerStatus() broadcast.TrackerStatus {
	return n.tracker.Status()
}

// Run processes inbound messages until the transport is closed, the context
// is cancelled or a fatal error occurs.
//
// Returns nil when the transport returns io.EOF or the context is
// cancelled.
func (n *Node) Run(ctx context.Context) error {
	defer close(n.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Recv may block after Run returns, such as reading stdin, so the
	// receive loop isn't waited on.
	inboundCh := make(chan inbound)
	go n.recvLoop(ctx, inboundCh, n.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n.tracker.Run(ctx)
		return nil
	})
	g.Go(func() error {
		// Stop the tracker once dispatch exits.
		defer cancel()
		return n.dispatchLoop(ctx, inboundCh)
	})
	return g.Wait()
}

func (n *Node) recvLoop(
	ctx context.Context,
	inboundCh chan<- inbound,
	logger log.Logger,
) {
	for {
		m, err := n.transport.Recv()
		var decodeErr *transport.DecodeError
		if errors.As(err, &decodeErr) {
			logger.Warn(
				"failed to decode message; discarding",
				zap.ByteString("line", decodeErr.Line),
				zap.Error(decodeErr.Err),
			)
			continue
		}

		select {
		case inboundCh <- inbound{m: m, err: err}:
		case <-ctx.Done():
			return
		}

		if err != nil {
			return
		}
	}
}

func (n *Node) dispatchLoop(ctx context.Context, inboundCh <-chan inbound) error {
	for {
		select {
		case in := <-inboundCh:
			if in.err != nil {
				if errors.Is(in.err, io.EOF) {
					n.logger.Info("transport closed")
					return nil
				}
				return fmt.Errorf("recv: %w", in.err)
			}
			if err := n.handleMessage(in.m); err != nil {
				return err
			}
		case resend := <-n.tracker.Resends():
			if err := n.handleResend(resend); err != nil {
				return err
			}
		case req := <-n.inspectCh:
			if n.engine == nil {
				req.doneCh <- ErrNotInitialised
				continue
			}
			req.f(n.engine)
			req.doneCh <- nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (n *Node) handleMessage(m *protocol.Message) error {
	n.logger.Debug(
		"recv message",
		zap.String("src", m.Src),
		zap.String("type", string(m.Body.Type())),
	)

	if body, ok := m.Body.(*protocol.Init); ok {
		return n.handleInit(m, body)
	}
	if n.engine == nil {
		return fmt.Errorf("%w: unexpected message: %s", ErrNotInitialised, m.Body.Type())
	}

	switch body := m.Body.(type) {
	case *protocol.Echo:
		return n.send(protocol.Reply(m, &protocol.EchoOK{
			MsgID:     n.ids.Next(),
			InReplyTo: body.MsgID,
			Echo:      body.Echo,
		}))
	case *protocol.Generate:
		return n.handleGenerate(m, body)
	case *protocol.Broadcast:
		return n.handleBroadcast(m, body)
	case *protocol.BroadcastOK:
		n.engine.HandleAcknowledgment(m.Src, body.InReplyTo)
		return nil
	case *protocol.Read:
		return n.send(protocol.Reply(m, &protocol.ReadOK{
			MsgID:     n.ids.Next(),
			InReplyTo: body.MsgID,
			Messages:  n.engine.HandleRead(),
		}))
	case *protocol.Topology:
		return n.handleTopology(m, body)
	case protocol.Response:
		// Responses to requests the node doesn't send are ignored.
		return nil
	default:
		n.logger.Warn(
			"unsupported message type",
			zap.String("type", string(m.Body.Type())),
		)
		return nil
	}
}

func (n *Node) handleInit(m *protocol.Message, req *protocol.Init) error {
	if n.engine != nil {
		return ErrAlreadyInitialised
	}

	n.id = req.NodeID
	n.logger = n.logger.With(zap.String("node-id", n.id))
	n.engine = broadcast.NewEngine(
		n.id, n.ids, n.tracker, n.metrics, n.logger,
	)

	n.logger.Info(
		"node initialised",
		zap.Strings("node-ids", req.NodeIDs),
	)

	return n.send(protocol.Reply(m, &protocol.InitOK{
		MsgID:     n.ids.Next(),
		InReplyTo: req.MsgID,
	}))
}

func (n *Node) handleGenerate(m *protocol.Message, req *protocol.Generate) error {
	msgID := n.ids.Next()

	var id string
	switch n.conf.IDs.Format {
	case config.IDFormatUUID:
		id = uuid.New().String()
	default:
		id = fmt.Sprintf("%s-%d", n.id, msgID)
	}

	return n.send(protocol.Reply(m, &protocol.GenerateOK{
		MsgID:     msgID,
		InReplyTo: req.MsgID,
		ID:        id,
	}))
}

func (n *Node) handleBroadcast(m *protocol.Message, req *protocol.Broadcast) error {
	_, propagations := n.engine.HandleBroadcast(req.Message)

	if err := n.send(protocol.Reply(m, &protocol.BroadcastOK{
		MsgID:     n.ids.Next(),
		InReplyTo: req.MsgID,
	})); err != nil {
		return err
	}

	for _, propagation := range propagations {
		if err := n.send(propagation); err != nil {
			return err
		}
		n.tracker.Track(propagation)
	}
	return nil
}

func (n *Node) handleTopology(m *protocol.Message, req *protocol.Topology) error {
	peers, err := broadcast.PeersOf(req.Topology, n.id)
	if err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	if err := n.engine.ApplyTopology(peers); err != nil {
		return fmt.Errorf("topology: %w", err)
	}

	return n.send(protocol.Reply(m, &protocol.TopologyOK{
		MsgID:     n.ids.Next(),
		InReplyTo: req.MsgID,
	}))
}

func (n *Node) handleResend(resend broadcast.Resend) error {
	// The tracker only tracks requests.
	id := resend.Message.Body.(protocol.Request).RequestID()

	if !n.engine.Resent(resend.Message.Dest, resend.PrevID, id) {
		// The propagation was acknowledged after the resend was scheduled.
		n.tracker.Cancel(id)
		return nil
	}
	return n.send(resend.Message)
}

func (n *Node) send(m *protocol.Message) error {
	if err := n.transport.Send(m); err != nil {
		return fmt.Errorf("send: %s: %w", m.Body.Type(), err)
	}
	return nil
}
