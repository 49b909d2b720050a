package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/rumor/node"
	"github.com/andydunstall/rumor/node/config"
	"github.com/andydunstall/rumor/pkg/backoff"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/protocol"
)

var (
	// ErrNotConverged is returned when the nodes don't converge before the
	// context is cancelled.
	ErrNotConverged = errors.New("not converged")
)

// Cluster runs a cluster of nodes in-process, connected by a lossy
// in-memory network.
type Cluster struct {
	nodeIDs []string
	nodes   map[string]*node.Node

	topology map[string][]string

	network *Network
	client  *Client

	cancel context.CancelFunc
	group  *errgroup.Group

	logger log.Logger
}

// NewCluster starts a cluster with the given number of nodes, named 'n1'
// to 'n<size>', then initialises each node and assigns the topology.
func NewCluster(ctx context.Context, size int, opts ...Option) (*Cluster, error) {
	options := options{
		topology:      TopologyRing,
		retryInterval: config.Default().Broadcast.RetryInterval,
		logger:        log.NewNopLogger(),
	}
	for _, o := range opts {
		o.apply(&options)
	}

	logger := options.logger.WithSubsystem("cluster")

	nodeIDs := make([]string, 0, size)
	for i := 1; i <= size; i++ {
		nodeIDs = append(nodeIDs, "n"+strconv.Itoa(i))
	}

	topology, err := Topology(options.topology, nodeIDs)
	if err != nil {
		return nil, err
	}

	network := NewNetwork(options.dropRate, options.maxDelay, options.logger)

	runCtx, cancel := context.WithCancel(context.Background())
	group, runCtx := errgroup.WithContext(runCtx)

	c := &Cluster{
		nodeIDs:  nodeIDs,
		nodes:    make(map[string]*node.Node, size),
		topology: topology,
		network:  network,
		cancel:   cancel,
		group:    group,
		logger:   logger,
	}

	for _, id := range nodeIDs {
		id := id
		conf := config.Default()
		conf.Broadcast.RetryInterval = options.retryInterval

		n := node.NewNode(
			network.AddEndpoint(id, true),
			conf,
			options.logger.With(zap.String("node", id)),
		)
		c.nodes[id] = n

		group.Go(func() error {
			if err := n.Run(runCtx); err != nil {
				return fmt.Errorf("node %s: %w", id, err)
			}
			return nil
		})
	}

	c.client = newClient(network.AddEndpoint("c0", false))

	if err := c.init(ctx); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info(
		"cluster started",
		zap.Strings("nodes", nodeIDs),
		zap.String("topology", string(options.topology)),
	)

	return c, nil
}

func (c *Cluster) NodeIDs() []string {
	return c.nodeIDs
}

func (c *Cluster) Node(id string) (*node.Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

func (c *Cluster) Topology() map[string][]string {
	return c.topology
}

func (c *Cluster) Client() *Client {
	return c.client
}

func (c *Cluster) Network() *Network {
	return c.network
}

// WaitConverged waits until every node knows exactly the expected values.
func (c *Cluster) WaitConverged(ctx context.Context, expected []protocol.Value) error {
	expected = slices.Clone(expected)
	slices.Sort(expected)
	expected = slices.Compact(expected)

	b := backoff.New(0, time.Millisecond*5, time.Millisecond*100)
	for {
		converged, err := c.converged(ctx, expected)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrNotConverged, ctx.Err())
		}
		if err != nil {
			return err
		}
		if converged {
			return nil
		}

		if !b.Wait(ctx) {
			return fmt.Errorf("%w: %w", ErrNotConverged, ctx.Err())
		}
	}
}

// Close stops all nodes. Returns an error if any node failed.
func (c *Cluster) Close() error {
	c.cancel()
	c.network.Close()
	return c.group.Wait()
}

func (c *Cluster) converged(ctx context.Context, expected []protocol.Value) (bool, error) {
	for _, id := range c.nodeIDs {
		values, err := c.client.Read(ctx, id)
		if err != nil {
			return false, fmt.Errorf("read: %s: %w", id, err)
		}
		if !slices.Equal(values, expected) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Cluster) init(ctx context.Context) error {
	for _, id := range c.nodeIDs {
		m, err := c.client.RPC(ctx, id, &protocol.Init{
			NodeID:  id,
			NodeIDs: c.nodeIDs,
		})
		if err != nil {
			return fmt.Errorf("init: %s: %w", id, err)
		}
		if _, ok := m.Body.(*protocol.InitOK); !ok {
			return fmt.Errorf("init: %s: unexpected response: %s", id, m.Body.Type())
		}
	}

	for _, id := range c.nodeIDs {
		m, err := c.client.RPC(ctx, id, &protocol.Topology{
			Topology: c.topology,
		})
		if err != nil {
			return fmt.Errorf("topology: %s: %w", id, err)
		}
		if _, ok := m.Body.(*protocol.TopologyOK); !ok {
			return fmt.Errorf("topology: %s: unexpected response: %s", id, m.Body.Type())
		}
	}

	return nil
}
