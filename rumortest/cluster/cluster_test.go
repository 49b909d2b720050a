package cluster

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/protocol"
)

func TestCluster_Converge(t *testing.T) {
	tests := []struct {
		name     string
		topology TopologyKind
		dropRate float64
	}{
		{"line", TopologyLine, 0},
		{"ring", TopologyRing, 0},
		{"star", TopologyStar, 0},
		{"full", TopologyFull, 0},
		{"lossy line", TopologyLine, 0.3},
		{"lossy ring", TopologyRing, 0.3},
		{"lossy star", TopologyStar, 0.3},
		{"lossy full", TopologyFull, 0.3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
			defer cancel()

			c, err := NewCluster(
				ctx,
				5,
				WithTopology(tt.topology),
				WithDropRate(tt.dropRate),
				WithMaxDelay(time.Millisecond*5),
				WithRetryInterval(time.Millisecond*20),
			)
			require.NoError(t, err)
			defer func() {
				assert.NoError(t, c.Close())
			}()

			var expected []protocol.Value
			var g errgroup.Group
			for i := 0; i != 50; i++ {
				v := protocol.Value(i)
				expected = append(expected, v)

				dest := c.NodeIDs()[i%len(c.NodeIDs())]
				g.Go(func() error {
					return c.Client().Broadcast(ctx, dest, v)
				})
			}
			require.NoError(t, g.Wait())

			require.NoError(t, c.WaitConverged(ctx, expected))

			stats := c.Network().Stats()
			if tt.dropRate > 0 {
				assert.Greater(t, stats.Dropped, uint64(0))
			}
		})
	}
}

func TestCluster_Duplicates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	c, err := NewCluster(ctx, 3, WithTopology(TopologyFull))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, c.Close())
	}()

	for _, id := range c.NodeIDs() {
		require.NoError(t, c.Client().Broadcast(ctx, id, 7))
	}
	require.NoError(t, c.WaitConverged(ctx, []protocol.Value{7}))
}

func TestCluster_NotConverged(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	// Drop all messages between nodes so values are never propagated.
	c, err := NewCluster(ctx, 2, WithTopology(TopologyLine), WithDropRate(1))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, c.Close())
	}()

	require.NoError(t, c.Client().Broadcast(ctx, "n1", 1))

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Millisecond*300)
	defer waitCancel()
	assert.ErrorIs(t, c.WaitConverged(waitCtx, []protocol.Value{1}), ErrNotConverged)

	values, err := c.Client().Read(ctx, "n2")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestTopology(t *testing.T) {
	nodeIDs := []string{"n1", "n2", "n3", "n4"}

	t.Run("line", func(t *testing.T) {
		topology, err := Topology(TopologyLine, nodeIDs)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{
			"n1": {"n2"},
			"n2": {"n1", "n3"},
			"n3": {"n2", "n4"},
			"n4": {"n3"},
		}, topology)
	})

	t.Run("ring", func(t *testing.T) {
		topology, err := Topology(TopologyRing, nodeIDs)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{
			"n1": {"n2", "n4"},
			"n2": {"n1", "n3"},
			"n3": {"n2", "n4"},
			"n4": {"n3", "n1"},
		}, topology)
	})

	t.Run("star", func(t *testing.T) {
		topology, err := Topology(TopologyStar, nodeIDs)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{
			"n1": {"n2", "n3", "n4"},
			"n2": {"n1"},
			"n3": {"n1"},
			"n4": {"n1"},
		}, topology)
	})

	t.Run("full", func(t *testing.T) {
		topology, err := Topology(TopologyFull, nodeIDs)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{
			"n1": {"n2", "n3", "n4"},
			"n2": {"n1", "n3", "n4"},
			"n3": {"n1", "n2", "n4"},
			"n4": {"n1", "n2", "n3"},
		}, topology)
	})

	t.Run("single node", func(t *testing.T) {
		topology, err := Topology(TopologyRing, []string{"n1"})
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{"n1": {}}, topology)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Topology("foo", nodeIDs)
		assert.Error(t, err)
	})
}

func TestNetwork(t *testing.T) {
	t.Run("drop between nodes", func(t *testing.T) {
		network := NewNetwork(1, 0, log.NewNopLogger())
		n1 := network.AddEndpoint("n1", true)
		network.AddEndpoint("n2", true)
		c1 := network.AddEndpoint("c1", false)

		// Clients are never dropped.
		require.NoError(t, n1.Send(&protocol.Message{
			Src:  "n1",
			Dest: "c1",
			Body: &protocol.Read{MsgID: 1},
		}))
		m, err := c1.Recv()
		require.NoError(t, err)
		assert.Equal(t, "n1", m.Src)

		require.NoError(t, n1.Send(&protocol.Message{
			Src:  "n1",
			Dest: "n2",
			Body: &protocol.Read{MsgID: 2},
		}))

		assert.Equal(t, NetworkStats{
			Sent:      2,
			Dropped:   1,
			Delivered: 1,
		}, network.Stats())
	})

	t.Run("delay", func(t *testing.T) {
		network := NewNetwork(0, time.Millisecond*20, log.NewNopLogger())
		n1 := network.AddEndpoint("n1", true)
		n2 := network.AddEndpoint("n2", true)

		for i := 0; i != 10; i++ {
			require.NoError(t, n1.Send(&protocol.Message{
				Src:  "n1",
				Dest: "n2",
				Body: &protocol.Read{MsgID: protocol.MessageID(i)},
			}))
		}

		received := make(map[protocol.MessageID]struct{})
		for i := 0; i != 10; i++ {
			m, err := n2.Recv()
			require.NoError(t, err)
			received[m.Body.(*protocol.Read).MsgID] = struct{}{}
		}
		assert.Equal(t, 10, len(received))
	})

	t.Run("unknown destination", func(t *testing.T) {
		network := NewNetwork(0, 0, log.NewNopLogger())
		n1 := network.AddEndpoint("n1", true)

		require.NoError(t, n1.Send(&protocol.Message{
			Src:  "n1",
			Dest: "n5",
			Body: &protocol.Read{MsgID: 1},
		}))
		assert.Equal(t, uint64(1), network.Stats().Dropped)
	})

	t.Run("close", func(t *testing.T) {
		network := NewNetwork(0, 0, log.NewNopLogger())
		n1 := network.AddEndpoint("n1", true)

		network.Close()

		_, err := n1.Recv()
		assert.ErrorIs(t, err, io.EOF)
		assert.Error(t, n1.Send(&protocol.Message{
			Src:  "n1",
			Dest: "n1",
			Body: &protocol.Read{MsgID: 1},
		}))
	})
}
