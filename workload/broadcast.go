package workload

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/protocol"
	"github.com/andydunstall/rumor/rumortest/cluster"
	"github.com/andydunstall/rumor/workload/config"
)

// Report summarises a broadcast workload.
type Report struct {
	Nodes    int                  `json:"nodes"`
	Topology cluster.TopologyKind `json:"topology"`
	Values   int                  `json:"values"`

	// BroadcastTime is the duration to send all broadcast requests.
	BroadcastTime time.Duration `json:"broadcast_time"`
	// ConvergenceTime is the duration from the first broadcast until every
	// node knows every value.
	ConvergenceTime time.Duration `json:"convergence_time"`

	Network cluster.NetworkStats `json:"network"`
}

// RunBroadcast starts an in-process cluster, broadcasts unique values to
// random nodes, then waits for the cluster to converge.
func RunBroadcast(ctx context.Context, conf *config.Config, logger log.Logger) (*Report, error) {
	logger = logger.WithSubsystem("workload")

	c, err := cluster.NewCluster(
		ctx,
		conf.Cluster.Nodes,
		cluster.WithTopology(conf.Cluster.Topology),
		cluster.WithDropRate(conf.Cluster.DropRate),
		cluster.WithMaxDelay(conf.Cluster.MaxDelay),
		cluster.WithRetryInterval(conf.Cluster.RetryInterval),
		cluster.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close cluster", zap.Error(err))
		}
	}()

	nodeIDs := c.NodeIDs()
	values := make([]protocol.Value, 0, conf.Broadcast.Values)

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(conf.Broadcast.Concurrency)
	for i := 0; i != conf.Broadcast.Values; i++ {
		v := protocol.Value(i)
		values = append(values, v)

		dest := nodeIDs[rand.Intn(len(nodeIDs))]
		g.Go(func() error {
			if err := c.Client().Broadcast(ctx, dest, v); err != nil {
				return fmt.Errorf("broadcast: %s: %w", dest, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	broadcastTime := time.Since(start)
	logger.Info(
		"broadcast values",
		zap.Int("values", len(values)),
		zap.Duration("duration", broadcastTime),
	)

	waitCtx, cancel := context.WithTimeout(ctx, conf.Broadcast.Timeout)
	defer cancel()

	if err := c.WaitConverged(waitCtx, values); err != nil {
		return nil, err
	}

	convergenceTime := time.Since(start)
	logger.Info(
		"cluster converged",
		zap.Duration("duration", convergenceTime),
	)

	return &Report{
		Nodes:           len(nodeIDs),
		Topology:        conf.Cluster.Topology,
		Values:          len(values),
		BroadcastTime:   broadcastTime,
		ConvergenceTime: convergenceTime,
		Network:         c.Network().Stats(),
	}, nil
}
