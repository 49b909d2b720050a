package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/rumortest/cluster"
)

type ClusterConfig struct {
	// Nodes is the number of nodes in the cluster.
	Nodes int `json:"nodes" yaml:"nodes"`

	// Topology is the kind of topology assigned to the nodes.
	Topology cluster.TopologyKind `json:"topology" yaml:"topology"`

	// DropRate is the probability a message between two nodes is dropped.
	DropRate float64 `json:"drop_rate" yaml:"drop_rate"`

	// MaxDelay is the maximum delay of a message between two nodes.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// RetryInterval is the nodes broadcast retry interval.
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval"`
}

func (c *ClusterConfig) Validate() error {
	if c.Nodes <= 0 {
		return fmt.Errorf("missing nodes")
	}
	if _, err := cluster.Topology(c.Topology, nil); err != nil {
		return err
	}
	if c.DropRate < 0 || c.DropRate >= 1 {
		return fmt.Errorf("drop rate must be in range [0, 1)")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("max delay must not be negative")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("missing retry interval")
	}
	return nil
}

type BroadcastConfig struct {
	// Values is the number of unique values to broadcast.
	Values int `json:"values" yaml:"values"`

	// Concurrency is the maximum number of in-flight broadcast requests.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Timeout is the maximum duration to wait for the cluster to converge.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

func (c *BroadcastConfig) Validate() error {
	if c.Values <= 0 {
		return fmt.Errorf("missing values")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("missing concurrency")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("missing timeout")
	}
	return nil
}

type Config struct {
	Cluster ClusterConfig `json:"cluster" yaml:"cluster"`

	Broadcast BroadcastConfig `json:"broadcast" yaml:"broadcast"`

	Log log.Config `json:"log" yaml:"log"`
}

func Default() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Nodes:         5,
			Topology:      cluster.TopologyRing,
			DropRate:      0.1,
			MaxDelay:      time.Millisecond * 10,
			RetryInterval: time.Millisecond * 150,
		},
		Broadcast: BroadcastConfig{
			Values:      100,
			Concurrency: 10,
			Timeout:     time.Second * 30,
		},
		Log: log.Config{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Cluster.Validate(); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	if err := c.Broadcast.Validate(); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.IntVar(
		&c.Cluster.Nodes,
		"cluster.nodes",
		c.Cluster.Nodes,
		`
The number of cluster nodes to start.`,
	)
	fs.StringVar(
		(*string)(&c.Cluster.Topology),
		"cluster.topology",
		string(c.Cluster.Topology),
		`
The topology assigned to the nodes.

Supports 'line', 'ring', 'star' and 'full'.`,
	)
	fs.Float64Var(
		&c.Cluster.DropRate,
		"cluster.drop-rate",
		c.Cluster.DropRate,
		`
The probability that a message between two nodes is dropped, such as '0.1'
will drop 10% of messages.

Messages between clients and nodes are never dropped.`,
	)
	fs.DurationVar(
		&c.Cluster.MaxDelay,
		"cluster.max-delay",
		c.Cluster.MaxDelay,
		`
The maximum delay of a message between two nodes. Each message is delayed by
a random duration up to the maximum.`,
	)
	fs.DurationVar(
		&c.Cluster.RetryInterval,
		"cluster.retry-interval",
		c.Cluster.RetryInterval,
		`
The duration each node waits for a peer to acknowledge a broadcast before
resending it.`,
	)

	fs.IntVar(
		&c.Broadcast.Values,
		"broadcast.values",
		c.Broadcast.Values,
		`
The number of unique values to broadcast. Each value is sent to a random
node.`,
	)
	fs.IntVar(
		&c.Broadcast.Concurrency,
		"broadcast.concurrency",
		c.Broadcast.Concurrency,
		`
The maximum number of broadcast requests in flight.`,
	)
	fs.DurationVar(
		&c.Broadcast.Timeout,
		"broadcast.timeout",
		c.Broadcast.Timeout,
		`
The maximum duration to wait for all nodes to converge.`,
	)

	c.Log.RegisterFlags(fs)
}
