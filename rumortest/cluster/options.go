package cluster

import (
	"time"

	"github.com/andydunstall/rumor/pkg/log"
)

type options struct {
	topology      TopologyKind
	dropRate      float64
	maxDelay      time.Duration
	retryInterval time.Duration
	logger        log.Logger
}

type topologyOption TopologyKind

func (o topologyOption) apply(opts *options) {
	opts.topology = TopologyKind(o)
}

// WithTopology configures the topology assigned to the nodes. Defaults to
// a ring.
func WithTopology(kind TopologyKind) Option {
	return topologyOption(kind)
}

type dropRateOption float64

func (o dropRateOption) apply(opts *options) {
	opts.dropRate = float64(o)
}

// WithDropRate configures the probability that a message between two nodes
// is dropped. Messages to and from clients are never dropped.
func WithDropRate(rate float64) Option {
	return dropRateOption(rate)
}

type maxDelayOption time.Duration

func (o maxDelayOption) apply(opts *options) {
	opts.maxDelay = time.Duration(o)
}

// WithMaxDelay configures the maximum delay of a message between two nodes.
// Each message is delayed by a random duration up to the maximum, so
// messages may be reordered.
func WithMaxDelay(d time.Duration) Option {
	return maxDelayOption(d)
}

type retryIntervalOption time.Duration

func (o retryIntervalOption) apply(opts *options) {
	opts.retryInterval = time.Duration(o)
}

// WithRetryInterval configures the nodes broadcast retry interval.
func WithRetryInterval(d time.Duration) Option {
	return retryIntervalOption(d)
}

type loggerOption struct {
	Logger log.Logger
}

func (o loggerOption) apply(opts *options) {
	opts.logger = o.Logger
}

// WithLogger configures the logger. Defaults to no output.
func WithLogger(logger log.Logger) Option {
	return loggerOption{Logger: logger}
}

type Option interface {
	apply(*options)
}
