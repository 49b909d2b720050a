package cluster

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/protocol"
	"github.com/andydunstall/rumor/pkg/transport"
)

const (
	inboxSize = 1 << 14
)

// NetworkStats contains the number of messages routed by the network.
type NetworkStats struct {
	Sent      uint64 `json:"sent"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
}

// Network is an in-memory network connecting nodes and clients.
//
// Messages between two nodes may be dropped or delayed, which reorders
// messages. Messages to and from clients are delivered immediately.
type Network struct {
	endpoints map[string]*Endpoint

	// mu protects the above fields.
	mu sync.RWMutex

	dropRate float64
	maxDelay time.Duration

	rand *rand.Rand
	// randMu protects rand.
	randMu sync.Mutex

	sent      *atomic.Uint64
	dropped   *atomic.Uint64
	delivered *atomic.Uint64

	logger log.Logger
}

func NewNetwork(dropRate float64, maxDelay time.Duration, logger log.Logger) *Network {
	return &Network{
		endpoints: make(map[string]*Endpoint),
		dropRate:  dropRate,
		maxDelay:  maxDelay,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sent:      atomic.NewUint64(0),
		dropped:   atomic.NewUint64(0),
		delivered: atomic.NewUint64(0),
		logger:    logger.WithSubsystem("cluster.network"),
	}
}

// AddEndpoint adds an endpoint with the given ID to the network. If lossy is
// true, messages between this endpoint and other lossy endpoints may be
// dropped or delayed.
func (n *Network) AddEndpoint(id string, lossy bool) *Endpoint {
	e := &Endpoint{
		id:      id,
		lossy:   lossy,
		network: n,
		inboxCh: make(chan *protocol.Message, inboxSize),
		closeCh: make(chan struct{}),
	}

	n.mu.Lock()
	n.endpoints[id] = e
	n.mu.Unlock()

	return e
}

func (n *Network) Stats() NetworkStats {
	return NetworkStats{
		Sent:      n.sent.Load(),
		Dropped:   n.dropped.Load(),
		Delivered: n.delivered.Load(),
	}
}

// Close closes all endpoints.
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, e := range n.endpoints {
		e.close()
	}
}

func (n *Network) route(src *Endpoint, m *protocol.Message) {
	n.sent.Inc()

	n.mu.RLock()
	dest, ok := n.endpoints[m.Dest]
	n.mu.RUnlock()

	if !ok {
		n.logger.Warn(
			"unknown destination; dropping",
			zap.String("src", m.Src),
			zap.String("dest", m.Dest),
		)
		n.dropped.Inc()
		return
	}

	if !src.lossy || !dest.lossy {
		n.deliver(dest, m)
		return
	}

	drop, delay := n.sample()
	if drop {
		n.dropped.Inc()
		return
	}
	if delay == 0 {
		n.deliver(dest, m)
		return
	}
	time.AfterFunc(delay, func() {
		n.deliver(dest, m)
	})
}

func (n *Network) deliver(dest *Endpoint, m *protocol.Message) {
	if dest.push(m) {
		n.delivered.Inc()
	} else {
		n.dropped.Inc()
	}
}

func (n *Network) sample() (bool, time.Duration) {
	n.randMu.Lock()
	defer n.randMu.Unlock()

	if n.rand.Float64() < n.dropRate {
		return true, 0
	}
	if n.maxDelay <= 0 {
		return false, 0
	}
	return false, time.Duration(n.rand.Int63n(int64(n.maxDelay)))
}

// Endpoint is a Transport connected to the network.
type Endpoint struct {
	id    string
	lossy bool

	network *Network

	inboxCh chan *protocol.Message

	closeCh   chan struct{}
	closeOnce sync.Once
}

func (e *Endpoint) ID() string {
	return e.id
}

func (e *Endpoint) Recv() (*protocol.Message, error) {
	select {
	case m := <-e.inboxCh:
		return m, nil
	case <-e.closeCh:
		return nil, io.EOF
	}
}

func (e *Endpoint) Send(m *protocol.Message) error {
	select {
	case <-e.closeCh:
		return io.ErrClosedPipe
	default:
	}

	e.network.route(e, m)
	return nil
}

// push adds the message to the endpoints inbox. Returns false if the
// endpoint is closed or the inbox is full.
func (e *Endpoint) push(m *protocol.Message) bool {
	select {
	case <-e.closeCh:
		return false
	default:
	}

	select {
	case e.inboxCh <- m:
		return true
	default:
		return false
	}
}

func (e *Endpoint) close() {
	e.closeOnce.Do(func() {
		close(e.closeCh)
	})
}

var _ transport.Transport = &Endpoint{}
