package broadcast

import (
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/protocol"
)

// Canceller cancels tracking of a message.
type Canceller interface {
	// Cancel stops tracking the message with the given ID. Cancel must not
	// block.
	Cancel(id protocol.MessageID)
}

// Engine owns the set of values known by the local node and the state of
// each adjacent peer, and decides which peers must be sent a value.
//
// Engine is not thread safe.
type Engine struct {
	localID string

	known map[protocol.Value]struct{}

	// peers contains the adjacent peers sorted by ID. peers is only set when
	// the topology is applied and never resized.
	peers     []*adjacency
	peerIndex map[string]int

	topologyApplied bool

	ids       *IDAllocator
	canceller Canceller

	metrics *Metrics

	logger log.Logger
}

func NewEngine(
	localID string,
	ids *IDAllocator,
	canceller Canceller,
	metrics *Metrics,
	logger log.Logger,
) *Engine {
	return &Engine{
		localID:   localID,
		known:     make(map[protocol.Value]struct{}),
		peerIndex: make(map[string]int),
		ids:       ids,
		canceller: canceller,
		metrics:   metrics,
		logger:    logger.WithSubsystem("broadcast.engine"),
	}
}

// ApplyTopology sets the peers adjacent to the local node.
//
// The topology can only be applied once. Returns ErrTopologyApplied if it
// has already been applied.
func (e *Engine) ApplyTopology(peers []string) error {
	if e.topologyApplied {
		return ErrTopologyApplied
	}
	e.topologyApplied = true

	sorted := slices.Clone(peers)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	e.peers = make([]*adjacency, 0, len(sorted))
	for _, id := range sorted {
		if id == e.localID {
			continue
		}
		e.peerIndex[id] = len(e.peers)
		e.peers = append(e.peers, newAdjacency(id))
	}

	e.logger.Info(
		"applied topology",
		zap.Strings("peers", sorted),
	)

	return nil
}

// HandleBroadcast adds the value to the local nodes known values and returns
// the propagations to send to the peers that need the value.
//
// A peer needs the value if it hasn't acknowledged the value and there is no
// propagation of the value to the peer already in flight. The caller is
// responsible for sending the returned propagations and tracking them for
// retries.
//
// Returns whether the value was not already known.
func (e *Engine) HandleBroadcast(v protocol.Value) (bool, []*protocol.Message) {
	_, known := e.known[v]
	e.known[v] = struct{}{}

	e.metrics.BroadcastsInbound.WithLabelValues(strconv.FormatBool(!known)).Inc()
	e.metrics.KnownValues.Set(float64(len(e.known)))

	var propagations []*protocol.Message
	for _, peer := range e.peers {
		if !peer.NeedsValue(v) {
			continue
		}

		id := e.ids.Next()
		peer.Send(id, v)

		propagations = append(propagations, &protocol.Message{
			Src:  e.localID,
			Dest: peer.id,
			Body: &protocol.Broadcast{
				MsgID:   id,
				Message: v,
			},
		})
	}

	if len(propagations) > 0 {
		e.metrics.PropagationsOutbound.Add(float64(len(propagations)))
		e.metrics.PendingPropagations.Add(float64(len(propagations)))

		e.logger.Debug(
			"propagating value",
			zap.Int("value", int(v)),
			zap.Int("peers", len(propagations)),
		)
	}

	return !known, propagations
}

// HandleAcknowledgment handles an acknowledgment from the peer for the
// propagation with the given message ID, marking the propagated value as
// known by the peer.
//
// Acknowledgments from unknown peers or for unknown message IDs, such as
// duplicate or stale acknowledgments, are ignored. Tracking of the message
// is cancelled either way.
//
// Returns whether the acknowledgment resolved a pending propagation.
func (e *Engine) HandleAcknowledgment(peerID string, id protocol.MessageID) bool {
	e.canceller.Cancel(id)

	resolved := false
	if peer, ok := e.peer(peerID); ok {
		var v protocol.Value
		v, resolved = peer.Ack(id)
		if resolved {
			e.metrics.PendingPropagations.Dec()
			e.logger.Debug(
				"peer acknowledged value",
				zap.String("peer", peerID),
				zap.Int("value", int(v)),
			)
		}
	}

	e.metrics.AcksInbound.WithLabelValues(strconv.FormatBool(resolved)).Inc()
	return resolved
}

// HandleRead returns a snapshot of the values known by the local node,
// sorted.
func (e *Engine) HandleRead() []protocol.Value {
	values := make([]protocol.Value, 0, len(e.known))
	for v := range e.known {
		values = append(values, v)
	}
	slices.Sort(values)
	return values
}

// Resent updates the pending propagation to the peer with message ID prev
// to use message ID next, after the propagation was resent with the new ID.
//
// Returns false if the propagation is no longer pending, meaning it has
// already been acknowledged, so the resend can be discarded.
func (e *Engine) Resent(peerID string, prev, next protocol.MessageID) bool {
	peer, ok := e.peer(peerID)
	if !ok {
		return false
	}
	return peer.Rekey(prev, next)
}

// Peers returns the status of each adjacent peer.
func (e *Engine) Peers() []PeerStatus {
	statuses := make([]PeerStatus, 0, len(e.peers))
	for _, peer := range e.peers {
		statuses = append(statuses, peer.Status())
	}
	return statuses
}

func (e *Engine) peer(id string) (*adjacency, bool) {
	i, ok := e.peerIndex[id]
	if !ok {
		return nil, false
	}
	return e.peers[i], true
}
