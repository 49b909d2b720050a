package broadcast

import (
	"slices"

	"github.com/andydunstall/rumor/pkg/protocol"
)

// adjacency is the local nodes view of an adjacent peer.
//
// A value is never both known by the peer and pending to the peer.
type adjacency struct {
	id string

	// known contains the values the peer has acknowledged.
	known map[protocol.Value]struct{}

	// pending contains the in-flight propagations to the peer that haven't
	// been acknowledged, keyed by the message ID of the latest attempt.
	pending map[protocol.MessageID]protocol.Value
	// inflight indexes pending by value.
	inflight map[protocol.Value]protocol.MessageID
}

func newAdjacency(id string) *adjacency {
	return &adjacency{
		id:       id,
		known:    make(map[protocol.Value]struct{}),
		pending:  make(map[protocol.MessageID]protocol.Value),
		inflight: make(map[protocol.Value]protocol.MessageID),
	}
}

// NeedsValue returns whether the value must be sent to the peer, meaning the
// peer hasn't acknowledged it and there is no propagation in flight.
func (a *adjacency) NeedsValue(v protocol.Value) bool {
	if _, ok := a.known[v]; ok {
		return false
	}
	if _, ok := a.inflight[v]; ok {
		return false
	}
	return true
}

// Send records a propagation of the value with the given message ID.
func (a *adjacency) Send(id protocol.MessageID, v protocol.Value) {
	a.pending[id] = v
	a.inflight[v] = id
}

// Ack resolves the pending propagation with the given message ID, marking
// its value as known by the peer. Returns false if the message isn't
// pending.
func (a *adjacency) Ack(id protocol.MessageID) (protocol.Value, bool) {
	v, ok := a.pending[id]
	if !ok {
		return 0, false
	}
	delete(a.pending, id)
	delete(a.inflight, v)
	a.known[v] = struct{}{}
	return v, true
}

// Rekey replaces the pending propagation with message ID prev with next,
// after the propagation has been resent. Returns false if prev isn't
// pending.
func (a *adjacency) Rekey(prev, next protocol.MessageID) bool {
	v, ok := a.pending[prev]
	if !ok {
		return false
	}
	delete(a.pending, prev)
	a.pending[next] = v
	a.inflight[v] = next
	return true
}

// PeerStatus contains the known state of an adjacent peer.
type PeerStatus struct {
	ID string `json:"id"`
	// Known contains the values the peer has acknowledged, sorted.
	Known []protocol.Value `json:"known"`
	// Pending contains the in-flight propagations keyed by message ID.
	Pending map[protocol.MessageID]protocol.Value `json:"pending"`
}

func (a *adjacency) Status() PeerStatus {
	known := make([]protocol.Value, 0, len(a.known))
	for v := range a.known {
		known = append(known, v)
	}
	slices.Sort(known)

	pending := make(map[protocol.MessageID]protocol.Value, len(a.pending))
	for id, v := range a.pending {
		pending[id] = v
	}

	return PeerStatus{
		ID:      a.id,
		Known:   known,
		Pending: pending,
	}
}
