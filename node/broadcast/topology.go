package broadcast

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNodeNotInTopology is returned when the topology doesn't contain the
	// local node.
	ErrNodeNotInTopology = errors.New("node not in topology")

	// ErrTopologyApplied is returned when attempting to apply a topology more
	// than once.
	ErrTopologyApplied = errors.New("topology already applied")
)

// PeersOf returns the peers adjacent to the node with the given ID in the
// topology. The returned peers are sorted and deduplicated, and exclude the
// node itself.
func PeersOf(topology map[string][]string, nodeID string) ([]string, error) {
	adjacent, ok := topology[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotInTopology, nodeID)
	}

	peers := make([]string, 0, len(adjacent))
	for _, id := range adjacent {
		if id == nodeID {
			continue
		}
		peers = append(peers, id)
	}
	slices.Sort(peers)
	return slices.Compact(peers), nil
}
