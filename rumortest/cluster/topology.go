package cluster

import (
	"fmt"
)

type TopologyKind string

const (
	// TopologyLine connects each node to the node before and after it.
	TopologyLine TopologyKind = "line"
	// TopologyRing is a line where the first and last nodes are connected.
	TopologyRing TopologyKind = "ring"
	// TopologyStar connects the first node to all other nodes.
	TopologyStar TopologyKind = "star"
	// TopologyFull connects every node to every other node.
	TopologyFull TopologyKind = "full"
)

// Topology returns the topology of the given kind for the nodes. Each node
// in the topology maps to its adjacent peers, where adjacency is symmetric.
func Topology(kind TopologyKind, nodeIDs []string) (map[string][]string, error) {
	topology := make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		topology[id] = []string{}
	}

	connect := func(a, b string) {
		topology[a] = append(topology[a], b)
		topology[b] = append(topology[b], a)
	}

	switch kind {
	case TopologyLine:
		for i := 1; i < len(nodeIDs); i++ {
			connect(nodeIDs[i-1], nodeIDs[i])
		}
	case TopologyRing:
		for i := 1; i < len(nodeIDs); i++ {
			connect(nodeIDs[i-1], nodeIDs[i])
		}
		// With two nodes the ring is already closed.
		if len(nodeIDs) > 2 {
			connect(nodeIDs[len(nodeIDs)-1], nodeIDs[0])
		}
	case TopologyStar:
		for i := 1; i < len(nodeIDs); i++ {
			connect(nodeIDs[0], nodeIDs[i])
		}
	case TopologyFull:
		for i := 0; i < len(nodeIDs); i++ {
			for j := i + 1; j < len(nodeIDs); j++ {
				connect(nodeIDs[i], nodeIDs[j])
			}
		}
	default:
		return nil, fmt.Errorf("unsupported topology: %s", kind)
	}

	return topology, nil
}
