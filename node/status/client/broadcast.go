package client

import (
	"encoding/json"
	"fmt"

	"github.com/andydunstall/rumor/node/broadcast"
	"github.com/andydunstall/rumor/pkg/protocol"
)

type Broadcast struct {
	client *Client
}

func NewBroadcast(client *Client) *Broadcast {
	return &Broadcast{
		client: client,
	}
}

// Known returns the values known by the node.
func (c *Broadcast) Known() ([]protocol.Value, error) {
	r, err := c.client.Request("/status/broadcast/known")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var known []protocol.Value
	if err := json.NewDecoder(r).Decode(&known); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return known, nil
}

// Peers returns the node's view of each adjacent peer.
func (c *Broadcast) Peers() ([]broadcast.PeerStatus, error) {
	r, err := c.client.Request("/status/broadcast/peers")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var peers []broadcast.PeerStatus
	if err := json.NewDecoder(r).Decode(&peers); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return peers, nil
}

func (c *Broadcast) Tracker() (broadcast.TrackerStatus, error) {
	r, err := c.client.Request("/status/broadcast/tracker")
	if err != nil {
		return broadcast.TrackerStatus{}, err
	}
	defer r.Close()

	var status broadcast.TrackerStatus
	if err := json.NewDecoder(r).Decode(&status); err != nil {
		return broadcast.TrackerStatus{}, fmt.Errorf("decode response: %w", err)
	}
	return status, nil
}
