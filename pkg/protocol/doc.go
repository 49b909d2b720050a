// Package protocol defines the messages exchanged between nodes and clients.
//
// Each message is an envelope containing the source and destination node IDs
// and a body, where the body is tagged with a 'type' discriminator. Messages
// are encoded as single-line JSON.
package protocol
