// Package broadcast disseminates values to the nodes adjacent peers.
//
// Engine tracks which values each peer is known to have and which
// propagations are in flight, and decides which peers must be sent a value.
// Tracker runs in the background, resending propagations that aren't
// acknowledged within the retry interval, to guarantee at-least-once
// delivery of each propagation over an unreliable network.
//
// Engine is not thread safe and must be owned by a single goroutine. Engine
// and Tracker only communicate via Trackers mailbox, and the shared
// IDAllocator.
package broadcast
