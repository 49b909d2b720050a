package broadcast

import (
	"go.uber.org/atomic"

	"github.com/andydunstall/rumor/pkg/protocol"
)

// IDAllocator allocates message IDs for outbound messages.
//
// IDs are strictly increasing and never reused. IDAllocator is safe to use
// concurrently.
type IDAllocator struct {
	last *atomic.Uint64
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		last: atomic.NewUint64(0),
	}
}

// Next returns a new message ID. The first ID is 1.
func (a *IDAllocator) Next() protocol.MessageID {
	return protocol.MessageID(a.last.Inc())
}
