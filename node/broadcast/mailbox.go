package broadcast

import (
	"sync"
	"time"

	"github.com/andydunstall/rumor/pkg/protocol"
)

type actionType int

const (
	actionTrack actionType = iota + 1
	actionCancel
)

type action struct {
	Type actionType

	// Message is the tracked message for track actions.
	Message *protocol.Message
	// ID is the message ID to track or cancel.
	ID protocol.MessageID
	// Timestamp is the time the action was issued.
	Timestamp time.Time
}

// mailbox is an unbounded FIFO queue of actions.
//
// Pushing never blocks. The receiver waits on Notify then drains all queued
// actions.
type mailbox struct {
	actions []action

	// mu protects the above fields.
	mu sync.Mutex

	// notifyCh has a buffer of one, so a push while the receiver isn't
	// waiting is still observed.
	notifyCh chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		notifyCh: make(chan struct{}, 1),
	}
}

func (m *mailbox) Push(a action) {
	m.mu.Lock()
	m.actions = append(m.actions, a)
	m.mu.Unlock()

	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
}

// Drain removes and returns all queued actions in the order they were
// pushed.
func (m *mailbox) Drain() []action {
	m.mu.Lock()
	defer m.mu.Unlock()

	actions := m.actions
	m.actions = nil
	return actions
}

// Notify returns a channel that is signalled after actions are pushed.
func (m *mailbox) Notify() <-chan struct{} {
	return m.notifyCh
}
