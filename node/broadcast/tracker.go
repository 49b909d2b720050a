package broadcast

import (
	"container/list"
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/protocol"
)

// Resend is a tracked message that was resent with a new message ID since it
// wasn't acknowledged within the retry interval.
type Resend struct {
	// PrevID is the message ID of the previous attempt.
	PrevID protocol.MessageID

	// Message is the message to resend, which has a new message ID.
	Message *protocol.Message
}

type trackedMessage struct {
	id     protocol.MessageID
	msg    *protocol.Message
	sentAt time.Time
}

// TrackerStatus contains the size of the trackers queues.
type TrackerStatus struct {
	// Tracked is the number of queued messages, including cancelled messages
	// that haven't yet been discarded.
	Tracked int64 `json:"tracked"`

	// CancelTokens is the number of cancellations waiting to be consumed.
	CancelTokens int64 `json:"cancel_tokens"`
}

// Tracker resends tracked messages that aren't acknowledged within the retry
// interval, until tracking is cancelled.
//
// Each resend is allocated a new message ID and moved to the back of the
// queue so a message that is never acknowledged doesn't delay the others.
//
// Track and Cancel are safe to call concurrently and never block. Actions
// are applied in the order they are issued.
type Tracker struct {
	interval time.Duration

	ids *IDAllocator

	mailbox  *mailbox
	resendCh chan Resend

	// queue contains tracked messages ordered by send time, oldest first.
	queue *list.List
	// queued indexes the queue elements by message ID.
	queued map[protocol.MessageID]*list.Element
	// cancelled contains message IDs whose tracking was cancelled, but
	// haven't yet been discarded from the queue, or haven't been tracked yet.
	cancelled map[protocol.MessageID]struct{}
	// maxSeen is the largest message ID that has been tracked or
	// allocated for a resend.
	maxSeen protocol.MessageID

	// queue, queued, cancelled and maxSeen are only accessed by the Run
	// goroutine.

	tracked      *atomic.Int64
	cancelTokens *atomic.Int64

	metrics *Metrics

	logger log.Logger
}

func NewTracker(
	interval time.Duration,
	ids *IDAllocator,
	metrics *Metrics,
	logger log.Logger,
) *Tracker {
	return &Tracker{
		interval:     interval,
		ids:          ids,
		mailbox:      newMailbox(),
		resendCh:     make(chan Resend),
		queue:        list.New(),
		queued:       make(map[protocol.MessageID]*list.Element),
		cancelled:    make(map[protocol.MessageID]struct{}),
		tracked:      atomic.NewInt64(0),
		cancelTokens: atomic.NewInt64(0),
		metrics:      metrics,
		logger:       logger.WithSubsystem("broadcast.tracker"),
	}
}

// Track starts tracking the given message, which was just sent. The message
// body must be a request.
func (t *Tracker) Track(m *protocol.Message) {
	req, ok := m.Body.(protocol.Request)
	if !ok {
		t.logger.Warn(
			"track: message not a request",
			zap.String("type", string(m.Body.Type())),
		)
		return
	}

	t.mailbox.Push(action{
		Type:      actionTrack,
		Message:   m,
		ID:        req.RequestID(),
		Timestamp: time.Now(),
	})
}

// Cancel stops tracking the message with the given ID.
//
// Cancelling a message that isn't yet tracked will discard the message when
// it is tracked. Cancelling a message that can no longer be tracked, such as
// it was already resent with a new ID, does nothing.
func (t *Tracker) Cancel(id protocol.MessageID) {
	t.mailbox.Push(action{
		Type:      actionCancel,
		ID:        id,
		Timestamp: time.Now(),
	})
}

// Resends returns a channel that receives messages that must be resent.
func (t *Tracker) Resends() <-chan Resend {
	return t.resendCh
}

func (t *Tracker) Status() TrackerStatus {
	return TrackerStatus{
		Tracked:      t.tracked.Load(),
		CancelTokens: t.cancelTokens.Load(),
	}
}

// Run processes actions and resends unacknowledged messages until the context
// is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	for {
		t.apply(t.mailbox.Drain())

		elem, ok := t.head()
		if !ok {
			// Wait for a message to be tracked.
			select {
			case <-t.mailbox.Notify():
				continue
			case <-ctx.Done():
				return
			}
		}

		elapsed := time.Since(elem.Value.(*trackedMessage).sentAt)
		if elapsed >= t.interval {
			if err := t.resend(ctx, elem); err != nil {
				return
			}
			continue
		}

		// Wait until the oldest message is due, or there are new actions
		// which may cancel it.
		timer := time.NewTimer(t.interval - elapsed)
		select {
		case <-timer.C:
		case <-t.mailbox.Notify():
		case <-ctx.Done():
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

func (t *Tracker) apply(actions []action) {
	if len(actions) == 0 {
		return
	}

	for _, a := range actions {
		switch a.Type {
		case actionTrack:
			t.track(a.ID, a.Message, a.Timestamp)
		case actionCancel:
			t.cancel(a.ID)
		}
	}

	t.updateStatus()
}

func (t *Tracker) track(id protocol.MessageID, m *protocol.Message, sentAt time.Time) {
	if id > t.maxSeen {
		t.maxSeen = id
	}

	if _, ok := t.cancelled[id]; ok {
		// Cancelled before being tracked so discard.
		delete(t.cancelled, id)
		return
	}
	if _, ok := t.queued[id]; ok {
		return
	}

	tracked := &trackedMessage{
		id:     id,
		msg:    m,
		sentAt: sentAt,
	}

	// Keep the queue ordered by send time. Messages are almost always
	// tracked in order, so search from the back.
	for e := t.queue.Back(); e != nil; e = e.Prev() {
		if !e.Value.(*trackedMessage).sentAt.After(sentAt) {
			t.queued[id] = t.queue.InsertAfter(tracked, e)
			return
		}
	}
	t.queued[id] = t.queue.PushFront(tracked)
}

func (t *Tracker) cancel(id protocol.MessageID) {
	if _, ok := t.queued[id]; ok {
		// The message is discarded when it reaches the front of the queue.
		t.cancelled[id] = struct{}{}
		return
	}

	// Message IDs are tracked in the order they are allocated, so if we've
	// already seen a larger ID then this message can never be tracked.
	if id > t.maxSeen {
		t.cancelled[id] = struct{}{}
		return
	}

	t.logger.Debug("cancel: message not tracked", zap.Uint64("id", uint64(id)))
}

// head returns the oldest tracked message, discarding any cancelled messages
// at the front of the queue.
func (t *Tracker) head() (*list.Element, bool) {
	discarded := false
	for {
		elem := t.queue.Front()
		if elem == nil {
			if discarded {
				t.updateStatus()
			}
			return nil, false
		}

		tracked := elem.Value.(*trackedMessage)
		if _, ok := t.cancelled[tracked.id]; !ok {
			if discarded {
				t.updateStatus()
			}
			return elem, true
		}

		t.queue.Remove(elem)
		delete(t.queued, tracked.id)
		delete(t.cancelled, tracked.id)
		discarded = true
	}
}

func (t *Tracker) resend(ctx context.Context, elem *list.Element) error {
	tracked := elem.Value.(*trackedMessage)

	id := t.ids.Next()
	if id > t.maxSeen {
		t.maxSeen = id
	}
	// Track only accepts requests so this can't fail.
	m, _ := tracked.msg.WithRequestID(id)

	prevID := tracked.id
	delete(t.queued, prevID)

	tracked.id = id
	tracked.msg = m
	tracked.sentAt = time.Now()
	t.queued[id] = elem
	t.queue.MoveToBack(elem)

	t.metrics.Resends.Inc()

	t.logger.Debug(
		"resending message",
		zap.String("dest", m.Dest),
		zap.Uint64("prev-id", uint64(prevID)),
		zap.Uint64("id", uint64(id)),
	)

	select {
	case t.resendCh <- Resend{PrevID: prevID, Message: m}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) updateStatus() {
	t.tracked.Store(int64(len(t.queued)))
	t.cancelTokens.Store(int64(len(t.cancelled)))
	t.metrics.TrackedMessages.Set(float64(len(t.queued)))
}

var _ Canceller = &Tracker{}
