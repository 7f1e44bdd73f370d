// Package notify delivers bot lifecycle and moderation events to observers
// such as status UIs. Delivery is best effort: the moderation loop must
// never block on a slow consumer.
package notify

import "time"

// Event is a single notification.
type Event struct {
	Kind    string
	Message string
	Fields  map[string]any
	Time    time.Time
}

// Event kinds emitted by the bot.
const (
	KindStateChanged    = "state_changed"
	KindCommentAnalyzed = "comment_analyzed"
	KindCommentRemoved  = "comment_removed"
	KindRateLimited     = "rate_limited"
	KindLedgerPublished = "ledger_published"
	KindError           = "error"
)

// Notifier receives events.
type Notifier interface {
	Notify(Event)
}

// Nop discards all events.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(Event) {}

// ChannelNotifier buffers events on a channel for a consumer. Events are
// dropped when the buffer is full.
type ChannelNotifier struct {
	ch chan Event
}

// NewChannelNotifier returns a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{ch: make(chan Event, buffer)}
}

// Notify implements Notifier without blocking.
func (n *ChannelNotifier) Notify(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case n.ch <- e:
	default:
	}
}

// Events returns the consumer side of the buffer.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.ch
}
