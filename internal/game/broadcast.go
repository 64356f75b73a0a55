package game

import "sync"

// MessageKind distinguishes full-state snapshots from ephemeral events on
// the broadcast feed.
type MessageKind int

const (
	// KindSnapshot carries the serialized session state. Each connection
	// wraps it with its own seat context before forwarding.
	KindSnapshot MessageKind = iota
	// KindEvent carries a pre-encoded protocol envelope forwarded verbatim
	// (dice rolls, reveals, restart notices).
	KindEvent
)

// Message is one item on a session's broadcast feed.
type Message struct {
	Kind    MessageKind
	Payload []byte
}

// DefaultBroadcastBuffer is the per-subscriber channel capacity.
const DefaultBroadcastBuffer = 64

// Broadcaster fans messages out to all current subscribers of one session.
// Buffers are bounded; when a subscriber's buffer is full the oldest
// message is dropped so slow consumers can never stall publishers. A
// delivered snapshot therefore always reflects a fully-consistent state,
// though intermediate snapshots may be skipped.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Message
	nextID int
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber
// buffer capacity. A non-positive capacity falls back to the default.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBroadcastBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]chan Message),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. Unsubscribing closes the channel; it is safe to
// call the returned function more than once.
func (b *Broadcaster) Subscribe() (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Message, b.buffer)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish delivers msg to every current subscriber, evicting the oldest
// buffered message of any subscriber that has fallen behind.
func (b *Broadcaster) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		for {
			select {
			case ch <- msg:
			default:
				// Buffer full: drop the oldest and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
