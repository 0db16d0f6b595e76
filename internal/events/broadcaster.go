// Package events fans out repository state changes to subscribers. Delivery
// is best-effort per subscriber: each has a bounded queue, and a subscriber
// whose queue fills is dropped rather than blocking publication to others.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"gitsmart/internal/logging"
)

// Type classifies an event.
type Type string

const (
	TypeStaged     Type = "staged"
	TypeUnstaged   Type = "unstaged"
	TypeDraftReady Type = "draft_ready"
	TypeCommitted  Type = "committed"
	TypeError      Type = "error"
)

// Event is one state-change notification.
type Event struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// queueSize bounds each subscriber's outbound queue.
const queueSize = 64

type subscriber struct {
	id       string
	ch       chan Event
	lastSeen time.Time
}

// Broadcaster maintains the active subscriber set.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]*subscriber)}
}

// Subscribe registers a new subscriber and returns its id and event channel.
// The channel is closed on Unsubscribe, on overflow drop, and on Close.
func (b *Broadcaster) Subscribe() (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	sub := &subscriber{
		id:       id,
		ch:       make(chan Event, queueSize),
		lastSeen: time.Now(),
	}
	if b.closed {
		close(sub.ch)
		return id, sub.ch
	}
	b.subs[id] = sub
	logging.EventsDebug("subscriber %s attached (%d total)", id, len(b.subs))
	return id, sub.ch
}

// Unsubscribe detaches a subscriber. Safe to call for an already-dropped id.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
		logging.EventsDebug("subscriber %s detached (%d left)", id, len(b.subs))
	}
}

// Publish delivers an event to every subscriber. A subscriber with a full
// queue is dropped; publication never blocks.
func (b *Broadcaster) Publish(t Type, payload any) {
	ev := Event{
		ID:      uuid.NewString(),
		Type:    t,
		Payload: payload,
		Time:    time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, sub := range b.subs {
		select {
		case sub.ch <- ev:
			sub.lastSeen = ev.Time
		default:
			delete(b.subs, id)
			close(sub.ch)
			logging.EventsWarn("subscriber %s stalled; dropped", id)
		}
	}
}

// Len returns the active subscriber count.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches every subscriber and rejects further publication.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
