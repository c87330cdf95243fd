package event

import (
	"sync"
	"time"
)

// Type names a state change pushed to external listeners.
type Type string

const (
	StateChanged   Type = "state_changed"
	RoundStarted   Type = "round_started"
	RoundSkipped   Type = "round_skipped"
	WinnerSelected Type = "winner_selected"
	PayoutSettled  Type = "payout_settled"
	PayoutFailed   Type = "payout_failed"
	PotUpdated     Type = "pot_updated"
	HoldersUpdated Type = "holders_updated"
)

// Event is the structured payload delivered on every transition. Delivery is
// best-effort; the engine's correctness never depends on listener receipt.
type Event struct {
	Type            Type
	At              time.Time
	RoundID         string
	State           string
	Pot             uint64
	Winner          string
	WinnerPayout    uint64
	CreatorPayout   uint64
	Settlement      string
	EligibleHolders int
	TotalHolders    int
	Message         string
}

// Bus fans events out to subscriber channels. A slow subscriber drops
// events rather than blocking the publisher.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewBus() *Bus { return &Bus{} }

// Subscribe returns a buffered channel receiving all future events.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers e to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default: // subscriber too slow, drop
		}
	}
}
