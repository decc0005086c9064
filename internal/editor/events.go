package editor

import (
	"sync"
	"time"
)

// EventType names what changed in a session
type EventType string

const (
	EventContent  EventType = "content"
	EventSnapshot EventType = "snapshot"
	EventHistory  EventType = "history"
	EventGrammar  EventType = "grammar"
	EventPreview  EventType = "preview"
	EventStatus   EventType = "status"
	EventClosed   EventType = "closed"
)

// Event is pushed to subscribers after a session change
type Event struct {
	Type     EventType `json:"type"`
	Session  string    `json:"session"`
	Position string    `json:"position"`
	Cursor   int       `json:"cursor"`
	Len      int       `json:"len"`
	Label    string    `json:"label,omitempty"`
	Status   string    `json:"status,omitempty"`
	At       time.Time `json:"at"`
}

const subscriberBuffer = 32

// feed fans events out to subscribers. Slow subscribers lose events rather
// than block the session.
type feed struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[int]chan Event)}
}

func (f *feed) subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	id := f.next
	f.next++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
}

func (f *feed) publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// close delivers ev and closes every subscriber channel
func (f *feed) close(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
		close(ch)
		delete(f.subs, id)
	}
}
