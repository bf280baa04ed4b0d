// Package remote defines the hosted mirror of the local state: one row per entity, grouped by collection.
package remote

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// SingletonID is the row ID of single-record collections.
const SingletonID = "singleton"

// Row is an entity serialized whole in Data.
type Row struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Event is a change pushed by the backend. Row.Data is empty for deletes.
type Event struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	Row        Row       `json:"row"`
}

// Backend is a remote store with change subscriptions.
// Nothing orders writes from different clients: the last writer wins.
type Backend interface {
	FetchAll(ctx context.Context, collection string) ([]Row, error)
	Upsert(ctx context.Context, collection string, row Row) error
	Delete(ctx context.Context, collection, id string) error
	// Subscribe streams the changes of collection until ctx is done.
	Subscribe(ctx context.Context, collection string) (<-chan Event, error)
	Close() error
}

// subscription buffer; slower subscribers miss events
const eventBuffer = 256

// Fanout dispatches events to the subscribers of their collection.
type Fanout struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	done   chan struct{}
	closed bool
}

func NewFanout() *Fanout {
	return &Fanout{subs: make(map[string]map[chan Event]struct{}), done: make(chan struct{})}
}

// Add registers a subscriber of collection, removed (and its channel closed) when ctx is done.
func (f *Fanout) Add(ctx context.Context, collection string) <-chan Event {
	ch := make(chan Event, eventBuffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[chan Event]struct{})
	}
	f.subs[collection][ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[collection][ch]; ok {
			delete(f.subs[collection], ch)
			close(ch)
		}
	}()
	return ch
}

// Publish never blocks.
func (f *Fanout) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[ev.Collection] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of subscribers of collection.
func (f *Fanout) Len(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[collection])
}

// Close closes every subscription.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, chans := range f.subs {
		for ch := range chans {
			close(ch)
		}
	}
	f.subs = make(map[string]map[chan Event]struct{})
	f.closed = true
	close(f.done)
}
