package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("remote backend closed")

// Broker is an in-process Backend: clients sharing a Broker see each other's changes.
type Broker struct {
	mu     sync.RWMutex
	tables map[string]map[string]brokerRow
	seq    int
	fanout *Fanout
	closed bool
}

type brokerRow struct {
	Row
	seq int // insertion order
}

var _ Backend = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{
		tables: make(map[string]map[string]brokerRow),
		fanout: NewFanout(),
	}
}

func (b *Broker) FetchAll(_ context.Context, collection string) ([]Row, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	rows := make([]brokerRow, 0, len(b.tables[collection]))
	for _, r := range b.tables[collection] {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Row
	}
	return out, nil
}

func (b *Broker) Upsert(_ context.Context, collection string, row Row) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	table := b.tables[collection]
	if table == nil {
		table = make(map[string]brokerRow)
		b.tables[collection] = table
	}
	evType := EventUpdate
	prev, ok := table[row.ID]
	if !ok {
		evType = EventInsert
		b.seq++
		prev.seq = b.seq
	}
	table[row.ID] = brokerRow{Row: row, seq: prev.seq}
	b.mu.Unlock()

	b.fanout.Publish(Event{Type: evType, Collection: collection, Row: row})
	return nil
}

func (b *Broker) Delete(_ context.Context, collection, id string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	_, ok := b.tables[collection][id]
	delete(b.tables[collection], id)
	b.mu.Unlock()

	if ok {
		b.fanout.Publish(Event{Type: EventDelete, Collection: collection, Row: Row{ID: id}})
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, collection string) (<-chan Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.fanout.Add(ctx, collection), nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.fanout.Close()
	}
	return nil
}
