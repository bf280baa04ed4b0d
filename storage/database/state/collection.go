package statedb

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/remote"
)

var (
	// errors
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Entity is a record of a Collection.
type Entity interface {
	GetID() string
}

// Collection is the in-memory source of truth of one entity type.
// Every mutation is written to the local storage before returning, then pushed to the remote backend asynchronously.
// Queries are linear scans over a copy of the records.
type Collection[T Entity] struct {
	db   *DB
	key  string
	push *pusher

	mu    sync.RWMutex
	items []T
}

func newCollection[T Entity](db *DB, key string) *Collection[T] {
	c := &Collection[T]{db: db, key: key, items: []T{}}
	if db.remote != nil {
		c.push = newPusher(key, db.remote, db.log, db.queueSize)
	}
	return c
}

func (c *Collection[T]) Key() string { return c.key }

func (c *Collection[T]) pusher() *pusher { return c.push }

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// All returns a copy of the records, in insertion order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(make([]T, 0, len(c.items)), c.items...)
}

func (c *Collection[T]) Filter(match func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0)
	for _, item := range c.items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out
}

// Find returns the first record matching.
func (c *Collection[T]) Find(match func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, item := range c.items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (c *Collection[T]) Get(id string) (T, bool) {
	return c.Find(func(item T) bool { return item.GetID() == id })
}

// Add appends a new record.
func (c *Collection[T]) Add(ctx context.Context, item T) error {
	return c.mutate(ctx, func(items []T) ([]T, []change, error) {
		if indexOf(items, item.GetID()) >= 0 {
			return nil, nil, ErrExists
		}
		return append(clone(items), item), []change{{remote.EventInsert, item}}, nil
	})
}

// Update replaces an existing record.
func (c *Collection[T]) Update(ctx context.Context, item T) error {
	return c.mutate(ctx, func(items []T) ([]T, []change, error) {
		i := indexOf(items, item.GetID())
		if i < 0 {
			return nil, nil, ErrNotFound
		}
		next := clone(items)
		next[i] = item
		return next, []change{{remote.EventUpdate, item}}, nil
	})
}

// Put adds or replaces a record.
func (c *Collection[T]) Put(ctx context.Context, item T) error {
	return c.mutate(ctx, func(items []T) ([]T, []change, error) {
		next := clone(items)
		if i := indexOf(items, item.GetID()); i >= 0 {
			next[i] = item
			return next, []change{{remote.EventUpdate, item}}, nil
		}
		return append(next, item), []change{{remote.EventInsert, item}}, nil
	})
}

// Delete removes the records with the given IDs, returning how many were found.
func (c *Collection[T]) Delete(ctx context.Context, ids ...string) (int, error) {
	var n int
	err := c.mutate(ctx, func(items []T) ([]T, []change, error) {
		next, removed := remove(items, func(item T) bool { return core.Contains(ids, item.GetID()) })
		n = len(removed)
		return next, removed, nil
	})
	return n, err
}

// clear removes every record.
func (c *Collection[T]) clear(ctx context.Context) error {
	return c.mutate(ctx, func(items []T) ([]T, []change, error) {
		_, removed := remove(items, func(T) bool { return true })
		return []T{}, removed, nil
	})
}

type change struct {
	typ  remote.EventType
	item Entity
}

// mutate applies fn to the records: memory, then local storage (restoring memory on failure), then remote.
func (c *Collection[T]) mutate(ctx context.Context, fn func(items []T) ([]T, []change, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	next, changes, err := fn(c.items)
	if err != nil || len(changes) == 0 {
		c.mu.Unlock()
		return err
	}
	prev := c.items
	c.items = next
	if err = c.persist(); err != nil {
		c.items = prev
		c.mu.Unlock()
		return err
	}
	c.push.enqueue(c.db.pushOps(c.key, changes)...)
	c.mu.Unlock()

	for _, ch := range changes {
		c.db.notify(ChangeEvent{Collection: c.key, Type: ch.typ, ID: ch.item.GetID()})
	}
	return nil
}

// persist writes all the records to the local storage. c.mu must be held.
func (c *Collection[T]) persist() error {
	return c.db.writeLocal(c.key, c.items)
}

// load reads the local records, then replaces them with the remote ones if there are any.
func (c *Collection[T]) load(ctx context.Context) {
	items := []T{}
	if found := c.db.readLocal(c.key, &items); !found || items == nil {
		items = []T{}
	}

	var fromRemote bool
	if c.db.remote != nil {
		rows, err := c.db.remote.FetchAll(ctx, c.key)
		if err != nil {
			c.db.log.Error("fetching remote records: "+err.Error(), map[string]interface{}{"collection": c.key})
		} else if len(rows) > 0 {
			items = make([]T, 0, len(rows))
			for _, row := range rows {
				var item T
				if err := json.Unmarshal(row.Data, &item); err != nil {
					c.db.log.Warn("skipping invalid remote record: "+err.Error(), map[string]interface{}{"collection": c.key, "id": row.ID})
					continue
				}
				items = append(items, item)
			}
			fromRemote = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	if fromRemote {
		if err := c.persist(); err != nil {
			c.db.log.Error(err.Error(), map[string]interface{}{"collection": c.key})
		}
	}
}

// apply merges a remote change: the record with the same ID is replaced (or appended) or removed.
func (c *Collection[T]) apply(ev remote.Event) {
	id := ev.Row.ID

	c.mu.Lock()
	i := indexOf(c.items, id)
	var next []T
	switch ev.Type {
	case remote.EventDelete:
		if i < 0 {
			c.mu.Unlock()
			return
		}
		next, _ = remove(c.items, func(item T) bool { return item.GetID() == id })
	default:
		var item T
		if err := json.Unmarshal(ev.Row.Data, &item); err != nil || item.GetID() == "" {
			c.mu.Unlock()
			c.db.log.Warn("skipping invalid remote event", map[string]interface{}{"collection": c.key, "id": id, "error": err})
			return
		}
		if i >= 0 {
			if sameJSON(c.items[i], ev.Row.Data) {
				c.mu.Unlock() // echo of a local change
				return
			}
			next = clone(c.items)
			next[i] = item
		} else {
			next = append(clone(c.items), item)
		}
	}
	c.items = next
	if err := c.persist(); err != nil {
		c.db.log.Error(err.Error(), map[string]interface{}{"collection": c.key})
	}
	c.mu.Unlock()

	remoteEvents.WithLabelValues(c.key, string(ev.Type)).Inc()
	c.db.notify(ChangeEvent{Collection: c.key, Type: ev.Type, ID: id, Remote: true})
}

// sameJSON reports whether v encodes to the same JSON document as data,
// regardless of key order and whitespace.
func sameJSON(v interface{}, data []byte) bool {
	cur, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var a, b interface{}
	if json.Unmarshal(cur, &a) != nil || json.Unmarshal(data, &b) != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func indexOf[T Entity](items []T, id string) int {
	for i, item := range items {
		if item.GetID() == id {
			return i
		}
	}
	return -1
}

func clone[T any](items []T) []T {
	return append(make([]T, 0, len(items)+1), items...)
}

// remove returns the records not matching, and a delete change per removed record.
func remove[T Entity](items []T, match func(T) bool) ([]T, []change) {
	next := make([]T, 0, len(items))
	var removed []change
	for _, item := range items {
		if match(item) {
			removed = append(removed, change{remote.EventDelete, item})
		} else {
			next = append(next, item)
		}
	}
	return next, removed
}
