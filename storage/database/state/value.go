package statedb

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/remote"
)

// Value is a single-record collection, mirrored remotely under remote.SingletonID.
type Value[T any] struct {
	db   *DB
	key  string
	push *pusher

	mu  sync.RWMutex
	val *T
}

func newValue[T any](db *DB, key string) *Value[T] {
	v := &Value[T]{db: db, key: key}
	if db.remote != nil {
		v.push = newPusher(key, db.remote, db.log, db.queueSize)
	}
	return v
}

func (v *Value[T]) Key() string { return v.key }

func (v *Value[T]) pusher() *pusher { return v.push }

// Get returns the value, ok is false if it was never set.
func (v *Value[T]) Get() (val T, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.val == nil {
		return val, false
	}
	return *v.val, true
}

func (v *Value[T]) Set(ctx context.Context, val T) error {
	return v.mutate(ctx, &val)
}

func (v *Value[T]) clear(ctx context.Context) error {
	return v.mutate(ctx, nil)
}

func (v *Value[T]) mutate(ctx context.Context, val *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	prev := v.val
	if prev == nil && val == nil {
		v.mu.Unlock()
		return nil
	}
	v.val = val
	if err := v.persist(); err != nil {
		v.val = prev
		v.mu.Unlock()
		return err
	}

	evType := remote.EventUpdate
	switch {
	case val == nil:
		evType = remote.EventDelete
		v.push.enqueue(pushOp{id: remote.SingletonID})
	default:
		if prev == nil {
			evType = remote.EventInsert
		}
		if row, err := singletonRow(*val); err != nil {
			v.db.log.Error(err.Error(), map[string]interface{}{"collection": v.key})
		} else {
			v.push.enqueue(pushOp{id: remote.SingletonID, row: &row})
		}
	}
	v.mu.Unlock()

	v.db.notify(ChangeEvent{Collection: v.key, Type: evType, ID: remote.SingletonID})
	return nil
}

// persist writes the value to the local storage. v.mu must be held.
func (v *Value[T]) persist() error {
	if v.val == nil {
		return v.db.removeLocal(v.key)
	}
	return v.db.writeLocal(v.key, v.val)
}

func (v *Value[T]) load(ctx context.Context) {
	var val *T
	if tmp := new(T); v.db.readLocal(v.key, tmp) {
		val = tmp
	}

	var fromRemote bool
	if v.db.remote != nil {
		rows, err := v.db.remote.FetchAll(ctx, v.key)
		if err != nil {
			v.db.log.Error("fetching remote record: "+err.Error(), map[string]interface{}{"collection": v.key})
		}
		for _, row := range rows {
			if row.ID != remote.SingletonID {
				continue
			}
			tmp := new(T)
			if err := json.Unmarshal(row.Data, tmp); err != nil {
				v.db.log.Warn("skipping invalid remote record: "+err.Error(), map[string]interface{}{"collection": v.key})
				break
			}
			val, fromRemote = tmp, true
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.val = val
	if fromRemote {
		if err := v.persist(); err != nil {
			v.db.log.Error(err.Error(), map[string]interface{}{"collection": v.key})
		}
	}
}

func (v *Value[T]) apply(ev remote.Event) {
	if ev.Row.ID != remote.SingletonID {
		return
	}

	var val *T
	if ev.Type != remote.EventDelete {
		val = new(T)
		if err := json.Unmarshal(ev.Row.Data, val); err != nil {
			v.db.log.Warn("skipping invalid remote event: "+err.Error(), map[string]interface{}{"collection": v.key})
			return
		}
	}

	v.mu.Lock()
	if (val == nil && v.val == nil) || (val != nil && v.val != nil && sameJSON(*v.val, ev.Row.Data)) {
		v.mu.Unlock() // echo of a local change
		return
	}
	v.val = val
	if err := v.persist(); err != nil {
		v.db.log.Error(err.Error(), map[string]interface{}{"collection": v.key})
	}
	v.mu.Unlock()

	remoteEvents.WithLabelValues(v.key, string(ev.Type)).Inc()
	v.db.notify(ChangeEvent{Collection: v.key, Type: ev.Type, ID: remote.SingletonID, Remote: true})
}

func singletonRow(val interface{}) (remote.Row, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return remote.Row{}, err
	}
	return remote.Row{ID: remote.SingletonID, Data: data, UpdatedAt: core.NowFunc()}, nil
}
