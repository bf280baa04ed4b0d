// Package statedb holds the application state: an in-memory collection per entity,
// mirrored to the local storage on every change and, optionally, to a remote backend.
package statedb

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/material"
	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/settings"
	"github.com/trezcool/academia/core/staff"
	"github.com/trezcool/academia/core/student"
	localstore "github.com/trezcool/academia/storage/local"
	"github.com/trezcool/academia/storage/remote"
)

// local storage keys, also used as remote collection names
const (
	KeyStudents      = "students"
	KeySessions      = "sessions"
	KeyMessages      = "messages"
	KeyGroupMessages = "groupMessages"
	KeyMaterials     = "materials"
	KeyStaffProfiles = "staffProfiles"
	KeySiteSettings  = "siteSettings"
	KeyAuth          = "auth"
)

const defaultQueueSize = 256

// ClearAllConfirmation must be typed by users to confirm ClearAll.
const ClearAllConfirmation = "DELETE ALL DATA"

type (
	Options struct {
		Local localstore.Storage
		// Remote is optional: without it the state only lives locally.
		Remote    remote.Backend
		Logger    core.Logger
		QueueSize int // remote writes buffered per collection
	}

	// ChangeEvent notifies a change of the state, local or merged from the remote backend.
	ChangeEvent struct {
		Collection string           `json:"collection"`
		Type       remote.EventType `json:"type"`
		ID         string           `json:"id"`
		Remote     bool             `json:"remote"`
	}

	store interface {
		Key() string
		load(ctx context.Context)
		apply(ev remote.Event)
		clear(ctx context.Context) error
		pusher() *pusher
	}

	DB struct {
		local     localstore.Storage
		remote    remote.Backend
		log       core.Logger
		queueSize int

		Students      *Collection[student.Student]
		Sessions      *Collection[session.Session]
		Messages      *Collection[message.Message]
		GroupMessages *Collection[message.GroupMessage]
		Materials     *Collection[material.Material]
		StaffProfiles *Collection[staff.Profile]
		Settings      *Value[settings.SiteSettings]
		Auth          *Value[auth.State]

		stores []store

		hooksMu sync.RWMutex
		hooks   []func(ChangeEvent)
	}
)

// Open loads every collection: from the local storage, overwritten by the remote records when there are any.
// Remote failures are logged, the local state is kept.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Local == nil {
		return nil, errors.New("statedb: a local storage is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("statedb: a logger is required")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	db := &DB{
		local:     opts.Local,
		remote:    opts.Remote,
		log:       opts.Logger,
		queueSize: opts.QueueSize,
	}
	db.Students = newCollection[student.Student](db, KeyStudents)
	db.Sessions = newCollection[session.Session](db, KeySessions)
	db.Messages = newCollection[message.Message](db, KeyMessages)
	db.GroupMessages = newCollection[message.GroupMessage](db, KeyGroupMessages)
	db.Materials = newCollection[material.Material](db, KeyMaterials)
	db.StaffProfiles = newCollection[staff.Profile](db, KeyStaffProfiles)
	db.Settings = newValue[settings.SiteSettings](db, KeySiteSettings)
	db.Auth = newValue[auth.State](db, KeyAuth)
	db.stores = []store{
		db.Students, db.Sessions, db.Messages, db.GroupMessages,
		db.Materials, db.StaffProfiles, db.Settings, db.Auth,
	}

	for _, s := range db.stores {
		s.load(ctx)
	}
	return db, nil
}

// HasRemote reports whether the state is mirrored remotely.
func (db *DB) HasRemote() bool {
	return db.remote != nil
}

// OnChange registers fn to be called after every change of the state.
func (db *DB) OnChange(fn func(ChangeEvent)) {
	db.hooksMu.Lock()
	defer db.hooksMu.Unlock()
	db.hooks = append(db.hooks, fn)
}

func (db *DB) notify(ev ChangeEvent) {
	db.hooksMu.RLock()
	defer db.hooksMu.RUnlock()
	for _, fn := range db.hooks {
		fn(ev)
	}
}

// Watch merges the remote changes into the state until ctx is done.
func (db *DB) Watch(ctx context.Context) error {
	if db.remote == nil {
		return nil
	}
	for _, s := range db.stores {
		events, err := db.remote.Subscribe(ctx, s.Key())
		if err != nil {
			return errors.Wrapf(err, "subscribing to %s", s.Key())
		}
		go func(s store, events <-chan remote.Event) {
			for ev := range events {
				s.apply(ev)
			}
		}(s, events)
	}
	return nil
}

// Flush waits for the pending remote writes.
func (db *DB) Flush() {
	for _, s := range db.stores {
		s.pusher().flush()
	}
}

// Close sends the pending remote writes, then closes the remote backend.
func (db *DB) Close() error {
	for _, s := range db.stores {
		s.pusher().close()
	}
	if db.remote != nil {
		return db.remote.Close()
	}
	return nil
}

// ClearAll deletes every record of every collection, locally and remotely.
func (db *DB) ClearAll(ctx context.Context) error {
	for _, s := range db.stores {
		if err := s.clear(ctx); err != nil {
			return errors.Wrapf(err, "clearing %s", s.Key())
		}
	}
	return nil
}

// readLocal decodes the local value of key into dst, reporting whether there was a valid one.
func (db *DB) readLocal(key string, dst interface{}) bool {
	data, err := db.local.Get(key)
	if err != nil {
		if err != localstore.ErrNotFound {
			db.log.Warn("reading local state: "+err.Error(), map[string]interface{}{"collection": key})
		}
		return false
	}
	if err = json.Unmarshal(data, dst); err != nil {
		db.log.Warn("invalid local state, using defaults: "+err.Error(), map[string]interface{}{"collection": key})
		return false
	}
	return true
}

func (db *DB) writeLocal(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err == nil {
		err = db.local.Set(key, data)
	}
	if err != nil {
		localWriteErrors.WithLabelValues(key).Inc()
		return errors.Wrapf(err, "saving %s locally", key)
	}
	return nil
}

func (db *DB) removeLocal(key string) error {
	if err := db.local.Remove(key); err != nil {
		localWriteErrors.WithLabelValues(key).Inc()
		return errors.Wrapf(err, "removing %s locally", key)
	}
	return nil
}

// pushOps converts changes into remote writes, skipping (and logging) unencodable records.
func (db *DB) pushOps(key string, changes []change) []pushOp {
	if db.remote == nil {
		return nil
	}
	ops := make([]pushOp, 0, len(changes))
	for _, ch := range changes {
		id := ch.item.GetID()
		if ch.typ == remote.EventDelete {
			ops = append(ops, pushOp{id: id})
			continue
		}
		data, err := json.Marshal(ch.item)
		if err != nil {
			db.log.Error("encoding record: "+err.Error(), map[string]interface{}{"collection": key, "id": id})
			continue
		}
		ops = append(ops, pushOp{id: id, row: &remote.Row{ID: id, Data: data, UpdatedAt: core.NowFunc()}})
	}
	return ops
}
