// Package redisremote mirrors the state in Redis: a hash per collection, changes published on a channel per collection.
package redisremote

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/remote"
)

type Backend struct {
	client *redis.Client
	prefix string
	log    core.Logger
}

var _ remote.Backend = (*Backend)(nil)

// NewClient connects to redis with short timeouts.
func NewClient(conf core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func New(client *redis.Client, prefix string, logger core.Logger) *Backend {
	if prefix == "" {
		prefix = "academia"
	}
	return &Backend{client: client, prefix: prefix, log: logger}
}

// Healthy verifies redis connectivity.
func (b *Backend) Healthy(ctx context.Context) bool {
	return b.client.Ping(ctx).Err() == nil
}

func (b *Backend) rowsKey(collection string) string   { return b.prefix + ":rows:" + collection }
func (b *Backend) eventsKey(collection string) string { return b.prefix + ":events:" + collection }

func (b *Backend) FetchAll(ctx context.Context, collection string) ([]remote.Row, error) {
	values, err := b.client.HGetAll(ctx, b.rowsKey(collection)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", collection)
	}
	rows := make([]remote.Row, 0, len(values))
	for id, v := range values {
		var row remote.Row
		if err := json.Unmarshal([]byte(v), &row); err != nil {
			b.log.Warn("skipping invalid row: "+err.Error(), map[string]interface{}{"collection": collection, "id": id})
			continue
		}
		row.ID = id
		rows = append(rows, row)
	}
	// hashes are unordered
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].UpdatedAt.Before(rows[j].UpdatedAt)
	})
	return rows, nil
}

func (b *Backend) Upsert(ctx context.Context, collection string, row remote.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", collection, row.ID)
	}
	added, err := b.client.HSet(ctx, b.rowsKey(collection), row.ID, data).Result()
	if err != nil {
		return errors.Wrapf(err, "upserting %s/%s", collection, row.ID)
	}
	evType := remote.EventUpdate
	if added > 0 {
		evType = remote.EventInsert
	}
	return b.publish(ctx, remote.Event{Type: evType, Collection: collection, Row: row})
}

func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	n, err := b.client.HDel(ctx, b.rowsKey(collection), id).Result()
	if err != nil {
		return errors.Wrapf(err, "deleting %s/%s", collection, id)
	}
	if n == 0 {
		return nil
	}
	return b.publish(ctx, remote.Event{Type: remote.EventDelete, Collection: collection, Row: remote.Row{ID: id}})
}

func (b *Backend) publish(ctx context.Context, ev remote.Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	return errors.Wrapf(b.client.Publish(ctx, b.eventsKey(ev.Collection), msg).Err(), "publishing %s event", ev.Collection)
}

func (b *Backend) Subscribe(ctx context.Context, collection string) (<-chan remote.Event, error) {
	ps := b.client.Subscribe(ctx, b.eventsKey(collection))
	if _, err := ps.Receive(ctx); err != nil { // wait for the subscription confirmation
		_ = ps.Close()
		return nil, errors.Wrapf(err, "subscribing to %s", collection)
	}

	out := make(chan remote.Event, 64)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev remote.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("skipping invalid event: "+err.Error(), map[string]interface{}{"collection": collection})
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}
