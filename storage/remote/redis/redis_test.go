package redisremote_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/storage/remote"
	redisremote "github.com/trezcool/academia/storage/remote/redis"
	"github.com/trezcool/academia/tests"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newBackend(t *testing.T) (*redisremote.Backend, *miniredis.Miniredis, *testutil.Logger) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	logger := new(testutil.Logger)
	b := redisremote.New(client, "test", logger)
	t.Cleanup(func() { _ = b.Close() })
	return b, mr, logger
}

func row(id, data string, updatedAt time.Time) remote.Row {
	return remote.Row{ID: id, Data: json.RawMessage(data), UpdatedAt: updatedAt}
}

func receive(t *testing.T, ch <-chan remote.Event) remote.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return remote.Event{}
	}
}

func TestBackend_FetchAll(t *testing.T) {
	ctx := context.Background()
	b, mr, logger := newBackend(t)
	assert.True(t, b.Healthy(ctx))

	rows, err := b.FetchAll(ctx, "students")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, b.Upsert(ctx, "students", row("a", `{"name":"A"}`, t0.Add(2*time.Second))))
	require.NoError(t, b.Upsert(ctx, "students", row("c", `{"name":"C"}`, t0)))
	require.NoError(t, b.Upsert(ctx, "students", row("b", `{"name":"B"}`, t0)))
	require.NoError(t, b.Upsert(ctx, "sessions", row("s1", `{"name":"S"}`, t0)))
	mr.HSet("test:rows:students", "broken", "{not json")

	rows, err = b.FetchAll(ctx, "students")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, want := range []string{"b", "c", "a"} {
		assert.Equal(t, want, rows[i].ID)
	}
	assert.JSONEq(t, `{"name":"A"}`, string(rows[2].Data))
	assert.True(t, rows[2].UpdatedAt.Equal(t0.Add(2*time.Second)))
	assert.Len(t, logger.Entries("WARN"), 1)

	// update in place
	require.NoError(t, b.Upsert(ctx, "students", row("a", `{"name":"A2"}`, t0.Add(3*time.Second))))
	rows, err = b.FetchAll(ctx, "students")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.JSONEq(t, `{"name":"A2"}`, string(rows[2].Data))

	require.NoError(t, b.Delete(ctx, "students", "a"))
	require.NoError(t, b.Delete(ctx, "students", "missing"))
	rows, err = b.FetchAll(ctx, "students")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestBackend_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, mr, logger := newBackend(t)

	events, err := b.Subscribe(ctx, "students")
	require.NoError(t, err)

	require.NoError(t, b.Upsert(ctx, "students", row("a", `{"name":"A"}`, t0)))
	require.NoError(t, b.Upsert(ctx, "sessions", row("s1", `{"name":"S"}`, t0))) // other collection
	require.NoError(t, b.Upsert(ctx, "students", row("a", `{"name":"A2"}`, t0.Add(time.Second))))
	mr.Publish("test:events:students", "not an event")
	require.NoError(t, b.Delete(ctx, "students", "missing")) // nothing deleted, nothing published
	require.NoError(t, b.Delete(ctx, "students", "a"))

	tests := []struct {
		typ  remote.EventType
		data string
	}{
		{typ: remote.EventInsert, data: `{"name":"A"}`},
		{typ: remote.EventUpdate, data: `{"name":"A2"}`},
		{typ: remote.EventDelete},
	}
	for _, tt := range tests {
		ev := receive(t, events)
		assert.Equal(t, tt.typ, ev.Type)
		assert.Equal(t, "students", ev.Collection)
		assert.Equal(t, "a", ev.Row.ID)
		if tt.data != "" {
			assert.JSONEq(t, tt.data, string(ev.Row.Data))
		} else {
			assert.Empty(t, ev.Row.Data)
		}
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Len(t, logger.Entries("WARN"), 1)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events not closed")
	}
}
