package statedb_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/settings"
	"github.com/trezcool/academia/core/student"
	statedb "github.com/trezcool/academia/storage/database/state"
	localstore "github.com/trezcool/academia/storage/local"
	"github.com/trezcool/academia/storage/remote"
	"github.com/trezcool/academia/tests"
)

var errUnreachable = errors.New("remote unreachable")

// failingBackend fails the writes (and optionally the fetches) of a Broker.
type failingBackend struct {
	*remote.Broker
	failFetch bool
}

func (b *failingBackend) FetchAll(ctx context.Context, collection string) ([]remote.Row, error) {
	if b.failFetch {
		return nil, errUnreachable
	}
	return b.Broker.FetchAll(ctx, collection)
}

func (b *failingBackend) Upsert(context.Context, string, remote.Row) error { return errUnreachable }
func (b *failingBackend) Delete(context.Context, string, string) error     { return errUnreachable }

// failingStorage fails the writes once broken.
type failingStorage struct {
	*localstore.MemoryStorage
	mu     sync.Mutex
	broken bool
}

func (s *failingStorage) Set(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return errors.New("disk full")
	}
	return s.MemoryStorage.Set(key, data)
}

// normalizingBackend stores the rows the way a JSONB column gives them back:
// keys sorted and whitespace changed.
type normalizingBackend struct {
	*remote.Broker
}

func (b *normalizingBackend) Upsert(ctx context.Context, collection string, row remote.Row) error {
	var doc map[string]interface{}
	if err := json.Unmarshal(row.Data, &doc); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return err
	}
	row.Data = data
	return b.Broker.Upsert(ctx, collection, row)
}

func newStudent(id, email string) student.Student {
	return student.Student{ID: id, Name: "Student " + id, Email: email, Status: student.StatusActive, SessionIDs: []string{"s1"}}
}

func mustRow(t *testing.T, v interface{ GetID() string }) remote.Row {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return remote.Row{ID: v.GetID(), Data: data, UpdatedAt: time.Now()}
}

func TestDB_localOnly(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemoryStorage()
	logger := new(testutil.Logger)

	db := testutil.OpenDB(t, local, nil, logger)
	assert.False(t, db.HasRemote())
	assert.Equal(t, 0, db.Students.Len())

	require.NoError(t, db.Students.Add(ctx, newStudent("1", "a@test.cd")))
	require.NoError(t, db.Students.Add(ctx, newStudent("2", "b@test.cd")))
	assert.Equal(t, statedb.ErrExists, db.Students.Add(ctx, newStudent("1", "c@test.cd")))

	updated := newStudent("2", "b@test.cd")
	updated.Name = "Renamed"
	require.NoError(t, db.Students.Update(ctx, updated))
	assert.Equal(t, statedb.ErrNotFound, db.Students.Update(ctx, newStudent("3", "c@test.cd")))

	// reload from the local storage
	db2 := testutil.OpenDB(t, local, nil, logger)
	all := db2.Students.All()
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "Renamed", all[1].Name)

	n, err := db2.Students.Delete(ctx, "1", "404")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := db2.Students.Get("1")
	assert.False(t, ok)
}

func TestDB_invalidLocalState(t *testing.T) {
	local := localstore.NewMemoryStorage()
	require.NoError(t, local.Set(statedb.KeySessions, []byte("{not json")))
	logger := new(testutil.Logger)

	db := testutil.OpenDB(t, local, nil, logger)
	assert.Equal(t, 0, db.Sessions.Len())
	assert.NotEmpty(t, logger.Entries("WARN"))
}

func TestDB_load(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		remote    []student.Student
		failFetch bool
		wantIDs   []string
		wantError bool
	}{
		{name: "remote wins if not empty", remote: []student.Student{newStudent("r1", "r1@test.cd"), newStudent("r2", "r2@test.cd")}, wantIDs: []string{"r1", "r2"}},
		{name: "empty remote keeps local", wantIDs: []string{"l1"}},
		{name: "remote failure keeps local", remote: []student.Student{newStudent("r1", "r1@test.cd")}, failFetch: true, wantIDs: []string{"l1"}, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := localstore.NewMemoryStorage()
			data, _ := json.Marshal([]student.Student{newStudent("l1", "l1@test.cd")})
			require.NoError(t, local.Set(statedb.KeyStudents, data))

			broker := remote.NewBroker()
			for _, s := range tt.remote {
				require.NoError(t, broker.Upsert(ctx, statedb.KeyStudents, mustRow(t, s)))
			}
			logger := new(testutil.Logger)
			db := testutil.OpenDB(t, local, &failingBackend{Broker: broker, failFetch: tt.failFetch}, logger)

			var ids []string
			for _, s := range db.Students.All() {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantError, len(logger.Entries("ERROR")) > 0)

			// the loaded state was persisted locally
			data, err := local.Get(statedb.KeyStudents)
			require.NoError(t, err)
			var persisted []student.Student
			require.NoError(t, json.Unmarshal(data, &persisted))
			assert.Len(t, persisted, len(tt.wantIDs))
		})
	}
}

func TestDB_remoteFailureKeepsLocalChange(t *testing.T) {
	ctx := context.Background()
	logger := new(testutil.Logger)
	local := localstore.NewMemoryStorage()
	db := testutil.OpenDB(t, local, &failingBackend{Broker: remote.NewBroker()}, logger)

	sess := session.Session{ID: "s1", Name: "Leadership Bootcamp", Status: session.StatusUpcoming}
	require.NoError(t, db.Sessions.Add(ctx, sess))
	db.Flush()

	got, ok := db.Sessions.Get("s1")
	require.True(t, ok, "local change is visible")
	assert.Equal(t, "Leadership Bootcamp", got.Name)

	data, err := local.Get(statedb.KeySessions)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Leadership Bootcamp")

	errs := logger.Entries("ERROR")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Msg, "remote unreachable")
}

func TestDB_localFailure(t *testing.T) {
	ctx := context.Background()
	local := &failingStorage{MemoryStorage: localstore.NewMemoryStorage()}
	broker := remote.NewBroker()
	db := testutil.OpenDB(t, local, broker, new(testutil.Logger))

	require.NoError(t, db.Students.Add(ctx, newStudent("1", "a@test.cd")))

	local.mu.Lock()
	local.broken = true
	local.mu.Unlock()

	err := db.Students.Add(ctx, newStudent("2", "b@test.cd"))
	require.Error(t, err)
	assert.Equal(t, 1, db.Students.Len(), "failed change is rolled back")

	db.Flush()
	rows, err := broker.FetchAll(ctx, statedb.KeyStudents)
	require.NoError(t, err)
	require.Len(t, rows, 1, "failed change is not pushed")
	assert.Equal(t, "1", rows[0].ID)
}

func TestDB_pushes(t *testing.T) {
	ctx := context.Background()
	broker := remote.NewBroker()
	db := testutil.OpenDB(t, nil, broker, new(testutil.Logger))

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, db.Students.Add(ctx, newStudent(id, id+"@test.cd")))
	}
	_, err := db.Students.Delete(ctx, "2")
	require.NoError(t, err)
	require.NoError(t, db.Settings.Set(ctx, settings.Default()))
	db.Flush()

	rows, err := broker.FetchAll(ctx, statedb.KeyStudents)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].ID)
	assert.Equal(t, "3", rows[1].ID)

	rows, err = broker.FetchAll(ctx, statedb.KeySiteSettings)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, remote.SingletonID, rows[0].ID)

	require.NoError(t, db.ClearAll(ctx))
	db.Flush()
	assert.Equal(t, 0, db.Students.Len())
	_, ok := db.Settings.Get()
	assert.False(t, ok)
	rows, err = broker.FetchAll(ctx, statedb.KeyStudents)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDB_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := remote.NewBroker()
	logger := new(testutil.Logger)
	tab1 := testutil.OpenDB(t, nil, broker, logger)
	tab2 := testutil.OpenDB(t, nil, broker, logger)

	var (
		mu      sync.Mutex
		changes []statedb.ChangeEvent
	)
	tab2.OnChange(func(ev statedb.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, ev)
	})
	require.NoError(t, tab2.Watch(ctx))

	// insert
	require.NoError(t, tab1.Students.Add(ctx, newStudent("1", "a@test.cd")))
	require.Eventually(t, func() bool { _, ok := tab2.Students.Get("1"); return ok }, time.Second, 10*time.Millisecond)

	// update: matched by ID, not appended
	s := newStudent("1", "a@test.cd")
	s.Name = "Updated"
	require.NoError(t, tab1.Students.Update(ctx, s))
	require.Eventually(t, func() bool {
		got, _ := tab2.Students.Get("1")
		return got.Name == "Updated"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, tab2.Students.Len())

	// singleton
	st := settings.Default()
	st.SiteName = "Bright Future"
	require.NoError(t, tab1.Settings.Set(ctx, st))
	require.Eventually(t, func() bool {
		got, ok := tab2.Settings.Get()
		return ok && got.SiteName == "Bright Future"
	}, time.Second, 10*time.Millisecond)

	// delete
	_, err := tab1.Students.Delete(ctx, "1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return tab2.Students.Len() == 0 }, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, changes)
	for _, ev := range changes {
		assert.True(t, ev.Remote)
	}
}

func TestDB_Watch_ownChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := &normalizingBackend{Broker: remote.NewBroker()}
	logger := new(testutil.Logger)
	tab1 := testutil.OpenDB(t, nil, backend, logger)

	var (
		mu      sync.Mutex
		changes = make(map[string][]statedb.ChangeEvent)
	)
	tab1.OnChange(func(ev statedb.ChangeEvent) {
		if !ev.Remote {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		changes[ev.Collection] = append(changes[ev.Collection], ev)
	})
	require.NoError(t, tab1.Watch(ctx))

	st := settings.Default()
	st.SiteName = "Bright Future"
	require.NoError(t, tab1.Students.Add(ctx, newStudent("1", "a@test.cd")))
	require.NoError(t, tab1.Settings.Set(ctx, st))
	tab1.Flush()

	// the events of a collection arrive in order: once tab2's changes are
	// merged, tab1 has seen the echoes of its own.
	tab2 := testutil.OpenDB(t, nil, backend, logger)
	require.NoError(t, tab2.Students.Add(ctx, newStudent("2", "b@test.cd")))
	st.SiteName = "Brighter Future"
	require.NoError(t, tab2.Settings.Set(ctx, st))
	tab2.Flush()
	require.Eventually(t, func() bool {
		_, ok := tab1.Students.Get("2")
		got, _ := tab1.Settings.Get()
		return ok && got.SiteName == "Brighter Future"
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes[statedb.KeyStudents], 1)
	assert.Equal(t, "2", changes[statedb.KeyStudents][0].ID)
	assert.Len(t, changes[statedb.KeySiteSettings], 1)
	assert.Equal(t, 2, tab1.Students.Len())
}

func TestDB_OnChange(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t, nil, nil, new(testutil.Logger))

	var got []statedb.ChangeEvent
	db.OnChange(func(ev statedb.ChangeEvent) { got = append(got, ev) })

	require.NoError(t, db.Sessions.Add(ctx, session.Session{ID: "s1", Name: "A"}))
	require.NoError(t, db.Sessions.Put(ctx, session.Session{ID: "s1", Name: "B"}))
	_, err := db.Sessions.Delete(ctx, "s1", "s2")
	require.NoError(t, err)
	_, err = db.Sessions.Delete(ctx, "s1") // nothing to delete
	require.NoError(t, err)

	want := []statedb.ChangeEvent{
		{Collection: statedb.KeySessions, Type: remote.EventInsert, ID: "s1"},
		{Collection: statedb.KeySessions, Type: remote.EventUpdate, ID: "s1"},
		{Collection: statedb.KeySessions, Type: remote.EventDelete, ID: "s1"},
	}
	assert.Equal(t, want, got)
}

func TestDB_Close(t *testing.T) {
	ctx := context.Background()
	broker := remote.NewBroker()
	db, err := statedb.Open(ctx, statedb.Options{Local: localstore.NewMemoryStorage(), Remote: broker, Logger: new(testutil.Logger)})
	require.NoError(t, err)

	require.NoError(t, db.Students.Add(ctx, newStudent("1", "a@test.cd")))
	require.NoError(t, db.Close())

	_, err = broker.FetchAll(ctx, statedb.KeyStudents)
	assert.Equal(t, remote.ErrClosed, err)
}

func TestOpen_options(t *testing.T) {
	_, err := statedb.Open(context.Background(), statedb.Options{Logger: new(testutil.Logger)})
	assert.Error(t, err)
	_, err = statedb.Open(context.Background(), statedb.Options{Local: localstore.NewMemoryStorage()})
	assert.Error(t, err)
}
