// Package pgremote mirrors the state in a Postgres table, with changes pushed through LISTEN/NOTIFY.
package pgremote

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/remote"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const notifyChannel = "entity_rows"

type (
	Backend struct {
		db     *sqlx.DB
		dsn    string
		log    core.Logger
		fanout *remote.Fanout

		listenOnce sync.Once
		listenErr  error
		listener   *pq.Listener
		stop       chan struct{}
		wg         sync.WaitGroup
	}

	entityRow struct {
		ID        string    `db:"id"`
		Data      []byte    `db:"data"`
		UpdatedAt null.Time `db:"updated_at"`
	}

	notification struct {
		Type       remote.EventType `json:"type"`
		Collection string           `json:"collection"`
		ID         string           `json:"id"`
	}
)

var _ remote.Backend = (*Backend)(nil)

// DSN builds the connection URL of the database.
func DSN(conf core.DatabaseConfig) string {
	sslMode := "require"
	if conf.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Engine,
		User:     url.UserPassword(conf.User, conf.Password),
		Host:     conf.Address(),
		Path:     conf.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to the database and waits for it to be ready.
func Open(ctx context.Context, conf core.DatabaseConfig, logger core.Logger) (*Backend, error) {
	dsn := DSN(conf)
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{
		db:     db,
		dsn:    dsn,
		log:    logger,
		fanout: remote.NewFanout(),
		stop:   make(chan struct{}),
	}, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

// DB exposes the underlying connection pool.
func (b *Backend) DB() *sql.DB {
	return b.db.DB
}

// Migrate runs a goose command (up, down, status, version, redo, reset...) against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.RunContext(ctx, command, db, "migrations", args...); err != nil {
		return errors.Wrapf(err, "running migration command %q", command)
	}
	return nil
}

func (b *Backend) FetchAll(ctx context.Context, collection string) ([]remote.Row, error) {
	var rows []entityRow
	q := `SELECT id, data, updated_at FROM entity_rows WHERE collection = $1 ORDER BY created_at, id`
	if err := b.db.SelectContext(ctx, &rows, q, collection); err != nil {
		return nil, errors.Wrapf(err, "fetching %s", collection)
	}
	out := make([]remote.Row, len(rows))
	for i, r := range rows {
		out[i] = r.toRow()
	}
	return out, nil
}

func (b *Backend) fetch(ctx context.Context, collection, id string) (remote.Row, error) {
	var r entityRow
	q := `SELECT id, data, updated_at FROM entity_rows WHERE collection = $1 AND id = $2`
	if err := b.db.GetContext(ctx, &r, q, collection, id); err != nil {
		return remote.Row{}, errors.Wrapf(err, "fetching %s/%s", collection, id)
	}
	return r.toRow(), nil
}

func (b *Backend) Upsert(ctx context.Context, collection string, row remote.Row) error {
	q := `
	INSERT INTO entity_rows (collection, id, data, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	updatedAt := null.NewTime(row.UpdatedAt, !row.UpdatedAt.IsZero())
	if _, err := b.db.ExecContext(ctx, q, collection, row.ID, []byte(row.Data), updatedAt); err != nil {
		return errors.Wrapf(err, "upserting %s/%s", collection, row.ID)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	q := `DELETE FROM entity_rows WHERE collection = $1 AND id = $2`
	if _, err := b.db.ExecContext(ctx, q, collection, id); err != nil {
		return errors.Wrapf(err, "deleting %s/%s", collection, id)
	}
	return nil
}

// Subscribe starts listening to the notifications of the table on first call.
func (b *Backend) Subscribe(ctx context.Context, collection string) (<-chan remote.Event, error) {
	b.listenOnce.Do(func() { b.listenErr = b.listen() })
	if b.listenErr != nil {
		return nil, b.listenErr
	}
	return b.fanout.Add(ctx, collection), nil
}

func (b *Backend) listen() error {
	b.listener = pq.NewListener(b.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			b.log.Warn("postgres listener: "+err.Error(), map[string]interface{}{"event": ev})
		}
	})
	if err := b.listener.Listen(notifyChannel); err != nil {
		_ = b.listener.Close()
		return errors.Wrap(err, "listening to entity_rows")
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.stop:
				return
			case n, ok := <-b.listener.Notify:
				if !ok {
					return
				}
				if n != nil { // nil after a reconnection
					b.dispatch(n.Extra)
				}
			case <-time.After(90 * time.Second):
				go func() { _ = b.listener.Ping() }()
			}
		}
	}()
	return nil
}

func (b *Backend) dispatch(payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		b.log.Error("decoding notification: "+err.Error(), map[string]interface{}{"payload": payload})
		return
	}
	if b.fanout.Len(n.Collection) == 0 {
		return
	}

	ev := remote.Event{Type: n.Type, Collection: n.Collection, Row: remote.Row{ID: n.ID}}
	if n.Type != remote.EventDelete {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		row, err := b.fetch(ctx, n.Collection, n.ID)
		if err != nil {
			if errors.Cause(err) != sql.ErrNoRows { // deleted since
				b.log.Error(err.Error())
			}
			return
		}
		ev.Row = row
	}
	b.fanout.Publish(ev)
}

func (b *Backend) Close() error {
	close(b.stop)
	b.wg.Wait()
	b.fanout.Close()
	if b.listener != nil {
		_ = b.listener.Close()
	}
	return b.db.Close()
}

func (r entityRow) toRow() remote.Row {
	return remote.Row{ID: r.ID, Data: json.RawMessage(r.Data), UpdatedAt: r.UpdatedAt.Time}
}
