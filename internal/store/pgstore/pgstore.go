// Package pgstore backs the record store with Postgres. Documents live in a
// single JSONB table; a trigger issues NOTIFY on every mutation so all
// connected service instances observe changes made by any client.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"messenger-service/internal/observability"
	"messenger-service/internal/store"
)

const notifyChannel = "record_changes"

// Store implements store.Store over a Postgres records table.
type Store struct {
	db       *sqlx.DB
	listener *pq.Listener
	log      zerolog.Logger

	mu          sync.Mutex
	subscribers map[int]func()
	nextSubID   int
	done        chan struct{}
}

// New wraps an existing database handle without a notification listener.
// Subscribe callbacks registered on such a store only fire once Listen is
// called. Used directly by tests.
func New(db *sqlx.DB, log zerolog.Logger) *Store {
	return &Store{
		db:          db,
		log:         log.With().Str("component", "pgstore").Logger(),
		subscribers: make(map[int]func()),
		done:        make(chan struct{}),
	}
}

// Connect opens the database, applies migrations and starts the LISTEN loop.
func Connect(dsn string, log zerolog.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	s := New(db, log)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := s.Listen(dsn); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS records (
            key TEXT PRIMARY KEY,
            doc JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE OR REPLACE FUNCTION records_notify() RETURNS trigger AS $$
        BEGIN
            PERFORM pg_notify('` + notifyChannel + `', '');
            RETURN NULL;
        END;
        $$ LANGUAGE plpgsql;`,
		`DROP TRIGGER IF EXISTS records_changed ON records;`,
		`CREATE TRIGGER records_changed
            AFTER INSERT OR UPDATE OR DELETE ON records
            FOR EACH STATEMENT EXECUTE FUNCTION records_notify();`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	s.log.Info().Msg("record table migrations applied")
	return nil
}

// Listen starts the notification listener and the fan-out loop.
func (s *Store) Listen(dsn string) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	s.listener = listener
	go s.dispatch()
	return nil
}

func (s *Store) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			// nil notifications signal a reconnect; the stream may have
			// dropped events, so treat it as a change too.
			_ = n
			s.notifyAll()
		}
	}
}

func (s *Store) notifyAll() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Get fetches one record by key.
func (s *Store) Get(ctx context.Context, key string) (rec store.Record, err error) {
	defer func() { observability.IncStoreRoundTrip("get", err) }()

	var doc []byte
	err = s.db.GetContext(ctx, &doc, `SELECT doc FROM records WHERE key=$1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("%w: get %s: %v", store.ErrUnavailable, key, err)
	}
	return store.Record{Key: key, Doc: doc}, nil
}

// List returns records whose document value at q.Path equals q.Equals.
func (s *Store) List(ctx context.Context, q store.Query) (out []store.Record, err error) {
	defer func() { observability.IncStoreRoundTrip("list", err) }()

	want, err := json.Marshal(q.Equals)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx,
		`SELECT key, doc FROM records WHERE doc #> $1 = $2::jsonb`,
		pq.Array(q.Path), string(want))
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec struct {
			Key string `db:"key"`
			Doc []byte `db:"doc"`
		}
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("%w: list scan: %v", store.ErrUnavailable, err)
		}
		out = append(out, store.Record{Key: rec.Key, Doc: rec.Doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %v", store.ErrUnavailable, err)
	}
	return out, nil
}

// Set upserts the record by primary key.
func (s *Store) Set(ctx context.Context, rec store.Record) (err error) {
	defer func() { observability.IncStoreRoundTrip("set", err) }()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (key, doc) VALUES ($1, $2)
         ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		rec.Key, []byte(rec.Doc))
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", store.ErrUnavailable, rec.Key, err)
	}
	return nil
}

// Delete removes the record if present.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	defer func() { observability.IncStoreRoundTrip("delete", err) }()

	if _, err = s.db.ExecContext(ctx, `DELETE FROM records WHERE key=$1`, key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", store.ErrUnavailable, key, err)
	}
	return nil
}

// Subscribe registers a change callback fed by the NOTIFY stream.
func (s *Store) Subscribe(onChange func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = onChange
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Close stops the listener and closes the database handle.
func (s *Store) Close() error {
	close(s.done)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	return s.db.Close()
}
