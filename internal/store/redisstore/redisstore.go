// Package redisstore backs the record store with Redis. Documents are JSON
// strings under record: keys; equality lookups on configured top-level fields
// go through secondary index sets, everything else falls back to a scan.
// Mutations publish on a pub/sub channel so every connected service instance
// sees changes made by any client.
package redisstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"messenger-service/internal/observability"
	"messenger-service/internal/store"
)

const (
	recordPrefix  = "record:"
	indexPrefix   = "idx:"
	memberPrefix  = "recidx:"
	notifyChannel = "record_changes"
)

// Store implements store.Store over a Redis database.
type Store struct {
	client *redis.Client
	log    zerolog.Logger
	index  map[string]struct{}

	mu          sync.Mutex
	subscribers map[int]func()
	nextSubID   int
	pubsub      *redis.PubSub
}

// New wraps a Redis client. indexFields names the top-level document fields
// kept in secondary index sets (the messenger indexes "participants").
func New(client *redis.Client, log zerolog.Logger, indexFields ...string) *Store {
	index := make(map[string]struct{}, len(indexFields))
	for _, f := range indexFields {
		index[f] = struct{}{}
	}
	return &Store{
		client:      client,
		log:         log.With().Str("component", "redisstore").Logger(),
		index:       index,
		subscribers: make(map[int]func()),
	}
}

// Connect dials Redis, verifies the connection and starts the pub/sub loop.
func Connect(ctx context.Context, addr string, log zerolog.Logger, indexFields ...string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping redis: %v", store.ErrUnavailable, err)
	}
	s := New(client, log, indexFields...)
	s.listen(ctx)
	return s, nil
}

func (s *Store) listen(ctx context.Context) {
	s.pubsub = s.client.Subscribe(ctx, notifyChannel)
	go func() {
		for range s.pubsub.Channel() {
			s.notifyAll()
		}
	}()
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

	doc, err := s.client.Get(ctx, recordPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("%w: get %s: %v", store.ErrUnavailable, key, err)
	}
	return store.Record{Key: key, Doc: doc}, nil
}

// List returns records whose document value at q.Path equals q.Equals. A
// single-field indexed path is answered from its index set; other queries
// scan the record keyspace and filter client-side.
func (s *Store) List(ctx context.Context, q store.Query) (out []store.Record, err error) {
	defer func() { observability.IncStoreRoundTrip("list", err) }()

	want, err := json.Marshal(q.Equals)
	if err != nil {
		return nil, err
	}

	if len(q.Path) == 1 {
		if _, indexed := s.index[q.Path[0]]; indexed {
			return s.listIndexed(ctx, q.Path[0], want)
		}
	}
	return s.listScan(ctx, q.Path, want)
}

func (s *Store) listIndexed(ctx context.Context, field string, want []byte) ([]store.Record, error) {
	keys, err := s.client.SMembers(ctx, indexKey(field, want)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: index lookup: %v", store.ErrUnavailable, err)
	}

	var out []store.Record
	for _, key := range keys {
		rec, err := s.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// Re-check against the document in case of an index hash collision.
		got, ok := store.ExtractPath(rec.Doc, []string{field})
		if ok && store.JSONEqual(got, want) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) listScan(ctx context.Context, path []string, want []byte) ([]store.Record, error) {
	var out []store.Record
	iter := s.client.Scan(ctx, 0, recordPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rec, err := s.Get(ctx, iter.Val()[len(recordPrefix):])
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		got, ok := store.ExtractPath(rec.Doc, path)
		if ok && store.JSONEqual(got, want) {
			out = append(out, rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", store.ErrUnavailable, err)
	}
	return out, nil
}

// Set upserts the record, refreshes its index memberships and publishes a
// change notification.
func (s *Store) Set(ctx context.Context, rec store.Record) (err error) {
	defer func() { observability.IncStoreRoundTrip("set", err) }()

	oldIdx, err := s.client.SMembers(ctx, memberPrefix+rec.Key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: set %s: %v", store.ErrUnavailable, rec.Key, err)
	}

	newIdx := s.indexKeysFor(rec.Doc)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordPrefix+rec.Key, []byte(rec.Doc), 0)
	for _, idx := range oldIdx {
		pipe.SRem(ctx, idx, rec.Key)
	}
	pipe.Del(ctx, memberPrefix+rec.Key)
	for _, idx := range newIdx {
		pipe.SAdd(ctx, idx, rec.Key)
		pipe.SAdd(ctx, memberPrefix+rec.Key, idx)
	}
	pipe.Publish(ctx, notifyChannel, rec.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: set %s: %v", store.ErrUnavailable, rec.Key, err)
	}
	return nil
}

// Delete removes the record, its index memberships and publishes a change
// notification.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	defer func() { observability.IncStoreRoundTrip("delete", err) }()

	oldIdx, err := s.client.SMembers(ctx, memberPrefix+key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: delete %s: %v", store.ErrUnavailable, key, err)
	}

	pipe := s.client.TxPipeline()
	for _, idx := range oldIdx {
		pipe.SRem(ctx, idx, key)
	}
	pipe.Del(ctx, memberPrefix+key, recordPrefix+key)
	pipe.Publish(ctx, notifyChannel, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete %s: %v", store.ErrUnavailable, key, err)
	}
	return nil
}

// Subscribe registers a change callback fed by the pub/sub channel.
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

// Close tears down the pub/sub subscription and the client.
func (s *Store) Close() error {
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
	return s.client.Close()
}

func (s *Store) indexKeysFor(doc json.RawMessage) []string {
	var keys []string
	for field := range s.index {
		value, ok := store.ExtractPath(doc, []string{field})
		if !ok {
			continue
		}
		keys = append(keys, indexKey(field, value))
	}
	return keys
}

func indexKey(field string, value []byte) string {
	sum := sha1.Sum(value)
	return indexPrefix + field + ":" + hex.EncodeToString(sum[:])
}
