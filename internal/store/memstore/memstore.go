// Package memstore is an in-memory Store used by tests and single-process
// deployments. Change notifications are delivered synchronously after the
// mutation is visible.
package memstore

import (
	"context"
	"encoding/json"
	"sync"

	"messenger-service/internal/store"
)

// Store keeps records in a map guarded by a RWMutex.
type Store struct {
	mu          sync.RWMutex
	records     map[string][]byte
	subscribers map[int]func()
	nextSubID   int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:     make(map[string][]byte),
		subscribers: make(map[int]func()),
	}
}

// Get returns a copy of the record under key.
func (s *Store) Get(ctx context.Context, key string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.records[key]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return store.Record{Key: key, Doc: append(json.RawMessage(nil), doc...)}, nil
}

// List returns every record whose document value at q.Path equals q.Equals.
func (s *Store) List(ctx context.Context, q store.Query) ([]store.Record, error) {
	want, err := json.Marshal(q.Equals)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Record
	for key, doc := range s.records {
		got, ok := store.ExtractPath(doc, q.Path)
		if !ok {
			continue
		}
		if store.JSONEqual(got, want) {
			out = append(out, store.Record{Key: key, Doc: append(json.RawMessage(nil), doc...)})
		}
	}
	return out, nil
}

// Set upserts the record and notifies subscribers.
func (s *Store) Set(ctx context.Context, rec store.Record) error {
	s.mu.Lock()
	s.records[rec.Key] = append([]byte(nil), rec.Doc...)
	subs := s.snapshotSubscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return nil
}

// Delete removes the record if present and notifies subscribers.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	_, existed := s.records[key]
	delete(s.records, key)
	var subs []func()
	if existed {
		subs = s.snapshotSubscribers()
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return nil
}

// Subscribe registers a change callback and returns its cancel func.
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

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) snapshotSubscribers() []func() {
	subs := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs
}
