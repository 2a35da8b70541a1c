// Package store defines the shared record store contract. All application
// state lives in key-addressed JSON documents; concurrent clients mutate the
// same table and every mutation fires a payload-less change notification so
// consumers re-derive their views from fresh reads.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no record exists under the key.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable wraps transport failures talking to the backing store.
	ErrUnavailable = errors.New("store unavailable")
)

// Record is a stored document addressed by its primary key.
type Record struct {
	Key string
	Doc json.RawMessage
}

// Query is a structural equality filter: records match when the document
// value at Path equals Equals (compared as JSON).
type Query struct {
	Path   []string
	Equals any
}

// Store is the minimal contract the messenger core depends on. Set is an
// upsert; Subscribe registers a callback invoked after any record changes,
// with no delta attached, and returns a cancel func.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	List(ctx context.Context, q Query) ([]Record, error)
	Set(ctx context.Context, rec Record) error
	Delete(ctx context.Context, key string) error
	Subscribe(onChange func()) (cancel func())
}
