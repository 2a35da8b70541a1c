package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPath(t *testing.T) {
	doc := json.RawMessage(`{"key":"c1","meta":{"owner":"alice"},"participants":["alice","bob"]}`)

	val, ok := ExtractPath(doc, []string{"participants"})
	require.True(t, ok)
	assert.JSONEq(t, `["alice","bob"]`, string(val))

	val, ok = ExtractPath(doc, []string{"meta", "owner"})
	require.True(t, ok)
	assert.JSONEq(t, `"alice"`, string(val))

	_, ok = ExtractPath(doc, []string{"missing"})
	assert.False(t, ok)

	// Descending into a non-object fails rather than panics.
	_, ok = ExtractPath(doc, []string{"key", "deeper"})
	assert.False(t, ok)
}

func TestJSONEqual(t *testing.T) {
	assert.True(t, JSONEqual(
		json.RawMessage(`["alice", "bob"]`),
		json.RawMessage(`["alice","bob"]`),
	))
	assert.False(t, JSONEqual(
		json.RawMessage(`["alice","bob"]`),
		json.RawMessage(`["bob","alice"]`),
	))
	assert.False(t, JSONEqual(json.RawMessage(`{`), json.RawMessage(`{}`)))
}
