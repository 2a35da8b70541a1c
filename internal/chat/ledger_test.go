package chat

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/store/memstore"
)

func newTestLedger(t *testing.T) (*Ledger, *Registry, *countingStore) {
	t.Helper()
	cs := &countingStore{Store: memstore.New()}
	return NewLedger(cs, zerolog.Nop()), NewRegistry(cs, zerolog.Nop()), cs
}

func TestAppendAndListKeepsOrder(t *testing.T) {
	ledger, registry, _ := newTestLedger(t)
	ctx := context.Background()

	created, err := registry.CreateChat(ctx, "alice", []string{"alice", "bob"})
	require.NoError(t, err)

	texts := []string{"hi", "hello", "how are you"}
	for _, text := range texts {
		_, appended, err := ledger.AppendMessage(ctx, created.Key, "alice", text)
		require.NoError(t, err)
		assert.True(t, appended)
	}

	msgs, err := ledger.ListMessages(ctx, created.Key)
	require.NoError(t, err)
	require.Len(t, msgs, len(texts))
	for i, text := range texts {
		assert.Equal(t, text, msgs[i].Text)
		assert.Equal(t, "alice", msgs[i].From)
	}

	// Reading again without appends yields the identical sequence.
	again, err := ledger.ListMessages(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, msgs, again)
}

func TestAppendTrimsText(t *testing.T) {
	ledger, registry, _ := newTestLedger(t)
	ctx := context.Background()

	created, err := registry.CreateChat(ctx, "alice", []string{"alice", "bob"})
	require.NoError(t, err)

	msg, appended, err := ledger.AppendMessage(ctx, created.Key, "bob", "  hey  ")
	require.NoError(t, err)
	require.True(t, appended)
	assert.Equal(t, "hey", msg.Text)
}

func TestAppendEmptyTextIsNoOp(t *testing.T) {
	ledger, registry, cs := newTestLedger(t)
	ctx := context.Background()

	created, err := registry.CreateChat(ctx, "alice", []string{"alice", "bob"})
	require.NoError(t, err)
	writesBefore := cs.sets

	_, appended, err := ledger.AppendMessage(ctx, created.Key, "alice", "   ")
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Equal(t, writesBefore, cs.sets, "no-op must not write")

	msgs, err := ledger.ListMessages(ctx, created.Key)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAppendUnknownChat(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, _, err := ledger.AppendMessage(context.Background(), "nope", "alice", "hi")
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestListUnknownChat(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.ListMessages(context.Background(), "nope")
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestAppendRejectsOutsider(t *testing.T) {
	ledger, registry, _ := newTestLedger(t)
	ctx := context.Background()

	created, err := registry.CreateChat(ctx, "alice", []string{"alice", "bob"})
	require.NoError(t, err)

	_, _, err = ledger.AppendMessage(ctx, created.Key, "mallory", "hi")
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestAppendBumpsUpdatedAt(t *testing.T) {
	ledger, registry, _ := newTestLedger(t)
	ctx := context.Background()

	created, err := registry.CreateChat(ctx, "alice", []string{"alice", "bob"})
	require.NoError(t, err)

	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return sent }

	msg, appended, err := ledger.AppendMessage(ctx, created.Key, "alice", "hi")
	require.NoError(t, err)
	require.True(t, appended)
	assert.Equal(t, sent, msg.Time)

	record, err := ledger.GetChat(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, sent, record.UpdatedAt)
}
