package chat

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/store/memstore"
)

// TestTwoUserConversationFlow walks the whole happy path: two users sign in,
// one starts a chat, both exchange messages, the overview reflects it, and a
// repeated start attempt routes back to the existing conversation.
func TestTwoUserConversationFlow(t *testing.T) {
	mem := memstore.New()
	log := zerolog.Nop()
	registry := NewRegistry(mem, log)
	ledger := NewLedger(mem, log)
	projector := NewProjector(mem, log)
	ctx := context.Background()

	_, err := registry.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	_, err = registry.EnsureUser(ctx, "bob")
	require.NoError(t, err)

	created, err := registry.StartOrJoinChat(ctx, "alice", []string{"bob"})
	require.NoError(t, err)
	require.NotEmpty(t, created.Key)

	_, appended, err := ledger.AppendMessage(ctx, created.Key, "alice", "hi bob")
	require.NoError(t, err)
	require.True(t, appended)
	_, appended, err = ledger.AppendMessage(ctx, created.Key, "bob", "hi alice")
	require.NoError(t, err)
	require.True(t, appended)

	msgs, err := ledger.ListMessages(ctx, created.Key)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "alice", msgs[0].From)
	assert.Equal(t, "hi bob", msgs[0].Text)
	assert.Equal(t, "bob", msgs[1].From)
	assert.Equal(t, "hi alice", msgs[1].Text)

	// Both sides see the conversation in their overview.
	for _, identity := range []string{"alice", "bob"} {
		entries, err := projector.ProjectOverview(ctx, identity)
		require.NoError(t, err)
		require.Len(t, entries, 1, "overview of %s", identity)
		assert.Equal(t, created.Key, entries[0].ChatID)
		assert.Equal(t, "alice, bob", entries[0].DisplayName)
		assert.Len(t, entries[0].Chat.Messages, 2)
	}

	// Starting the same pair again, from either side, resolves to the
	// existing chat rather than creating another one.
	existing, err := registry.StartOrJoinChat(ctx, "bob", []string{"alice"})
	require.ErrorIs(t, err, ErrDuplicateConversation)
	assert.Equal(t, created.Key, existing.Key)

	entries, err := projector.ProjectOverview(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
