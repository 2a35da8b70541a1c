package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
	"messenger-service/internal/store"
	"messenger-service/internal/store/memstore"
)

func seedUser(t *testing.T, st store.Store, user models.UserRecord) {
	t.Helper()
	doc, err := json.Marshal(user)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), store.Record{Key: models.UserKey(user.Key), Doc: doc}))
}

func seedChat(t *testing.T, st store.Store, chat models.ChatRecord) {
	t.Helper()
	doc, err := json.Marshal(chat)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), store.Record{Key: models.ChatKey(chat.Key), Doc: doc}))
}

func TestProjectOverviewOrdersByRecency(t *testing.T) {
	mem := memstore.New()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	seedChat(t, mem, models.ChatRecord{Key: "c1", Participants: []string{"alice", "bob"}, UpdatedAt: base.Add(5 * time.Hour)})
	seedChat(t, mem, models.ChatRecord{Key: "c2", Participants: []string{"alice", "carol"}, UpdatedAt: base.Add(9 * time.Hour)})
	seedChat(t, mem, models.ChatRecord{Key: "c3", Participants: []string{"alice", "dave"}, UpdatedAt: base.Add(1 * time.Hour)})
	seedUser(t, mem, models.UserRecord{Key: "alice", Chats: []string{"c1", "c2", "c3"}})

	projector := NewProjector(mem, zerolog.Nop())
	entries, err := projector.ProjectOverview(context.Background(), "alice")
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, []string{"c2", "c1", "c3"}, []string{entries[0].ChatID, entries[1].ChatID, entries[2].ChatID})
}

func TestProjectOverviewStableOnTies(t *testing.T) {
	mem := memstore.New()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	seedChat(t, mem, models.ChatRecord{Key: "c1", Participants: []string{"alice", "bob"}, UpdatedAt: at})
	seedChat(t, mem, models.ChatRecord{Key: "c2", Participants: []string{"alice", "carol"}, UpdatedAt: at})
	seedUser(t, mem, models.UserRecord{Key: "alice", Chats: []string{"c1", "c2"}})

	projector := NewProjector(mem, zerolog.Nop())
	entries, err := projector.ProjectOverview(context.Background(), "alice")
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "c1", entries[0].ChatID)
	assert.Equal(t, "c2", entries[1].ChatID)
}

func TestProjectOverviewDisplayName(t *testing.T) {
	mem := memstore.New()

	seedChat(t, mem, models.ChatRecord{Key: "c1", Participants: []string{"alice", "bob", "carol"}})
	seedUser(t, mem, models.UserRecord{Key: "alice", Chats: []string{"c1"}})

	projector := NewProjector(mem, zerolog.Nop())
	entries, err := projector.ProjectOverview(context.Background(), "alice")
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "alice, bob, carol", entries[0].DisplayName)
}

func TestProjectOverviewSkipsUnresolvedChats(t *testing.T) {
	mem := memstore.New()

	seedChat(t, mem, models.ChatRecord{Key: "c1", Participants: []string{"alice", "bob"}})
	seedUser(t, mem, models.UserRecord{Key: "alice", Chats: []string{"gone", "c1"}})

	projector := NewProjector(mem, zerolog.Nop())
	entries, err := projector.ProjectOverview(context.Background(), "alice")
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "c1", entries[0].ChatID)
}

func TestProjectOverviewUnknownUser(t *testing.T) {
	projector := NewProjector(memstore.New(), zerolog.Nop())

	entries, err := projector.ProjectOverview(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
