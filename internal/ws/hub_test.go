package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/chat"
	"messenger-service/internal/livesync"
	"messenger-service/internal/models"
	"messenger-service/internal/store"
	"messenger-service/internal/store/memstore"
)

type channelPresenter struct {
	overviews chan []chat.OverviewEntry
}

func newChannelPresenter() *channelPresenter {
	return &channelPresenter{overviews: make(chan []chat.OverviewEntry, 8)}
}

func (p *channelPresenter) PresentOverview(entries []chat.OverviewEntry) { p.overviews <- entries }
func (p *channelPresenter) PresentMessages(string, []models.Message)    {}
func (p *channelPresenter) PresentError(string, error)                  {}

type staticLister struct{}

func (staticLister) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	return nil, nil
}

func TestHubAddRemove(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	assert.Zero(t, hub.SessionCount())

	s1 := &Session{}
	s2 := &Session{}
	hub.add(s1)
	hub.add(s2)
	assert.Equal(t, 2, hub.SessionCount())

	hub.remove(s1)
	assert.Equal(t, 1, hub.SessionCount())

	// Removing twice is harmless.
	hub.remove(s1)
	assert.Equal(t, 1, hub.SessionCount())
	hub.remove(s2)
	assert.Zero(t, hub.SessionCount())
}

func TestHubFansOutStoreChanges(t *testing.T) {
	mem := memstore.New()
	hub := NewHub(zerolog.Nop())
	cancel := hub.Attach(mem)
	defer cancel()

	presenter := newChannelPresenter()
	controller := livesync.NewController("alice", staticLister{}, chat.NewProjector(mem, zerolog.Nop()), presenter, zerolog.Nop())
	hub.add(&Session{controller: controller})

	// Seed a user and a chat; each write triggers a notification and the
	// session's controller re-projects the overview.
	userDoc, err := json.Marshal(models.UserRecord{Key: "alice", Chats: []string{"c1"}})
	require.NoError(t, err)
	chatDoc, err := json.Marshal(models.ChatRecord{Key: "c1", Participants: []string{"alice", "bob"}})
	require.NoError(t, err)

	require.NoError(t, mem.Set(context.Background(), store.Record{Key: models.ChatKey("c1"), Doc: chatDoc}))
	require.NoError(t, mem.Set(context.Background(), store.Record{Key: models.UserKey("alice"), Doc: userDoc}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case entries := <-presenter.overviews:
			if len(entries) == 1 && entries[0].ChatID == "c1" {
				return
			}
		case <-deadline:
			t.Fatal("no overview push after store change")
		}
	}
}

func TestHubCancelStopsNotifications(t *testing.T) {
	mem := memstore.New()
	hub := NewHub(zerolog.Nop())
	cancel := hub.Attach(mem)

	presenter := newChannelPresenter()
	controller := livesync.NewController("alice", staticLister{}, chat.NewProjector(mem, zerolog.Nop()), presenter, zerolog.Nop())
	hub.add(&Session{controller: controller})

	cancel()

	doc, err := json.Marshal(models.UserRecord{Key: "alice"})
	require.NoError(t, err)
	require.NoError(t, mem.Set(context.Background(), store.Record{Key: models.UserKey("alice"), Doc: doc}))

	select {
	case <-presenter.overviews:
		t.Fatal("notification delivered after cancel")
	case <-time.After(100 * time.Millisecond):
	}
}
