package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"messenger-service/internal/models"
	"messenger-service/internal/store"
)

// OverviewEntry is one row of a user's chat list projection.
type OverviewEntry struct {
	ChatID      string            `json:"chat_id"`
	DisplayName string            `json:"display_name"`
	Chat        models.ChatRecord `json:"chat"`
}

// Projector builds the display-ordered chat list for a user.
type Projector struct {
	store store.Store
	log   zerolog.Logger
}

// NewProjector constructs a Projector over the shared store.
func NewProjector(st store.Store, log zerolog.Logger) *Projector {
	return &Projector{
		store: st,
		log:   log.With().Str("component", "overview").Logger(),
	}
}

// ProjectOverview loads the user's chat id list, resolves every chat
// concurrently and waits for all fetches before producing output, so a
// partial projection is never handed to a presenter. Chat ids that no longer
// resolve are skipped (and logged) to keep the overview usable. The result is
// ordered by updated_at descending; ties keep their fetch order.
func (p *Projector) ProjectOverview(ctx context.Context, identity string) ([]OverviewEntry, error) {
	rec, err := p.store.Get(ctx, models.UserKey(identity))
	if errors.Is(err, store.ErrNotFound) {
		return []OverviewEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var user models.UserRecord
	if err := json.Unmarshal(rec.Doc, &user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", identity, err)
	}

	type slot struct {
		chat models.ChatRecord
		err  error
	}
	slots := make([]slot, len(user.Chats))

	var wg sync.WaitGroup
	for i, chatID := range user.Chats {
		wg.Add(1)
		go func(i int, chatID string) {
			defer wg.Done()
			chatRec, err := p.store.Get(ctx, models.ChatKey(chatID))
			if err != nil {
				slots[i].err = err
				return
			}
			slots[i].err = json.Unmarshal(chatRec.Doc, &slots[i].chat)
		}(i, chatID)
	}
	wg.Wait()

	entries := make([]OverviewEntry, 0, len(user.Chats))
	for i, s := range slots {
		if s.err != nil {
			if errors.Is(s.err, store.ErrNotFound) {
				p.log.Debug().Str("identity", identity).Str("chat_id", user.Chats[i]).Msg("skipping unresolved chat id")
				continue
			}
			return nil, fmt.Errorf("load chat %s: %w", user.Chats[i], s.err)
		}
		entries = append(entries, OverviewEntry{
			ChatID:      s.chat.Key,
			DisplayName: strings.Join(s.chat.Participants, ", "),
			Chat:        s.chat,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Chat.UpdatedAt.After(entries[j].Chat.UpdatedAt)
	})
	return entries, nil
}
