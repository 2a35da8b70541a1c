package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"messenger-service/internal/models"
	"messenger-service/internal/store"
)

// Ledger appends messages to existing chats and reads them back in stored
// order. The message list only grows.
type Ledger struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewLedger constructs a Ledger over the shared store.
func NewLedger(st store.Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: st,
		log:   log.With().Str("component", "ledger").Logger(),
		now:   time.Now,
	}
}

// AppendMessage appends a message to the chat and bumps its updated_at.
// Whitespace-only text is a no-op, not an error; the bool reports whether a
// message was actually appended. Unknown chat ids fail with ErrChatNotFound.
func (l *Ledger) AppendMessage(ctx context.Context, chatID, sender, text string) (models.Message, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, false, nil
	}

	chat, err := l.getChat(ctx, chatID)
	if err != nil {
		return models.Message{}, false, err
	}
	if !chat.HasParticipant(sender) {
		return models.Message{}, false, fmt.Errorf("%w: %s in %s", ErrNotParticipant, sender, chatID)
	}

	msg := models.Message{From: sender, Text: text, Time: l.now().UTC()}
	chat.Messages = append(chat.Messages, msg)
	chat.UpdatedAt = msg.Time

	doc, err := json.Marshal(chat)
	if err != nil {
		return models.Message{}, false, fmt.Errorf("encode chat %s: %w", chat.Key, err)
	}
	if err := l.store.Set(ctx, store.Record{Key: models.ChatKey(chat.Key), Doc: doc}); err != nil {
		return models.Message{}, false, err
	}

	l.log.Debug().Str("chat_id", chatID).Str("from", sender).Msg("message appended")
	return msg, true, nil
}

// ListMessages returns the chat's messages in append order, without
// re-sorting. Unknown chat ids fail with ErrChatNotFound.
func (l *Ledger) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	chat, err := l.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Messages == nil {
		return []models.Message{}, nil
	}
	return chat.Messages, nil
}

// GetChat loads a single chat record.
func (l *Ledger) GetChat(ctx context.Context, chatID string) (models.ChatRecord, error) {
	return l.getChat(ctx, chatID)
}

func (l *Ledger) getChat(ctx context.Context, chatID string) (models.ChatRecord, error) {
	rec, err := l.store.Get(ctx, models.ChatKey(chatID))
	if errors.Is(err, store.ErrNotFound) {
		return models.ChatRecord{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	if err != nil {
		return models.ChatRecord{}, err
	}
	var chat models.ChatRecord
	if err := json.Unmarshal(rec.Doc, &chat); err != nil {
		return models.ChatRecord{}, fmt.Errorf("decode chat %s: %w", chatID, err)
	}
	return chat, nil
}
