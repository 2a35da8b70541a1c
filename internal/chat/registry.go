package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"messenger-service/internal/models"
	"messenger-service/internal/store"
)

const chatKeyAttempts = 16

// Registry resolves and creates chats and keeps the user<->chat
// back-references consistent. It never deletes records.
type Registry struct {
	store  store.Store
	log    zerolog.Logger
	now    func() time.Time
	newKey func() string
}

// NewRegistry constructs a Registry over the shared store.
func NewRegistry(st store.Store, log zerolog.Logger) *Registry {
	return &Registry{
		store:  st,
		log:    log.With().Str("component", "registry").Logger(),
		now:    time.Now,
		newKey: newChatID,
	}
}

// EnsureUser fetches the user record for identity, creating an empty one on
// first access. A second call for the same identity performs no write.
func (r *Registry) EnsureUser(ctx context.Context, identity string) (models.UserRecord, error) {
	user, err := r.getUser(ctx, identity)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.UserRecord{}, err
	}

	user = models.UserRecord{Key: identity, Chats: []string{}}
	if err := r.putUser(ctx, user); err != nil {
		return models.UserRecord{}, err
	}
	r.log.Debug().Str("identity", identity).Msg("user record created")
	return user, nil
}

// FindExistingChat looks up a chat whose participant set equals the given
// pair. The store only matches the sequence in stored order, so both
// orderings are tried before concluding "not found". Sets with more or fewer
// than two members always report not found; group chats are not deduplicated.
func (r *Registry) FindExistingChat(ctx context.Context, participants []string) (models.ChatRecord, bool, error) {
	if len(participants) != 2 {
		return models.ChatRecord{}, false, nil
	}

	orderings := [][]string{
		{participants[0], participants[1]},
		{participants[1], participants[0]},
	}
	for _, order := range orderings {
		recs, err := r.store.List(ctx, store.Query{Path: []string{"participants"}, Equals: order})
		if err != nil {
			return models.ChatRecord{}, false, fmt.Errorf("find chat: %w", err)
		}
		for _, rec := range recs {
			if !strings.HasPrefix(rec.Key, "chat:") {
				continue
			}
			var chat models.ChatRecord
			if err := json.Unmarshal(rec.Doc, &chat); err != nil {
				return models.ChatRecord{}, false, fmt.Errorf("decode chat %s: %w", rec.Key, err)
			}
			return chat, true, nil
		}
	}
	return models.ChatRecord{}, false, nil
}

// CreateChat persists a new chat and links it into every participant's user
// record. Per-participant link updates are independent round trips: one
// failure does not stop the others, and the joined failures come back as a
// LinkError alongside the created chat.
func (r *Registry) CreateChat(ctx context.Context, initiator string, participants []string) (models.ChatRecord, error) {
	participants = models.NormalizeParticipants(participants)
	if len(participants) < 2 {
		return models.ChatRecord{}, ErrInvalidParticipants
	}

	key, err := r.allocateChatID(ctx)
	if err != nil {
		return models.ChatRecord{}, err
	}

	chat := models.ChatRecord{
		Key:          key,
		Participants: participants,
		Messages:     []models.Message{},
		UpdatedAt:    r.now().UTC(),
	}
	if err := r.putChat(ctx, chat); err != nil {
		return models.ChatRecord{}, err
	}
	r.log.Info().Str("chat_id", chat.Key).Strs("participants", participants).Msg("chat created")

	var linkErrs []error
	for _, p := range participants {
		if err := r.linkUserToChat(ctx, p, chat.Key); err != nil {
			r.log.Error().Err(err).Str("chat_id", chat.Key).Str("identity", p).Msg("participant link failed")
			linkErrs = append(linkErrs, fmt.Errorf("link %s: %w", p, err))
		}
	}
	if initiator != "" {
		if err := r.linkUserToChat(ctx, initiator, chat.Key); err != nil {
			linkErrs = append(linkErrs, fmt.Errorf("link initiator %s: %w", initiator, err))
		}
	}

	if len(linkErrs) > 0 {
		return chat, &LinkError{Chat: chat, Err: errors.Join(linkErrs...)}
	}
	return chat, nil
}

// StartOrJoinChat combines the initiator with the targets and either creates
// a chat or, for an exact pair that already has one, reports the existing
// conversation as a DuplicateConversationError.
func (r *Registry) StartOrJoinChat(ctx context.Context, initiator string, targets []string) (models.ChatRecord, error) {
	candidate := models.NormalizeParticipants(append([]string{initiator}, targets...))
	if len(candidate) == 2 {
		existing, found, err := r.FindExistingChat(ctx, candidate)
		if err != nil {
			return models.ChatRecord{}, err
		}
		if found {
			return existing, &DuplicateConversationError{Chat: existing}
		}
	}
	return r.CreateChat(ctx, initiator, candidate)
}

// allocateChatID generates a fresh chat id, retrying on the unlikely
// collision with a stored chat key.
func (r *Registry) allocateChatID(ctx context.Context) (string, error) {
	for i := 0; i < chatKeyAttempts; i++ {
		id := r.newKey()
		_, err := r.store.Get(ctx, models.ChatKey(id))
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("allocate chat id: %w", err)
		}
	}
	return "", fmt.Errorf("allocate chat id: %d collisions in a row", chatKeyAttempts)
}

// linkUserToChat appends chatID to the user's chat list if absent, creating
// the user record when it does not exist yet.
func (r *Registry) linkUserToChat(ctx context.Context, identity, chatID string) error {
	user, err := r.getUser(ctx, identity)
	if errors.Is(err, store.ErrNotFound) {
		user = models.UserRecord{Key: identity, Chats: []string{}}
	} else if err != nil {
		return err
	}

	if user.HasChat(chatID) {
		return nil
	}
	user.Chats = append(user.Chats, chatID)
	return r.putUser(ctx, user)
}

func (r *Registry) getUser(ctx context.Context, identity string) (models.UserRecord, error) {
	rec, err := r.store.Get(ctx, models.UserKey(identity))
	if err != nil {
		return models.UserRecord{}, err
	}
	var user models.UserRecord
	if err := json.Unmarshal(rec.Doc, &user); err != nil {
		return models.UserRecord{}, fmt.Errorf("decode user %s: %w", identity, err)
	}
	return user, nil
}

func (r *Registry) putUser(ctx context.Context, user models.UserRecord) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", user.Key, err)
	}
	return r.store.Set(ctx, store.Record{Key: models.UserKey(user.Key), Doc: doc})
}

func (r *Registry) putChat(ctx context.Context, chat models.ChatRecord) error {
	doc, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("encode chat %s: %w", chat.Key, err)
	}
	return r.store.Set(ctx, store.Record{Key: models.ChatKey(chat.Key), Doc: doc})
}

func newChatID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
