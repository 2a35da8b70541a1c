package chat

import (
	"errors"
	"fmt"

	"messenger-service/internal/models"
)

var (
	// ErrChatNotFound indicates a referenced chat id does not resolve.
	ErrChatNotFound = errors.New("chat not found")

	// ErrInvalidParticipants is returned when fewer than two distinct
	// identities are supplied for a new chat.
	ErrInvalidParticipants = errors.New("chat requires at least two distinct participants")

	// ErrDuplicateConversation marks the normal alternate outcome of starting
	// a two-party chat that already exists.
	ErrDuplicateConversation = errors.New("conversation already exists")

	// ErrNotParticipant rejects a message whose sender is not part of the
	// chat.
	ErrNotParticipant = errors.New("sender is not a chat participant")
)

// DuplicateConversationError carries the existing chat so the caller can
// route to it instead of creating a second one.
type DuplicateConversationError struct {
	Chat models.ChatRecord
}

func (e *DuplicateConversationError) Error() string {
	return fmt.Sprintf("conversation already exists: %s", e.Chat.Key)
}

func (e *DuplicateConversationError) Unwrap() error { return ErrDuplicateConversation }

// LinkError reports back-reference updates that failed after the chat record
// itself was persisted. The chat exists; the named participant links do not,
// and no repair is attempted.
type LinkError struct {
	Chat models.ChatRecord
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("chat %s created but participant links failed: %v", e.Chat.Key, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }
