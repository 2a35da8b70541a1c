package models

import (
	"sort"
	"time"
)

// UserRecord is the stored document for a single identity. Chats holds chat
// keys in creation order; display ordering is derived elsewhere.
type UserRecord struct {
	Key   string   `json:"key"`
	Chats []string `json:"chats"`
}

// ChatRecord is the stored document for a conversation.
type ChatRecord struct {
	Key          string    `json:"key"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single entry in a chat ledger. Messages are immutable once
// appended.
type Message struct {
	From string    `json:"from"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// UserKey returns the store key for an identity's user record.
func UserKey(identity string) string {
	return "user:" + identity
}

// ChatKey returns the store key for a chat id.
func ChatKey(chatID string) string {
	return "chat:" + chatID
}

// HasParticipant reports whether identity is part of the chat.
func (c ChatRecord) HasParticipant(identity string) bool {
	for _, p := range c.Participants {
		if p == identity {
			return true
		}
	}
	return false
}

// HasChat reports whether chatID is already referenced by the user record.
func (u UserRecord) HasChat(chatID string) bool {
	for _, id := range u.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}

// NormalizeParticipants removes duplicates while keeping first-seen order.
func NormalizeParticipants(identities []string) []string {
	seen := make(map[string]struct{}, len(identities))
	out := make([]string, 0, len(identities))
	for _, id := range identities {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SortedPair returns the two identities in lexical order. Only meaningful for
// two-party chats, mirroring how pair lookups canonicalize ordering.
func SortedPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}
