// Package identity resolves the caller identity the messenger core depends
// on. Authentication itself is an external concern; the provider only maps an
// opaque token to an identity string.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrUnknownToken is returned when a token resolves to no identity.
var ErrUnknownToken = errors.New("unknown token")

// Provider maps a bearer token to a caller identity.
type Provider interface {
	Identify(ctx context.Context, token string) (string, error)
}

// StaticProvider resolves identities from a fixed token table.
type StaticProvider struct {
	tokens map[string]string
}

// NewStatic builds a provider over a token-to-identity table.
func NewStatic(tokens map[string]string) *StaticProvider {
	copied := make(map[string]string, len(tokens))
	for token, id := range tokens {
		copied[token] = id
	}
	return &StaticProvider{tokens: copied}
}

// Identify looks the token up in the table.
func (p *StaticProvider) Identify(ctx context.Context, token string) (string, error) {
	id, ok := p.tokens[token]
	if !ok {
		return "", ErrUnknownToken
	}
	return id, nil
}

// Passthrough treats the token itself as the identity. Development only.
type Passthrough struct{}

// Identify returns the trimmed token as the identity.
func (Passthrough) Identify(ctx context.Context, token string) (string, error) {
	id := strings.TrimSpace(token)
	if id == "" {
		return "", ErrUnknownToken
	}
	return id, nil
}
