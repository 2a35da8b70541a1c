// Package telemetry emits audit events for the durable side effects of the
// messenger: chats created, messages appended.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Publisher is the transport audit events go out on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter formats and publishes audit envelopes.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         zerolog.Logger
}

// AuditEnvelope is the wire format of an audit event.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	Identity      string       `json:"identity,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

// AuditPayload carries the event name and its chat-scoped context.
type AuditPayload struct {
	Action string `json:"action"`
	ChatID string `json:"chat_id,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewAuditEmitter builds an emitter; a nil publisher makes Emit a no-op.
func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log zerolog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log.With().Str("component", "audit").Logger(),
	}
}

// Emit publishes one audit event. Failures are logged, never propagated:
// auditing must not fail the operation it describes.
func (e *AuditEmitter) Emit(ctx context.Context, action, chatID, detail, requestID, identity string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Identity:      identity,
		Payload: AuditPayload{
			Action: action,
			ChatID: chatID,
			Detail: detail,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.log.Error().Err(err).Str("action", action).Msg("audit publish failed")
	}
}
