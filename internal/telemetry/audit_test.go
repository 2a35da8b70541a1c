package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/telemetry"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.messenger", "messenger", "test", zerolog.Nop())

	var captured telemetry.AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.messenger", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		if ok {
			captured = envelope
		}
		return ok
	})).Return(nil)

	emitter.Emit(context.Background(), "chat_created", "c1", "", "req-1", "alice")

	publisher.AssertExpectations(t)
	assert.Equal(t, 1, captured.SchemaVersion)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "messenger", captured.Service)
	assert.Equal(t, "test", captured.Environment)
	assert.Equal(t, "req-1", captured.RequestID)
	assert.Equal(t, "alice", captured.Identity)
	assert.Equal(t, "chat_created", captured.Payload.Action)
	assert.Equal(t, "c1", captured.Payload.ChatID)
	require.NotEmpty(t, captured.OccurredAt)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.messenger", "messenger", "test", zerolog.Nop())

	publisher.On("Publish", mock.Anything, "audit.messenger", mock.Anything).Return(errors.New("broker down"))

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "message_appended", "c1", "", "req-1", "alice")
	})
	publisher.AssertExpectations(t)
}

func TestEmitNilSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "chat_created", "c1", "", "req-1", "alice")
	})

	withoutPublisher := telemetry.NewAuditEmitter(nil, "audit.messenger", "messenger", "test", zerolog.Nop())
	assert.NotPanics(t, func() {
		withoutPublisher.Emit(context.Background(), "chat_created", "c1", "", "req-1", "alice")
	})
}
