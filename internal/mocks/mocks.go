package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/chat"
	"messenger-service/internal/models"
	"messenger-service/internal/store"
)

type RegistryMock struct {
	mock.Mock
}

func (m *RegistryMock) EnsureUser(ctx context.Context, identity string) (models.UserRecord, error) {
	args := m.Called(ctx, identity)
	var user models.UserRecord
	if val := args.Get(0); val != nil {
		user = val.(models.UserRecord)
	}
	return user, args.Error(1)
}

func (m *RegistryMock) StartOrJoinChat(ctx context.Context, initiator string, targets []string) (models.ChatRecord, error) {
	args := m.Called(ctx, initiator, targets)
	var rec models.ChatRecord
	if val := args.Get(0); val != nil {
		rec = val.(models.ChatRecord)
	}
	return rec, args.Error(1)
}

type LedgerMock struct {
	mock.Mock
}

func (m *LedgerMock) AppendMessage(ctx context.Context, chatID, sender, text string) (models.Message, bool, error) {
	args := m.Called(ctx, chatID, sender, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *LedgerMock) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *LedgerMock) GetChat(ctx context.Context, chatID string) (models.ChatRecord, error) {
	args := m.Called(ctx, chatID)
	var rec models.ChatRecord
	if val := args.Get(0); val != nil {
		rec = val.(models.ChatRecord)
	}
	return rec, args.Error(1)
}

type ProjectorMock struct {
	mock.Mock
}

func (m *ProjectorMock) ProjectOverview(ctx context.Context, identity string) ([]chat.OverviewEntry, error) {
	args := m.Called(ctx, identity)
	var entries []chat.OverviewEntry
	if val := args.Get(0); val != nil {
		entries = val.([]chat.OverviewEntry)
	}
	return entries, args.Error(1)
}

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) Get(ctx context.Context, key string) (store.Record, error) {
	args := m.Called(ctx, key)
	var rec store.Record
	if val := args.Get(0); val != nil {
		rec = val.(store.Record)
	}
	return rec, args.Error(1)
}

func (m *StoreMock) List(ctx context.Context, q store.Query) ([]store.Record, error) {
	args := m.Called(ctx, q)
	var recs []store.Record
	if val := args.Get(0); val != nil {
		recs = val.([]store.Record)
	}
	return recs, args.Error(1)
}

func (m *StoreMock) Set(ctx context.Context, rec store.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *StoreMock) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *StoreMock) Subscribe(onChange func()) (cancel func()) {
	args := m.Called(onChange)
	if val := args.Get(0); val != nil {
		return val.(func())
	}
	return func() {}
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
