package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/remote"
)

// MockBackend is a mock implementation of remote.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) PushDecks(ctx context.Context, ownerID string, decks []models.Deck) error {
	args := m.Called(ctx, ownerID, decks)
	return args.Error(0)
}

func (m *MockBackend) PushCards(ctx context.Context, ownerID string, cards []models.Flashcard) error {
	args := m.Called(ctx, ownerID, cards)
	return args.Error(0)
}

func (m *MockBackend) PushStats(ctx context.Context, ownerID string, stats []models.ReviewStats) error {
	args := m.Called(ctx, ownerID, stats)
	return args.Error(0)
}

func (m *MockBackend) DeleteRows(ctx context.Context, ownerID string, deletes []remote.RemoteDelete) error {
	args := m.Called(ctx, ownerID, deletes)
	return args.Error(0)
}

func (m *MockBackend) Changes(ctx context.Context, ownerID string, since *time.Time) (*remote.ChangeSet, error) {
	args := m.Called(ctx, ownerID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.ChangeSet), args.Error(1)
}
