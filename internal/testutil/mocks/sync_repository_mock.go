package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/repository"
)

// MockSyncRepository is a mock implementation of repository.SyncRepository
type MockSyncRepository struct {
	mock.Mock
}

func (m *MockSyncRepository) DirtyDecks(ctx context.Context, ownerID string) ([]models.Deck, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Deck), args.Error(1)
}

func (m *MockSyncRepository) DirtyCards(ctx context.Context, ownerID string) ([]models.Flashcard, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Flashcard), args.Error(1)
}

func (m *MockSyncRepository) DirtyStats(ctx context.Context, ownerID string) ([]models.ReviewStats, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReviewStats), args.Error(1)
}

func (m *MockSyncRepository) ClearDirtyDeck(ctx context.Context, id string, snapshot time.Time) (bool, error) {
	args := m.Called(ctx, id, snapshot)
	return args.Bool(0), args.Error(1)
}

func (m *MockSyncRepository) ClearDirtyCard(ctx context.Context, id string, snapshot time.Time) (bool, error) {
	args := m.Called(ctx, id, snapshot)
	return args.Bool(0), args.Error(1)
}

func (m *MockSyncRepository) ClearDirtyStats(ctx context.Context, flashcardID string, snapshot time.Time) (bool, error) {
	args := m.Called(ctx, flashcardID, snapshot)
	return args.Bool(0), args.Error(1)
}

func (m *MockSyncRepository) Tombstones(ctx context.Context, ownerID string) ([]models.Tombstone, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tombstone), args.Error(1)
}

func (m *MockSyncRepository) DeleteTombstone(ctx context.Context, entity, rowID string) error {
	args := m.Called(ctx, entity, rowID)
	return args.Error(0)
}

func (m *MockSyncRepository) SyncState(ctx context.Context, ownerID string) (*models.SyncState, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncState), args.Error(1)
}

func (m *MockSyncRepository) SetWatermark(ctx context.Context, ownerID string, pulledAt time.Time) error {
	args := m.Called(ctx, ownerID, pulledAt)
	return args.Error(0)
}

func (m *MockSyncRepository) SetLastSynced(ctx context.Context, ownerID string, syncedAt time.Time) error {
	args := m.Called(ctx, ownerID, syncedAt)
	return args.Error(0)
}

func (m *MockSyncRepository) ApplyRemoteDeck(ctx context.Context, deck models.Deck) (repository.ApplyResult, error) {
	args := m.Called(ctx, deck)
	return args.Get(0).(repository.ApplyResult), args.Error(1)
}

func (m *MockSyncRepository) ApplyRemoteCard(ctx context.Context, card models.Flashcard) (repository.ApplyResult, error) {
	args := m.Called(ctx, card)
	return args.Get(0).(repository.ApplyResult), args.Error(1)
}

func (m *MockSyncRepository) ApplyRemoteStats(ctx context.Context, stats models.ReviewStats) (repository.ApplyResult, error) {
	args := m.Called(ctx, stats)
	return args.Get(0).(repository.ApplyResult), args.Error(1)
}

func (m *MockSyncRepository) ApplyRemoteDelete(ctx context.Context, entity, rowID string) (repository.ApplyResult, error) {
	args := m.Called(ctx, entity, rowID)
	return args.Get(0).(repository.ApplyResult), args.Error(1)
}

func (m *MockSyncRepository) Owners(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSyncRepository) DirtyCounts(ctx context.Context, ownerID string) (*models.SyncStatus, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncStatus), args.Error(1)
}
