package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/lexideck/internal/models"
)

// MockStatsRepository is a mock implementation of repository.StatsRepository
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) Get(ctx context.Context, flashcardID string) (*models.ReviewStats, error) {
	args := m.Called(ctx, flashcardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewStats), args.Error(1)
}

func (m *MockStatsRepository) Upsert(ctx context.Context, stats models.ReviewStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *MockStatsRepository) DueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]models.Flashcard, error) {
	args := m.Called(ctx, deckID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Flashcard), args.Error(1)
}

func (m *MockStatsRepository) InsertReviewLog(ctx context.Context, flashcardID, outcome string, reviewedAt time.Time) error {
	args := m.Called(ctx, flashcardID, outcome, reviewedAt)
	return args.Error(0)
}
