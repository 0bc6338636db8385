package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/lexideck/internal/models"
)

// MockFlashcardRepository is a mock implementation of repository.FlashcardRepository
type MockFlashcardRepository struct {
	mock.Mock
}

func (m *MockFlashcardRepository) Insert(ctx context.Context, card models.Flashcard) (*models.Flashcard, error) {
	args := m.Called(ctx, card)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flashcard), args.Error(1)
}

func (m *MockFlashcardRepository) Get(ctx context.Context, id string) (*models.Flashcard, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flashcard), args.Error(1)
}

func (m *MockFlashcardRepository) ListByDeck(ctx context.Context, deckID string) ([]models.Flashcard, error) {
	args := m.Called(ctx, deckID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Flashcard), args.Error(1)
}

func (m *MockFlashcardRepository) Update(ctx context.Context, card models.Flashcard) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockFlashcardRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFlashcardRepository) Reorder(ctx context.Context, deckID string, orderedIDs []string) error {
	args := m.Called(ctx, deckID, orderedIDs)
	return args.Error(0)
}

func (m *MockFlashcardRepository) RepairPositions(ctx context.Context, deckID string) (bool, error) {
	args := m.Called(ctx, deckID)
	return args.Bool(0), args.Error(1)
}
