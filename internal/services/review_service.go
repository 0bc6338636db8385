package services

import (
	"context"
	"time"

	"github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/repository"
	"github.com/vytor/lexideck/internal/srs"
)

// ReviewService handles study sessions: due-card selection and grading.
type ReviewService interface {
	// RecordReview grades a card and persists the advanced scheduling state.
	RecordReview(ctx context.Context, flashcardID string, outcome string) (*models.ReviewStats, error)
	// DueCards returns the cards to study for a deck, in position order.
	DueCards(ctx context.Context, deckID string, limit int) ([]models.Flashcard, error)
	GetStats(ctx context.Context, flashcardID string) (*models.ReviewStats, error)
}

type reviewService struct {
	stats     repository.StatsRepository
	cards     repository.FlashcardRepository
	scheduler srs.Scheduler
}

// NewReviewService creates a new ReviewService
func NewReviewService(stats repository.StatsRepository, cards repository.FlashcardRepository, scheduler srs.Scheduler) ReviewService {
	return &reviewService{stats: stats, cards: cards, scheduler: scheduler}
}

func (s *reviewService) RecordReview(ctx context.Context, flashcardID string, outcome string) (*models.ReviewStats, error) {
	log := logger.FromContext(ctx)
	log.Debug("recording review: flashcard_id=%s, outcome=%s", flashcardID, outcome)

	grade, err := srs.ParseOutcome(outcome)
	if err != nil {
		return nil, errors.NewValidationError("outcome", "must be one of again, hard, good, easy")
	}

	card, err := s.cards.Get(ctx, flashcardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, errors.NewNotFoundError("flashcard", flashcardID)
	}

	now := time.Now().UTC()
	current, err := s.stats.Get(ctx, flashcardID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		fresh := srs.NewStats(flashcardID, now)
		current = &fresh
	}

	next := s.scheduler.Advance(*current, grade, now)
	if err := s.stats.Upsert(ctx, next); err != nil {
		return nil, err
	}
	if err := s.stats.InsertReviewLog(ctx, flashcardID, grade.String(), now); err != nil {
		// History is local-only; a failed log entry must not fail the review.
		log.Warn("failed to write review log: %v", err)
	}

	log.Info("review recorded: flashcard_id=%s, outcome=%s, interval=%dd, status=%s",
		flashcardID, grade, next.IntervalDays, next.Status)
	return &next, nil
}

func (s *reviewService) DueCards(ctx context.Context, deckID string, limit int) ([]models.Flashcard, error) {
	return s.stats.DueCards(ctx, deckID, time.Now().UTC(), limit)
}

func (s *reviewService) GetStats(ctx context.Context, flashcardID string) (*models.ReviewStats, error) {
	card, err := s.cards.Get(ctx, flashcardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, errors.NewNotFoundError("flashcard", flashcardID)
	}
	stats, err := s.stats.Get(ctx, flashcardID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		fresh := srs.NewStats(flashcardID, time.Now().UTC())
		return &fresh, nil
	}
	return stats, nil
}
