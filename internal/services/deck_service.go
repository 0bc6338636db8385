package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/repository"
)

// CreateDeckInput carries the caller-supplied fields for a new deck.
type CreateDeckInput struct {
	OwnerID     string   `json:"owner_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	TemplateRef string   `json:"template_ref"`
	CoverRef    string   `json:"cover_ref"`
	Tags        []string `json:"tags"`
}

// UpdateDeckInput carries the mutable deck fields. Nil means leave unchanged.
type UpdateDeckInput struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Language    *string   `json:"language"`
	CoverRef    *string   `json:"cover_ref"`
	Tags        *[]string `json:"tags"`
	IsActive    *bool     `json:"is_active"`
}

// DeckService handles deck-related business logic
type DeckService interface {
	CreateDeck(ctx context.Context, input CreateDeckInput) (*models.Deck, error)
	GetDeck(ctx context.Context, id string) (*models.Deck, error)
	ListDecks(ctx context.Context, filter models.DeckFilter) ([]models.Deck, error)
	UpdateDeck(ctx context.Context, id string, input UpdateDeckInput) (*models.Deck, error)
	DeleteDeck(ctx context.Context, id string) error
	DeckCounts(ctx context.Context, id string) (*models.DeckCounts, error)
	Overview(ctx context.Context, ownerID string) ([]models.DeckOverview, error)
}

type deckService struct {
	decks repository.DeckRepository
}

// NewDeckService creates a new DeckService
func NewDeckService(decks repository.DeckRepository) DeckService {
	return &deckService{decks: decks}
}

func (s *deckService) CreateDeck(ctx context.Context, input CreateDeckInput) (*models.Deck, error) {
	log := logger.FromContext(ctx)
	log.Debug("creating deck: owner=%s, name=%s", input.OwnerID, input.Name)

	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, errors.NewValidationError("owner_id", "must not be empty")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.NewValidationError("name", "must not be empty")
	}

	now := time.Now().UTC()
	deck := models.Deck{
		ID:          uuid.NewString(),
		OwnerID:     input.OwnerID,
		IsCustom:    input.TemplateRef == "",
		TemplateRef: input.TemplateRef,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Language:    input.Language,
		CoverRef:    input.CoverRef,
		Tags:        input.Tags,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsDirty:     true,
	}

	if err := s.decks.Insert(ctx, deck); err != nil {
		return nil, err
	}
	log.Info("deck created: id=%s, name=%s", deck.ID, deck.Name)
	return &deck, nil
}

func (s *deckService) GetDeck(ctx context.Context, id string) (*models.Deck, error) {
	deck, err := s.decks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", id)
	}
	return deck, nil
}

func (s *deckService) ListDecks(ctx context.Context, filter models.DeckFilter) ([]models.Deck, error) {
	return s.decks.List(ctx, filter)
}

func (s *deckService) UpdateDeck(ctx context.Context, id string, input UpdateDeckInput) (*models.Deck, error) {
	log := logger.FromContext(ctx)
	log.Debug("updating deck: id=%s", id)

	deck, err := s.decks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", id)
	}

	// Template-backed decks are content-read-only: only activation toggles.
	if !deck.IsCustom {
		if input.Name != nil || input.Description != nil || input.Language != nil ||
			input.CoverRef != nil || input.Tags != nil {
			return nil, errors.NewValidationError("deck", "template-backed deck content cannot be edited")
		}
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, errors.NewValidationError("name", "must not be empty")
		}
		deck.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		deck.Description = *input.Description
	}
	if input.Language != nil {
		deck.Language = *input.Language
	}
	if input.CoverRef != nil {
		deck.CoverRef = *input.CoverRef
	}
	if input.Tags != nil {
		deck.Tags = *input.Tags
	}
	if input.IsActive != nil {
		deck.IsActive = *input.IsActive
	}

	deck.UpdatedAt = time.Now().UTC()
	deck.IsDirty = true
	if err := s.decks.Update(ctx, *deck); err != nil {
		return nil, err
	}
	return deck, nil
}

func (s *deckService) DeleteDeck(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)
	log.Info("deleting deck: id=%s", id)

	deck, err := s.decks.Get(ctx, id)
	if err != nil {
		return err
	}
	if deck == nil {
		return errors.NewNotFoundError("deck", id)
	}
	return s.decks.Delete(ctx, id)
}

func (s *deckService) DeckCounts(ctx context.Context, id string) (*models.DeckCounts, error) {
	deck, err := s.decks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", id)
	}
	return s.decks.Counts(ctx, id, time.Now().UTC())
}

func (s *deckService) Overview(ctx context.Context, ownerID string) ([]models.DeckOverview, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.NewValidationError("owner_id", "must not be empty")
	}
	return s.decks.Overview(ctx, ownerID, time.Now().UTC())
}
