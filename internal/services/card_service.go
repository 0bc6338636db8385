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

// CreateCardInput carries the caller-supplied fields for a new flashcard.
// The card is appended at the end of its deck.
type CreateCardInput struct {
	DeckID     string `json:"deck_id"`
	FrontText  string `json:"front_text"`
	BackText   string `json:"back_text"`
	FrontMedia string `json:"front_media"`
	BackMedia  string `json:"back_media"`
	Hint       string `json:"hint"`
}

// UpdateCardInput carries the mutable card fields. Nil means leave unchanged.
// Position is not here: ordering changes go through Reorder.
type UpdateCardInput struct {
	FrontText  *string `json:"front_text"`
	BackText   *string `json:"back_text"`
	FrontMedia *string `json:"front_media"`
	BackMedia  *string `json:"back_media"`
	Hint       *string `json:"hint"`
}

// CardService handles flashcard-related business logic
type CardService interface {
	CreateCard(ctx context.Context, input CreateCardInput) (*models.Flashcard, error)
	GetCard(ctx context.Context, id string) (*models.Flashcard, error)
	ListCards(ctx context.Context, deckID string) ([]models.Flashcard, error)
	UpdateCard(ctx context.Context, id string, input UpdateCardInput) (*models.Flashcard, error)
	DeleteCard(ctx context.Context, id string) error
	Reorder(ctx context.Context, deckID string, orderedIDs []string) error
}

type cardService struct {
	cards repository.FlashcardRepository
	decks repository.DeckRepository
}

// NewCardService creates a new CardService
func NewCardService(cards repository.FlashcardRepository, decks repository.DeckRepository) CardService {
	return &cardService{cards: cards, decks: decks}
}

func validateCardText(field, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.NewValidationError(field, "must not be empty")
	}
	if len(text) > models.MaxTextLen {
		return errors.NewValidationError(field, "too long")
	}
	return nil
}

// editableDeck loads the deck and rejects content edits on template-backed decks.
func (s *cardService) editableDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	deck, err := s.decks.Get(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", deckID)
	}
	if !deck.IsCustom {
		return nil, errors.NewValidationError("deck", "template-backed deck content cannot be edited")
	}
	return deck, nil
}

func (s *cardService) CreateCard(ctx context.Context, input CreateCardInput) (*models.Flashcard, error) {
	log := logger.FromContext(ctx)
	log.Debug("creating card: deck_id=%s", input.DeckID)

	if _, err := s.editableDeck(ctx, input.DeckID); err != nil {
		return nil, err
	}
	if err := validateCardText("front_text", input.FrontText); err != nil {
		return nil, err
	}
	if err := validateCardText("back_text", input.BackText); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	card := models.Flashcard{
		ID:         uuid.NewString(),
		DeckID:     input.DeckID,
		FrontText:  input.FrontText,
		BackText:   input.BackText,
		FrontMedia: input.FrontMedia,
		BackMedia:  input.BackMedia,
		Hint:       input.Hint,
		CreatedAt:  now,
		UpdatedAt:  now,
		IsDirty:    true,
	}

	inserted, err := s.cards.Insert(ctx, card)
	if err != nil {
		return nil, err
	}
	log.Info("card created: id=%s, deck_id=%s, position=%d", inserted.ID, inserted.DeckID, inserted.Position)
	return inserted, nil
}

func (s *cardService) GetCard(ctx context.Context, id string) (*models.Flashcard, error) {
	card, err := s.cards.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, errors.NewNotFoundError("flashcard", id)
	}
	return card, nil
}

func (s *cardService) ListCards(ctx context.Context, deckID string) ([]models.Flashcard, error) {
	deck, err := s.decks.Get(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", deckID)
	}
	return s.cards.ListByDeck(ctx, deckID)
}

func (s *cardService) UpdateCard(ctx context.Context, id string, input UpdateCardInput) (*models.Flashcard, error) {
	log := logger.FromContext(ctx)
	log.Debug("updating card: id=%s", id)

	card, err := s.cards.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, errors.NewNotFoundError("flashcard", id)
	}
	if _, err := s.editableDeck(ctx, card.DeckID); err != nil {
		return nil, err
	}

	if input.FrontText != nil {
		if err := validateCardText("front_text", *input.FrontText); err != nil {
			return nil, err
		}
		card.FrontText = *input.FrontText
	}
	if input.BackText != nil {
		if err := validateCardText("back_text", *input.BackText); err != nil {
			return nil, err
		}
		card.BackText = *input.BackText
	}
	if input.FrontMedia != nil {
		card.FrontMedia = *input.FrontMedia
	}
	if input.BackMedia != nil {
		card.BackMedia = *input.BackMedia
	}
	if input.Hint != nil {
		card.Hint = *input.Hint
	}

	card.UpdatedAt = time.Now().UTC()
	card.IsDirty = true
	if err := s.cards.Update(ctx, *card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *cardService) DeleteCard(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)
	log.Info("deleting card: id=%s", id)

	card, err := s.cards.Get(ctx, id)
	if err != nil {
		return err
	}
	if card == nil {
		return errors.NewNotFoundError("flashcard", id)
	}
	if _, err := s.editableDeck(ctx, card.DeckID); err != nil {
		return err
	}
	return s.cards.Delete(ctx, id)
}

func (s *cardService) Reorder(ctx context.Context, deckID string, orderedIDs []string) error {
	log := logger.FromContext(ctx)
	log.Debug("reordering deck: deck_id=%s, cards=%d", deckID, len(orderedIDs))

	if _, err := s.editableDeck(ctx, deckID); err != nil {
		return err
	}
	if len(orderedIDs) == 0 {
		return errors.NewValidationError("card_ids", "must not be empty")
	}
	return s.cards.Reorder(ctx, deckID, orderedIDs)
}
