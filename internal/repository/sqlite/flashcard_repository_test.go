package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/repository"
	"github.com/vytor/lexideck/internal/repository/sqlite"
	"github.com/vytor/lexideck/internal/testutil"
)

type FlashcardRepositorySuite struct {
	suite.Suite
	db    *sql.DB
	repo  repository.FlashcardRepository
	decks repository.DeckRepository
}

func (s *FlashcardRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewFlashcardRepository(s.db)
	s.decks = sqlite.NewDeckRepository(s.db)
}

func (s *FlashcardRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *FlashcardRepositorySuite) seedDeck(ownerID string) models.Deck {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	deck := models.Deck{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		IsCustom:  true,
		Name:      "Spanish Basics",
		Language:  "es",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		IsDirty:   true,
	}
	s.Require().NoError(s.decks.Insert(ctx, deck))
	return deck
}

func (s *FlashcardRepositorySuite) seedCards(deckID string, n int) []models.Flashcard {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	cards := make([]models.Flashcard, 0, n)
	for i := 0; i < n; i++ {
		inserted, err := s.repo.Insert(ctx, models.Flashcard{
			ID:        uuid.NewString(),
			DeckID:    deckID,
			FrontText: fmt.Sprintf("front %d", i+1),
			BackText:  fmt.Sprintf("back %d", i+1),
			CreatedAt: now,
			UpdatedAt: now,
			IsDirty:   true,
		})
		s.Require().NoError(err)
		cards = append(cards, *inserted)
	}
	return cards
}

func (s *FlashcardRepositorySuite) TestInsertAppendsAtEnd() {
	ctx := context.Background()
	deck := s.seedDeck("user-1")

	cards := s.seedCards(deck.ID, 3)
	for i, c := range cards {
		s.Equal(i+1, c.Position)
	}

	got, err := s.repo.Get(ctx, cards[2].ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(3, got.Position)
	s.Equal("front 3", got.FrontText)
}

func (s *FlashcardRepositorySuite) TestGetMissingReturnsNil() {
	got, err := s.repo.Get(context.Background(), "nope")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *FlashcardRepositorySuite) TestListByDeckRepairsPositions() {
	ctx := context.Background()
	deck := s.seedDeck("user-1")
	cards := s.seedCards(deck.ID, 3)

	// Corrupt the positions while keeping the relative order.
	_, err := s.db.ExecContext(ctx, `UPDATE flashcards SET position = 4 WHERE id = ?`, cards[0].ID)
	s.Require().NoError(err)
	_, err = s.db.ExecContext(ctx, `UPDATE flashcards SET position = 7 WHERE id = ?`, cards[1].ID)
	s.Require().NoError(err)
	_, err = s.db.ExecContext(ctx, `UPDATE flashcards SET position = 9 WHERE id = ?`, cards[2].ID)
	s.Require().NoError(err)

	listed, err := s.repo.ListByDeck(ctx, deck.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	for i, c := range listed {
		s.Equal(i+1, c.Position)
		s.Equal(cards[i].ID, c.ID)
	}
}

func (s *FlashcardRepositorySuite) TestUpdateContentOnly() {
	ctx := context.Background()
	deck := s.seedDeck("user-1")
	cards := s.seedCards(deck.ID, 2)

	edited := cards[0]
	edited.FrontText = "hola"
	edited.BackText = "hello"
	edited.Hint = "greeting"
	edited.UpdatedAt = time.Now().UTC().Truncate(time.Second).Add(time.Minute)
	edited.IsDirty = true
	s.Require().NoError(s.repo.Update(ctx, edited))

	got, err := s.repo.Get(ctx, edited.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("hola", got.FrontText)
	s.Equal("greeting", got.Hint)
	s.Equal(1, got.Position)
}

func (s *FlashcardRepositorySuite) TestUpdateMissingReturnsNotFound() {
	err := s.repo.Update(context.Background(), models.Flashcard{
		ID:        "missing",
		FrontText: "x",
		BackText:  "y",
		UpdatedAt: time.Now().UTC(),
	})
	s.Require().Error(err)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func (s *FlashcardRepositorySuite) TestDeleteTombstonesAndResequences() {
	ctx := context.Background()
	deck := s.seedDeck("user-1")
	cards := s.seedCards(deck.ID, 3)

	s.Require().NoError(s.repo.Delete(ctx, cards[1].ID))

	listed, err := s.repo.ListByDeck(ctx, deck.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(cards[0].ID, listed[0].ID)
	s.Equal(1, listed[0].Position)
	s.Equal(cards[2].ID, listed[1].ID)
	s.Equal(2, listed[1].Position)

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tombstones WHERE row_id = ? AND entity IN (?, ?)`,
		cards[1].ID, models.EntityCard, models.EntityStats).Scan(&count)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *FlashcardRepositorySuite) TestDeleteMissingReturnsNotFound() {
	err := s.repo.Delete(context.Background(), "missing")
	s.Require().Error(err)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func (s *FlashcardRepositorySuite) TestReorderAssignsNewPositions() {
	ctx := context.Background()
	deck := s.seedDeck("user-1")
	cards := s.seedCards(deck.ID, 3)

	s.Require().NoError(s.repo.Reorder(ctx, deck.ID, []string{cards[2].ID, cards[0].ID, cards[1].ID}))

	listed, err := s.repo.ListByDeck(ctx, deck.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal(cards[2].ID, listed[0].ID)
	s.Equal(cards[0].ID, listed[1].ID)
	s.Equal(cards[1].ID, listed[2].ID)

	// Moved rows are flagged for push.
	for _, c := range listed {
		s.True(c.IsDirty)
	}
}

func (s *FlashcardRepositorySuite) TestReorderRejectsPartialIDSet() {
	ctx := context.Background()
	deck := s.seedDeck("user-1")
	cards := s.seedCards(deck.ID, 3)

	err := s.repo.Reorder(ctx, deck.ID, []string{cards[0].ID, cards[1].ID})
	s.Require().Error(err)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeValidation))

	// Nothing moved.
	listed, listErr := s.repo.ListByDeck(ctx, deck.ID)
	s.Require().NoError(listErr)
	for i, c := range listed {
		s.Equal(cards[i].ID, c.ID)
	}
}

func (s *FlashcardRepositorySuite) TestReorderRejectsDuplicateIDs() {
	ctx := context.Background()
	deck := s.seedDeck("user-1")
	cards := s.seedCards(deck.ID, 2)

	err := s.repo.Reorder(ctx, deck.ID, []string{cards[0].ID, cards[0].ID})
	s.Require().Error(err)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func (s *FlashcardRepositorySuite) TestReorderRejectsForeignCard() {
	ctx := context.Background()
	deckA := s.seedDeck("user-1")
	deckB := s.seedDeck("user-1")
	cardsA := s.seedCards(deckA.ID, 2)
	cardsB := s.seedCards(deckB.ID, 1)

	err := s.repo.Reorder(ctx, deckA.ID, []string{cardsA[0].ID, cardsB[0].ID})
	s.Require().Error(err)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func (s *FlashcardRepositorySuite) TestRepairPositionsIdempotent() {
	ctx := context.Background()
	deck := s.seedDeck("user-1")
	cards := s.seedCards(deck.ID, 3)

	_, err := s.db.ExecContext(ctx, `UPDATE flashcards SET position = 10 WHERE id = ?`, cards[2].ID)
	s.Require().NoError(err)

	changed, err := s.repo.RepairPositions(ctx, deck.ID)
	s.Require().NoError(err)
	s.True(changed)

	changed, err = s.repo.RepairPositions(ctx, deck.ID)
	s.Require().NoError(err)
	s.False(changed)

	listed, err := s.repo.ListByDeck(ctx, deck.ID)
	s.Require().NoError(err)
	for i, c := range listed {
		s.Equal(i+1, c.Position)
	}
}

func TestFlashcardRepositorySuite(t *testing.T) {
	suite.Run(t, new(FlashcardRepositorySuite))
}
