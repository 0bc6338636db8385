package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/repository"
)

type flashcardRepository struct {
	db *sql.DB
}

// NewFlashcardRepository creates a new FlashcardRepository implementation
func NewFlashcardRepository(db *sql.DB) repository.FlashcardRepository {
	return &flashcardRepository{db: db}
}

func (r *flashcardRepository) Insert(ctx context.Context, c models.Flashcard) (*models.Flashcard, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("inserting flashcard: id=%s, deck_id=%s", c.ID, c.DeckID)

	inserted := c
	err := tx(ctx, r.db, func(t *sql.Tx) error {
		// Append at the end of the deck.
		var maxPos int
		if err := t.QueryRowContext(ctx, `
SELECT COALESCE(MAX(position), 0) FROM flashcards WHERE deck_id = ?
`, c.DeckID).Scan(&maxPos); err != nil {
			return err
		}
		inserted.Position = maxPos + 1

		_, err := t.ExecContext(ctx, `
INSERT INTO flashcards (id, deck_id, front_text, back_text, front_media, back_media, hint, position, created_at, updated_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, inserted.ID, inserted.DeckID, inserted.FrontText, inserted.BackText, inserted.FrontMedia,
			inserted.BackMedia, inserted.Hint, inserted.Position, inserted.CreatedAt,
			inserted.UpdatedAt, inserted.IsDirty)
		return err
	})
	if err != nil {
		log.Error("failed to insert flashcard: %v", err)
		return nil, apperrors.NewStorageError("insert flashcard", err)
	}
	log.Debug("flashcard inserted: id=%s, position=%d", inserted.ID, inserted.Position)
	return &inserted, nil
}

func (r *flashcardRepository) Get(ctx context.Context, id string) (*models.Flashcard, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("getting flashcard: id=%s", id)

	c, err := scanCard(r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM flashcards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("flashcard not found: id=%s", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get flashcard: %v", err)
		return nil, apperrors.NewStorageError("get flashcard", err)
	}
	return &c, nil
}

func (r *flashcardRepository) ListByDeck(ctx context.Context, deckID string) ([]models.Flashcard, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("listing flashcards: deck_id=%s", deckID)

	// Display depends on position order, so self-heal before reading.
	if _, err := r.RepairPositions(ctx, deckID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+cardColumns+` FROM flashcards WHERE deck_id = ? ORDER BY position
`, deckID)
	if err != nil {
		log.Error("failed to list flashcards: %v", err)
		return nil, apperrors.NewStorageError("list flashcards", err)
	}
	defer rows.Close()
	var cards []models.Flashcard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			log.Error("failed to scan flashcard row: %v", err)
			return nil, apperrors.NewStorageError("list flashcards", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list flashcards", err)
	}
	log.Debug("found %d flashcards", len(cards))
	return cards, nil
}

func (r *flashcardRepository) Update(ctx context.Context, c models.Flashcard) error {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("updating flashcard: id=%s", c.ID)

	res, err := r.db.ExecContext(ctx, `
UPDATE flashcards
SET front_text = ?, back_text = ?, front_media = ?, back_media = ?, hint = ?, updated_at = ?, is_dirty = ?
WHERE id = ?
`, c.FrontText, c.BackText, c.FrontMedia, c.BackMedia, c.Hint, c.UpdatedAt, c.IsDirty, c.ID)
	if err != nil {
		log.Error("failed to update flashcard: %v", err)
		return apperrors.NewStorageError("update flashcard", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("flashcard", c.ID)
	}
	return nil
}

func (r *flashcardRepository) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("deleting flashcard: id=%s", id)

	err := tx(ctx, r.db, func(t *sql.Tx) error {
		var deckID, ownerID string
		err := t.QueryRowContext(ctx, `
SELECT f.deck_id, d.owner_id FROM flashcards f JOIN decks d ON d.id = f.deck_id WHERE f.id = ?
`, id).Scan(&deckID, &ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError("flashcard", id)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := insertTombstone(ctx, t, models.EntityCard, id, ownerID, now); err != nil {
			return err
		}
		if err := insertTombstone(ctx, t, models.EntityStats, id, ownerID, now); err != nil {
			return err
		}

		if _, err := t.ExecContext(ctx, `DELETE FROM flashcards WHERE id = ?`, id); err != nil {
			return err
		}

		// Close the gap the deletion left in the deck's ordering.
		_, err = resequencePositions(ctx, t, deckID, now)
		return err
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return err
		}
		log.Error("failed to delete flashcard: %v", err)
		return apperrors.NewStorageError("delete flashcard", err)
	}
	log.Info("flashcard deleted: id=%s", id)
	return nil
}

func (r *flashcardRepository) Reorder(ctx context.Context, deckID string, orderedIDs []string) error {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")
	log.Debug("reordering deck: deck_id=%s, cards=%d", deckID, len(orderedIDs))

	err := tx(ctx, r.db, func(t *sql.Tx) error {
		rows, err := t.QueryContext(ctx, `SELECT id FROM flashcards WHERE deck_id = ?`, deckID)
		if err != nil {
			return err
		}
		current := make(map[string]bool)
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			current[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		// The id set must exactly match the deck's current cards.
		if len(orderedIDs) != len(current) {
			return apperrors.NewValidationError("orderedIDs",
				"id list does not match the deck's cards")
		}
		seen := make(map[string]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if seen[id] {
				return apperrors.NewValidationError("orderedIDs", "duplicate card id")
			}
			seen[id] = true
			if !current[id] {
				return apperrors.NewValidationError("orderedIDs",
					"id list does not match the deck's cards")
			}
		}

		now := time.Now().UTC()
		for i, id := range orderedIDs {
			// Position is synced content: reordered rows are marked dirty.
			if _, err := t.ExecContext(ctx, `
UPDATE flashcards SET position = ?, updated_at = ?, is_dirty = 1
WHERE id = ? AND position <> ?
`, i+1, now, id, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeValidation) {
			log.Warn("reorder rejected: %v", err)
			return err
		}
		log.Error("failed to reorder deck: %v", err)
		return apperrors.NewStorageError("reorder flashcards", err)
	}
	log.Debug("deck reordered: deck_id=%s", deckID)
	return nil
}

func (r *flashcardRepository) RepairPositions(ctx context.Context, deckID string) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("flashcard_repo")

	ok, err := positionsContiguous(ctx, r.db, deckID)
	if err != nil {
		log.Error("failed to verify positions: %v", err)
		return false, apperrors.NewStorageError("verify positions", err)
	}
	if ok {
		return false, nil
	}

	log.Warn("position invariant violated, repairing: deck_id=%s", deckID)
	repaired := false
	err = tx(ctx, r.db, func(t *sql.Tx) error {
		var txErr error
		repaired, txErr = resequencePositions(ctx, t, deckID, time.Now().UTC())
		return txErr
	})
	if err != nil {
		log.Error("position repair failed: %v", err)
		return false, apperrors.NewStorageError("repair positions", err)
	}
	if repaired {
		log.Info("positions repaired: deck_id=%s", deckID)
	}
	return repaired, nil
}
