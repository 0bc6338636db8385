package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/repository"
)

type syncRepository struct {
	db *sql.DB
}

// NewSyncRepository creates a new SyncRepository implementation
func NewSyncRepository(db *sql.DB) repository.SyncRepository {
	return &syncRepository{db: db}
}

func (r *syncRepository) DirtyDecks(ctx context.Context, ownerID string) ([]models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	rows, err := r.db.QueryContext(ctx, `
SELECT `+deckColumns+` FROM decks WHERE owner_id = ? AND is_dirty = 1 ORDER BY updated_at
`, ownerID)
	if err != nil {
		log.Error("failed to query dirty decks: %v", err)
		return nil, apperrors.NewStorageError("dirty decks", err)
	}
	defer rows.Close()
	var decks []models.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("dirty decks", err)
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("dirty decks", err)
	}
	log.Debug("found %d dirty decks for owner=%s", len(decks), ownerID)
	return decks, nil
}

func (r *syncRepository) DirtyCards(ctx context.Context, ownerID string) ([]models.Flashcard, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	rows, err := r.db.QueryContext(ctx, `
SELECT f.id, f.deck_id, f.front_text, f.back_text, f.front_media, f.back_media, f.hint, f.position, f.created_at, f.updated_at, f.is_dirty
FROM flashcards f
JOIN decks d ON d.id = f.deck_id
WHERE d.owner_id = ? AND f.is_dirty = 1
ORDER BY f.updated_at
`, ownerID)
	if err != nil {
		log.Error("failed to query dirty cards: %v", err)
		return nil, apperrors.NewStorageError("dirty cards", err)
	}
	defer rows.Close()
	var cards []models.Flashcard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("dirty cards", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("dirty cards", err)
	}
	log.Debug("found %d dirty cards for owner=%s", len(cards), ownerID)
	return cards, nil
}

func (r *syncRepository) DirtyStats(ctx context.Context, ownerID string) ([]models.ReviewStats, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	rows, err := r.db.QueryContext(ctx, `
SELECT s.flashcard_id, s.easiness_factor, s.repetitions, s.interval_days, s.next_review_date, s.status, s.correct_count, s.incorrect_count, s.last_reviewed_at, s.updated_at, s.is_dirty
FROM stats s
JOIN flashcards f ON f.id = s.flashcard_id
JOIN decks d ON d.id = f.deck_id
WHERE d.owner_id = ? AND s.is_dirty = 1
ORDER BY s.updated_at
`, ownerID)
	if err != nil {
		log.Error("failed to query dirty stats: %v", err)
		return nil, apperrors.NewStorageError("dirty stats", err)
	}
	defer rows.Close()
	var stats []models.ReviewStats
	for rows.Next() {
		s, err := scanStats(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("dirty stats", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("dirty stats", err)
	}
	log.Debug("found %d dirty stats for owner=%s", len(stats), ownerID)
	return stats, nil
}

func (r *syncRepository) clearDirty(ctx context.Context, table, idCol, id string, snapshot time.Time) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	// The snapshot guard: if a local edit advanced updated_at after the push
	// snapshot was read, the row stays dirty for the next cycle.
	res, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET is_dirty = 0 WHERE `+idCol+` = ? AND is_dirty = 1 AND updated_at = ?`,
		id, snapshot)
	if err != nil {
		log.Error("failed to clear dirty flag on %s: %v", table, err)
		return false, apperrors.NewStorageError("clear dirty "+table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("clear dirty "+table, err)
	}
	if n == 0 {
		log.Debug("dirty flag not cleared (row advanced or gone): table=%s, id=%s", table, id)
	}
	return n > 0, nil
}

func (r *syncRepository) ClearDirtyDeck(ctx context.Context, id string, snapshot time.Time) (bool, error) {
	return r.clearDirty(ctx, "decks", "id", id, snapshot)
}

func (r *syncRepository) ClearDirtyCard(ctx context.Context, id string, snapshot time.Time) (bool, error) {
	return r.clearDirty(ctx, "flashcards", "id", id, snapshot)
}

func (r *syncRepository) ClearDirtyStats(ctx context.Context, flashcardID string, snapshot time.Time) (bool, error) {
	return r.clearDirty(ctx, "stats", "flashcard_id", flashcardID, snapshot)
}

func (r *syncRepository) Tombstones(ctx context.Context, ownerID string) ([]models.Tombstone, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	rows, err := r.db.QueryContext(ctx, `
SELECT entity, row_id, owner_id, deleted_at FROM tombstones WHERE owner_id = ? ORDER BY deleted_at
`, ownerID)
	if err != nil {
		log.Error("failed to query tombstones: %v", err)
		return nil, apperrors.NewStorageError("tombstones", err)
	}
	defer rows.Close()
	var tombs []models.Tombstone
	for rows.Next() {
		var t models.Tombstone
		if err := rows.Scan(&t.Entity, &t.RowID, &t.OwnerID, &t.DeletedAt); err != nil {
			return nil, apperrors.NewStorageError("tombstones", err)
		}
		tombs = append(tombs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("tombstones", err)
	}
	log.Debug("found %d tombstones for owner=%s", len(tombs), ownerID)
	return tombs, nil
}

func (r *syncRepository) DeleteTombstone(ctx context.Context, entity, rowID string) error {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")
	log.Debug("removing tombstone: entity=%s, row_id=%s", entity, rowID)

	_, err := r.db.ExecContext(ctx, `DELETE FROM tombstones WHERE entity = ? AND row_id = ?`, entity, rowID)
	if err != nil {
		log.Error("failed to delete tombstone: %v", err)
		return apperrors.NewStorageError("delete tombstone", err)
	}
	return nil
}

func (r *syncRepository) SyncState(ctx context.Context, ownerID string) (*models.SyncState, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	state := models.SyncState{OwnerID: ownerID}
	var pulled, synced sql.NullTime
	err := r.db.QueryRowContext(ctx, `
SELECT last_pulled_at, last_synced_at FROM sync_state WHERE owner_id = ?
`, ownerID).Scan(&pulled, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return &state, nil
	}
	if err != nil {
		log.Error("failed to get sync state: %v", err)
		return nil, apperrors.NewStorageError("sync state", err)
	}
	if pulled.Valid {
		t := pulled.Time
		state.LastPulledAt = &t
	}
	if synced.Valid {
		t := synced.Time
		state.LastSyncedAt = &t
	}
	return &state, nil
}

func (r *syncRepository) SetWatermark(ctx context.Context, ownerID string, pulledAt time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")
	log.Debug("setting watermark: owner=%s, pulled_at=%v", ownerID, pulledAt)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO sync_state (owner_id, last_pulled_at) VALUES (?, ?)
ON CONFLICT (owner_id) DO UPDATE SET last_pulled_at = excluded.last_pulled_at
`, ownerID, pulledAt)
	if err != nil {
		log.Error("failed to set watermark: %v", err)
		return apperrors.NewStorageError("set watermark", err)
	}
	return nil
}

func (r *syncRepository) SetLastSynced(ctx context.Context, ownerID string, syncedAt time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")
	log.Debug("setting last synced: owner=%s, synced_at=%v", ownerID, syncedAt)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO sync_state (owner_id, last_synced_at) VALUES (?, ?)
ON CONFLICT (owner_id) DO UPDATE SET last_synced_at = excluded.last_synced_at
`, ownerID, syncedAt)
	if err != nil {
		log.Error("failed to set last synced: %v", err)
		return apperrors.NewStorageError("set last synced", err)
	}
	return nil
}

func (r *syncRepository) hasTombstone(ctx context.Context, q querier, entity, rowID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tombstones WHERE entity = ? AND row_id = ?`, entity, rowID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *syncRepository) ApplyRemoteDeck(ctx context.Context, d models.Deck) (repository.ApplyResult, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	result := repository.IgnoredOlder
	err := tx(ctx, r.db, func(t *sql.Tx) error {
		// A pending local delete beats any remote edit; push resolves it.
		tombstoned, err := r.hasTombstone(ctx, t, models.EntityDeck, d.ID)
		if err != nil {
			return err
		}
		if tombstoned {
			result = repository.DeferredDirty
			return nil
		}

		var localUpdated time.Time
		var localDirty bool
		err = t.QueryRowContext(ctx, `SELECT updated_at, is_dirty FROM decks WHERE id = ?`, d.ID).
			Scan(&localUpdated, &localDirty)
		if errors.Is(err, sql.ErrNoRows) {
			_, err = t.ExecContext(ctx, `
INSERT INTO decks (id, owner_id, is_custom, template_ref, name, description, language, cover_ref, tags, is_active, created_at, updated_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
`, d.ID, d.OwnerID, d.IsCustom, d.TemplateRef, d.Name, d.Description, d.Language, d.CoverRef,
				joinTags(d.Tags), d.IsActive, d.CreatedAt, d.UpdatedAt)
			if err == nil {
				result = repository.Applied
			}
			return err
		}
		if err != nil {
			return err
		}

		if localDirty {
			result = repository.DeferredDirty
			return nil
		}
		if !d.UpdatedAt.After(localUpdated) {
			result = repository.IgnoredOlder
			return nil
		}

		_, err = t.ExecContext(ctx, `
UPDATE decks
SET owner_id = ?, is_custom = ?, template_ref = ?, name = ?, description = ?, language = ?, cover_ref = ?, tags = ?, is_active = ?, updated_at = ?, is_dirty = 0
WHERE id = ?
`, d.OwnerID, d.IsCustom, d.TemplateRef, d.Name, d.Description, d.Language, d.CoverRef,
			joinTags(d.Tags), d.IsActive, d.UpdatedAt, d.ID)
		if err == nil {
			result = repository.Applied
		}
		return err
	})
	if err != nil {
		log.Error("failed to apply remote deck %s: %v", d.ID, err)
		return result, apperrors.NewStorageError("apply remote deck", err)
	}
	log.Debug("remote deck %s: %s", d.ID, result)
	return result, nil
}

func (r *syncRepository) ApplyRemoteCard(ctx context.Context, c models.Flashcard) (repository.ApplyResult, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	result := repository.IgnoredOlder
	err := tx(ctx, r.db, func(t *sql.Tx) error {
		tombstoned, err := r.hasTombstone(ctx, t, models.EntityCard, c.ID)
		if err != nil {
			return err
		}
		if tombstoned {
			result = repository.DeferredDirty
			return nil
		}

		var localUpdated time.Time
		var localDirty bool
		err = t.QueryRowContext(ctx, `SELECT updated_at, is_dirty FROM flashcards WHERE id = ?`, c.ID).
			Scan(&localUpdated, &localDirty)
		if errors.Is(err, sql.ErrNoRows) {
			_, err = t.ExecContext(ctx, `
INSERT INTO flashcards (id, deck_id, front_text, back_text, front_media, back_media, hint, position, created_at, updated_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
`, c.ID, c.DeckID, c.FrontText, c.BackText, c.FrontMedia, c.BackMedia, c.Hint, c.Position,
				c.CreatedAt, c.UpdatedAt)
			if err == nil {
				result = repository.Applied
			}
			return err
		}
		if err != nil {
			return err
		}

		if localDirty {
			result = repository.DeferredDirty
			return nil
		}
		if !c.UpdatedAt.After(localUpdated) {
			result = repository.IgnoredOlder
			return nil
		}

		_, err = t.ExecContext(ctx, `
UPDATE flashcards
SET deck_id = ?, front_text = ?, back_text = ?, front_media = ?, back_media = ?, hint = ?, position = ?, updated_at = ?, is_dirty = 0
WHERE id = ?
`, c.DeckID, c.FrontText, c.BackText, c.FrontMedia, c.BackMedia, c.Hint, c.Position, c.UpdatedAt, c.ID)
		if err == nil {
			result = repository.Applied
		}
		return err
	})
	if err != nil {
		log.Error("failed to apply remote card %s: %v", c.ID, err)
		return result, apperrors.NewStorageError("apply remote card", err)
	}
	log.Debug("remote card %s: %s", c.ID, result)
	return result, nil
}

func (r *syncRepository) ApplyRemoteStats(ctx context.Context, s models.ReviewStats) (repository.ApplyResult, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	result := repository.IgnoredOlder
	err := tx(ctx, r.db, func(t *sql.Tx) error {
		tombstoned, err := r.hasTombstone(ctx, t, models.EntityStats, s.FlashcardID)
		if err != nil {
			return err
		}
		if tombstoned {
			result = repository.DeferredDirty
			return nil
		}

		var localUpdated time.Time
		var localDirty bool
		err = t.QueryRowContext(ctx, `SELECT updated_at, is_dirty FROM stats WHERE flashcard_id = ?`, s.FlashcardID).
			Scan(&localUpdated, &localDirty)
		if errors.Is(err, sql.ErrNoRows) {
			_, err = t.ExecContext(ctx, `
INSERT INTO stats (flashcard_id, easiness_factor, repetitions, interval_days, next_review_date, status, correct_count, incorrect_count, last_reviewed_at, updated_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
`, s.FlashcardID, s.EasinessFactor, s.Repetitions, s.IntervalDays, s.NextReviewDate, s.Status,
				s.CorrectCount, s.IncorrectCount, s.LastReviewedAt, s.UpdatedAt)
			if err == nil {
				result = repository.Applied
			}
			return err
		}
		if err != nil {
			return err
		}

		if localDirty {
			result = repository.DeferredDirty
			return nil
		}
		if !s.UpdatedAt.After(localUpdated) {
			result = repository.IgnoredOlder
			return nil
		}

		_, err = t.ExecContext(ctx, `
UPDATE stats
SET easiness_factor = ?, repetitions = ?, interval_days = ?, next_review_date = ?, status = ?, correct_count = ?, incorrect_count = ?, last_reviewed_at = ?, updated_at = ?, is_dirty = 0
WHERE flashcard_id = ?
`, s.EasinessFactor, s.Repetitions, s.IntervalDays, s.NextReviewDate, s.Status, s.CorrectCount,
			s.IncorrectCount, s.LastReviewedAt, s.UpdatedAt, s.FlashcardID)
		if err == nil {
			result = repository.Applied
		}
		return err
	})
	if err != nil {
		log.Error("failed to apply remote stats %s: %v", s.FlashcardID, err)
		return result, apperrors.NewStorageError("apply remote stats", err)
	}
	log.Debug("remote stats %s: %s", s.FlashcardID, result)
	return result, nil
}

func (r *syncRepository) ApplyRemoteDelete(ctx context.Context, entity, rowID string) (repository.ApplyResult, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	var table, idCol string
	switch entity {
	case models.EntityDeck:
		table, idCol = "decks", "id"
	case models.EntityCard:
		table, idCol = "flashcards", "id"
	case models.EntityStats:
		table, idCol = "stats", "flashcard_id"
	default:
		return repository.IgnoredOlder, apperrors.NewValidationError("entity", fmt.Sprintf("unknown entity %q", entity))
	}

	result := repository.Applied
	err := tx(ctx, r.db, func(t *sql.Tx) error {
		var localDirty bool
		err := t.QueryRowContext(ctx, `SELECT is_dirty FROM `+table+` WHERE `+idCol+` = ?`, rowID).Scan(&localDirty)
		if errors.Is(err, sql.ErrNoRows) {
			// Already gone locally; the delete is a no-op.
			result = repository.Applied
			return nil
		}
		if err != nil {
			return err
		}
		if localDirty {
			// Local edits win: defer the delete, the next push recreates the
			// row remotely.
			result = repository.DeferredDirty
			return nil
		}
		_, err = t.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+idCol+` = ?`, rowID)
		return err
	})
	if err != nil {
		log.Error("failed to apply remote delete %s/%s: %v", entity, rowID, err)
		return result, apperrors.NewStorageError("apply remote delete", err)
	}
	log.Debug("remote delete %s/%s: %s", entity, rowID, result)
	return result, nil
}

func (r *syncRepository) DirtyCounts(ctx context.Context, ownerID string) (*models.SyncStatus, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	status := models.SyncStatus{OwnerID: ownerID}
	err := r.db.QueryRowContext(ctx, `
SELECT
    (SELECT COUNT(*) FROM decks WHERE owner_id = ? AND is_dirty = 1),
    (SELECT COUNT(*) FROM flashcards f JOIN decks d ON d.id = f.deck_id WHERE d.owner_id = ? AND f.is_dirty = 1),
    (SELECT COUNT(*) FROM stats s JOIN flashcards f ON f.id = s.flashcard_id JOIN decks d ON d.id = f.deck_id WHERE d.owner_id = ? AND s.is_dirty = 1),
    (SELECT COUNT(*) FROM tombstones WHERE owner_id = ?)
`, ownerID, ownerID, ownerID, ownerID).
		Scan(&status.DirtyDecks, &status.DirtyCards, &status.DirtyStats, &status.Tombstones)
	if err != nil {
		log.Error("failed to count dirty rows: %v", err)
		return nil, apperrors.NewStorageError("dirty counts", err)
	}

	state, err := r.SyncState(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	status.LastSyncedAt = state.LastSyncedAt
	return &status, nil
}

// Owners lists every owner id with local data, from decks and pending
// tombstones combined.
func (r *syncRepository) Owners(ctx context.Context) ([]string, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_repo")

	rows, err := r.db.QueryContext(ctx, `
SELECT owner_id FROM decks
UNION
SELECT owner_id FROM tombstones
UNION
SELECT owner_id FROM sync_state
`)
	if err != nil {
		log.Error("failed to list owners: %v", err)
		return nil, apperrors.NewStorageError("list owners", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStorageError("list owners", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list owners", err)
	}
	return owners, nil
}
