package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	apperrors "github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/repository"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

type deckRepository struct {
	db *sql.DB
}

// NewDeckRepository creates a new DeckRepository implementation
func NewDeckRepository(db *sql.DB) repository.DeckRepository {
	return &deckRepository{db: db}
}

func (r *deckRepository) Insert(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("inserting deck: id=%s, owner=%s, name=%s", d.ID, d.OwnerID, d.Name)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO decks (id, owner_id, is_custom, template_ref, name, description, language, cover_ref, tags, is_active, created_at, updated_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, d.ID, d.OwnerID, d.IsCustom, d.TemplateRef, d.Name, d.Description, d.Language, d.CoverRef,
		joinTags(d.Tags), d.IsActive, d.CreatedAt, d.UpdatedAt, d.IsDirty)
	if err != nil {
		log.Error("failed to insert deck: %v", err)
		return apperrors.NewStorageError("insert deck", err)
	}
	log.Debug("deck inserted: id=%s", d.ID)
	return nil
}

func (r *deckRepository) Get(ctx context.Context, id string) (*models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("getting deck: id=%s", id)

	d, err := scanDeck(r.db.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("deck not found: id=%s", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get deck: %v", err)
		return nil, apperrors.NewStorageError("get deck", err)
	}
	return &d, nil
}

func (r *deckRepository) List(ctx context.Context, filter models.DeckFilter) ([]models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("listing decks: owner=%s, language=%s, active_only=%v",
		filter.OwnerID, filter.Language, filter.ActiveOnly)

	query := sqlBuilder.Select(
		"id", "owner_id", "is_custom", "template_ref", "name", "description",
		"language", "cover_ref", "tags", "is_active", "created_at", "updated_at", "is_dirty",
	).From("decks")

	// Dynamic WHERE clauses
	if filter.OwnerID != "" {
		query = query.Where(squirrel.Eq{"owner_id": filter.OwnerID})
	}
	if filter.Language != "" {
		query = query.Where(squirrel.Eq{"language": filter.Language})
	}
	if filter.ActiveOnly {
		query = query.Where(squirrel.Eq{"is_active": true})
	}
	query = query.OrderBy("created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query = query.Limit(uint64(limit)).Offset(uint64(offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, apperrors.NewStorageError("list decks", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return nil, apperrors.NewStorageError("list decks", err)
	}
	defer rows.Close()
	var decks []models.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			log.Error("failed to scan deck row: %v", err)
			return nil, apperrors.NewStorageError("list decks", err)
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list decks", err)
	}
	log.Debug("found %d decks", len(decks))
	return decks, nil
}

func (r *deckRepository) Update(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("updating deck: id=%s", d.ID)

	res, err := r.db.ExecContext(ctx, `
UPDATE decks
SET name = ?, description = ?, language = ?, cover_ref = ?, tags = ?, is_active = ?, updated_at = ?, is_dirty = ?
WHERE id = ?
`, d.Name, d.Description, d.Language, d.CoverRef, joinTags(d.Tags), d.IsActive, d.UpdatedAt, d.IsDirty, d.ID)
	if err != nil {
		log.Error("failed to update deck: %v", err)
		return apperrors.NewStorageError("update deck", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("deck", d.ID)
	}
	return nil
}

func (r *deckRepository) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("deleting deck: id=%s", id)

	err := tx(ctx, r.db, func(t *sql.Tx) error {
		d, err := scanDeck(t.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError("deck", id)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		// Tombstone every card and its stats row so the deletions propagate
		// on the next push.
		rows, err := t.QueryContext(ctx, `SELECT id FROM flashcards WHERE deck_id = ?`, id)
		if err != nil {
			return err
		}
		var cardIDs []string
		for rows.Next() {
			var cardID string
			if err := rows.Scan(&cardID); err != nil {
				rows.Close()
				return err
			}
			cardIDs = append(cardIDs, cardID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, cardID := range cardIDs {
			if err := insertTombstone(ctx, t, models.EntityCard, cardID, d.OwnerID, now); err != nil {
				return err
			}
			if err := insertTombstone(ctx, t, models.EntityStats, cardID, d.OwnerID, now); err != nil {
				return err
			}
		}
		if err := insertTombstone(ctx, t, models.EntityDeck, id, d.OwnerID, now); err != nil {
			return err
		}

		// Cards and stats go with the deck via ON DELETE CASCADE.
		_, err = t.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
		return err
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return err
		}
		log.Error("failed to delete deck: %v", err)
		return apperrors.NewStorageError("delete deck", err)
	}
	log.Info("deck deleted: id=%s", id)
	return nil
}

func insertTombstone(ctx context.Context, q querier, entity, rowID, ownerID string, deletedAt time.Time) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO tombstones (entity, row_id, owner_id, deleted_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (entity, row_id) DO NOTHING
`, entity, rowID, ownerID, deletedAt)
	return err
}

const deckCountsSQL = `
SELECT
    COUNT(*),
    COALESCE(SUM(CASE WHEN s.flashcard_id IS NULL OR s.status = 'new' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN s.status = 'learning' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN s.status = 'review' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN s.status = 'mastered' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN s.flashcard_id IS NULL OR s.status = 'new' OR s.next_review_date <= ? THEN 1 ELSE 0 END), 0)
FROM flashcards f
LEFT JOIN stats s ON s.flashcard_id = f.id
WHERE f.deck_id = ?
`

func (r *deckRepository) Counts(ctx context.Context, deckID string, now time.Time) (*models.DeckCounts, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("counting cards: deck_id=%s", deckID)

	var c models.DeckCounts
	err := r.db.QueryRowContext(ctx, deckCountsSQL, now, deckID).
		Scan(&c.Total, &c.New, &c.Learning, &c.Review, &c.Mastered, &c.Due)
	if err != nil {
		log.Error("failed to count cards: %v", err)
		return nil, apperrors.NewStorageError("deck counts", err)
	}
	return &c, nil
}

func (r *deckRepository) Overview(ctx context.Context, ownerID string, now time.Time) ([]models.DeckOverview, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("building deck overview: owner=%s", ownerID)

	decks, err := r.List(ctx, models.DeckFilter{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT
    f.deck_id,
    COUNT(*),
    COALESCE(SUM(CASE WHEN s.flashcard_id IS NULL OR s.status = 'new' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN s.status = 'learning' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN s.status = 'review' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN s.status = 'mastered' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN s.flashcard_id IS NULL OR s.status = 'new' OR s.next_review_date <= ? THEN 1 ELSE 0 END), 0)
FROM flashcards f
JOIN decks d ON d.id = f.deck_id
LEFT JOIN stats s ON s.flashcard_id = f.id
WHERE d.owner_id = ?
GROUP BY f.deck_id
`, now, ownerID)
	if err != nil {
		log.Error("failed to query deck counts: %v", err)
		return nil, apperrors.NewStorageError("deck overview", err)
	}
	defer rows.Close()

	counts := make(map[string]models.DeckCounts)
	for rows.Next() {
		var deckID string
		var c models.DeckCounts
		if err := rows.Scan(&deckID, &c.Total, &c.New, &c.Learning, &c.Review, &c.Mastered, &c.Due); err != nil {
			log.Error("failed to scan counts row: %v", err)
			return nil, apperrors.NewStorageError("deck overview", err)
		}
		counts[deckID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("deck overview", err)
	}

	overviews := make([]models.DeckOverview, 0, len(decks))
	for _, d := range decks {
		overviews = append(overviews, models.DeckOverview{Deck: d, Counts: counts[d.ID]})
	}
	log.Debug("built overview for %d decks", len(overviews))
	return overviews, nil
}
