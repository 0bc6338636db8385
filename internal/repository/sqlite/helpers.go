package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
)

// Helper functions shared across repository implementations

func tx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	log := logger.FromContext(ctx).WithPrefix("repo")
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction: %v", err)
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		log.Debug("transaction rolled back due to error: %v", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction: %v", err)
		return err
	}
	log.Debug("transaction committed")
	return nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const deckColumns = `id, owner_id, is_custom, template_ref, name, description, language, cover_ref, tags, is_active, created_at, updated_at, is_dirty`

func scanDeck(row interface{ Scan(...any) error }) (models.Deck, error) {
	var d models.Deck
	var tags string
	err := row.Scan(&d.ID, &d.OwnerID, &d.IsCustom, &d.TemplateRef, &d.Name, &d.Description,
		&d.Language, &d.CoverRef, &tags, &d.IsActive, &d.CreatedAt, &d.UpdatedAt, &d.IsDirty)
	if err != nil {
		return d, err
	}
	d.Tags = splitTags(tags)
	return d, nil
}

const cardColumns = `id, deck_id, front_text, back_text, front_media, back_media, hint, position, created_at, updated_at, is_dirty`

func scanCard(row interface{ Scan(...any) error }) (models.Flashcard, error) {
	var c models.Flashcard
	err := row.Scan(&c.ID, &c.DeckID, &c.FrontText, &c.BackText, &c.FrontMedia, &c.BackMedia,
		&c.Hint, &c.Position, &c.CreatedAt, &c.UpdatedAt, &c.IsDirty)
	return c, err
}

const statsColumns = `flashcard_id, easiness_factor, repetitions, interval_days, next_review_date, status, correct_count, incorrect_count, last_reviewed_at, updated_at, is_dirty`

func scanStats(row interface{ Scan(...any) error }) (models.ReviewStats, error) {
	var s models.ReviewStats
	var lastReviewed sql.NullTime
	err := row.Scan(&s.FlashcardID, &s.EasinessFactor, &s.Repetitions, &s.IntervalDays,
		&s.NextReviewDate, &s.Status, &s.CorrectCount, &s.IncorrectCount, &lastReviewed,
		&s.UpdatedAt, &s.IsDirty)
	if err != nil {
		return s, err
	}
	if lastReviewed.Valid {
		t := lastReviewed.Time
		s.LastReviewedAt = &t
	}
	return s, nil
}

// resequencePositions rewrites positions to 1..n in the deterministic repair
// order (existing position, then id as tie-break) and marks corrected rows
// dirty. Must run inside a transaction.
func resequencePositions(ctx context.Context, q querier, deckID string, now time.Time) (bool, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, position FROM flashcards
WHERE deck_id = ?
ORDER BY position, id
`, deckID)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	type cardPos struct {
		id  string
		pos int
	}
	var cards []cardPos
	for rows.Next() {
		var cp cardPos
		if err := rows.Scan(&cp.id, &cp.pos); err != nil {
			return false, err
		}
		cards = append(cards, cp)
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	changed := false
	for i, cp := range cards {
		want := i + 1
		if cp.pos == want {
			continue
		}
		if _, err := q.ExecContext(ctx, `
UPDATE flashcards SET position = ?, updated_at = ?, is_dirty = 1 WHERE id = ?
`, want, now, cp.id); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

// positionsContiguous checks the 1..n invariant for a deck.
func positionsContiguous(ctx context.Context, q querier, deckID string) (bool, error) {
	rows, err := q.QueryContext(ctx, `
SELECT position FROM flashcards WHERE deck_id = ? ORDER BY position
`, deckID)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	want := 1
	for rows.Next() {
		var pos int
		if err := rows.Scan(&pos); err != nil {
			return false, err
		}
		if pos != want {
			return false, rows.Err()
		}
		want++
	}
	return true, rows.Err()
}
