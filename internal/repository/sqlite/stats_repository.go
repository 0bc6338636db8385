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

type statsRepository struct {
	db *sql.DB
}

// NewStatsRepository creates a new StatsRepository implementation
func NewStatsRepository(db *sql.DB) repository.StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Get(ctx context.Context, flashcardID string) (*models.ReviewStats, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("getting stats: flashcard_id=%s", flashcardID)

	s, err := scanStats(r.db.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM stats WHERE flashcard_id = ?`, flashcardID))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("stats not found: flashcard_id=%s", flashcardID)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get stats: %v", err)
		return nil, apperrors.NewStorageError("get stats", err)
	}
	return &s, nil
}

func (r *statsRepository) Upsert(ctx context.Context, s models.ReviewStats) error {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("upserting stats: flashcard_id=%s, reps=%d, interval=%d, ease=%.2f",
		s.FlashcardID, s.Repetitions, s.IntervalDays, s.EasinessFactor)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO stats (flashcard_id, easiness_factor, repetitions, interval_days, next_review_date, status, correct_count, incorrect_count, last_reviewed_at, updated_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (flashcard_id) DO UPDATE SET
    easiness_factor = excluded.easiness_factor,
    repetitions = excluded.repetitions,
    interval_days = excluded.interval_days,
    next_review_date = excluded.next_review_date,
    status = excluded.status,
    correct_count = excluded.correct_count,
    incorrect_count = excluded.incorrect_count,
    last_reviewed_at = excluded.last_reviewed_at,
    updated_at = excluded.updated_at,
    is_dirty = excluded.is_dirty
`, s.FlashcardID, s.EasinessFactor, s.Repetitions, s.IntervalDays, s.NextReviewDate,
		s.Status, s.CorrectCount, s.IncorrectCount, s.LastReviewedAt, s.UpdatedAt, s.IsDirty)
	if err != nil {
		log.Error("failed to upsert stats: %v", err)
		return apperrors.NewStorageError("upsert stats", err)
	}
	return nil
}

func (r *statsRepository) DueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]models.Flashcard, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("fetching due cards: deck_id=%s, limit=%d", deckID, limit)

	// Due ordering follows deck position, so self-heal before reading.
	if err := repairDeckPositions(ctx, r.db, deckID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT f.id, f.deck_id, f.front_text, f.back_text, f.front_media, f.back_media, f.hint, f.position, f.created_at, f.updated_at, f.is_dirty
FROM flashcards f
LEFT JOIN stats s ON s.flashcard_id = f.id
WHERE f.deck_id = ?
AND (s.flashcard_id IS NULL OR s.status = 'new' OR s.next_review_date <= ?)
ORDER BY f.position
LIMIT ?
`, deckID, now, limit)
	if err != nil {
		log.Error("failed to query due cards: %v", err)
		return nil, apperrors.NewStorageError("due cards", err)
	}
	defer rows.Close()
	var cards []models.Flashcard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			log.Error("failed to scan due card row: %v", err)
			return nil, apperrors.NewStorageError("due cards", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("due cards", err)
	}
	log.Debug("found %d due cards", len(cards))
	return cards, nil
}

func (r *statsRepository) InsertReviewLog(ctx context.Context, flashcardID, outcome string, reviewedAt time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("inserting review log: flashcard_id=%s, outcome=%s", flashcardID, outcome)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO review_log (flashcard_id, outcome, reviewed_at) VALUES (?, ?, ?)
`, flashcardID, outcome, reviewedAt)
	if err != nil {
		log.Error("failed to insert review log: %v", err)
		return apperrors.NewStorageError("insert review log", err)
	}
	return nil
}

// repairDeckPositions verifies and repairs the position invariant in place.
func repairDeckPositions(ctx context.Context, db *sql.DB, deckID string) error {
	ok, err := positionsContiguous(ctx, db, deckID)
	if err != nil {
		return apperrors.NewStorageError("verify positions", err)
	}
	if ok {
		return nil
	}
	err = tx(ctx, db, func(t *sql.Tx) error {
		_, txErr := resequencePositions(ctx, t, deckID, time.Now().UTC())
		return txErr
	})
	if err != nil {
		return apperrors.NewStorageError("repair positions", err)
	}
	return nil
}
