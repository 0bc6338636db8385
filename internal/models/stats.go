package models

import "time"

// CardStatus describes where a card sits in the learning lifecycle. It is
// derived from repetitions and interval; the stored value is a cache of that
// derivation, never an independent source of truth.
type CardStatus string

const (
	StatusNew      CardStatus = "new"
	StatusLearning CardStatus = "learning"
	StatusReview   CardStatus = "review"
	StatusMastered CardStatus = "mastered"
)

// Valid reports whether s is one of the known statuses.
func (s CardStatus) Valid() bool {
	switch s {
	case StatusNew, StatusLearning, StatusReview, StatusMastered:
		return true
	}
	return false
}

// ReviewStats holds SM-2 scheduling state, one-to-one with a flashcard.
type ReviewStats struct {
	FlashcardID    string     `json:"flashcard_id"`
	EasinessFactor float64    `json:"easiness_factor"`
	Repetitions    int        `json:"repetitions"`
	IntervalDays   int        `json:"interval_days"`
	NextReviewDate time.Time  `json:"next_review_date"`
	Status         CardStatus `json:"status"`
	CorrectCount   int        `json:"correct_count"`
	IncorrectCount int        `json:"incorrect_count"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
	IsDirty        bool       `json:"-"`
}

// ReviewLogEntry records a single review for local history. Not synced.
type ReviewLogEntry struct {
	ID          int64     `json:"id"`
	FlashcardID string    `json:"flashcard_id"`
	Outcome     string    `json:"outcome"`
	ReviewedAt  time.Time `json:"reviewed_at"`
}
