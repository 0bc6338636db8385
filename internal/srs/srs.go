// Package srs implements the spaced-repetition scheduler. It is pure
// computation: given a stats record and a review outcome it produces the next
// stats record. No I/O, no shared state, safe to call from any goroutine.
package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/vytor/lexideck/internal/models"
)

// Outcome is the user's grade for a review.
// 0=Again, 1=Hard, 2=Good, 3=Easy
type Outcome int

const (
	Again Outcome = iota
	Hard
	Good
	Easy
)

func (o Outcome) String() string {
	switch o {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	default:
		return "unknown"
	}
}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o >= Again && o <= Easy
}

// ParseOutcome parses an outcome name as sent by UI collaborators.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "again":
		return Again, nil
	case "hard":
		return Hard, nil
	case "good":
		return Good, nil
	case "easy":
		return Easy, nil
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

const (
	// DefaultEasiness is the starting easiness factor for a fresh card.
	DefaultEasiness = 2.5
	// MinEasiness is the SM-2 lower bound.
	MinEasiness = 1.3
	// DefaultMasteryThresholdDays is the interval at which a card counts as
	// long-term retained.
	DefaultMasteryThresholdDays = 21
	// easinessPenalty is subtracted from the easiness factor on a lapse.
	easinessPenalty = 0.2
)

// Scheduler advances review stats using an SM-2 variant. The zero value is
// not useful; construct with New.
type Scheduler struct {
	MasteryThresholdDays int
}

// New creates a Scheduler. thresholdDays <= 0 selects the default.
func New(thresholdDays int) Scheduler {
	if thresholdDays <= 0 {
		thresholdDays = DefaultMasteryThresholdDays
	}
	return Scheduler{MasteryThresholdDays: thresholdDays}
}

// NewStats returns the stats record for a card that has never been reviewed.
// New cards are due immediately.
func NewStats(flashcardID string, now time.Time) models.ReviewStats {
	return models.ReviewStats{
		FlashcardID:    flashcardID,
		EasinessFactor: DefaultEasiness,
		Repetitions:    0,
		IntervalDays:   0,
		NextReviewDate: now,
		Status:         models.StatusNew,
		UpdatedAt:      now,
	}
}

// Advance applies a review outcome and returns the next stats record.
//
// Again resets repetitions to 0 and the interval to 1 day. Hard, Good and
// Easy count as correct: the first two repetitions use fixed seed intervals
// (1 day, then 6), after which the interval grows multiplicatively by the
// easiness factor. Easiness is bounded below at MinEasiness and rounded to
// two decimals; intervals are whole days.
func (s Scheduler) Advance(stats models.ReviewStats, outcome Outcome, now time.Time) models.ReviewStats {
	next := stats
	reviewedAt := now
	next.LastReviewedAt = &reviewedAt
	next.UpdatedAt = now
	next.IsDirty = true

	if outcome == Again {
		next.Repetitions = 0
		next.IntervalDays = 1
		next.EasinessFactor = round2(math.Max(MinEasiness, stats.EasinessFactor-easinessPenalty))
		next.IncorrectCount++
	} else {
		next.Repetitions = stats.Repetitions + 1
		next.EasinessFactor = round2(adjustEasiness(stats.EasinessFactor, outcome))
		next.IntervalDays = nextInterval(next.Repetitions, stats.IntervalDays, next.EasinessFactor)
		next.CorrectCount++
	}

	next.NextReviewDate = now.AddDate(0, 0, next.IntervalDays)
	next.Status = s.StatusFor(next)
	return next
}

// StatusFor derives the card status from repetitions and interval. The
// stored status column is only a cache of this rule.
func (s Scheduler) StatusFor(stats models.ReviewStats) models.CardStatus {
	switch {
	case stats.LastReviewedAt == nil:
		return models.StatusNew
	case stats.IntervalDays >= s.MasteryThresholdDays:
		return models.StatusMastered
	case stats.Repetitions < 2:
		return models.StatusLearning
	default:
		return models.StatusReview
	}
}

// IsDue reports whether a card must be shown. New cards are always due;
// otherwise a card is due once its scheduled date has arrived, regardless of
// status.
func IsDue(stats models.ReviewStats, now time.Time) bool {
	if stats.Status == models.StatusNew {
		return true
	}
	return !stats.NextReviewDate.After(now)
}

// adjustEasiness applies the SM-2 easiness update for a correct outcome.
// Easy gains 0.1, Good is neutral, Hard loses 0.14.
func adjustEasiness(ef float64, outcome Outcome) float64 {
	q := float64(outcome)
	ef = ef + 0.1 - (3-q)*(0.08+(3-q)*0.02)
	if ef < MinEasiness {
		ef = MinEasiness
	}
	return ef
}

func nextInterval(repetitions, prevInterval int, ef float64) int {
	switch {
	case repetitions <= 1:
		return 1
	case repetitions == 2:
		return 6
	default:
		interval := int(math.Round(float64(prevInterval) * ef))
		if interval <= prevInterval {
			// Multiplicative growth must never stall, even at minimum ease.
			interval = prevInterval + 1
		}
		return interval
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
