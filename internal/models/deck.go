package models

import "time"

// Deck is a collection of flashcards owned by a user. A deck is either
// custom (fully owned, mutable content) or template-backed (content comes
// from a shared template, only study stats are local). Exactly one of
// IsCustom / TemplateRef is populated.
type Deck struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	IsCustom    bool      `json:"is_custom"`
	TemplateRef string    `json:"template_ref,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	CoverRef    string    `json:"cover_ref,omitempty"`
	Tags        []string  `json:"tags"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsDirty     bool      `json:"-"`
}

// DeckCounts aggregates per-status card counts and the due count for a deck.
type DeckCounts struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Learning int `json:"learning"`
	Review   int `json:"review"`
	Mastered int `json:"mastered"`
	Due      int `json:"due"`
}

// DeckOverview is the read projection the UI renders deck lists from.
type DeckOverview struct {
	Deck
	Counts DeckCounts `json:"counts"`
}

type DeckFilter struct {
	OwnerID    string
	Language   string
	ActiveOnly bool
	Limit      int
	Offset     int
}
