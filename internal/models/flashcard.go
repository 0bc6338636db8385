package models

import "time"

// Flashcard belongs to exactly one deck. Position is the card's 1-based rank
// within its deck: unique, contiguous, no gaps. The store self-heals any
// violation before relying on it.
type Flashcard struct {
	ID         string    `json:"id"`
	DeckID     string    `json:"deck_id"`
	FrontText  string    `json:"front_text"`
	BackText   string    `json:"back_text"`
	FrontMedia string    `json:"front_media,omitempty"`
	BackMedia  string    `json:"back_media,omitempty"`
	Hint       string    `json:"hint,omitempty"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	IsDirty    bool      `json:"-"`
}

// MaxTextLen bounds front/back text length.
const MaxTextLen = 2000
