package remote

import (
	"context"
	"time"

	"github.com/vytor/lexideck/internal/models"
)

// Backend defines the interface for remote sync backend operations.
// This interface enables testability by allowing mock implementations.
type Backend interface {
	PushDecks(ctx context.Context, ownerID string, decks []models.Deck) error
	PushCards(ctx context.Context, ownerID string, cards []models.Flashcard) error
	PushStats(ctx context.Context, ownerID string, stats []models.ReviewStats) error
	DeleteRows(ctx context.Context, ownerID string, deletes []RemoteDelete) error
	Changes(ctx context.Context, ownerID string, since *time.Time) (*ChangeSet, error)
}

// Ensure Client implements the interface
var _ Backend = (*Client)(nil)
