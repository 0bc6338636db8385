package repository

import (
	"context"
	"time"

	"github.com/vytor/lexideck/internal/models"
)

// ApplyResult reports what a pull did with a remote row.
type ApplyResult int

const (
	// Applied means the remote row overwrote (or created) the local row.
	Applied ApplyResult = iota
	// IgnoredOlder means the local row was at least as new; remote ignored.
	IgnoredOlder
	// DeferredDirty means the local row has unsynced edits; local wins and
	// the row is re-pushed on the next cycle.
	DeferredDirty
)

func (r ApplyResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case IgnoredOlder:
		return "ignored"
	case DeferredDirty:
		return "deferred"
	default:
		return "unknown"
	}
}

// DeckRepository handles deck data access
type DeckRepository interface {
	Insert(ctx context.Context, deck models.Deck) error
	Get(ctx context.Context, id string) (*models.Deck, error)
	List(ctx context.Context, filter models.DeckFilter) ([]models.Deck, error)
	Update(ctx context.Context, deck models.Deck) error
	// Delete tombstones the deck and all its cards, then removes them locally.
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context, deckID string, now time.Time) (*models.DeckCounts, error)
	Overview(ctx context.Context, ownerID string, now time.Time) ([]models.DeckOverview, error)
}

// FlashcardRepository handles flashcard data access, including the position
// ordering invariant.
type FlashcardRepository interface {
	// Insert appends the card at the end of its deck (position n+1).
	Insert(ctx context.Context, card models.Flashcard) (*models.Flashcard, error)
	Get(ctx context.Context, id string) (*models.Flashcard, error)
	// ListByDeck returns cards in position order, repairing positions first
	// if they are not contiguous 1..n.
	ListByDeck(ctx context.Context, deckID string) ([]models.Flashcard, error)
	Update(ctx context.Context, card models.Flashcard) error
	// Delete tombstones the card and resequences the remaining positions.
	Delete(ctx context.Context, id string) error
	// Reorder reassigns position = index+1 for the full ordered id list in
	// one transaction. The id set must exactly match the deck's current
	// cards or the call fails with a ValidationError and changes nothing.
	Reorder(ctx context.Context, deckID string, orderedIDs []string) error
	// RepairPositions resequences a deck's positions to 1..n. Idempotent.
	// Returns true if any row was corrected.
	RepairPositions(ctx context.Context, deckID string) (bool, error)
}

// StatsRepository handles review statistics data access
type StatsRepository interface {
	Get(ctx context.Context, flashcardID string) (*models.ReviewStats, error)
	Upsert(ctx context.Context, stats models.ReviewStats) error
	// DueCards returns due cards for a deck in position order. A card with no
	// stats row yet counts as new, and new cards are always due.
	DueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]models.Flashcard, error)
	InsertReviewLog(ctx context.Context, flashcardID, outcome string, reviewedAt time.Time) error
}

// SyncRepository is the change tracker: it exposes rows needing push and
// absorbs rows pulled from the remote store.
type SyncRepository interface {
	DirtyDecks(ctx context.Context, ownerID string) ([]models.Deck, error)
	DirtyCards(ctx context.Context, ownerID string) ([]models.Flashcard, error)
	DirtyStats(ctx context.Context, ownerID string) ([]models.ReviewStats, error)

	// ClearDirty* clear the dirty flag only when updated_at still equals the
	// push snapshot; an edit during the push leaves the row dirty. Returns
	// whether the flag was cleared.
	ClearDirtyDeck(ctx context.Context, id string, snapshot time.Time) (bool, error)
	ClearDirtyCard(ctx context.Context, id string, snapshot time.Time) (bool, error)
	ClearDirtyStats(ctx context.Context, flashcardID string, snapshot time.Time) (bool, error)

	Tombstones(ctx context.Context, ownerID string) ([]models.Tombstone, error)
	DeleteTombstone(ctx context.Context, entity, rowID string) error

	SyncState(ctx context.Context, ownerID string) (*models.SyncState, error)
	SetWatermark(ctx context.Context, ownerID string, pulledAt time.Time) error
	SetLastSynced(ctx context.Context, ownerID string, syncedAt time.Time) error

	// ApplyRemote* implement last-writer-wins with a dirty-guard: the remote
	// row wins only if strictly newer than the local row and the local row is
	// not dirty. Rows applied from remote are stored clean.
	ApplyRemoteDeck(ctx context.Context, deck models.Deck) (ApplyResult, error)
	ApplyRemoteCard(ctx context.Context, card models.Flashcard) (ApplyResult, error)
	ApplyRemoteStats(ctx context.Context, stats models.ReviewStats) (ApplyResult, error)
	// ApplyRemoteDelete removes a row deleted remotely, unless the local row
	// is dirty, in which case the delete is deferred.
	ApplyRemoteDelete(ctx context.Context, entity, rowID string) (ApplyResult, error)

	DirtyCounts(ctx context.Context, ownerID string) (*models.SyncStatus, error)

	// Owners lists every owner id known locally, for scheduling on startup.
	Owners(ctx context.Context) ([]string, error)
}
