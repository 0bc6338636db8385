package models

import "time"

// Sync entity kinds, used for tombstones and remote row addressing.
const (
	EntityDeck  = "deck"
	EntityCard  = "card"
	EntityStats = "stats"
)

// Tombstone marks a locally deleted row whose deletion has not yet been
// confirmed by the remote backend. Removed only after the remote confirms.
type Tombstone struct {
	Entity    string    `json:"entity"`
	RowID     string    `json:"row_id"`
	OwnerID   string    `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// SyncState tracks per-user sync progress. LastPulledAt is the watermark:
// pulls request only remote changes newer than it.
type SyncState struct {
	OwnerID      string     `json:"owner_id"`
	LastPulledAt *time.Time `json:"last_pulled_at,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// SyncStatus is the read projection exposing sync health to the UI.
type SyncStatus struct {
	OwnerID      string     `json:"owner_id"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	DirtyDecks   int        `json:"dirty_decks"`
	DirtyCards   int        `json:"dirty_cards"`
	DirtyStats   int        `json:"dirty_stats"`
	Tombstones   int        `json:"tombstones"`
	Running      bool       `json:"running"`
}
