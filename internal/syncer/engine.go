// Package syncer implements the sync engine: single-shot push/pull of local
// changes against the remote backend. The engine is idempotent when
// re-invoked; retrying on failure is the coordinator's job, not the engine's.
package syncer

import (
	"context"
	"time"

	apperrors "github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/remote"
	"github.com/vytor/lexideck/internal/repository"
)

type Engine struct {
	syncRepo  repository.SyncRepository
	backend   remote.Backend
	batchSize int
}

func New(syncRepo repository.SyncRepository, backend remote.Backend, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Engine{
		syncRepo:  syncRepo,
		backend:   backend,
		batchSize: batchSize,
	}
}

// Sync pushes local changes, then pulls remote deltas. An auth failure stops
// the run immediately; other row failures are collected in the Result so the
// remaining work still happens.
func (e *Engine) Sync(ctx context.Context, ownerID string) (*Result, error) {
	log := logger.FromContext(ctx).WithPrefix("syncer").WithField("owner_id", ownerID)
	log.Info("sync run starting")
	start := time.Now()

	result := &Result{}

	pushRes, pushErr := e.Push(ctx, ownerID)
	result.merge(pushRes)
	if apperrors.IsCode(pushErr, apperrors.ErrCodeSyncAuth) {
		log.Warn("push failed with auth error, skipping pull")
		return result, pushErr
	}

	pullRes, _ := e.Pull(ctx, ownerID)
	result.merge(pullRes)

	if result.Err == nil {
		if err := e.syncRepo.SetLastSynced(ctx, ownerID, time.Now().UTC()); err != nil {
			result.Err = err
		}
	}

	log.Info("sync run finished in %v: pushed=%d/%d/%d deletes=%d applied=%d ignored=%d deferred=%d failed=%d",
		time.Since(start), result.PushedDecks, result.PushedCards, result.PushedStats,
		result.PushedDeletes, result.Applied, result.Ignored, result.Deferred, len(result.FailedIDs))

	return result, result.Err
}

// Push sends all dirty rows and pending tombstones to the remote backend.
// Dirty flags are cleared only for rows whose updated_at has not advanced
// since the snapshot was read, so edits racing the push are never lost.
func (e *Engine) Push(ctx context.Context, ownerID string) (*Result, error) {
	log := logger.FromContext(ctx).WithPrefix("syncer").WithField("owner_id", ownerID)
	result := &Result{}

	decks, err := e.syncRepo.DirtyDecks(ctx, ownerID)
	if err != nil {
		result.Err = err
		return result, err
	}
	for start := 0; start < len(decks); start += e.batchSize {
		if ctx.Err() != nil {
			return result, result.Err
		}
		batch := decks[start:min(start+e.batchSize, len(decks))]
		if err := e.backend.PushDecks(ctx, ownerID, batch); err != nil {
			for _, d := range batch {
				result.fail(d.ID, err)
			}
			if apperrors.IsCode(err, apperrors.ErrCodeSyncAuth) {
				return result, err
			}
			continue
		}
		for _, d := range batch {
			cleared, err := e.syncRepo.ClearDirtyDeck(ctx, d.ID, d.UpdatedAt)
			if err != nil {
				result.fail(d.ID, err)
				continue
			}
			if !cleared {
				log.Debug("deck %s edited during push, stays dirty", d.ID)
			}
			result.PushedDecks++
		}
	}

	cards, err := e.syncRepo.DirtyCards(ctx, ownerID)
	if err != nil {
		result.Err = err
		return result, result.Err
	}
	for start := 0; start < len(cards); start += e.batchSize {
		if ctx.Err() != nil {
			return result, result.Err
		}
		batch := cards[start:min(start+e.batchSize, len(cards))]
		if err := e.backend.PushCards(ctx, ownerID, batch); err != nil {
			for _, c := range batch {
				result.fail(c.ID, err)
			}
			if apperrors.IsCode(err, apperrors.ErrCodeSyncAuth) {
				return result, err
			}
			continue
		}
		for _, c := range batch {
			cleared, err := e.syncRepo.ClearDirtyCard(ctx, c.ID, c.UpdatedAt)
			if err != nil {
				result.fail(c.ID, err)
				continue
			}
			if !cleared {
				log.Debug("card %s edited during push, stays dirty", c.ID)
			}
			result.PushedCards++
		}
	}

	stats, err := e.syncRepo.DirtyStats(ctx, ownerID)
	if err != nil {
		result.Err = err
		return result, result.Err
	}
	for start := 0; start < len(stats); start += e.batchSize {
		if ctx.Err() != nil {
			return result, result.Err
		}
		batch := stats[start:min(start+e.batchSize, len(stats))]
		if err := e.backend.PushStats(ctx, ownerID, batch); err != nil {
			for _, s := range batch {
				result.fail(s.FlashcardID, err)
			}
			if apperrors.IsCode(err, apperrors.ErrCodeSyncAuth) {
				return result, err
			}
			continue
		}
		for _, s := range batch {
			cleared, err := e.syncRepo.ClearDirtyStats(ctx, s.FlashcardID, s.UpdatedAt)
			if err != nil {
				result.fail(s.FlashcardID, err)
				continue
			}
			if !cleared {
				log.Debug("stats %s edited during push, stays dirty", s.FlashcardID)
			}
			result.PushedStats++
		}
	}

	tombs, err := e.syncRepo.Tombstones(ctx, ownerID)
	if err != nil {
		result.Err = err
		return result, result.Err
	}
	for start := 0; start < len(tombs); start += e.batchSize {
		if ctx.Err() != nil {
			return result, result.Err
		}
		batch := tombs[start:min(start+e.batchSize, len(tombs))]
		deletes := make([]remote.RemoteDelete, 0, len(batch))
		for _, t := range batch {
			deletes = append(deletes, remote.RemoteDelete{Entity: t.Entity, RowID: t.RowID})
		}
		if err := e.backend.DeleteRows(ctx, ownerID, deletes); err != nil {
			for _, t := range batch {
				result.fail(t.RowID, err)
			}
			if apperrors.IsCode(err, apperrors.ErrCodeSyncAuth) {
				return result, err
			}
			continue
		}
		// Tombstones are dropped only once the remote confirms the delete.
		for _, t := range batch {
			if err := e.syncRepo.DeleteTombstone(ctx, t.Entity, t.RowID); err != nil {
				result.fail(t.RowID, err)
				continue
			}
			result.PushedDeletes++
		}
	}

	return result, result.Err
}

// Pull fetches remote changes since the watermark and applies them under the
// last-writer-wins-with-dirty-guard policy. The watermark advances only when
// every row applied cleanly, so failed rows are retried on the next cycle.
func (e *Engine) Pull(ctx context.Context, ownerID string) (*Result, error) {
	log := logger.FromContext(ctx).WithPrefix("syncer").WithField("owner_id", ownerID)
	result := &Result{}

	state, err := e.syncRepo.SyncState(ctx, ownerID)
	if err != nil {
		result.Err = err
		return result, err
	}

	changes, err := e.backend.Changes(ctx, ownerID, state.LastPulledAt)
	if err != nil {
		result.Err = err
		return result, err
	}

	// Decks before cards before stats, so foreign keys resolve.
	for _, d := range changes.Decks {
		if ctx.Err() != nil {
			return result, result.Err
		}
		applied, err := e.syncRepo.ApplyRemoteDeck(ctx, d)
		if err != nil {
			result.fail(d.ID, err)
			continue
		}
		result.count(applied)
	}
	for _, c := range changes.Cards {
		if ctx.Err() != nil {
			return result, result.Err
		}
		applied, err := e.syncRepo.ApplyRemoteCard(ctx, c)
		if err != nil {
			result.fail(c.ID, err)
			continue
		}
		result.count(applied)
	}
	for _, s := range changes.Stats {
		if ctx.Err() != nil {
			return result, result.Err
		}
		applied, err := e.syncRepo.ApplyRemoteStats(ctx, s)
		if err != nil {
			result.fail(s.FlashcardID, err)
			continue
		}
		result.count(applied)
	}
	for _, del := range changes.Deletes {
		if ctx.Err() != nil {
			return result, result.Err
		}
		applied, err := e.syncRepo.ApplyRemoteDelete(ctx, del.Entity, del.RowID)
		if err != nil {
			result.fail(del.RowID, err)
			continue
		}
		result.count(applied)
	}

	if result.Err == nil && !changes.ServerTime.IsZero() {
		if err := e.syncRepo.SetWatermark(ctx, ownerID, changes.ServerTime); err != nil {
			result.Err = err
		}
	}

	if result.Deferred > 0 {
		log.Info("%d remote changes deferred to local edits", result.Deferred)
	}
	return result, result.Err
}

func (r *Result) count(applied repository.ApplyResult) {
	switch applied {
	case repository.Applied:
		r.Applied++
	case repository.IgnoredOlder:
		r.Ignored++
	case repository.DeferredDirty:
		r.Deferred++
	}
}
