package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	apperrors "github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/remote"
	"github.com/vytor/lexideck/internal/repository"
	"github.com/vytor/lexideck/internal/testutil/mocks"
)

type EngineTestSuite struct {
	suite.Suite
	syncRepo *mocks.MockSyncRepository
	backend  *mocks.MockBackend
	engine   *Engine
	ctx      context.Context
}

func (s *EngineTestSuite) SetupTest() {
	s.syncRepo = new(mocks.MockSyncRepository)
	s.backend = new(mocks.MockBackend)
	s.engine = New(s.syncRepo, s.backend, 2)
	s.ctx = context.Background()
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) noDirtyRows() {
	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return([]models.Deck{}, nil)
	s.syncRepo.On("DirtyCards", mock.Anything, "alice").Return([]models.Flashcard{}, nil)
	s.syncRepo.On("DirtyStats", mock.Anything, "alice").Return([]models.ReviewStats{}, nil)
	s.syncRepo.On("Tombstones", mock.Anything, "alice").Return([]models.Tombstone{}, nil)
}

func dirtyDeck(id string, updatedAt time.Time) models.Deck {
	return models.Deck{
		ID:        id,
		OwnerID:   "alice",
		IsCustom:  true,
		Name:      "Spanish basics",
		Language:  "es",
		IsActive:  true,
		UpdatedAt: updatedAt,
		IsDirty:   true,
	}
}

func (s *EngineTestSuite) TestPushClearsDirtyWithSnapshot() {
	now := time.Now().UTC().Truncate(time.Second)
	deck := dirtyDeck("d1", now)

	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return([]models.Deck{deck}, nil)
	s.syncRepo.On("DirtyCards", mock.Anything, "alice").Return([]models.Flashcard{}, nil)
	s.syncRepo.On("DirtyStats", mock.Anything, "alice").Return([]models.ReviewStats{}, nil)
	s.syncRepo.On("Tombstones", mock.Anything, "alice").Return([]models.Tombstone{}, nil)

	s.backend.On("PushDecks", mock.Anything, "alice", []models.Deck{deck}).Return(nil)
	s.syncRepo.On("ClearDirtyDeck", mock.Anything, "d1", now).Return(true, nil)

	result, err := s.engine.Push(s.ctx, "alice")
	s.NoError(err)
	s.Equal(1, result.PushedDecks)
	s.Empty(result.FailedIDs)
	s.syncRepo.AssertCalled(s.T(), "ClearDirtyDeck", mock.Anything, "d1", now)
}

func (s *EngineTestSuite) TestPushBatchesLargeSets() {
	now := time.Now().UTC()
	decks := []models.Deck{
		dirtyDeck("d1", now), dirtyDeck("d2", now), dirtyDeck("d3", now),
	}

	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return(decks, nil)
	s.syncRepo.On("DirtyCards", mock.Anything, "alice").Return([]models.Flashcard{}, nil)
	s.syncRepo.On("DirtyStats", mock.Anything, "alice").Return([]models.ReviewStats{}, nil)
	s.syncRepo.On("Tombstones", mock.Anything, "alice").Return([]models.Tombstone{}, nil)

	// Batch size 2: three decks arrive in two calls.
	s.backend.On("PushDecks", mock.Anything, "alice", decks[0:2]).Return(nil).Once()
	s.backend.On("PushDecks", mock.Anything, "alice", decks[2:3]).Return(nil).Once()
	s.syncRepo.On("ClearDirtyDeck", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	result, err := s.engine.Push(s.ctx, "alice")
	s.NoError(err)
	s.Equal(3, result.PushedDecks)
	s.backend.AssertExpectations(s.T())
}

func (s *EngineTestSuite) TestPushNetworkErrorContinuesOtherPhases() {
	now := time.Now().UTC()
	deck := dirtyDeck("d1", now)
	card := models.Flashcard{ID: "c1", DeckID: "d1", FrontText: "hola", BackText: "hello", UpdatedAt: now, IsDirty: true}

	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return([]models.Deck{deck}, nil)
	s.syncRepo.On("DirtyCards", mock.Anything, "alice").Return([]models.Flashcard{card}, nil)
	s.syncRepo.On("DirtyStats", mock.Anything, "alice").Return([]models.ReviewStats{}, nil)
	s.syncRepo.On("Tombstones", mock.Anything, "alice").Return([]models.Tombstone{}, nil)

	netErr := apperrors.NewSyncNetworkError(nil)
	s.backend.On("PushDecks", mock.Anything, "alice", mock.Anything).Return(netErr)
	s.backend.On("PushCards", mock.Anything, "alice", mock.Anything).Return(nil)
	s.syncRepo.On("ClearDirtyCard", mock.Anything, "c1", now).Return(true, nil)

	result, err := s.engine.Push(s.ctx, "alice")
	s.Error(err)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeSyncNetwork))
	s.Equal(0, result.PushedDecks)
	s.Equal(1, result.PushedCards)
	s.Contains(result.FailedIDs, "d1")
	// The failed deck stays dirty for the next run.
	s.syncRepo.AssertNotCalled(s.T(), "ClearDirtyDeck", mock.Anything, mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestPushAuthErrorAborts() {
	now := time.Now().UTC()
	deck := dirtyDeck("d1", now)

	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return([]models.Deck{deck}, nil)

	authErr := apperrors.NewSyncAuthError(nil)
	s.backend.On("PushDecks", mock.Anything, "alice", mock.Anything).Return(authErr)

	_, err := s.engine.Push(s.ctx, "alice")
	s.True(apperrors.IsCode(err, apperrors.ErrCodeSyncAuth))
	// No later phase runs after an auth failure.
	s.syncRepo.AssertNotCalled(s.T(), "DirtyCards", mock.Anything, mock.Anything)
	s.backend.AssertNotCalled(s.T(), "PushCards", mock.Anything, mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestPushEditDuringPushStaysDirty() {
	snapshot := time.Now().UTC()
	deck := dirtyDeck("d1", snapshot)

	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return([]models.Deck{deck}, nil)
	s.syncRepo.On("DirtyCards", mock.Anything, "alice").Return([]models.Flashcard{}, nil)
	s.syncRepo.On("DirtyStats", mock.Anything, "alice").Return([]models.ReviewStats{}, nil)
	s.syncRepo.On("Tombstones", mock.Anything, "alice").Return([]models.Tombstone{}, nil)

	s.backend.On("PushDecks", mock.Anything, "alice", mock.Anything).Return(nil)
	// updated_at moved past the snapshot, so the clear is refused.
	s.syncRepo.On("ClearDirtyDeck", mock.Anything, "d1", snapshot).Return(false, nil)

	result, err := s.engine.Push(s.ctx, "alice")
	s.NoError(err)
	s.Equal(1, result.PushedDecks)
}

func (s *EngineTestSuite) TestPushTombstonesDeletedAfterConfirm() {
	tomb := models.Tombstone{Entity: models.EntityCard, RowID: "c9", OwnerID: "alice", DeletedAt: time.Now().UTC()}

	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return([]models.Deck{}, nil)
	s.syncRepo.On("DirtyCards", mock.Anything, "alice").Return([]models.Flashcard{}, nil)
	s.syncRepo.On("DirtyStats", mock.Anything, "alice").Return([]models.ReviewStats{}, nil)
	s.syncRepo.On("Tombstones", mock.Anything, "alice").Return([]models.Tombstone{tomb}, nil)

	wantDeletes := []remote.RemoteDelete{{Entity: models.EntityCard, RowID: "c9"}}
	s.backend.On("DeleteRows", mock.Anything, "alice", wantDeletes).Return(nil)
	s.syncRepo.On("DeleteTombstone", mock.Anything, models.EntityCard, "c9").Return(nil)

	result, err := s.engine.Push(s.ctx, "alice")
	s.NoError(err)
	s.Equal(1, result.PushedDeletes)
	s.syncRepo.AssertCalled(s.T(), "DeleteTombstone", mock.Anything, models.EntityCard, "c9")
}

func (s *EngineTestSuite) TestPushTombstoneKeptWhenRemoteFails() {
	tomb := models.Tombstone{Entity: models.EntityDeck, RowID: "d9", OwnerID: "alice", DeletedAt: time.Now().UTC()}

	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return([]models.Deck{}, nil)
	s.syncRepo.On("DirtyCards", mock.Anything, "alice").Return([]models.Flashcard{}, nil)
	s.syncRepo.On("DirtyStats", mock.Anything, "alice").Return([]models.ReviewStats{}, nil)
	s.syncRepo.On("Tombstones", mock.Anything, "alice").Return([]models.Tombstone{tomb}, nil)

	s.backend.On("DeleteRows", mock.Anything, "alice", mock.Anything).Return(apperrors.NewSyncNetworkError(nil))

	result, err := s.engine.Push(s.ctx, "alice")
	s.Error(err)
	s.Equal(0, result.PushedDeletes)
	s.syncRepo.AssertNotCalled(s.T(), "DeleteTombstone", mock.Anything, mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestPullAppliesAndAdvancesWatermark() {
	serverTime := time.Now().UTC()
	since := serverTime.Add(-time.Hour)
	remoteDeck := models.Deck{ID: "d1", OwnerID: "alice", Name: "French", UpdatedAt: serverTime}
	remoteCard := models.Flashcard{ID: "c1", DeckID: "d1", FrontText: "chat", BackText: "cat", UpdatedAt: serverTime}

	s.syncRepo.On("SyncState", mock.Anything, "alice").Return(&models.SyncState{OwnerID: "alice", LastPulledAt: &since}, nil)
	s.backend.On("Changes", mock.Anything, "alice", &since).Return(&remote.ChangeSet{
		Decks:      []models.Deck{remoteDeck},
		Cards:      []models.Flashcard{remoteCard},
		Deletes:    []remote.RemoteDelete{{Entity: models.EntityCard, RowID: "c2"}},
		ServerTime: serverTime,
	}, nil)
	s.syncRepo.On("ApplyRemoteDeck", mock.Anything, remoteDeck).Return(repository.Applied, nil)
	s.syncRepo.On("ApplyRemoteCard", mock.Anything, remoteCard).Return(repository.Applied, nil)
	s.syncRepo.On("ApplyRemoteDelete", mock.Anything, models.EntityCard, "c2").Return(repository.Applied, nil)
	s.syncRepo.On("SetWatermark", mock.Anything, "alice", serverTime).Return(nil)

	result, err := s.engine.Pull(s.ctx, "alice")
	s.NoError(err)
	s.Equal(3, result.Applied)
	s.syncRepo.AssertCalled(s.T(), "SetWatermark", mock.Anything, "alice", serverTime)
}

func (s *EngineTestSuite) TestPullCountsIgnoredAndDeferred() {
	serverTime := time.Now().UTC()
	older := models.Deck{ID: "d1", OwnerID: "alice", UpdatedAt: serverTime.Add(-time.Hour)}
	conflicted := models.Deck{ID: "d2", OwnerID: "alice", UpdatedAt: serverTime}

	s.syncRepo.On("SyncState", mock.Anything, "alice").Return(&models.SyncState{OwnerID: "alice"}, nil)
	s.backend.On("Changes", mock.Anything, "alice", (*time.Time)(nil)).Return(&remote.ChangeSet{
		Decks:      []models.Deck{older, conflicted},
		ServerTime: serverTime,
	}, nil)
	s.syncRepo.On("ApplyRemoteDeck", mock.Anything, older).Return(repository.IgnoredOlder, nil)
	s.syncRepo.On("ApplyRemoteDeck", mock.Anything, conflicted).Return(repository.DeferredDirty, nil)
	s.syncRepo.On("SetWatermark", mock.Anything, "alice", serverTime).Return(nil)

	result, err := s.engine.Pull(s.ctx, "alice")
	s.NoError(err)
	s.Equal(0, result.Applied)
	s.Equal(1, result.Ignored)
	s.Equal(1, result.Deferred)
}

func (s *EngineTestSuite) TestPullRowFailureHoldsWatermark() {
	serverTime := time.Now().UTC()
	deck := models.Deck{ID: "d1", OwnerID: "alice", UpdatedAt: serverTime}

	s.syncRepo.On("SyncState", mock.Anything, "alice").Return(&models.SyncState{OwnerID: "alice"}, nil)
	s.backend.On("Changes", mock.Anything, "alice", (*time.Time)(nil)).Return(&remote.ChangeSet{
		Decks:      []models.Deck{deck},
		ServerTime: serverTime,
	}, nil)
	s.syncRepo.On("ApplyRemoteDeck", mock.Anything, deck).
		Return(repository.Applied, apperrors.NewStorageError("apply remote deck", nil))

	result, err := s.engine.Pull(s.ctx, "alice")
	s.Error(err)
	s.Contains(result.FailedIDs, "d1")
	// Held back so the failed rows are retried on the next pull.
	s.syncRepo.AssertNotCalled(s.T(), "SetWatermark", mock.Anything, mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestPullNetworkErrorNoWrites() {
	s.syncRepo.On("SyncState", mock.Anything, "alice").Return(&models.SyncState{OwnerID: "alice"}, nil)
	s.backend.On("Changes", mock.Anything, "alice", (*time.Time)(nil)).
		Return(nil, apperrors.NewSyncNetworkError(nil))

	_, err := s.engine.Pull(s.ctx, "alice")
	s.True(apperrors.IsCode(err, apperrors.ErrCodeSyncNetwork))
	s.syncRepo.AssertNotCalled(s.T(), "ApplyRemoteDeck", mock.Anything, mock.Anything)
	s.syncRepo.AssertNotCalled(s.T(), "SetWatermark", mock.Anything, mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestSyncSkipsPullOnAuthError() {
	now := time.Now().UTC()
	deck := dirtyDeck("d1", now)

	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return([]models.Deck{deck}, nil)
	s.backend.On("PushDecks", mock.Anything, "alice", mock.Anything).Return(apperrors.NewSyncAuthError(nil))

	_, err := s.engine.Sync(s.ctx, "alice")
	s.True(apperrors.IsCode(err, apperrors.ErrCodeSyncAuth))
	s.backend.AssertNotCalled(s.T(), "Changes", mock.Anything, mock.Anything, mock.Anything)
	s.syncRepo.AssertNotCalled(s.T(), "SetLastSynced", mock.Anything, mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestSyncRecordsLastSyncedOnCleanRun() {
	serverTime := time.Now().UTC()
	s.noDirtyRows()
	s.syncRepo.On("SyncState", mock.Anything, "alice").Return(&models.SyncState{OwnerID: "alice"}, nil)
	s.backend.On("Changes", mock.Anything, "alice", (*time.Time)(nil)).
		Return(&remote.ChangeSet{ServerTime: serverTime}, nil)
	s.syncRepo.On("SetWatermark", mock.Anything, "alice", serverTime).Return(nil)
	s.syncRepo.On("SetLastSynced", mock.Anything, "alice", mock.Anything).Return(nil)

	result, err := s.engine.Sync(s.ctx, "alice")
	s.NoError(err)
	s.NoError(result.Err)
	s.syncRepo.AssertCalled(s.T(), "SetLastSynced", mock.Anything, "alice", mock.Anything)
}

func (s *EngineTestSuite) TestSyncCancelledContextStopsEarly() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	now := time.Now().UTC()
	decks := []models.Deck{dirtyDeck("d1", now), dirtyDeck("d2", now), dirtyDeck("d3", now)}
	s.syncRepo.On("DirtyDecks", mock.Anything, "alice").Return(decks, nil)

	result, err := s.engine.Push(ctx, "alice")
	s.NoError(err)
	s.Equal(0, result.PushedDecks)
	s.backend.AssertNotCalled(s.T(), "PushDecks", mock.Anything, mock.Anything, mock.Anything)
}
