package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/vytor/lexideck/internal/api"
	"github.com/vytor/lexideck/internal/coordinator"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/repository/sqlite"
	"github.com/vytor/lexideck/internal/services"
	"github.com/vytor/lexideck/internal/srs"
	"github.com/vytor/lexideck/internal/syncer"
	"github.com/vytor/lexideck/internal/testutil"
)

// noopEngine satisfies coordinator.Engine; API tests never run a real sync.
type noopEngine struct{}

func (noopEngine) Sync(ctx context.Context, ownerID string) (*syncer.Result, error) {
	return &syncer.Result{}, nil
}

type ServerTestSuite struct {
	suite.Suite
	db     *sql.DB
	server *httptest.Server
}

func (s *ServerTestSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())

	deckRepo := sqlite.NewDeckRepository(s.db)
	cardRepo := sqlite.NewFlashcardRepository(s.db)
	statsRepo := sqlite.NewStatsRepository(s.db)
	syncRepo := sqlite.NewSyncRepository(s.db)

	srv := &api.Server{
		DB:          s.db,
		Decks:       services.NewDeckService(deckRepo),
		Cards:       services.NewCardService(cardRepo, deckRepo),
		Reviews:     services.NewReviewService(statsRepo, cardRepo, srs.New(0)),
		SyncRepo:    syncRepo,
		Coordinator: coordinator.New(noopEngine{}, nil, coordinator.Options{}),
	}
	s.server = httptest.NewServer(srv.Routes())
}

func (s *ServerTestSuite) TearDownTest() {
	s.server.Close()
	testutil.MustClose(s.T(), s.db)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) request(method, path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *ServerTestSuite) decode(resp *http.Response, dst any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(dst))
}

func (s *ServerTestSuite) createDeck(name string) models.Deck {
	resp := s.request(http.MethodPost, "/api/decks/", map[string]any{
		"owner_id": "alice",
		"name":     name,
		"language": "es",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var deck models.Deck
	s.decode(resp, &deck)
	return deck
}

func (s *ServerTestSuite) createCard(deckID, front, back string) models.Flashcard {
	resp := s.request(http.MethodPost, "/api/decks/"+deckID+"/cards", map[string]any{
		"front_text": front,
		"back_text":  back,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var card models.Flashcard
	s.decode(resp, &card)
	return card
}

func (s *ServerTestSuite) TestHealthEndpoints() {
	resp := s.request(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.request(http.MethodGet, "/ready", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (s *ServerTestSuite) TestDeckLifecycle() {
	deck := s.createDeck("Spanish basics")
	s.NotEmpty(deck.ID)
	s.True(deck.IsCustom)

	resp := s.request(http.MethodGet, "/api/decks/"+deck.ID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var got models.Deck
	s.decode(resp, &got)
	s.Equal("Spanish basics", got.Name)

	resp = s.request(http.MethodPatch, "/api/decks/"+deck.ID, map[string]any{"name": "Spanish A1"})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &got)
	s.Equal("Spanish A1", got.Name)

	resp = s.request(http.MethodDelete, "/api/decks/"+deck.ID, nil)
	s.Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = s.request(http.MethodGet, "/api/decks/"+deck.ID, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func (s *ServerTestSuite) TestDeckValidationErrorShape() {
	resp := s.request(http.MethodPost, "/api/decks/", map[string]any{"owner_id": "alice", "name": " "})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	s.decode(resp, &body)
	s.Equal("VALIDATION_ERROR", body.Error.Code)
	s.NotEmpty(body.Error.Message)
}

func (s *ServerTestSuite) TestCardLifecycleAndPositions() {
	deck := s.createDeck("Spanish basics")
	c1 := s.createCard(deck.ID, "hola", "hello")
	c2 := s.createCard(deck.ID, "adios", "goodbye")
	c3 := s.createCard(deck.ID, "gracias", "thanks")
	s.Equal(1, c1.Position)
	s.Equal(2, c2.Position)
	s.Equal(3, c3.Position)

	// Delete the middle card: positions close the gap.
	resp := s.request(http.MethodDelete, "/api/cards/"+c2.ID, nil)
	s.Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = s.request(http.MethodGet, "/api/decks/"+deck.ID+"/cards", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var list struct {
		Cards []models.Flashcard `json:"cards"`
	}
	s.decode(resp, &list)
	s.Require().Len(list.Cards, 2)
	s.Equal([]int{1, 2}, []int{list.Cards[0].Position, list.Cards[1].Position})
	s.Equal(c1.ID, list.Cards[0].ID)
	s.Equal(c3.ID, list.Cards[1].ID)
}

func (s *ServerTestSuite) TestReorderCards() {
	deck := s.createDeck("Spanish basics")
	c1 := s.createCard(deck.ID, "uno", "one")
	c2 := s.createCard(deck.ID, "dos", "two")
	c3 := s.createCard(deck.ID, "tres", "three")

	resp := s.request(http.MethodPut, "/api/decks/"+deck.ID+"/order", map[string]any{
		"card_ids": []string{c3.ID, c1.ID, c2.ID},
	})
	s.Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = s.request(http.MethodGet, "/api/decks/"+deck.ID+"/cards", nil)
	var list struct {
		Cards []models.Flashcard `json:"cards"`
	}
	s.decode(resp, &list)
	s.Require().Len(list.Cards, 3)
	s.Equal(c3.ID, list.Cards[0].ID)
	s.Equal(c1.ID, list.Cards[1].ID)
	s.Equal(c2.ID, list.Cards[2].ID)

	// A partial id list must be rejected and change nothing.
	resp = s.request(http.MethodPut, "/api/decks/"+deck.ID+"/order", map[string]any{
		"card_ids": []string{c1.ID, c2.ID},
	})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *ServerTestSuite) TestReviewFlow() {
	deck := s.createDeck("Spanish basics")
	card := s.createCard(deck.ID, "hola", "hello")

	// New card shows up as due.
	resp := s.request(http.MethodGet, "/api/decks/"+deck.ID+"/due", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var due struct {
		Cards []models.Flashcard `json:"cards"`
	}
	s.decode(resp, &due)
	s.Require().Len(due.Cards, 1)

	resp = s.request(http.MethodPost, "/api/cards/"+card.ID+"/review", map[string]any{"outcome": "good"})
	s.Equal(http.StatusOK, resp.StatusCode)
	var stats models.ReviewStats
	s.decode(resp, &stats)
	s.Equal(1, stats.Repetitions)
	s.Equal(1, stats.IntervalDays)
	s.Equal(models.StatusLearning, stats.Status)

	// Scheduled a day out: no longer due.
	resp = s.request(http.MethodGet, "/api/decks/"+deck.ID+"/due", nil)
	s.decode(resp, &due)
	s.Empty(due.Cards)

	resp = s.request(http.MethodPost, "/api/cards/"+card.ID+"/review", map[string]any{"outcome": "nope"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *ServerTestSuite) TestDeckCountsAndOverview() {
	deck := s.createDeck("Spanish basics")
	card := s.createCard(deck.ID, "hola", "hello")
	s.createCard(deck.ID, "adios", "goodbye")

	resp := s.request(http.MethodPost, "/api/cards/"+card.ID+"/review", map[string]any{"outcome": "good"})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.request(http.MethodGet, "/api/decks/"+deck.ID+"/counts", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var counts models.DeckCounts
	s.decode(resp, &counts)
	s.Equal(2, counts.Total)
	s.Equal(1, counts.New)
	s.Equal(1, counts.Learning)
	s.Equal(1, counts.Due)

	resp = s.request(http.MethodGet, "/api/decks/overview?owner_id=alice", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var overview struct {
		Decks []models.DeckOverview `json:"decks"`
	}
	s.decode(resp, &overview)
	s.Require().Len(overview.Decks, 1)
	s.Equal(2, overview.Decks[0].Counts.Total)
}

func (s *ServerTestSuite) TestSyncStatusReflectsDirtyRows() {
	deck := s.createDeck("Spanish basics")
	s.createCard(deck.ID, "hola", "hello")

	resp := s.request(http.MethodGet, "/api/sync/status?owner_id=alice", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var status models.SyncStatus
	s.decode(resp, &status)
	s.Equal(1, status.DirtyDecks)
	s.Equal(1, status.DirtyCards)
	s.Nil(status.LastSyncedAt)
}

func (s *ServerTestSuite) TestManualSyncTriggerAccepted() {
	resp := s.request(http.MethodPost, "/api/sync/", map[string]any{"owner_id": "alice"})
	s.Equal(http.StatusAccepted, resp.StatusCode)
	var body struct {
		Queued bool `json:"queued"`
	}
	s.decode(resp, &body)
	s.True(body.Queued)

	resp = s.request(http.MethodPost, "/api/sync/", map[string]any{"owner_id": ""})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *ServerTestSuite) TestRequestIDHeader() {
	resp := s.request(http.MethodGet, "/health", nil)
	s.NotEmpty(resp.Header.Get("X-Request-ID"))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/health", nil)
	s.Require().NoError(err)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.Equal("req-123", resp.Header.Get("X-Request-ID"))
	resp.Body.Close()
}
