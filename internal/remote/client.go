package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
)

// Client talks to the remote sync backend. Rows are addressed by owner id and
// row id; the backend compares updated_at timestamps for conflict checks on
// its side as well.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logger.Logger
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logger.Default().WithPrefix("remote"),
	}
}

// RemoteDelete identifies a row deleted on the remote side.
type RemoteDelete struct {
	Entity string `json:"entity"`
	RowID  string `json:"row_id"`
}

// ChangeSet is the response to a changes-since-watermark query.
type ChangeSet struct {
	Decks      []models.Deck        `json:"decks"`
	Cards      []models.Flashcard   `json:"cards"`
	Stats      []models.ReviewStats `json:"stats"`
	Deletes    []RemoteDelete       `json:"deletes"`
	ServerTime time.Time            `json:"server_time"`
}

func (c *Client) PushDecks(ctx context.Context, ownerID string, decks []models.Deck) error {
	return c.post(ctx, fmt.Sprintf("/v1/users/%s/decks", url.PathEscape(ownerID)),
		map[string]any{"decks": decks})
}

func (c *Client) PushCards(ctx context.Context, ownerID string, cards []models.Flashcard) error {
	return c.post(ctx, fmt.Sprintf("/v1/users/%s/cards", url.PathEscape(ownerID)),
		map[string]any{"cards": cards})
}

func (c *Client) PushStats(ctx context.Context, ownerID string, stats []models.ReviewStats) error {
	return c.post(ctx, fmt.Sprintf("/v1/users/%s/stats", url.PathEscape(ownerID)),
		map[string]any{"stats": stats})
}

func (c *Client) DeleteRows(ctx context.Context, ownerID string, deletes []RemoteDelete) error {
	return c.post(ctx, fmt.Sprintf("/v1/users/%s/deletes", url.PathEscape(ownerID)),
		map[string]any{"deletes": deletes})
}

func (c *Client) Changes(ctx context.Context, ownerID string, since *time.Time) (*ChangeSet, error) {
	log := logger.FromContext(ctx).WithPrefix("remote").WithField("owner_id", ownerID)

	endpoint := c.baseURL + fmt.Sprintf("/v1/users/%s/changes", url.PathEscape(ownerID))
	if since != nil {
		endpoint += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}

	log.Debug("fetching changes from: %s", endpoint)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		log.Error("failed to create request: %v", err)
		return nil, apperrors.NewSyncNetworkError(err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("failed to fetch changes: %v", err)
		return nil, apperrors.NewSyncNetworkError(err)
	}
	defer resp.Body.Close()

	log.Debug("changes response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if err := classifyStatus(resp); err != nil {
		log.Error("changes request failed: %v", err)
		return nil, err
	}

	var out ChangeSet
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Error("failed to decode changes response: %v", err)
		return nil, apperrors.NewSyncNetworkError(err)
	}

	log.Info("fetched changes: decks=%d, cards=%d, stats=%d, deletes=%d",
		len(out.Decks), len(out.Cards), len(out.Stats), len(out.Deletes))
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	log := logger.FromContext(ctx).WithPrefix("remote")

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	endpoint := c.baseURL + path
	log.Debug("posting to: %s (%d bytes)", endpoint, len(body))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to create request: %v", err)
		return apperrors.NewSyncNetworkError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("request failed: %v", err)
		return apperrors.NewSyncNetworkError(err)
	}
	defer resp.Body.Close()

	log.Debug("response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if err := classifyStatus(resp); err != nil {
		log.Error("push request failed: %v", err)
		return err
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// classifyStatus maps HTTP failures onto the sync error taxonomy: 401/403 are
// auth errors (not retried, sync pauses); everything else non-2xx is a
// network error the coordinator retries with backoff.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := fmt.Errorf("remote status %d: %s", resp.StatusCode, string(body))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperrors.NewSyncAuthError(err)
	}
	return apperrors.NewSyncNetworkError(err)
}
