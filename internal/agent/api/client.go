// Package api is the agent's HTTP client for the fieldsync server. It maps
// transport and status failures onto the agent's error taxonomy; callers
// branch on errors.Is/errors.As, never on status codes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/herdworks/fieldsync/internal/models"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Health probes server reachability. Used by the connectivity monitor; a nil
// return means online.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe status %d: %w", resp.StatusCode, ErrTransient)
	}
	return nil
}

// Lookup resolves a scanned code (ear tag or barcode) to an animal.
func (c *Client) Lookup(ctx context.Context, code string) (*models.Animal, error) {
	var animal models.Animal
	err := c.doJSON(ctx, http.MethodGet, "/api/animals/lookup/"+url.PathEscape(code), nil, &animal)
	if err != nil {
		return nil, err
	}
	return &animal, nil
}

// ListActive fetches the full active herd, the bulk read that refreshes the
// local cache.
func (c *Client) ListActive(ctx context.Context) ([]*models.Animal, error) {
	var out struct {
		Animals []*models.Animal `json:"animals"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/animals", nil, &out); err != nil {
		return nil, err
	}
	return out.Animals, nil
}

// SubmitBatch posts a queue drain batch to the reconciliation endpoint.
func (c *Client) SubmitBatch(ctx context.Context, records []models.QueuedRecord) (*models.ReconcileResponse, error) {
	req := models.ReconcileRequest{Records: records}
	var resp models.ReconcileResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostRecord is the online direct-write path for a single capture.
func (c *Client) PostRecord(ctx context.Context, recordType models.RecordType, payload interface{}) error {
	return c.doJSON(ctx, http.MethodPost, "/api/"+string(recordType), payload, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode >= 500:
		// Server-side failure: treat like a lost response, nothing durable
		// is known to have happened for this request.
		return fmt.Errorf("%s %s status %d: %w", method, path, resp.StatusCode, ErrTransient)
	case resp.StatusCode >= 400:
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &RejectedError{Status: resp.StatusCode, Reason: e.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
