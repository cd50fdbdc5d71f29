package wms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nabis/inventory-backend/pkg/config"
)

// HTTPClient talks to a real WMS over its JSON API. Calls are paced by a
// shared rate limiter because the WMS throttles aggressively.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

// NewHTTPClient builds a client from configuration.
func NewHTTPClient(cfg config.WMSConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("wms base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("wms api key is required")
	}
	header := strings.TrimSpace(cfg.APIKeyHeader)
	if header == "" {
		header = "X-API-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ratePerMin := cfg.RateLimitPerMin
	if ratePerMin <= 0 {
		ratePerMin = 60
	}

	return &HTTPClient{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		apiKeyHdr: header,
		http:      &http.Client{Timeout: timeout},
		limiter:   time.Tick(time.Minute / time.Duration(ratePerMin)),
	}, nil
}

func (c *HTTPClient) Allocate(ctx context.Context, req AllocationRequest) error {
	return c.post(ctx, "/v1/allocations", req)
}

func (c *HTTPClient) Release(ctx context.Context, req AllocationRequest) error {
	return c.post(ctx, "/v1/releases", req)
}

type snapshotResponse struct {
	Batches []struct {
		BatchID       string    `json:"batchId"`
		Orderable     int       `json:"orderable"`
		Unallocatable *int      `json:"unallocatable"`
		ReportedAt    time.Time `json:"reportedAt"`
	} `json:"batches"`
	NextToken string `json:"nextToken"`
}

func (c *HTTPClient) Snapshot(ctx context.Context, externalBatchID string) ([]SnapshotEntry, error) {
	params := url.Values{}
	if externalBatchID != "" {
		params.Set("batchId", externalBatchID)
	}
	page, err := c.getSnapshot(ctx, params)
	if err != nil {
		return nil, err
	}
	return page.Entries, nil
}

func (c *HTTPClient) SnapshotPage(ctx context.Context, token string) (SnapshotPage, error) {
	params := url.Values{}
	if token != "" {
		params.Set("token", token)
	}
	return c.getSnapshot(ctx, params)
}

func (c *HTTPClient) getSnapshot(ctx context.Context, params url.Values) (SnapshotPage, error) {
	body, err := c.get(ctx, "/v1/snapshots", params)
	if err != nil {
		return SnapshotPage{}, err
	}

	var decoded snapshotResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return SnapshotPage{}, fmt.Errorf("decoding wms snapshot: %w", err)
	}

	entries := make([]SnapshotEntry, 0, len(decoded.Batches))
	for _, b := range decoded.Batches {
		raw, _ := json.Marshal(b)
		entries = append(entries, SnapshotEntry{
			WmsBatchID:    b.BatchID,
			Orderable:     b.Orderable,
			Unallocatable: b.Unallocatable,
			ReportedAt:    b.ReportedAt,
			Raw:           raw,
		})
	}
	return SnapshotPage{Entries: entries, NextToken: decoded.NextToken}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) error {
	<-c.limiter

	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	<-c.limiter

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.apiError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *HTTPClient) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
