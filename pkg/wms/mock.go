package wms

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MockClient is the in-memory WMS used in dev and tests. Quantities start at
// whatever Seed loads and move with Allocate/Release calls, so snapshots stay
// internally consistent.
type MockClient struct {
	mu      sync.Mutex
	batches map[string]*mockBatch
	now     func() time.Time
}

type mockBatch struct {
	orderable     int
	unallocatable int
}

// NewMockClient returns an empty mock WMS.
func NewMockClient() *MockClient {
	return &MockClient{
		batches: map[string]*mockBatch{},
		now:     time.Now,
	}
}

// Seed sets the orderable quantity for an external batch id.
func (c *MockClient) Seed(externalBatchID string, orderable, unallocatable int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches[externalBatchID] = &mockBatch{orderable: orderable, unallocatable: unallocatable}
}

func (c *MockClient) Allocate(_ context.Context, req AllocationRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch, ok := c.batches[req.ExternalBatchID]
	if !ok {
		return &APIError{StatusCode: 404, Body: "unknown batch " + req.ExternalBatchID}
	}
	batch.orderable -= req.Quantity
	return nil
}

func (c *MockClient) Release(_ context.Context, req AllocationRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch, ok := c.batches[req.ExternalBatchID]
	if !ok {
		return &APIError{StatusCode: 404, Body: "unknown batch " + req.ExternalBatchID}
	}
	batch.orderable += req.Quantity
	return nil
}

func (c *MockClient) Snapshot(_ context.Context, externalBatchID string) ([]SnapshotEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if externalBatchID != "" {
		batch, ok := c.batches[externalBatchID]
		if !ok {
			return nil, nil
		}
		return []SnapshotEntry{c.entryLocked(externalBatchID, batch)}, nil
	}
	entries := make([]SnapshotEntry, 0, len(c.batches))
	for id, batch := range c.batches {
		entries = append(entries, c.entryLocked(id, batch))
	}
	return entries, nil
}

func (c *MockClient) SnapshotPage(ctx context.Context, _ string) (SnapshotPage, error) {
	entries, err := c.Snapshot(ctx, "")
	if err != nil {
		return SnapshotPage{}, err
	}
	return SnapshotPage{Entries: entries}, nil
}

func (c *MockClient) entryLocked(id string, batch *mockBatch) SnapshotEntry {
	unallocatable := batch.unallocatable
	reportedAt := c.now().UTC()
	raw, _ := json.Marshal(map[string]any{
		"batchId":       id,
		"orderable":     batch.orderable,
		"unallocatable": unallocatable,
		"reportedAt":    reportedAt,
	})
	return SnapshotEntry{
		WmsBatchID:    id,
		Orderable:     batch.orderable,
		Unallocatable: &unallocatable,
		ReportedAt:    reportedAt,
		Raw:           raw,
	}
}
