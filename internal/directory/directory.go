package directory

import (
	"context"
	"sync"
)

// RiderInfo is the ephemeral contact record for a connected rider. SessionID
// is the handle of the rider's current websocket session and is replaced
// wholesale on every upsert, so a reconnect never leaves a stale handle.
type RiderInfo struct {
	ID        string
	Name      string
	Lng       float64
	Lat       float64
	SessionID string
}

// Directory resolves rider identifiers to contactable metadata.
type Directory interface {
	Upsert(ctx context.Context, info RiderInfo) error
	Get(ctx context.Context, riderID string) (RiderInfo, bool)
	// GetAll resolves a batch of identifiers. Riders with no record or no
	// display name yet are silently excluded: a rider is only visible once
	// both its geo position and its metadata have arrived.
	GetAll(ctx context.Context, riderIDs []string) []RiderInfo
	Delete(ctx context.Context, riderID string) error
}

// Table is the in-memory Directory used in tests and redis-less local runs.
type Table struct {
	mu     sync.RWMutex
	riders map[string]RiderInfo
}

func NewTable() *Table {
	return &Table{riders: make(map[string]RiderInfo)}
}

func (t *Table) Upsert(_ context.Context, info RiderInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.riders[info.ID] = info
	return nil
}

func (t *Table) Get(_ context.Context, riderID string) (RiderInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.riders[riderID]
	return info, ok
}

func (t *Table) GetAll(ctx context.Context, riderIDs []string) []RiderInfo {
	out := make([]RiderInfo, 0, len(riderIDs))
	for _, id := range riderIDs {
		info, ok := t.Get(ctx, id)
		if !ok || info.Name == "" {
			continue
		}
		out = append(out, info)
	}
	return out
}

func (t *Table) Delete(_ context.Context, riderID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.riders, riderID)
	return nil
}
