package mux

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRegistry is an in-process Network for tests and the CLI
// harness, grounded on the teacher's TrackManager id-map/order pattern
// generalised from tracks to muxes.
type MemoryRegistry struct {
	mu       sync.Mutex
	records  map[string]Record
	order    []string
	nextID   int
}

// NewMemoryRegistry returns an empty in-memory mux registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[string]Record)}
}

// Lookup finds an existing record whose (network, frequency within
// tolerance, polarisation, stream_id) matches the given key. Stream id
// is part of the tuning identity so a multistream lock's distinct ISIs
// at the same frequency never collide with one another.
func (m *MemoryRegistry) Lookup(_ context.Context, networkUUID string, key Record) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tolerance := FrequencyTolerance(key.SymbolRateSymPerS)
	for _, ref := range m.order {
		rec := m.records[ref]
		if rec.NetworkUUID != networkUUID || rec.Polarisation != key.Polarisation || rec.StreamID != key.StreamID {
			continue
		}
		delta := rec.FrequencyKHz - key.FrequencyKHz
		if delta < 0 {
			delta = -delta
		}
		if delta <= tolerance {
			out := rec
			return &out, true, nil
		}
	}
	return nil, false, nil
}

func (m *MemoryRegistry) Create(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rec.Ref = fmt.Sprintf("mux-%d", m.nextID)
	rec.ScanResult = ScanUnknown
	m.records[rec.Ref] = rec
	m.order = append(m.order, rec.Ref)
	return rec, nil
}

func (m *MemoryRegistry) Enqueue(_ context.Context, ref string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[ref]; !ok {
		return fmt.Errorf("mux %s: not found", ref)
	}
	return nil
}

func (m *MemoryRegistry) AllForNetwork(_ context.Context, networkUUID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.order))
	for _, ref := range m.order {
		rec := m.records[ref]
		if rec.NetworkUUID == networkUUID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SetScanResult lets tests simulate the upstream scanner reporting a
// mux's health, exercised by the session manager's auto-skip/retry
// logic.
func (m *MemoryRegistry) SetScanResult(ref string, result ScanResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[ref]; ok {
		rec.ScanResult = result
		m.records[ref] = rec
	}
}
