package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/events"
	"github.com/satops/blindscan/internal/logging"
	"github.com/satops/blindscan/internal/mux"
	"github.com/satops/blindscan/internal/prescan"
)

// ErrNotFound is returned by operations addressed to an unknown or
// already-released handle.
var ErrNotFound = fmt.Errorf("session: not found")

// Manager owns the process-wide session registry, generalising the
// teacher's TrackManager id-map/order pattern from tracks to sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[Handle]*Session
	network  mux.Network
	logger   logging.Logger
	hub      *events.Hub
}

// NewManager builds a Manager backed by the given network registry.
func NewManager(network mux.Network, logger logging.Logger, hub *events.Hub) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		sessions: make(map[Handle]*Session),
		network:  network,
		logger:   logging.WithComponent(logger, "session-manager"),
		hub:      hub,
	}
}

// Start creates and launches a new session, returning its handle.
func (m *Manager) Start(ctx context.Context, params StartParams) (Handle, error) {
	if params.Frontend == nil {
		return "", fmt.Errorf("start: frontend required")
	}
	if params.EndFreqKHz < params.StartFreqKHz {
		return "", fmt.Errorf("start: end_freq before start_freq")
	}

	params.Frontend.Invalidate()

	h := NewHandle()
	sess := newSession(h, params, m.network, m.logger, m.hub)

	m.mu.Lock()
	m.sessions[h] = sess
	m.mu.Unlock()

	sess.start(ctx)
	return h, nil
}

func (m *Manager) get(h Handle) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[h]
	return s, ok
}

// Status returns a snapshot of the session's progress.
func (m *Manager) Status(h Handle) (Status, error) {
	s, ok := m.get(h)
	if !ok {
		return Status{}, ErrNotFound
	}
	return s.snapshotStatus(), nil
}

// Point is one spectrum sample returned by Manager.Spectrum.
type Point struct {
	FrequencyKHz int64
	LevelCentiDB int32
}

// Spectrum returns the (pol, band) buffer, if the slot has completed.
func (m *Manager) Spectrum(h Handle, pol candidate.Polarisation, band candidate.Band) ([]Point, bool, error) {
	s, ok := m.get(h)
	if !ok {
		return nil, false, ErrNotFound
	}
	buf, ok := s.snapshotSpectrum(pol, band)
	if !ok {
		return nil, false, nil
	}
	out := make([]Point, len(buf.Points))
	for i, p := range buf.Points {
		out[i] = Point{FrequencyKHz: p.FrequencyKHz, LevelCentiDB: p.LevelCentiDB}
	}
	return out, true, nil
}

// Peaks returns every accumulated candidate for the session, re-checking
// pending ones against muxes materialised since they were inserted.
func (m *Manager) Peaks(ctx context.Context, h Handle) ([]candidate.Peak, error) {
	s, ok := m.get(h)
	if !ok {
		return nil, ErrNotFound
	}
	return s.snapshotPeaks(ctx), nil
}

// Prescan drives a blind-tune cycle for one candidate frequency.
func (m *Manager) Prescan(ctx context.Context, h Handle, freqKHz int64, pol candidate.Polarisation) (prescan.Result, error) {
	s, ok := m.get(h)
	if !ok {
		return prescan.Result{}, ErrNotFound
	}
	return s.runPrescan(ctx, freqKHz, pol)
}

// Create materialises the given selected peaks into muxes.
func (m *Manager) Create(ctx context.Context, h Handle, selectedFreqKHz []int64) (int, error) {
	s, ok := m.get(h)
	if !ok {
		return 0, ErrNotFound
	}
	return s.runCreate(ctx, selectedFreqKHz)
}

// Cancel requests the session's worker stop at its next polling
// boundary.
func (m *Manager) Cancel(h Handle) error {
	s, ok := m.get(h)
	if !ok {
		return ErrNotFound
	}
	s.requestStop()
	return nil
}

// Release joins the session's worker and removes it from the registry.
// Double-release is a no-op.
func (m *Manager) Release(h Handle) error {
	m.mu.Lock()
	s, ok := m.sessions[h]
	if ok {
		delete(m.sessions, h)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	s.requestStop()
	s.join()
	return nil
}

// Shutdown stops and joins every active session's worker.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[Handle]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.requestStop()
	}
	for _, s := range sessions {
		s.join()
	}
}
