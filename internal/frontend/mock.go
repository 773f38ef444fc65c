package frontend

import (
	"context"
	"sync"
	"time"

	"github.com/satops/blindscan/internal/candidate"
)

// SyntheticCarrier is one carrier the Mock frontend injects into its
// synthesized spectrum buffers and reports as a locked tune once its
// frequency/polarisation match a prescan request.
type SyntheticCarrier struct {
	FrequencyKHz      int64
	SymbolRateSymPerS int64
	Polarisation      candidate.Polarisation
	LevelMilliDB      int32
	Modulation        string
	FEC               string
	Delivery          string
	Rolloff           string
	Pilot             bool
	RawStreamID       int
	Matype            uint32
	ISIBitset         []byte
	Locks             bool // false simulates a carrier that never locks
}

// lockToleranceKHz is how close a TUNE request's frequency must land to
// a seeded carrier's frequency to count as "this carrier".
const lockToleranceKHz = 3_000

// Mock is an in-memory Frontend that generates spectrum buffers and
// simulated tune outcomes from a fixed set of injected carriers,
// grounded on the teacher's MockSDR: no hardware, deterministic output
// driven entirely by caller-supplied configuration.
type Mock struct {
	mu           sync.Mutex
	carriers     []SyntheticCarrier
	lastPol      candidate.Polarisation
	lastBand     candidate.Band
	cached       bool
	floorMilliDB int32

	pendingFreqKHz int64
	lastEvent      EventMask
	lastReadback   TuningReadback
}

// NewMock builds a Mock frontend seeded with the given carriers. A zero
// value set of carriers is valid and yields a flat noise floor.
func NewMock(carriers []SyntheticCarrier) *Mock {
	return &Mock{carriers: carriers, floorMilliDB: -70000}
}

func (m *Mock) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingFreqKHz = 0
	m.lastEvent = 0
	return nil
}

// SetProperties tracks the FREQUENCY and TUNE steps of the prescan
// sequence and, on TUNE, resolves the request against the seeded
// carriers to decide lock success and the readback payload.
func (m *Mock) SetProperties(_ context.Context, props Properties) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range props {
		switch p.Key {
		case PropFrequency:
			m.pendingFreqKHz = p.Value
		case PropTune:
			m.resolveTune()
		}
	}
	return nil
}

func (m *Mock) resolveTune() {
	var best *SyntheticCarrier
	var bestDelta int64 = lockToleranceKHz + 1
	for i := range m.carriers {
		c := &m.carriers[i]
		if c.Polarisation != "" && c.Polarisation != m.lastPol {
			continue
		}
		delta := c.FrequencyKHz - m.pendingFreqKHz
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			bestDelta = delta
			best = c
		}
	}

	if best == nil || bestDelta > lockToleranceKHz || !best.Locks {
		m.lastEvent = 0
		m.lastReadback = TuningReadback{}
		return
	}

	m.lastEvent = EventCarrierLock | EventSync
	m.lastReadback = TuningReadback{
		FrequencyKHz:      best.FrequencyKHz,
		SymbolRateSymPerS: best.SymbolRateSymPerS,
		Modulation:        best.Modulation,
		FEC:               best.FEC,
		DeliverySystem:    best.Delivery,
		RawStreamID:       best.RawStreamID,
		Rolloff:           best.Rolloff,
		Pilot:             best.Pilot,
		HasMatype:         best.Matype != 0,
		Matype:            best.Matype,
		ISIBitset:         best.ISIBitset,
	}
}

func (m *Mock) GetProperties(_ context.Context) (TuningReadback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReadback, nil
}

func (m *Mock) SetVoltage(_ context.Context, _ Voltage) error { return nil }

func (m *Mock) SetTone(_ context.Context, _ bool) error { return nil }

func (m *Mock) AwaitEvent(_ context.Context, _ time.Duration) (EventMask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastEvent, nil
}

func (m *Mock) SendSatconfChain(_ context.Context, pol candidate.Polarisation, band candidate.Band, _ Voltage, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached && m.lastPol == pol && m.lastBand == band {
		return nil
	}
	m.lastPol, m.lastBand, m.cached = pol, band, true
	return nil
}

func (m *Mock) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = false
}

func (m *Mock) SupportsSpectrumExtension() bool { return true }

func (m *Mock) Close() error { return nil }

// AcquireSpectrum synthesizes a level array across the requested
// driver-visible range: a flat noise floor with a triangular bump at
// each seeded carrier whose frequency falls in range.
func (m *Mock) AcquireSpectrum(_ context.Context, req SpectrumRequest) (SpectrumResult, error) {
	m.mu.Lock()
	carriers := append([]SyntheticCarrier(nil), m.carriers...)
	floor := m.floorMilliDB
	m.mu.Unlock()

	resKHz := req.ResolutionKHz
	if resKHz <= 0 {
		resKHz = 100
	}
	n := int((req.EndFreqKHz - req.StartFreqKHz) / resKHz)
	if n <= 0 {
		n = 1
	}

	res := SpectrumResult{
		FrequenciesKHz: make([]int64, 0, n),
		LevelsMilliDB:  make([]int32, 0, n),
	}
	for i := 0; i < n; i++ {
		f := req.StartFreqKHz + int64(i)*resKHz
		level := floor
		for _, c := range carriers {
			if c.Polarisation != "" && c.Polarisation != req.Polarisation {
				continue
			}
			halfBW := c.SymbolRateSymPerS / 1000 * 125 / 100 / 2
			if halfBW <= 0 {
				halfBW = 10_000
			}
			delta := f - c.FrequencyKHz
			if delta < 0 {
				delta = -delta
			}
			if delta < halfBW {
				bump := c.LevelMilliDB - floor
				shaped := floor + int32(int64(bump)*(halfBW-delta)/halfBW)
				if shaped > level {
					level = shaped
				}
			}
		}
		res.FrequenciesKHz = append(res.FrequenciesKHz, f)
		res.LevelsMilliDB = append(res.LevelsMilliDB, level)
	}

	for _, c := range carriers {
		if c.Polarisation != "" && c.Polarisation != req.Polarisation {
			continue
		}
		if c.FrequencyKHz < req.StartFreqKHz || c.FrequencyKHz > req.EndFreqKHz {
			continue
		}
		if len(res.Candidates) >= req.MaxCandidates {
			break
		}
		res.Candidates = append(res.Candidates, HardwareCandidate{
			IFFrequencyKHz:    c.FrequencyKHz,
			SymbolRateSymPerS: c.SymbolRateSymPerS,
			LevelMilliDB:      c.LevelMilliDB,
		})
	}

	return res, nil
}
