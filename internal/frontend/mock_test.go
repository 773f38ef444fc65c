package frontend

import (
	"context"
	"testing"

	"github.com/satops/blindscan/internal/candidate"
)

func tune(t *testing.T, m *Mock, freqKHz int64, pol candidate.Polarisation) {
	t.Helper()
	if err := m.SendSatconfChain(context.Background(), pol, candidate.BandLow, Voltage13V, freqKHz); err != nil {
		t.Fatalf("satconf chain: %v", err)
	}
	m.mu.Lock()
	m.lastPol = pol
	m.mu.Unlock()
	if err := m.SetProperties(context.Background(), Properties{
		{Key: PropFrequency, Value: freqKHz},
		{Key: PropTune},
	}); err != nil {
		t.Fatalf("set properties: %v", err)
	}
}

func TestResolveTuneLocksWithinTolerance(t *testing.T) {
	m := NewMock([]SyntheticCarrier{
		{FrequencyKHz: 11_000_000, Polarisation: candidate.PolHorizontal, SymbolRateSymPerS: 27_500_000, Locks: true},
	})
	tune(t, m, 11_000_000+lockToleranceKHz, candidate.PolHorizontal)

	mask, err := m.AwaitEvent(context.Background(), 0)
	if err != nil {
		t.Fatalf("await event: %v", err)
	}
	if !mask.Locked() {
		t.Fatal("expected lock at the edge of the tolerance window")
	}

	rb, err := m.GetProperties(context.Background())
	if err != nil {
		t.Fatalf("get properties: %v", err)
	}
	if rb.SymbolRateSymPerS != 27_500_000 {
		t.Fatalf("expected readback symbol rate 27,500,000, got %d", rb.SymbolRateSymPerS)
	}
}

func TestResolveTuneMissesJustOutsideTolerance(t *testing.T) {
	m := NewMock([]SyntheticCarrier{
		{FrequencyKHz: 11_000_000, Polarisation: candidate.PolHorizontal, Locks: true},
	})
	tune(t, m, 11_000_000+lockToleranceKHz+1, candidate.PolHorizontal)

	mask, err := m.AwaitEvent(context.Background(), 0)
	if err != nil {
		t.Fatalf("await event: %v", err)
	}
	if mask.Locked() {
		t.Fatal("expected no lock just beyond the tolerance window")
	}
}

func TestResolveTuneNeverLocksWhenCarrierSaysSo(t *testing.T) {
	m := NewMock([]SyntheticCarrier{
		{FrequencyKHz: 11_000_000, Polarisation: candidate.PolHorizontal, Locks: false},
	})
	tune(t, m, 11_000_000, candidate.PolHorizontal)

	mask, err := m.AwaitEvent(context.Background(), 0)
	if err != nil {
		t.Fatalf("await event: %v", err)
	}
	if mask.Locked() {
		t.Fatal("expected Locks=false to never report a lock regardless of frequency match")
	}
}

func TestResolveTuneRequiresMatchingPolarisation(t *testing.T) {
	m := NewMock([]SyntheticCarrier{
		{FrequencyKHz: 11_000_000, Polarisation: candidate.PolHorizontal, Locks: true},
	})
	tune(t, m, 11_000_000, candidate.PolVertical)

	mask, err := m.AwaitEvent(context.Background(), 0)
	if err != nil {
		t.Fatalf("await event: %v", err)
	}
	if mask.Locked() {
		t.Fatal("expected no lock when polarisation does not match the seeded carrier")
	}
}

func TestAcquireSpectrumReportsHardwareCandidateAndBump(t *testing.T) {
	m := NewMock([]SyntheticCarrier{
		{
			FrequencyKHz:      1_100_000,
			SymbolRateSymPerS: 20_000_000,
			Polarisation:      candidate.PolHorizontal,
			LevelMilliDB:      -30000,
		},
	})

	res, err := m.AcquireSpectrum(context.Background(), SpectrumRequest{
		Polarisation:  candidate.PolHorizontal,
		StartFreqKHz:  1_000_000,
		EndFreqKHz:    1_200_000,
		ResolutionKHz: 1_000,
		MaxCandidates: 10,
	})
	if err != nil {
		t.Fatalf("acquire spectrum: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].IFFrequencyKHz != 1_100_000 {
		t.Fatalf("expected the seeded carrier reported as a hardware candidate, got %+v", res.Candidates)
	}

	var peakLevel int32 = -1 << 30
	for i, f := range res.FrequenciesKHz {
		if f == 1_100_000 && res.LevelsMilliDB[i] > peakLevel {
			peakLevel = res.LevelsMilliDB[i]
		}
	}
	if peakLevel != -30000 {
		t.Fatalf("expected the bump to peak at the carrier's level (-30000), got %d", peakLevel)
	}
}

func TestAcquireSpectrumExcludesOtherPolarisation(t *testing.T) {
	m := NewMock([]SyntheticCarrier{
		{FrequencyKHz: 1_100_000, Polarisation: candidate.PolVertical, LevelMilliDB: -30000},
	})
	res, err := m.AcquireSpectrum(context.Background(), SpectrumRequest{
		Polarisation:  candidate.PolHorizontal,
		StartFreqKHz:  1_000_000,
		EndFreqKHz:    1_200_000,
		ResolutionKHz: 1_000,
		MaxCandidates: 10,
	})
	if err != nil {
		t.Fatalf("acquire spectrum: %v", err)
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("expected no candidates reported for the wrong polarisation, got %+v", res.Candidates)
	}
	for _, lvl := range res.LevelsMilliDB {
		if lvl != m.floorMilliDB {
			t.Fatalf("expected a flat noise floor when the only carrier is on the other polarisation, got %d", lvl)
		}
	}
}

func TestSendSatconfChainCachesUntilInvalidated(t *testing.T) {
	m := NewMock(nil)
	if err := m.SendSatconfChain(context.Background(), candidate.PolHorizontal, candidate.BandLow, Voltage13V, 0); err != nil {
		t.Fatalf("first chain: %v", err)
	}
	if !m.cached {
		t.Fatal("expected the (pol, band) pair to be cached after the first chain")
	}

	m.Invalidate()
	if m.cached {
		t.Fatal("expected Invalidate to clear the cache")
	}
}
