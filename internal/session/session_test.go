package session

import (
	"context"
	"testing"
	"time"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/frontend"
	"github.com/satops/blindscan/internal/logging"
	"github.com/satops/blindscan/internal/mux"
	"github.com/satops/blindscan/internal/satconf"
	"github.com/satops/blindscan/internal/spectrum"
)

func waitForTerminal(t *testing.T, mgr *Manager, h Handle) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := mgr.Status(h)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		switch st.State {
		case StateComplete, StateCancelled, StateError:
			return st
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("session did not reach a terminal state in time")
	return Status{}
}

func newTestManager() (*Manager, *mux.MemoryRegistry) {
	network := mux.NewMemoryRegistry()
	return NewManager(network, logging.Default(), nil), network
}

// slowFrontend wraps a Mock and adds a fixed per-slot delay to
// AcquireSpectrum, giving a cancellation request a deterministic window
// to land between slots instead of racing an effectively instant mock.
type slowFrontend struct {
	*frontend.Mock
	delay time.Duration
}

func (f *slowFrontend) AcquireSpectrum(ctx context.Context, req frontend.SpectrumRequest) (frontend.SpectrumResult, error) {
	time.Sleep(f.delay)
	return f.Mock.AcquireSpectrum(ctx, req)
}

// TestPeaksReCheckFlipsPendingToSkippedAfterLaterMux exercises spec
// §4.E's read-time re-check: a pending peak that was outside any
// existing mux's tight create-time envelope when it was inserted can
// still be covered by a mux materialised afterwards, once that mux
// falls within the looser reporter envelope. The `peaks` read path
// must catch this and relabel the peak skipped.
func TestPeaksReCheckFlipsPendingToSkippedAfterLaterMux(t *testing.T) {
	mgr, network := newTestManager()
	fe := frontend.NewMock(nil)

	h, err := mgr.Start(context.Background(), StartParams{
		Frontend:     fe,
		Satconf:      satconf.Config{},
		NetworkUUID:  "net-skip",
		StartFreqKHz: 11_000_000,
		EndFreqKHz:   11_000_000, // zero span: completes immediately, no slots scanned
		Polarisation: candidate.PolHorizontal,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForTerminal(t, mgr, h)

	s, ok := mgr.get(h)
	if !ok {
		t.Fatal("session not found")
	}

	const muxFreq = 11_000_000
	const muxSR = 1_000_000 // Envelope()=675kHz, ReporterEnvelope()=1000kHz
	const peakFreq = 11_000_800 // 800kHz away: outside Envelope, inside ReporterEnvelope

	// No mux exists yet, so the peak is inserted pending rather than
	// auto-skipped.
	s.insertCandidate(context.Background(), candidate.PolHorizontal, spectrum.HardwareCandidate{
		FrequencyKHz:      peakFreq,
		SymbolRateSymPerS: muxSR,
		LevelCentiDB:      -4000,
	}, -4500)

	peaks, err := mgr.Peaks(context.Background(), h)
	if err != nil {
		t.Fatalf("peaks: %v", err)
	}
	if len(peaks) != 1 || peaks[0].Status != candidate.StatusPending {
		t.Fatalf("expected one pending peak before any mux exists, got %+v", peaks)
	}

	rec, err := network.Create(context.Background(), mux.Record{
		NetworkUUID:       "net-skip",
		FrequencyKHz:      muxFreq,
		Polarisation:      candidate.PolHorizontal,
		SymbolRateSymPerS: muxSR,
		Delivery:          candidate.DeliveryDVBS2,
	})
	if err != nil {
		t.Fatalf("create mux: %v", err)
	}
	network.SetScanResult(rec.Ref, mux.ScanOK)

	peaks, err = mgr.Peaks(context.Background(), h)
	if err != nil {
		t.Fatalf("peaks after mux create: %v", err)
	}
	if len(peaks) != 1 {
		t.Fatalf("expected one peak, got %d", len(peaks))
	}
	if peaks[0].Status != candidate.StatusSkipped {
		t.Fatalf("expected pending peak to flip to skipped once covered by a later mux, got %v", peaks[0].Status)
	}
	if !peaks[0].Existing {
		t.Fatal("expected Existing to be set on the re-checked peak")
	}
	if peaks[0].VerifiedMuxRef != rec.Ref {
		t.Fatalf("expected VerifiedMuxRef %q, got %q", rec.Ref, peaks[0].VerifiedMuxRef)
	}
	if peaks[0].VerifiedFreqKHz != muxFreq {
		t.Fatalf("expected VerifiedFreqKHz %d, got %d", muxFreq, peaks[0].VerifiedFreqKHz)
	}
}

func TestStartWithZeroSpanCompletesImmediately(t *testing.T) {
	mgr, _ := newTestManager()
	fe := frontend.NewMock(nil)

	h, err := mgr.Start(context.Background(), StartParams{
		Frontend:     fe,
		Satconf:      satconf.Config{},
		NetworkUUID:  "net-zero",
		StartFreqKHz: 11_000_000,
		EndFreqKHz:   11_000_000,
		Polarisation: candidate.PolHorizontal,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitForTerminal(t, mgr, h)
	if st.State != StateComplete {
		t.Fatalf("expected complete, got %v", st.State)
	}
	if st.PeakCount != 0 {
		t.Fatalf("expected no peaks for an empty plan, got %d", st.PeakCount)
	}
}

func TestFullPipelineAcquirePrescanCreate(t *testing.T) {
	mgr, network := newTestManager()

	const transponderFreq = 11_000_000
	fe := frontend.NewMock([]frontend.SyntheticCarrier{
		{
			FrequencyKHz:      1_250_000, // driver IF for 11,000,000 in the low band
			SymbolRateSymPerS: 27_500_000,
			Polarisation:      candidate.PolHorizontal,
			LevelMilliDB:      -40000,
			Modulation:        "8PSK",
			FEC:               "3/4",
			Delivery:          "DVB-S2",
			Rolloff:           "0.35",
			RawStreamID:       0,
			Locks:             true,
		},
	})

	h, err := mgr.Start(context.Background(), StartParams{
		Frontend:     fe,
		Satconf:      satconf.Config{},
		NetworkUUID:  "net-full",
		StartFreqKHz: 10_700_000,
		EndFreqKHz:   11_700_000, // exactly the band split: low band only
		Polarisation: candidate.PolHorizontal,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitForTerminal(t, mgr, h)
	if st.State != StateComplete {
		t.Fatalf("expected complete, got %v (%s)", st.State, st.Message)
	}
	if st.PeakCount != 1 {
		t.Fatalf("expected exactly one peak, got %d", st.PeakCount)
	}

	peaks, err := mgr.Peaks(context.Background(), h)
	if err != nil {
		t.Fatalf("peaks: %v", err)
	}
	if len(peaks) != 1 || peaks[0].FrequencyKHz != transponderFreq {
		t.Fatalf("expected one peak at %d, got %+v", transponderFreq, peaks)
	}
	if peaks[0].Status != candidate.StatusPending {
		t.Fatalf("expected pending status before prescan, got %v", peaks[0].Status)
	}

	result, err := mgr.Prescan(context.Background(), h, transponderFreq, candidate.PolHorizontal)
	if err != nil {
		t.Fatalf("prescan: %v", err)
	}
	if !result.Locked {
		t.Fatal("expected prescan to lock the seeded carrier")
	}

	peaks, err = mgr.Peaks(context.Background(), h)
	if err != nil {
		t.Fatalf("peaks after prescan: %v", err)
	}
	if peaks[0].Status != candidate.StatusLocked {
		t.Fatalf("expected locked status after prescan, got %v", peaks[0].Status)
	}
	if peaks[0].ActualSymbolRateSymPerS != 27_500_000 {
		t.Fatalf("expected prescan-resolved symbol rate, got %d", peaks[0].ActualSymbolRateSymPerS)
	}
	if peaks[0].ActualFrequencyKHz != transponderFreq {
		t.Fatalf("expected the driver IF readback converted back to transponder frequency, got %d", peaks[0].ActualFrequencyKHz)
	}

	created, err := mgr.Create(context.Background(), h, []int64{transponderFreq})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected one mux created, got %d", created)
	}

	records, err := network.AllForNetwork(context.Background(), "net-full")
	if err != nil {
		t.Fatalf("all for network: %v", err)
	}
	if len(records) != 1 || records[0].SymbolRateSymPerS != 27_500_000 || records[0].FrequencyKHz != transponderFreq {
		t.Fatalf("expected one materialised record with the locked frequency/symbol rate, got %+v", records)
	}

	if err := mgr.Release(h); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := mgr.Status(h); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after release, got %v", err)
	}
}

func TestCancelAfterCompletionIsHarmless(t *testing.T) {
	mgr, _ := newTestManager()
	fe := frontend.NewMock(nil)

	h, err := mgr.Start(context.Background(), StartParams{
		Frontend:     fe,
		Satconf:      satconf.Config{},
		NetworkUUID:  "net-cancel",
		StartFreqKHz: 11_000_000,
		EndFreqKHz:   11_000_000,
		Polarisation: candidate.PolHorizontal,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitForTerminal(t, mgr, h)
	if st.State != StateComplete {
		t.Fatalf("expected complete, got %v", st.State)
	}

	if err := mgr.Cancel(h); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	st2, err := mgr.Status(h)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st2.State != StateComplete {
		t.Fatalf("expected state to remain complete after a late cancel, got %v", st2.State)
	}

	if err := mgr.Release(h); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestCancelDuringScanStopsBeforeAllSlotsComplete(t *testing.T) {
	mgr, _ := newTestManager()
	fe := &slowFrontend{Mock: frontend.NewMock(nil), delay: 60 * time.Millisecond}

	h, err := mgr.Start(context.Background(), StartParams{
		Frontend:     fe,
		Satconf:      satconf.Config{},
		NetworkUUID:  "net-midscan-cancel",
		StartFreqKHz: 10_700_000,
		EndFreqKHz:   12_700_000, // both bands, and PolBoth below doubles it to four slots
		Polarisation: candidate.PolBoth,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(75 * time.Millisecond) // lands inside the second of four ~60ms slots
	if err := mgr.Cancel(h); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	st := waitForTerminal(t, mgr, h)
	if st.State != StateCancelled {
		t.Fatalf("expected cancelled, got %v", st.State)
	}
	if st.Progress >= 100 {
		t.Fatalf("expected progress below 100 on a mid-scan cancel, got %d", st.Progress)
	}

	if err := mgr.Release(h); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestDoubleReleaseIsNoOp(t *testing.T) {
	mgr, _ := newTestManager()
	fe := frontend.NewMock(nil)
	h, err := mgr.Start(context.Background(), StartParams{
		Frontend:     fe,
		Satconf:      satconf.Config{},
		NetworkUUID:  "net-double",
		StartFreqKHz: 11_000_000,
		EndFreqKHz:   11_000_000,
		Polarisation: candidate.PolHorizontal,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForTerminal(t, mgr, h)

	if err := mgr.Release(h); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := mgr.Release(h); err != nil {
		t.Fatalf("second release should be a no-op, got: %v", err)
	}
}
