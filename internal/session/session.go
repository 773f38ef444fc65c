// Package session owns one blind-scan run end to end: parameters, a
// dedicated worker goroutine, progress, cancellation, per-(pol,band)
// spectrum buffers, and the accumulated candidate list. Grounded on the
// teacher's Tracker/TrackManager split between read-mostly
// configuration and worker-owned mutable state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/events"
	"github.com/satops/blindscan/internal/frontend"
	"github.com/satops/blindscan/internal/logging"
	"github.com/satops/blindscan/internal/mux"
	"github.com/satops/blindscan/internal/prescan"
	"github.com/satops/blindscan/internal/satconf"
	"github.com/satops/blindscan/internal/spectrum"
)

// State follows the digraph idle -> acquiring -> (scanning)* -> {complete,
// cancelled, error}, with no backward edges.
type State string

const (
	StateIdle       State = "idle"
	StateAcquiring  State = "acquiring"
	StateScanning   State = "scanning"
	StateComplete   State = "complete"
	StateCancelled  State = "cancelled"
	StateError      State = "error"
)

// Status is an immutable snapshot of a session's progress.
type Status struct {
	State         State
	Progress      int
	Message       string
	PeakCount     int
	MuxesCreated  int
	MuxesLocked   int
	DurationMillis int64
}

// Session owns one scan. Fields above the mutex line are set once, at
// construction (started: when the worker is launched, under mu) and
// never mutated afterwards; fields below are guarded by mu and
// touched only by the worker and the accessor methods below.
type Session struct {
	handle  Handle
	fe      frontend.Frontend
	satconf satconf.Config
	network mux.Network
	netUUID string
	bandPlan spectrum.BandPlan
	f0, f1  int64
	pol     candidate.Polarisation
	opts    Options
	voltage frontend.Voltage
	logger  logging.Logger
	hub     *events.Hub

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  time.Time

	mu        sync.Mutex
	state     State
	progress  int
	message   string
	buffers   map[bufferKey]spectrum.Buffer
	peaks     []candidate.Peak
	muxesCreated int
	muxesLocked  int
	duration     time.Duration
}

type bufferKey struct {
	pol  candidate.Polarisation
	band candidate.Band
}

func newSession(h Handle, p StartParams, network mux.Network, logger logging.Logger, hub *events.Hub) *Session {
	return &Session{
		handle:   h,
		fe:       p.Frontend,
		satconf:  p.Satconf,
		network:  network,
		netUUID:  p.NetworkUUID,
		bandPlan: spectrum.DefaultBandPlan,
		f0:       p.StartFreqKHz,
		f1:       p.EndFreqKHz,
		pol:      p.Polarisation,
		opts:     p.Options,
		voltage:  p.Voltage,
		logger:   logging.WithComponent(logger, "session"),
		hub:      hub,
		stop:     make(chan struct{}),
		state:    StateIdle,
		buffers:  make(map[bufferKey]spectrum.Buffer),
	}
}

// slot is one (polarisation, band) acquisition task in the scan plan.
type slot struct {
	pol  candidate.Polarisation
	band candidate.Band
}

func (s *Session) start(ctx context.Context) {
	s.mu.Lock()
	s.state = StateAcquiring
	s.started = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()

	plan := s.buildPlan()
	if len(plan) == 0 {
		s.finish(StateComplete, "no slots in range")
		return
	}

	if !s.fe.SupportsSpectrumExtension() {
		s.finish(StateError, "frontend does not support the spectrum extension")
		return
	}

	s.setState(StateScanning, "")

	for i, sl := range plan {
		select {
		case <-s.stop:
			s.finish(StateCancelled, "cancelled")
			return
		default:
		}

		progressBase := (i * 50) / len(plan)
		s.setProgress(progressBase)

		task := spectrum.Task{
			Polarisation:  sl.pol,
			Band:          sl.band,
			StartFreqKHz:  s.f0,
			EndFreqKHz:    s.f1,
			ResolutionKHz: s.opts.ResolutionKHz,
			FFTSize:       s.opts.FFTSize,
			BandPlan:      s.bandPlan,
			Satconf:       s.satconf,
			Voltage:       s.voltage,
		}

		buf, hwCandidates, err := spectrum.Acquire(ctx, s.fe, task)
		if err != nil {
			s.logger.Warn("slot acquisition failed", logging.Field{Key: "pol", Value: string(sl.pol)}, logging.Field{Key: "band", Value: sl.band.String()}, logging.Field{Key: "error", Value: err.Error()})
			continue
		}

		s.mu.Lock()
		s.buffers[bufferKey{pol: sl.pol, band: sl.band}] = buf
		s.mu.Unlock()

		var detected []spectrum.HardwareCandidate
		useSoftware := s.opts.PeakDetect == PeakDetectSoftwareOnly ||
			(s.opts.PeakDetect == PeakDetectAuto && len(hwCandidates) == 0)
		if useSoftware && s.opts.PeakDetect != PeakDetectHardwareOnly {
			for _, dp := range spectrum.DetectPeaks(buf, s.opts.detectOptions()) {
				detected = append(detected, spectrum.HardwareCandidate{
					FrequencyKHz:      dp.CenterFreqKHz,
					SymbolRateSymPerS: dp.SymbolRateSymPerS,
					LevelCentiDB:      dp.LevelCentiDB,
				})
			}
		} else {
			detected = hwCandidates
		}

		minLevel := minBufferLevel(buf)
		for _, hc := range detected {
			s.insertCandidate(ctx, sl.pol, hc, minLevel)
		}

		progressAfter := ((i + 1) * 50) / len(plan)
		s.setProgress(progressAfter)

		select {
		case <-s.stop:
			s.finish(StateCancelled, "cancelled")
			return
		default:
		}
	}

	s.setProgress(100)
	s.finish(StateComplete, "")
}

func minBufferLevel(buf spectrum.Buffer) int32 {
	if len(buf.Points) == 0 {
		return 0
	}
	min := buf.Points[0].LevelCentiDB
	for _, p := range buf.Points[1:] {
		if p.LevelCentiDB < min {
			min = p.LevelCentiDB
		}
	}
	return min
}

// insertCandidate appends a new peak and checks it for overlap with the
// network's existing muxes, auto-skipping when at least one overlapping
// mux last reported a healthy scan; an overlapping failed mux alone
// marks it retry.
func (s *Session) insertCandidate(ctx context.Context, pol candidate.Polarisation, hc spectrum.HardwareCandidate, minLevel int32) {
	peak := candidate.Peak{
		FrequencyKHz:      hc.FrequencyKHz,
		SymbolRateSymPerS: hc.SymbolRateSymPerS,
		Polarisation:      pol,
		LevelCentiDB:      hc.LevelCentiDB,
		SNRCentiDB:        hc.LevelCentiDB - minLevel,
		Status:            candidate.StatusPending,
	}

	if s.network != nil {
		if existing, err := s.network.AllForNetwork(ctx, s.netUUID); err == nil {
			for _, rec := range existing {
				if !mux.Overlaps(peak.FrequencyKHz, pol, rec) {
					continue
				}
				switch rec.ScanResult {
				case mux.ScanOK:
					peak.Status = candidate.StatusExisting
					peak.Existing = true
					peak.VerifiedMuxRef = rec.Ref
					peak.VerifiedFreqKHz = rec.FrequencyKHz
				case mux.ScanFailed:
					if peak.Status != candidate.StatusExisting {
						peak.Status = candidate.StatusRetry
					}
					peak.HasFailedMux = true
				}
			}
		}
	}

	s.mu.Lock()
	s.peaks = append(s.peaks, peak)
	s.mu.Unlock()
}

func (s *Session) buildPlan() []slot {
	var pols []candidate.Polarisation
	switch s.pol {
	case candidate.PolBoth:
		pols = []candidate.Polarisation{candidate.PolHorizontal, candidate.PolVertical}
	default:
		pols = []candidate.Polarisation{s.pol}
	}

	var bands []candidate.Band
	lowInRange := s.f0 < s.bandPlan.SplitKHz && s.f1 > s.f0
	highInRange := s.f1 > s.bandPlan.SplitKHz && s.f1 > s.f0
	if lowInRange {
		bands = append(bands, candidate.BandLow)
	}
	if highInRange {
		bands = append(bands, candidate.BandHigh)
	}

	var plan []slot
	for _, p := range pols {
		for _, b := range bands {
			plan = append(plan, slot{pol: p, band: b})
		}
	}
	return plan
}

func (s *Session) setState(st State, msg string) {
	s.mu.Lock()
	s.state = st
	if msg != "" {
		s.message = msg
	}
	s.mu.Unlock()
}

func (s *Session) setProgress(p int) {
	s.mu.Lock()
	if p > s.progress {
		s.progress = p
	}
	s.mu.Unlock()
}

func (s *Session) finish(st State, msg string) {
	s.mu.Lock()
	s.state = st
	if msg != "" {
		s.message = msg
	}
	s.duration = time.Since(s.started)
	duration := s.duration
	peakCount := len(s.peaks)
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.PublishTerminal(s.handle.String(), string(st), peakCount, duration)
	}
}

// requestStop signals the worker to exit at its next polling boundary.
func (s *Session) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// join blocks until the worker goroutine has exited.
func (s *Session) join() {
	s.wg.Wait()
}

// snapshotStatus returns the session's current status.
func (s *Session) snapshotStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.duration
	if s.state == StateAcquiring || s.state == StateScanning {
		d = time.Since(s.started)
	}
	return Status{
		State:          s.state,
		Progress:       s.progress,
		Message:        s.message,
		PeakCount:      len(s.peaks),
		MuxesCreated:   s.muxesCreated,
		MuxesLocked:    s.muxesLocked,
		DurationMillis: d.Milliseconds(),
	}
}

// snapshotSpectrum returns a copy of the buffer for (pol, band), if any.
func (s *Session) snapshotSpectrum(pol candidate.Polarisation, band candidate.Band) (spectrum.Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.buffers[bufferKey{pol: pol, band: band}]
	if !ok {
		return spectrum.Buffer{}, false
	}
	cp := spectrum.Buffer{Polarisation: buf.Polarisation, Band: buf.Band, Points: append([]spectrum.Point(nil), buf.Points...)}
	return cp, true
}

// snapshotPeaks returns immutable copies of every accumulated peak,
// first re-checking pending ones against muxes materialised since they
// were inserted (spec §4.E: `peaks` may flip `pending` to `skipped`).
func (s *Session) snapshotPeaks(ctx context.Context) []candidate.Peak {
	s.refreshSkipped(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]candidate.Peak, len(s.peaks))
	for i, p := range s.peaks {
		out[i] = p.Snapshot()
	}
	return out
}

// refreshSkipped re-labels pending peaks whose frequency now falls
// within an OK-scanned mux's looser reporter envelope, catching muxes
// created by `create` after the peak was first inserted.
func (s *Session) refreshSkipped(ctx context.Context) {
	if s.network == nil {
		return
	}
	existing, err := s.network.AllForNetwork(ctx, s.netUUID)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.peaks {
		p := &s.peaks[i]
		if p.Status != candidate.StatusPending {
			continue
		}
		for _, rec := range existing {
			if rec.ScanResult != mux.ScanOK {
				continue
			}
			if !mux.OverlapsReporter(p.FrequencyKHz, p.Polarisation, rec) {
				continue
			}
			p.Status = candidate.StatusSkipped
			p.Existing = true
			p.VerifiedMuxRef = rec.Ref
			p.VerifiedFreqKHz = rec.FrequencyKHz
			break
		}
	}
}

// runPrescan drives a blind-tune cycle for freqKHz/pol and mutates in
// place the first candidate on pol within 3000 kHz of freqKHz; it never
// touches other candidates.
func (s *Session) runPrescan(ctx context.Context, freqKHz int64, pol candidate.Polarisation) (prescan.Result, error) {
	deps := prescan.Deps{
		Frontend: s.fe,
		Satconf:  s.satconf,
		BandPlan: s.bandPlan,
		Voltage:  s.voltage,
	}

	s.mu.Lock()
	var srEstimate int64
	idx := -1
	for i, p := range s.peaks {
		if p.Polarisation != pol {
			continue
		}
		delta := p.FrequencyKHz - freqKHz
		if delta < 0 {
			delta = -delta
		}
		if delta <= 3000 {
			idx = i
			srEstimate = p.SymbolRateSymPerS
			break
		}
	}
	s.mu.Unlock()

	result, err := prescan.Run(ctx, deps, freqKHz, pol, srEstimate)
	if err != nil {
		return prescan.Result{}, err
	}

	if idx >= 0 {
		s.mu.Lock()
		if result.Locked {
			s.peaks[idx].Status = candidate.StatusLocked
			s.peaks[idx].ActualFrequencyKHz = result.FrequencyKHz
			s.peaks[idx].ActualSymbolRateSymPerS = result.SymbolRateSymPerS
			s.peaks[idx].Delivery = result.Delivery
			s.peaks[idx].Modulation = result.Modulation
			s.peaks[idx].FEC = result.FEC
			s.peaks[idx].Rolloff = result.Rolloff
			s.peaks[idx].Pilot = result.Pilot
			s.peaks[idx].ISI = result.ISI
			s.peaks[idx].PLSModeValue = result.PLSMode
			s.peaks[idx].PLSCode = result.PLSCode
			s.peaks[idx].IsGSE = result.IsGSE
			s.peaks[idx].Multistream = result.Multistream
			s.peaks[idx].ISIList = result.ISIList
		} else {
			s.peaks[idx].Status = candidate.StatusFailed
		}
		s.mu.Unlock()
	}

	return result, nil
}

// runCreate materialises the selected peaks and increments the
// session's mux counter.
func (s *Session) runCreate(ctx context.Context, selectedFreqKHz []int64) (int, error) {
	s.mu.Lock()
	var selections []mux.Selected
	for _, freq := range selectedFreqKHz {
		for _, p := range s.peaks {
			if p.FrequencyKHz == freq {
				selections = append(selections, mux.Selected{
					NetworkUUID:  s.netUUID,
					FrequencyKHz: freq,
					Polarisation: p.Polarisation,
					Peak:         p,
				})
				break
			}
		}
	}
	s.mu.Unlock()

	created, err := mux.Materialise(ctx, s.network, selections)
	if err != nil {
		return created, fmt.Errorf("materialise muxes: %w", err)
	}

	s.mu.Lock()
	s.muxesCreated += created
	s.mu.Unlock()
	return created, nil
}
