package spectrum

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/frontend"
	"github.com/satops/blindscan/internal/satconf"
)

const (
	directAcquireTimeout   = 60 * time.Second
	directRetryPolls       = 10
	unicableSliceWidthKHz  = 50_000
	unicableSliceHalfKHz   = 25_000
	unicableSliceTimeout   = 10 * time.Second
	unicableDefaultResKHz  = 100
	hardwareDedupWindowKHz = 2_000
)

// Task parameterises one (polarisation, band) acquisition.
type Task struct {
	Polarisation  candidate.Polarisation
	Band          candidate.Band
	StartFreqKHz  int64
	EndFreqKHz    int64
	ResolutionKHz int64
	FFTSize       int
	BandPlan      BandPlan
	Satconf       satconf.Config
	Voltage       frontend.Voltage
}

// Acquire drives the frontend through the direct or Unicable path
// depending on whether Satconf carries a Unicable gateway, and returns
// a transponder-frequency buffer plus any hardware-reported candidates.
func Acquire(ctx context.Context, fe frontend.Frontend, task Task) (Buffer, []HardwareCandidate, error) {
	if task.Satconf.IsUnicable() {
		return acquireUnicable(ctx, fe, task)
	}
	return acquireDirect(ctx, fe, task)
}

func acquireDirect(ctx context.Context, fe frontend.Frontend, task Task) (Buffer, []HardwareCandidate, error) {
	startIF := task.BandPlan.ToDriver(task.StartFreqKHz, task.Band)
	endIF := task.BandPlan.ToDriver(task.EndFreqKHz, task.Band)

	if err := fe.SendSatconfChain(ctx, task.Polarisation, task.Band, task.Voltage, startIF); err != nil {
		return Buffer{}, nil, fmt.Errorf("satconf chain: %w", err)
	}

	req := frontend.SpectrumRequest{
		Polarisation:  task.Polarisation,
		Band:          task.Band,
		StartFreqKHz:  startIF,
		EndFreqKHz:    endIF,
		ResolutionKHz: task.ResolutionKHz,
		FFTSize:       task.FFTSize,
		MaxCandidates: maxCandidates,
		Timeout:       directAcquireTimeout,
	}

	res, err := awaitSpectrum(ctx, fe, req, directRetryPolls)
	if err != nil {
		return Buffer{}, nil, err
	}

	buf := Buffer{Polarisation: task.Polarisation, Band: task.Band}
	for i, ifKHz := range res.FrequenciesKHz {
		buf.Points = append(buf.Points, Point{
			FrequencyKHz: task.BandPlan.ToTransponder(ifKHz, task.Band),
			LevelCentiDB: res.LevelsMilliDB[i] / 10,
		})
	}

	cands := make([]HardwareCandidate, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		cands = append(cands, HardwareCandidate{
			FrequencyKHz:      task.BandPlan.ToTransponder(c.IFFrequencyKHz, task.Band),
			SymbolRateSymPerS: c.SymbolRateSymPerS,
			LevelCentiDB:      c.LevelMilliDB / 10,
		})
	}
	return buf, cands, nil
}

// acquireUnicable covers the requested transponder span in overlapping
// 50MHz slices around the gateway's fixed SCR IF, converting each
// sample back to transponder frequency and deduplicating the resulting
// hardware candidates within a 2MHz window. The final slice is
// intentionally allowed to re-scan up to 25MHz of already-covered
// spectrum when the span does not divide evenly (spec's open question);
// dedup absorbs the resulting duplicate.
func acquireUnicable(ctx context.Context, fe frontend.Frontend, task Task) (Buffer, []HardwareCandidate, error) {
	scrFreq := task.Satconf.Unicable.SCRFrequencyKHz()
	buf := Buffer{Polarisation: task.Polarisation, Band: task.Band}
	var allCandidates []HardwareCandidate

	for center := task.StartFreqKHz + unicableSliceHalfKHz; ; center += unicableSliceWidthKHz {
		sliceCenter := center
		if sliceCenter+unicableSliceHalfKHz > task.EndFreqKHz {
			sliceCenter = task.EndFreqKHz - unicableSliceHalfKHz
		}

		select {
		case <-ctx.Done():
			return buf, dedupCandidates(allCandidates), ctx.Err()
		default:
		}

		release, err := task.Satconf.Unicable.Lock(ctx)
		if err != nil {
			return buf, nil, fmt.Errorf("unicable lock: %w", err)
		}
		if err := task.Satconf.Unicable.SendODU(ctx, sliceCenter); err != nil {
			release()
			return buf, nil, fmt.Errorf("unicable ODU: %w", err)
		}

		resolution := task.ResolutionKHz
		if resolution == 0 {
			resolution = unicableDefaultResKHz
		}
		req := frontend.SpectrumRequest{
			Polarisation:  task.Polarisation,
			Band:          task.Band,
			StartFreqKHz:  scrFreq - unicableSliceHalfKHz,
			EndFreqKHz:    scrFreq + unicableSliceHalfKHz,
			ResolutionKHz: resolution,
			FFTSize:       task.FFTSize,
			MaxCandidates: maxCandidates,
			Timeout:       unicableSliceTimeout,
		}
		res, err := fe.AcquireSpectrum(ctx, req)
		release()
		if err != nil {
			return buf, nil, fmt.Errorf("unicable slice acquire: %w", err)
		}

		for i, ifKHz := range res.FrequenciesKHz {
			offset := ifKHz - scrFreq
			buf.Points = append(buf.Points, Point{
				FrequencyKHz: sliceCenter + offset,
				LevelCentiDB: res.LevelsMilliDB[i] / 10,
			})
		}
		for _, c := range res.Candidates {
			offset := c.IFFrequencyKHz - scrFreq
			allCandidates = append(allCandidates, HardwareCandidate{
				FrequencyKHz:      sliceCenter + offset,
				SymbolRateSymPerS: c.SymbolRateSymPerS,
				LevelCentiDB:      c.LevelMilliDB / 10,
			})
		}

		if sliceCenter+unicableSliceHalfKHz >= task.EndFreqKHz {
			break
		}
	}

	return buf, dedupCandidates(allCandidates), nil
}

// dedupCandidates keeps the strongest candidate within any ±2MHz window.
func dedupCandidates(in []HardwareCandidate) []HardwareCandidate {
	var out []HardwareCandidate
	for _, c := range in {
		merged := false
		for i, o := range out {
			delta := c.FrequencyKHz - o.FrequencyKHz
			if delta < 0 {
				delta = -delta
			}
			if delta < hardwareDedupWindowKHz {
				if c.LevelCentiDB > o.LevelCentiDB {
					out[i] = c
				}
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, c)
		}
	}
	return out
}

// awaitSpectrum calls fe.AcquireSpectrum up to retries times, retrying on
// error with a bounded exponential backoff capped at req.Timeout. It sets
// no frontend properties and does not wait on a readiness event; each
// attempt is a single AcquireSpectrum call.
func awaitSpectrum(ctx context.Context, fe frontend.Frontend, req frontend.SpectrumRequest, retries int) (frontend.SpectrumResult, error) {
	if !fe.SupportsSpectrumExtension() {
		return frontend.SpectrumResult{}, fmt.Errorf("frontend: spectrum extension not supported")
	}

	pollTimeout := req.Timeout / time.Duration(retries)
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = pollTimeout
	eb.MaxInterval = pollTimeout
	eb.MaxElapsedTime = req.Timeout
	b := backoff.WithMaxRetries(eb, uint64(retries-1))

	var res frontend.SpectrumResult
	op := func() error {
		var err error
		res, err = fe.AcquireSpectrum(ctx, req)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return frontend.SpectrumResult{}, fmt.Errorf("acquire spectrum: %w", err)
	}
	return res, nil
}
