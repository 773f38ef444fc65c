package spectrum

import "gonum.org/v1/gonum/floats"

// DetectOptions carries the two empirical thresholds the spec flags as
// open questions, so callers (session.Options) can tune them instead of
// relying on hardcoded constants.
type DetectOptions struct {
	// NoiseFloorMarginDB is the Δ added to the global minimum level to
	// form the candidate-acceptance threshold, in 0.01 dB units.
	NoiseFloorMarginDB int32
	// ValleyFloorDB is the minimum valley depth, in 0.01 dB units,
	// required to keep two adjacent candidates distinct during merging.
	ValleyFloorDB int32
}

// DefaultDetectOptions are the spec's empirical defaults: Δ=10dB,
// valley floor=4dB.
var DefaultDetectOptions = DetectOptions{
	NoiseFloorMarginDB: 1000,
	ValleyFloorDB:      400,
}

// DetectedPeak is one surviving candidate from DetectPeaks, in sample
// index space plus derived physical units.
type DetectedPeak struct {
	CenterFreqKHz     int64
	LevelCentiDB      int32
	SNRCentiDB        int32
	SymbolRateSymPerS int64
	leftEdge          int
	rightEdge         int
	peakIdx           int
}

const (
	minSamples        = 100
	sweepHalfWindow   = 10
	skipAfterAccept   = 10
	maxCandidates     = 512
	bandwidthDropDB   = 600 // -6dB in 0.01dB units
	minSymbolRate     = 2_000_000
	maxSymbolRate     = 45_000_000
	rolloffSRFactor   = 800 // SR ≈ B(kHz) * 800, i.e. B/1.25
)

// DetectPeaks implements the spec's deterministic peak-detection
// algorithm over a single spectrum buffer: threshold, local-maximum
// sweep, valley-based merge, and -6dB bandwidth symbol-rate estimate.
func DetectPeaks(buf Buffer, opts DetectOptions) []DetectedPeak {
	n := len(buf.Points)
	if n < minSamples {
		return nil
	}

	levels := make([]float64, n)
	for i, p := range buf.Points {
		levels[i] = float64(p.LevelCentiDB)
	}
	minLevel := int32(floats.Min(levels))
	threshold := minLevel + opts.NoiseFloorMarginDB

	candidates := localMaxSweep(buf.Points, threshold)
	candidates = valleyMerge(buf.Points, candidates, opts.ValleyFloorDB)

	out := make([]DetectedPeak, 0, len(candidates))
	for _, idx := range candidates {
		dp := measureBandwidth(buf.Points, idx)
		dp.SNRCentiDB = buf.Points[idx].LevelCentiDB - minLevel
		out = append(out, dp)
	}
	return out
}

// localMaxSweep finds samples above threshold that are at least as high
// as every other sample within a window of 20 samples (±10); equal
// neighbours do not disqualify a sample. It skips 10 samples
// after each acceptance, capped at 512 candidates. Samples within
// sweepHalfWindow of either edge never have a full window to compare
// against and are excluded from candidacy entirely, rather than being
// tested against a shrunken window.
func localMaxSweep(points []Point, threshold int32) []int {
	n := len(points)
	var accepted []int
	i := sweepHalfWindow
	for i < n-sweepHalfWindow {
		if len(accepted) >= maxCandidates {
			break
		}
		level := points[i].LevelCentiDB
		if level <= threshold {
			i++
			continue
		}
		lo := i - sweepHalfWindow
		hi := i + sweepHalfWindow
		isMax := true
		for j := lo; j <= hi; j++ {
			if j == i {
				continue
			}
			if points[j].LevelCentiDB > level {
				isMax = false
				break
			}
		}
		if isMax {
			accepted = append(accepted, i)
			i += skipAfterAccept + 1
			continue
		}
		i++
	}
	return accepted
}

// valleyMerge walks accepted candidates left to right, merging pairs
// whose intervening valley depth is below the floor, keeping the
// stronger of the pair. Idempotent: a second pass over its own output
// finds no further mergeable pairs since every surviving gap already
// clears the floor.
func valleyMerge(points []Point, candidates []int, floorDB int32) []int {
	if len(candidates) < 2 {
		return candidates
	}
	merged := make([]int, 0, len(candidates))
	merged = append(merged, candidates[0])
	for _, idx := range candidates[1:] {
		last := merged[len(merged)-1]
		valley := minLevelBetween(points, last, idx)
		depth := min32(points[last].LevelCentiDB, points[idx].LevelCentiDB) - valley
		if depth >= floorDB {
			merged = append(merged, idx)
			continue
		}
		if points[idx].LevelCentiDB > points[last].LevelCentiDB {
			merged[len(merged)-1] = idx
		}
	}
	return merged
}

func minLevelBetween(points []Point, a, b int) int32 {
	if a+1 >= b {
		return min32(points[a].LevelCentiDB, points[b].LevelCentiDB)
	}
	v := points[a+1].LevelCentiDB
	for i := a + 2; i < b; i++ {
		if points[i].LevelCentiDB < v {
			v = points[i].LevelCentiDB
		}
	}
	return v
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// measureBandwidth finds the -6dB edges around peakIdx and derives the
// symbol-rate estimate and midpoint centre frequency.
func measureBandwidth(points []Point, peakIdx int) DetectedPeak {
	peakLevel := points[peakIdx].LevelCentiDB
	dropLevel := peakLevel - bandwidthDropDB

	left := peakIdx
	for left > 0 && points[left].LevelCentiDB >= dropLevel {
		left--
	}
	right := peakIdx
	for right < len(points)-1 && points[right].LevelCentiDB >= dropLevel {
		right++
	}

	bwKHz := points[right].FrequencyKHz - points[left].FrequencyKHz
	sr := bwKHz * rolloffSRFactor
	if sr < minSymbolRate {
		sr = minSymbolRate
	}
	if sr > maxSymbolRate {
		sr = maxSymbolRate
	}

	centerKHz := (points[left].FrequencyKHz + points[right].FrequencyKHz) / 2

	return DetectedPeak{
		CenterFreqKHz:     centerKHz,
		LevelCentiDB:      peakLevel,
		SymbolRateSymPerS: sr,
		leftEdge:          left,
		rightEdge:         right,
		peakIdx:           peakIdx,
	}
}
