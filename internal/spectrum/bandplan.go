// Package spectrum acquires and analyses frequency/level sweeps for a
// single (polarisation, band) slot: driving the frontend through the
// direct or Unicable path, converting driver-visible IF back to
// transponder frequency, and detecting candidate carriers when hardware
// detection is unavailable. Grounded on the teacher's dsp package for
// the numeric-reduction style (gonum over hand-rolled loops).
package spectrum

import (
	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/satconf"
)

// BandPlan holds the Universal-LNB geometry constants used to convert
// between transponder frequency and driver-visible IF.
type BandPlan struct {
	SplitKHz    int64
	LowBandLO   int64
	HighBandLO  int64
}

// DefaultBandPlan is the Universal LNB geometry named in spec §4.B.
var DefaultBandPlan = BandPlan{
	SplitKHz:   satconf.BandSplitKHz,
	LowBandLO:  satconf.LowBandLOKHz,
	HighBandLO: satconf.HighBandLOKHz,
}

// BandFor reports which Universal-LNB band a transponder frequency falls
// in: band_for_freq(f) = high iff f >= split.
func (p BandPlan) BandFor(freqKHz int64) candidate.Band {
	if freqKHz >= p.SplitKHz {
		return candidate.BandHigh
	}
	return candidate.BandLow
}

// LO returns the local-oscillator frequency for a band.
func (p BandPlan) LO(band candidate.Band) int64 {
	if band == candidate.BandHigh {
		return p.HighBandLO
	}
	return p.LowBandLO
}

// ToDriver converts a transponder frequency to the driver-visible IF for
// direct (non-Unicable) acquisition: subtract the band's LO.
func (p BandPlan) ToDriver(freqKHz int64, band candidate.Band) int64 {
	return freqKHz - p.LO(band)
}

// ToTransponder is the inverse of ToDriver: add the band's LO back.
func (p BandPlan) ToTransponder(ifKHz int64, band candidate.Band) int64 {
	return ifKHz + p.LO(band)
}
