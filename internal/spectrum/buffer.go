package spectrum

import "github.com/satops/blindscan/internal/candidate"

// Point is one sample of a spectrum sweep: transponder frequency and
// level, in the internal 0.01 dB unit.
type Point struct {
	FrequencyKHz int64
	LevelCentiDB int32
}

// Buffer is one (polarisation, band) sweep result. Grow-only while the
// slot's acquisition is in flight, read-only afterwards (spec §3).
type Buffer struct {
	Polarisation candidate.Polarisation
	Band         candidate.Band
	Points       []Point
}

// HardwareCandidate is a candidate peak reported directly by the driver,
// already converted to transponder frequency and internal dB units.
type HardwareCandidate struct {
	FrequencyKHz      int64
	SymbolRateSymPerS int64
	LevelCentiDB      int32
}
