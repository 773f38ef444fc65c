// Package frontend adapts a DVB-S/S2 frontend device to the narrow
// contract the rest of the pipeline needs: property transactions,
// voltage/tone/DiSEqC sequencing, and a readiness wait. All driver
// concerns funnel through this interface so higher layers can be tested
// against Mock instead of hardware, grounded on the teacher's SDR
// interface split (sdr.SDR) between a mock and a real device backend.
package frontend

import (
	"context"
	"time"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/frontend/proto"
)

// Voltage selects the LNB supply voltage, which doubles as a coarse
// polarisation selector on non-DiSEqC LNBs.
type Voltage int

const (
	Voltage13V Voltage = 13
	Voltage18V Voltage = 18
)

// EventMask reports readiness bits observed on the frontend's status
// descriptor.
type EventMask uint32

const (
	EventCarrierLock EventMask = 1 << iota
	EventSync
	EventError
)

func (m EventMask) HasCarrierLock() bool { return m&EventCarrierLock != 0 }
func (m EventMask) HasSync() bool        { return m&EventSync != 0 }
func (m EventMask) HasError() bool       { return m&EventError != 0 }

// Locked implements the spec's lock-detection rule: carrier lock alone is
// a false-positive; both carrier lock and sync must be present.
func (m EventMask) Locked() bool { return m.HasCarrierLock() && m.HasSync() }

// PropertyKey enumerates the driver ABI's tunable/readable properties.
type PropertyKey uint32

const (
	PropClear PropertyKey = iota
	PropAlgorithm
	PropDeliverySystem
	PropSearchRange
	PropSymbolRate
	PropFrequency
	PropStreamID
	PropPLSSearchList
	PropTune
	PropModulation
	PropFEC
	PropRolloff
	PropPilot
	PropMatype
	PropISIList
)

// Algorithm selects the frontend's tuning algorithm.
type Algorithm int64

const (
	AlgorithmAuto Algorithm = iota
	AlgorithmBlind
)

// PLSEntry is one entry of a PLS search list, encoded per spec 4.D step 8:
// bits 26-27 carry the mode, bits 8-25 carry the code.
type PLSEntry struct {
	Mode candidate.PLSMode
	Code int
}

// Encode packs a PLSEntry into the driver's 32-bit representation.
func (e PLSEntry) Encode() uint32 {
	return proto.EncodePLSEntry(e.Mode, e.Code)
}

// DecodePLSEntry unpacks the driver's 32-bit representation into mode+code.
func DecodePLSEntry(raw uint32) PLSEntry {
	mode, code := proto.DecodePLSEntryRaw(raw)
	return PLSEntry{Mode: mode, Code: code}
}

// Property is one property-set/get transaction element. Scalar values use
// Value; the PLS search list uses List.
type Property struct {
	Key   PropertyKey
	Value int64
	List  []uint32
}

// Properties is an ordered property-set transaction; order matters for
// SetProperties per the spec's driver-required sequencing.
type Properties []Property

// TuningReadback captures every parameter fetched in the single
// post-lock read transaction of spec 4.D.
type TuningReadback struct {
	FrequencyKHz      int64
	SymbolRateSymPerS int64
	Modulation        string
	FEC               string
	DeliverySystem    string
	RawStreamID       int
	Rolloff           string
	Pilot             bool
	HasMatype         bool
	Matype            uint32
	ISIBitset         []byte // up to 32 bytes, LSB-first per byte
}

// SpectrumRequest parameterises a single (pol, band[, slice]) acquisition.
type SpectrumRequest struct {
	Polarisation      candidate.Polarisation
	Band              candidate.Band
	StartFreqKHz      int64 // driver-visible IF, already LO/SCR-adjusted
	EndFreqKHz        int64
	ResolutionKHz     int64 // 0 = driver default
	FFTSize           int
	MaxCandidates     int
	Timeout           time.Duration
}

// HardwareCandidate is a candidate peak reported directly by the driver
// alongside a spectrum acquisition, in driver-visible IF-relative units.
type HardwareCandidate struct {
	IFFrequencyKHz    int64
	SymbolRateSymPerS int64
	LevelMilliDB      int32
}

// SpectrumResult is the raw acquisition payload before transponder
// frequency conversion or slice remapping.
type SpectrumResult struct {
	FrequenciesKHz []int64 // driver-visible IF
	LevelsMilliDB  []int32
	Candidates     []HardwareCandidate
}

// Frontend is the narrow surface every acquisition/prescan path drives.
type Frontend interface {
	Clear(ctx context.Context) error
	SetProperties(ctx context.Context, props Properties) error
	GetProperties(ctx context.Context) (TuningReadback, error)
	SetVoltage(ctx context.Context, v Voltage) error
	SetTone(ctx context.Context, on bool) error
	AwaitEvent(ctx context.Context, timeout time.Duration) (EventMask, error)
	SendSatconfChain(ctx context.Context, pol candidate.Polarisation, band candidate.Band, v Voltage, freqKHz int64) error
	AcquireSpectrum(ctx context.Context, req SpectrumRequest) (SpectrumResult, error)

	// Invalidate clears the adapter's (pol, band) cache, forcing fresh
	// DiSEqC traffic on the next SendSatconfChain call. The session
	// manager calls this once at the start of every scan.
	Invalidate()

	SupportsSpectrumExtension() bool

	Close() error
}
