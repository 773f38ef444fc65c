// Package prescan resolves a single candidate carrier to its full
// DVB-S2 tuning parameters via a blind-tune cycle: property sequencing,
// lock detection, parameter readback, and MATYPE/GSE classification.
// Grounded on the teacher's PlutoSDR.Init attribute-sequencing style —
// ordered transactions with early-return error wrapping.
package prescan

import (
	"context"
	"fmt"
	"time"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/frontend"
	"github.com/satops/blindscan/internal/frontend/proto"
	"github.com/satops/blindscan/internal/satconf"
	"github.com/satops/blindscan/internal/spectrum"
)

const (
	lockBudget          = 12 * time.Second
	defaultSymbolRate   = 22_000_000
	minSearchRangeKHz   = 8_000
)

// pls is the fixed PLS search list from the driver requirement.
var pls = []frontend.PLSEntry{
	{Mode: candidate.PLSRoot, Code: 0},
	{Mode: candidate.PLSRoot, Code: 1},
	{Mode: candidate.PLSRoot, Code: 8},
	{Mode: candidate.PLSRoot, Code: 16416},
	{Mode: candidate.PLSGold, Code: 0},
	{Mode: candidate.PLSGold, Code: 8192},
}

// Deps bundles the collaborators one prescan cycle needs.
type Deps struct {
	Frontend frontend.Frontend
	Satconf  satconf.Config
	BandPlan spectrum.BandPlan
	Voltage  frontend.Voltage
}

// Result is the outcome of one blind-tune cycle.
type Result struct {
	Locked bool

	FrequencyKHz      int64
	SymbolRateSymPerS int64
	Delivery          candidate.DeliverySystem
	Modulation        string
	FEC               string
	Rolloff           string
	Pilot             bool
	ISI               int
	PLSMode           candidate.PLSMode
	PLSCode           int
	IsGSE             bool
	Multistream       bool
	ISIList           []int
}

// Run drives one blind-tune cycle for the candidate at freqKHz/pol,
// using srEstimate (0 if unknown) to seed the search range and symbol
// rate properties.
func Run(ctx context.Context, deps Deps, freqKHz int64, pol candidate.Polarisation, srEstimate int64) (Result, error) {
	band := deps.BandPlan.BandFor(freqKHz)

	var driverTarget int64
	if deps.Satconf.IsUnicable() {
		release, err := deps.Satconf.Unicable.Lock(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("unicable lock: %w", err)
		}
		defer release()
		if err := deps.Satconf.Unicable.SendODU(ctx, freqKHz); err != nil {
			return Result{}, fmt.Errorf("unicable ODU: %w", err)
		}
		driverTarget = deps.Satconf.Unicable.SCRFrequencyKHz()
	} else {
		if err := deps.Frontend.SendSatconfChain(ctx, pol, band, deps.Voltage, freqKHz-deps.BandPlan.LO(band)); err != nil {
			return Result{}, fmt.Errorf("satconf chain: %w", err)
		}
		driverTarget = freqKHz - deps.BandPlan.LO(band)
	}

	sr := srEstimate
	if sr <= 0 {
		sr = defaultSymbolRate
	}
	searchRange := sr / 2
	if searchRange < minSearchRangeKHz*1000 {
		searchRange = minSearchRangeKHz * 1000
	}

	plsValues := make([]uint32, len(pls))
	for i, e := range pls {
		plsValues[i] = e.Encode()
	}

	props := frontend.Properties{
		{Key: frontend.PropClear},
		{Key: frontend.PropAlgorithm, Value: int64(frontend.AlgorithmBlind)},
		{Key: frontend.PropDeliverySystem, Value: 0},
		{Key: frontend.PropSearchRange, Value: searchRange},
		{Key: frontend.PropSymbolRate, Value: sr},
		{Key: frontend.PropFrequency, Value: driverTarget},
		{Key: frontend.PropStreamID, Value: -1},
		{Key: frontend.PropPLSSearchList, List: plsValues},
		{Key: frontend.PropTune},
	}
	if err := deps.Frontend.SetProperties(ctx, props); err != nil {
		return Result{}, fmt.Errorf("set properties: %w", err)
	}

	mask, err := deps.Frontend.AwaitEvent(ctx, lockBudget)
	if err != nil || !mask.Locked() {
		_ = deps.Frontend.Clear(ctx)
		return Result{Locked: false}, nil
	}

	readback, err := deps.Frontend.GetProperties(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get properties: %w", err)
	}
	_ = deps.Frontend.Clear(ctx)

	result := classify(readback, deps.Satconf.IsUnicable(), freqKHz, deps.BandPlan, band)
	result.Locked = true
	return result, nil
}

// classify implements the parameter-readback post-processing steps of
// the sequencing: Unicable frequency substitution, stream-id decoding,
// MATYPE/GSE classification, and ISI enumeration. The readback frequency
// is driver-visible, same as the tuned driver-target: for Unicable it is
// the SCR's fixed IF and must be discarded in favour of the original
// candidate frequency; otherwise it is transponder-minus-LO and must be
// converted back so callers only ever see transponder frequency.
func classify(rb frontend.TuningReadback, unicable bool, candidateFreqKHz int64, bandPlan spectrum.BandPlan, band candidate.Band) Result {
	var freq int64
	if unicable {
		freq = candidateFreqKHz
	} else {
		freq = bandPlan.ToTransponder(rb.FrequencyKHz, band)
	}

	isi := candidate.DecodeStreamID(rb.RawStreamID)

	// The 32-bit matype field packs the PLS mode/code alongside the raw
	// MATYPE byte: bits 26-27 mode, bits 8-25 code, low 8 bits the raw
	// byte whose bits 6-7 indicate TS/GS format.
	rawByte := rb.Matype & 0xFF
	tsGS := (rawByte >> 6) & 0x3
	isGSE := isi >= 0 && rb.Matype != 0 && tsGS != 0b11

	var isiList []int
	if rb.ISIBitset != nil {
		isiList = proto.DecodeISIBitset(rb.ISIBitset)
	}
	multistream := len(isiList) > 1

	return Result{
		FrequencyKHz:      freq,
		SymbolRateSymPerS: rb.SymbolRateSymPerS,
		Delivery:          candidate.DeliverySystem(rb.DeliverySystem),
		Modulation:        rb.Modulation,
		FEC:               rb.FEC,
		Rolloff:           rb.Rolloff,
		Pilot:             rb.Pilot,
		ISI:               isi,
		PLSMode:           candidate.PLSMode((rb.Matype >> 26) & 0x3),
		PLSCode:           int((rb.Matype >> 8) & 0x3FFFF),
		IsGSE:             isGSE,
		Multistream:       multistream,
		ISIList:           isiList,
	}
}
