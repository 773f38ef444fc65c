// Package mux materialises selected candidates into persistent tuning
// records, deduplicating against an external network registry.
// Grounded on the teacher's TrackManager id-map bookkeeping style for
// the in-memory reference implementation.
package mux

import (
	"context"
	"fmt"

	"github.com/satops/blindscan/internal/candidate"
)

// ScanResult mirrors the upstream network scanner's outcome for a mux,
// used by the overlap test to distinguish a healthy match from a
// failed one.
type ScanResult string

const (
	ScanOK      ScanResult = "ok"
	ScanFailed  ScanResult = "failed"
	ScanUnknown ScanResult = "unknown"
)

// Record is a persistent tuning record as understood by the network
// registry.
type Record struct {
	Ref               string
	NetworkUUID       string
	FrequencyKHz      int64
	Polarisation      candidate.Polarisation
	SymbolRateSymPerS int64
	Delivery          candidate.DeliverySystem
	Modulation        string
	FEC               string
	Rolloff           string
	Pilot             bool
	StreamID          int
	PLSMode           candidate.PLSMode
	PLSCode           int
	IsGSE             bool
	ScanResult        ScanResult
}

// Rolloff defaults to 0.35 when a mux's rolloff is unknown, per the
// overlap test's fallback rule.
func (r Record) rolloffFraction() float64 {
	switch r.Rolloff {
	case "0.20":
		return 0.20
	case "0.25":
		return 0.25
	case "0.35":
		return 0.35
	default:
		return 0.35
	}
}

// Envelope returns the half-bandwidth in kHz used by the overlap test:
// srm * (1 + rolloff) / 2.
func (r Record) Envelope() int64 {
	return int64(float64(r.SymbolRateSymPerS/1000) * (1 + r.rolloffFraction()) / 2)
}

// Network is the external collaborator boundary for mux persistence:
// lookup by key, create, and enqueue for the upstream scanner.
type Network interface {
	Lookup(ctx context.Context, networkUUID string, key Record) (*Record, bool, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Enqueue(ctx context.Context, ref string, priority string) error
	// AllForNetwork returns every record for overlap-testing purposes.
	AllForNetwork(ctx context.Context, networkUUID string) ([]Record, error)
}

// Overlaps implements the mux-overlap test from spec §4.E: same
// polarisation and |Δf| within the mux's envelope.
func Overlaps(peakFreqKHz int64, peakPol candidate.Polarisation, mux Record) bool {
	if peakPol != mux.Polarisation {
		return false
	}
	delta := peakFreqKHz - mux.FrequencyKHz
	if delta < 0 {
		delta = -delta
	}
	return delta <= mux.Envelope()
}

// ReporterEnvelope is the looser, symbol-rate-indexed tolerance used by
// the peaks reporter rather than the create-time overlap test:
// max(srm/2000 kHz, 1000 kHz).
func ReporterEnvelope(mux Record) int64 {
	e := mux.SymbolRateSymPerS / 2000
	if e < 1000 {
		e = 1000
	}
	return e
}

// OverlapsReporter is Overlaps' looser counterpart, used when the peaks
// operation re-checks pending candidates against muxes materialised
// after they were inserted.
func OverlapsReporter(peakFreqKHz int64, peakPol candidate.Polarisation, mux Record) bool {
	if peakPol != mux.Polarisation {
		return false
	}
	delta := peakFreqKHz - mux.FrequencyKHz
	if delta < 0 {
		delta = -delta
	}
	return delta <= ReporterEnvelope(mux)
}

// FrequencyTolerance returns the mux-create dedup tolerance in kHz for
// a candidate's estimated symbol rate, per spec §4.E's table.
func FrequencyTolerance(symbolRate int64) int64 {
	switch {
	case symbolRate < 5_000_000:
		return 1_000
	case symbolRate < 30_000_000:
		return 5_000
	default:
		return 10_000
	}
}

// Selected is one candidate chosen for materialisation, with optional
// locked prescan parameters.
type Selected struct {
	NetworkUUID  string
	FrequencyKHz int64
	Polarisation candidate.Polarisation
	Peak         candidate.Peak
}

// defaults fills in a mux record when the candidate was never
// prescanned, per spec §4.F.
func defaults(sel Selected) Record {
	return Record{
		NetworkUUID:       sel.NetworkUUID,
		FrequencyKHz:      sel.FrequencyKHz,
		Polarisation:      sel.Polarisation,
		SymbolRateSymPerS: sel.Peak.SymbolRateSymPerS,
		Delivery:          candidate.DeliveryDVBS2,
		Modulation:        "AUTO",
		FEC:               "AUTO",
		Rolloff:           "AUTO",
		Pilot:             false,
		StreamID:          -1,
		PLSMode:           candidate.PLSRoot,
		PLSCode:           1,
	}
}

func fromPrescan(sel Selected, streamID int) Record {
	p := sel.Peak
	return Record{
		NetworkUUID:       sel.NetworkUUID,
		FrequencyKHz:      p.ActualFrequencyKHz,
		Polarisation:      sel.Polarisation,
		SymbolRateSymPerS: p.ActualSymbolRateSymPerS,
		Delivery:          p.Delivery,
		Modulation:        p.Modulation,
		FEC:               p.FEC,
		Rolloff:           p.Rolloff,
		Pilot:             p.Pilot,
		StreamID:          streamID,
		PLSMode:           p.PLSModeValue,
		PLSCode:           p.PLSCode,
		IsGSE:             p.IsGSE,
	}
}

// records expands one selected candidate into the tuning record(s) it
// materialises: a multistream lock (§4.D's ISI enumeration) yields one
// record per ISI, sharing frequency and symbol rate but distinguished
// by stream_id; anything else yields exactly one record.
func records(sel Selected) []Record {
	if sel.Peak.Status != candidate.StatusLocked {
		return []Record{defaults(sel)}
	}
	if sel.Peak.Multistream && len(sel.Peak.ISIList) > 0 {
		out := make([]Record, len(sel.Peak.ISIList))
		for i, isi := range sel.Peak.ISIList {
			out[i] = fromPrescan(sel, isi)
		}
		return out
	}
	return []Record{fromPrescan(sel, sel.Peak.ISI)}
}

// Materialise builds a tuning record for each selected candidate,
// skips it if a matching record already exists, and otherwise creates
// and enqueues it. Returns the number actually created.
func Materialise(ctx context.Context, net Network, selections []Selected) (int, error) {
	created := 0
	for _, sel := range selections {
		for _, rec := range records(sel) {
			existing, ok, err := net.Lookup(ctx, sel.NetworkUUID, rec)
			if err != nil {
				return created, fmt.Errorf("lookup mux: %w", err)
			}
			if ok {
				_ = existing
				continue
			}

			stored, err := net.Create(ctx, rec)
			if err != nil {
				return created, fmt.Errorf("create mux: %w", err)
			}
			if err := net.Enqueue(ctx, stored.Ref, "user-scan"); err != nil {
				return created, fmt.Errorf("enqueue mux: %w", err)
			}
			created++
		}
	}
	return created, nil
}
