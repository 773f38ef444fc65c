// Package candidate defines the carrier records produced by spectrum
// acquisition and refined by the prescan engine. A Peak is owned
// exclusively by the session that detected it; callers only ever see
// immutable snapshots (see Peak.Snapshot).
package candidate

// Polarisation selects the LNB polarity.
type Polarisation string

const (
	PolHorizontal Polarisation = "H"
	PolVertical   Polarisation = "V"
	PolBoth       Polarisation = "B"
)

// Band selects the Universal-LNB RF window.
type Band int

const (
	BandLow Band = iota
	BandHigh
)

func (b Band) String() string {
	if b == BandHigh {
		return "high"
	}
	return "low"
}

// Status tracks a candidate's progress through prescan/materialisation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRetry    Status = "retry"
	StatusScanning Status = "scanning"
	StatusLocked   Status = "locked"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
	StatusExisting Status = "existing"
)

// DeliverySystem enumerates the DVB delivery systems a candidate may
// resolve to. Only satellite systems are in scope; the adapter never
// reports anything else.
type DeliverySystem string

const (
	DeliveryAuto  DeliverySystem = "AUTO"
	DeliveryDVBS  DeliverySystem = "DVB-S"
	DeliveryDVBS2 DeliverySystem = "DVB-S2"
)

// PLSMode is the DVB-S2 physical-layer scrambling mode.
type PLSMode int

const (
	PLSRoot PLSMode = iota
	PLSGold
	PLSCombo
)

// Peak is a detected carrier and, once prescanned, its full tuning
// parameters. The post-lock fields are only meaningful once Status is
// StatusLocked.
type Peak struct {
	FrequencyKHz       int64
	SymbolRateSymPerS  int64
	Polarisation       Polarisation
	LevelCentiDB       int32
	SNRCentiDB         int32
	Status             Status
	HasFailedMux       bool
	Existing           bool

	// Post-lock fields, populated by the prescan engine.
	ActualFrequencyKHz      int64
	ActualSymbolRateSymPerS int64
	Delivery                DeliverySystem
	Modulation              string
	FEC                     string
	Rolloff                 string
	Pilot                   bool
	ISI                     int   // -1 = no filter, 0..254 = stream id
	PLSModeValue            PLSMode
	PLSCode                 int
	IsGSE                   bool
	Multistream             bool
	ISIList                 []int

	// VerifiedMuxRef is a one-way, opaque back-reference to a materialised
	// mux. It is never dereferenced from here; a report re-queries the
	// network registry by this identifier so a deleted mux simply becomes
	// a stale, harmless string.
	VerifiedMuxRef  string
	VerifiedFreqKHz int64
}

// Snapshot returns a value copy safe to hand to callers outside the
// session's lock.
func (p Peak) Snapshot() Peak {
	cp := p
	if p.ISIList != nil {
		cp.ISIList = append([]int(nil), p.ISIList...)
	}
	return cp
}

// DecodeStreamID implements the spec's raw stream-id decoding table:
// 511 means "no filter" (-1); 256..510 means ISI = raw-256; 0..255 is
// already the ISI value.
func DecodeStreamID(raw int) int {
	switch {
	case raw == 511:
		return -1
	case raw >= 256 && raw <= 510:
		return raw - 256
	default:
		return raw
	}
}

// EncodeStreamID is the inverse of DecodeStreamID, used by tests and by
// the mock frontend to synthesize driver readback values.
func EncodeStreamID(isi int) int {
	if isi < 0 {
		return 511
	}
	if isi <= 254 {
		return isi + 256
	}
	return isi
}
