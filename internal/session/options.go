package session

import (
	"time"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/config"
	"github.com/satops/blindscan/internal/frontend"
	"github.com/satops/blindscan/internal/satconf"
	"github.com/satops/blindscan/internal/spectrum"
)

// PeakDetectMode selects how candidates are found.
type PeakDetectMode int

const (
	PeakDetectAuto PeakDetectMode = iota
	PeakDetectHardwareOnly
	PeakDetectSoftwareOnly
)

// Options carries the per-scan tunables, including the two thresholds
// the spec flags as open questions rather than fixed constants.
type Options struct {
	FFTSize            int
	ResolutionKHz      int64
	PeakDetect         PeakDetectMode
	NoiseFloorMarginDB int32
	ValleyFloorDB      int32
}

// OptionsFromConfig derives session Options from a loaded config
// document, so the open-question thresholds are operator-tunable.
func OptionsFromConfig(s config.Settings) Options {
	return Options{
		FFTSize:            s.Acquisition.DefaultFFTSize,
		NoiseFloorMarginDB: int32(s.Thresholds.NoiseFloorMarginDB),
		ValleyFloorDB:      int32(s.Thresholds.ValleyFloorDB),
	}
}

func (o Options) detectOptions() spectrum.DetectOptions {
	opts := spectrum.DefaultDetectOptions
	if o.NoiseFloorMarginDB != 0 {
		opts.NoiseFloorMarginDB = o.NoiseFloorMarginDB
	}
	if o.ValleyFloorDB != 0 {
		opts.ValleyFloorDB = o.ValleyFloorDB
	}
	return opts
}

// StartParams are the inputs to Manager.Start.
type StartParams struct {
	Frontend     frontend.Frontend
	Satconf      satconf.Config
	NetworkUUID  string
	StartFreqKHz int64
	EndFreqKHz   int64
	Polarisation candidate.Polarisation
	Options      Options
	Voltage      frontend.Voltage
	Timeouts     Timeouts
}

// Timeouts carries per-operation deadlines for a session. The session
// worker does not read it: acquisition and prescan use the fixed
// deadlines of the spectrum and prescan packages.
type Timeouts struct {
	DirectAcquire time.Duration
	UnicableSlice time.Duration
	PrescanLock   time.Duration
}
