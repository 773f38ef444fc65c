// Package config loads tunable scan defaults from a YAML file, following
// the teacher's settings-block convention, so the thresholds the spec
// leaves as hardcoded constants (noise-floor margin, valley floor) become
// operator-adjustable without a code change.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the peak-detection constants the spec flags as an open
// question rather than fixed constants.
type Thresholds struct {
	// NoiseFloorMarginDB is the Δ above the spectrum minimum a sample must
	// clear to be eligible as a candidate peak, in 0.01dB units.
	NoiseFloorMarginDB int `yaml:"noiseFloorMarginDB"`

	// ValleyFloorDB is the minimum valley depth, in 0.01dB units, required
	// to keep two adjacent candidate peaks distinct during merging.
	ValleyFloorDB int `yaml:"valleyFloorDB"`
}

// Timeouts holds the bounded-wait budgets named throughout the spec.
type Timeouts struct {
	DirectAcquireSeconds   int `yaml:"directAcquireSeconds"`
	UnicableSliceSeconds   int `yaml:"unicableSliceSeconds"`
	PrescanLockSeconds     int `yaml:"prescanLockSeconds"`
	VoltageSettleMillis    int `yaml:"voltageSettleMillis"`
	ToneSettleMillis       int `yaml:"toneSettleMillis"`
	DirectRetryPolls       int `yaml:"directRetryPolls"`
}

// Acquisition holds the band-slicing and FFT parameters. Only
// DefaultFFTSize reaches the spectrum acquirer (via session Options);
// the acquirer's Unicable slice width is a fixed constant.
type Acquisition struct {
	UnicableSliceWidthKHz int `yaml:"unicableSliceWidthKHz"`
	DefaultFFTSize        int `yaml:"defaultFFTSize"`
}

// Settings is the top-level configuration document.
type Settings struct {
	LogLevel    string      `yaml:"logLevel"`
	LogFormat   string      `yaml:"logFormat"`
	Thresholds  Thresholds  `yaml:"thresholds"`
	Timeouts    Timeouts    `yaml:"timeouts"`
	Acquisition Acquisition `yaml:"acquisition"`
}

// Defaults returns the spec's empirical constants as the baseline Settings.
func Defaults() Settings {
	return Settings{
		LogLevel:  "info",
		LogFormat: "text",
		Thresholds: Thresholds{
			NoiseFloorMarginDB: 1000, // 10.0dB
			ValleyFloorDB:      400,  // 4.0dB
		},
		Timeouts: Timeouts{
			DirectAcquireSeconds: 60,
			UnicableSliceSeconds: 10,
			PrescanLockSeconds:   12,
			VoltageSettleMillis:  15,
			ToneSettleMillis:     20,
			DirectRetryPolls:     10,
		},
		Acquisition: Acquisition{
			UnicableSliceWidthKHz: 50_000,
			DefaultFFTSize:        512,
		},
	}
}

// Load reads Settings from a YAML file, filling any zero-valued field from
// Defaults. A missing file is not an error: Defaults alone are returned.
func Load(path string) (Settings, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var loaded Settings
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	merge(&cfg, loaded)
	return cfg, nil
}

func merge(dst *Settings, src Settings) {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
	if src.Thresholds.NoiseFloorMarginDB != 0 {
		dst.Thresholds.NoiseFloorMarginDB = src.Thresholds.NoiseFloorMarginDB
	}
	if src.Thresholds.ValleyFloorDB != 0 {
		dst.Thresholds.ValleyFloorDB = src.Thresholds.ValleyFloorDB
	}
	if src.Timeouts.DirectAcquireSeconds != 0 {
		dst.Timeouts.DirectAcquireSeconds = src.Timeouts.DirectAcquireSeconds
	}
	if src.Timeouts.UnicableSliceSeconds != 0 {
		dst.Timeouts.UnicableSliceSeconds = src.Timeouts.UnicableSliceSeconds
	}
	if src.Timeouts.PrescanLockSeconds != 0 {
		dst.Timeouts.PrescanLockSeconds = src.Timeouts.PrescanLockSeconds
	}
	if src.Timeouts.VoltageSettleMillis != 0 {
		dst.Timeouts.VoltageSettleMillis = src.Timeouts.VoltageSettleMillis
	}
	if src.Timeouts.ToneSettleMillis != 0 {
		dst.Timeouts.ToneSettleMillis = src.Timeouts.ToneSettleMillis
	}
	if src.Timeouts.DirectRetryPolls != 0 {
		dst.Timeouts.DirectRetryPolls = src.Timeouts.DirectRetryPolls
	}
	if src.Acquisition.UnicableSliceWidthKHz != 0 {
		dst.Acquisition.UnicableSliceWidthKHz = src.Acquisition.UnicableSliceWidthKHz
	}
	if src.Acquisition.DefaultFFTSize != 0 {
		dst.Acquisition.DefaultFFTSize = src.Acquisition.DefaultFFTSize
	}
}
