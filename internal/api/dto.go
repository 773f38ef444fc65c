// Package api defines the JSON field names of the control-API contract
// so an external request dispatcher (not part of this module) can
// marshal session.Manager results directly, without a translation
// layer. Building the dispatcher itself is out of scope.
package api

// SatconfEntry is one row of the list_satconfs response.
type SatconfEntry struct {
	FrontendUUID string `json:"frontend_uuid"`
	FrontendName string `json:"frontend_name"`
	SatconfUUID  string `json:"satconf_uuid"`
	SatconfName  string `json:"satconf_name"`
	LNBType      string `json:"lnb_type"`
	Unicable     bool   `json:"unicable"`
	UnicableType string `json:"unicable_type,omitempty"`
	SCR          int    `json:"scr,omitempty"`
	SCRFreqKHz   int64  `json:"scr_freq,omitempty"`
	DisplayName  string `json:"display_name"`
}

// StartRequest is the start operation's input.
type StartRequest struct {
	FrontendUUID  string `json:"frontend_uuid"`
	NetworkUUID   string `json:"network_uuid"`
	StartFreqKHz  int64  `json:"start_freq"`
	EndFreqKHz    int64  `json:"end_freq"`
	SatconfUUID   string `json:"satconf_uuid,omitempty"`
	Polarisation  string `json:"polarisation,omitempty"`
	FFTSize       int    `json:"fft_size,omitempty"`
	ResolutionKHz int64  `json:"resolution,omitempty"`
	PeakDetect    int    `json:"peak_detect,omitempty"`
	Unicable      bool   `json:"unicable,omitempty"`
}

// StartResponse is the start operation's output.
type StartResponse struct {
	UUID   string `json:"uuid,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse is the status operation's output.
type StatusResponse struct {
	State          string `json:"state"`
	Progress       int    `json:"progress"`
	Message        string `json:"message"`
	PeakCount      int    `json:"peak_count"`
	MuxesCreated   int    `json:"muxes_created"`
	MuxesLocked    int    `json:"muxes_locked"`
	DurationMillis int64  `json:"duration_ms"`
}

// SpectrumPoint is one sample in the spectrum operation's response.
type SpectrumPoint struct {
	FrequencyKHz int64 `json:"f"`
	LevelCentiDB int32 `json:"l"`
}

// SpectrumResponse is the spectrum operation's output.
type SpectrumResponse struct {
	Points []SpectrumPoint `json:"points"`
	Count  int             `json:"count"`
	Pol    string          `json:"pol"`
	Band   int             `json:"band"`
}

// PeakReport is one entry in the peaks operation's response, and the
// per-peak shape referenced by spec §6's peak-report record.
type PeakReport struct {
	FrequencyKHz      int64  `json:"frequency"`
	SymbolRateSymPerS int64  `json:"symbol_rate"`
	LevelCentiDB      int32  `json:"level"`
	SNRCentiDB        int32  `json:"snr"`
	Polarisation      string `json:"polarisation"`
	Status            string `json:"status"`
	Existing          bool   `json:"existing"`
	HasFailedMux      bool   `json:"has_failed_mux"`

	// Present only when Status == "locked".
	ActualFrequencyKHz      int64  `json:"actual_frequency,omitempty"`
	ActualSymbolRateSymPerS int64  `json:"actual_symbol_rate,omitempty"`
	Delivery                string `json:"delsys,omitempty"`
	Modulation              string `json:"modulation,omitempty"`
	FEC                     string `json:"fec,omitempty"`
	Rolloff                 string `json:"rolloff,omitempty"`
	Pilot                   bool   `json:"pilot,omitempty"`
	StreamID                int    `json:"stream_id,omitempty"`
	PLSMode                 int    `json:"pls_mode,omitempty"`
	PLSCode                 int    `json:"pls_code,omitempty"`
	IsGSE                   bool   `json:"is_gse,omitempty"`
	Multistream             bool   `json:"multistream,omitempty"`
	ISIList                 []int  `json:"isi_list,omitempty"`
}

// PeaksResponse is the peaks operation's output.
type PeaksResponse struct {
	Peaks []PeakReport `json:"peaks"`
	Count int          `json:"count"`
}

// PrescanRequest is the prescan operation's input.
type PrescanRequest struct {
	UUID         string `json:"uuid"`
	FrequencyKHz int64  `json:"frequency"`
	Polarisation string `json:"polarisation"`
}

// PrescanResponse is the prescan operation's output.
type PrescanResponse struct {
	Locked bool `json:"locked"`

	FrequencyKHz      int64  `json:"frequency,omitempty"`
	SymbolRateSymPerS int64  `json:"symbol_rate,omitempty"`
	Modulation        string `json:"modulation,omitempty"`
	FEC               string `json:"fec,omitempty"`
	Delivery          string `json:"delsys,omitempty"`
	Rolloff           string `json:"rolloff,omitempty"`
	Pilot             bool   `json:"pilot,omitempty"`
	StreamID          int    `json:"stream_id,omitempty"`
	PLSMode           int    `json:"pls_mode,omitempty"`
	PLSCode           int    `json:"pls_code,omitempty"`
	IsGSE             bool   `json:"is_gse,omitempty"`
	Multistream       bool   `json:"multistream,omitempty"`
	ISIList           []int  `json:"isi_list,omitempty"`
}

// CreateMuxesRequest is the create_muxes operation's input.
type CreateMuxesRequest struct {
	UUID  string  `json:"uuid"`
	Peaks []int64 `json:"peaks"`
}

// CreateMuxesResponse is the create_muxes operation's output.
type CreateMuxesResponse struct {
	Created int `json:"created"`
}

// SimpleStatusResponse covers the cancel and release operations' output.
type SimpleStatusResponse struct {
	Status string `json:"status"`
}
