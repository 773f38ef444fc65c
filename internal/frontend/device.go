package frontend

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/frontend/proto"
	"github.com/satops/blindscan/internal/logging"
)

// DVB frontend ioctl request numbers, per the Linux DVB API
// (linux/dvb/frontend.h). golang.org/x/sys/unix does not expose these,
// so they are named here the way the teacher names its IIOD wire
// opcodes in iiod/binarybased.go.
const (
	ioctlFESetProperty = 0x40086f52
	ioctlFEGetProperty = 0xc0086f53
	ioctlFEReadStatus  = 0x80046f01
	ioctlFEDiseqcSendMasterCmd = 0x40066f05
	ioctlFESetVoltage  = 0x40046f0a
	ioctlFESetTone     = 0x40046f0b
)

// feStatus mirrors the Linux DVB fe_status bitmask.
type feStatus uint32

const (
	feHasSignal feStatus = 1 << iota
	feHasCarrier
	feHasViterbi
	feHasSync
	feHasLock
	feTimedout
	feReinit
)

func (s feStatus) toEventMask() EventMask {
	var m EventMask
	if s&feHasLock != 0 {
		m |= EventCarrierLock
	}
	if s&feHasSync != 0 {
		m |= EventSync
	}
	if s&feTimedout != 0 {
		m |= EventError
	}
	return m
}

// EventLogger receives low-level frontend diagnostics, grounded on the
// teacher's EventLogger/logEvent pattern in sdr.PlutoSDR.
type EventLogger interface {
	LogEvent(level, message string)
}

// Device drives a real Linux DVB frontend character device
// (/dev/dvb/adapterN/frontendM) via ioctl.
type Device struct {
	mu     sync.Mutex
	fd     int
	path   string
	logger logging.Logger

	cachedPol   candidate.Polarisation
	cachedBand  candidate.Band
	cached      bool

	supportsSpectrum bool
}

// OpenDevice opens the frontend character device at path.
func OpenDevice(path string, logger logging.Logger) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open frontend %s: %w", path, err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Device{fd: fd, path: path, logger: logging.WithComponent(logger, "frontend"), supportsSpectrum: true}, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func (d *Device) Clear(_ context.Context) error {
	return d.setProperties(Properties{{Key: PropClear}})
}

// SetProperties issues one FE_SET_PROPERTY ioctl per property (one per
// entry for the PLS search list), in the order received, since the
// driver requires a specific sequence (spec §4.D).
func (d *Device) SetProperties(_ context.Context, props Properties) error {
	return d.setProperties(props)
}

func (d *Device) setProperties(props Properties) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range props {
		if err := d.ioctlSetProperty(p); err != nil {
			return fmt.Errorf("set property %d: %w", p.Key, err)
		}
	}
	return nil
}

func (d *Device) ioctlSetProperty(p Property) error {
	var raw [8]byte
	if p.Key == PropPLSSearchList {
		// The PLS search list is transmitted as a sequence of set
		// calls, one 32-bit entry at a time.
		for _, entry := range p.List {
			putUint32(raw[:4], uint32(p.Key))
			putUint32(raw[4:], entry)
			if err := d.ioctl(ioctlFESetProperty, unsafe.Pointer(&raw[0])); err != nil {
				return err
			}
		}
		return nil
	}
	putUint32(raw[:4], uint32(p.Key))
	putUint32(raw[4:], uint32(p.Value))
	return d.ioctl(ioctlFESetProperty, unsafe.Pointer(&raw[0]))
}

// GetProperties fetches the full tuning readback in one transaction,
// mirroring the driver's single composite get-property call.
func (d *Device) GetProperties(_ context.Context) (TuningReadback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf [128]byte
	if err := d.ioctl(ioctlFEGetProperty, unsafe.Pointer(&buf[0])); err != nil {
		return TuningReadback{}, fmt.Errorf("get properties: %w", err)
	}

	matype := getUint32(buf[24:28])
	isiLen := getUint32(buf[28:32])
	var isiBitset []byte
	if isiLen > 0 && int(isiLen) <= len(buf)-32 {
		isiBitset = append([]byte(nil), buf[32:32+isiLen]...)
	}

	return TuningReadback{
		FrequencyKHz:      int64(getUint32(buf[0:4])),
		SymbolRateSymPerS: int64(getUint32(buf[4:8])),
		Modulation:        decodeLabel(getUint32(buf[8:12])),
		FEC:               decodeLabel(getUint32(buf[12:16])),
		DeliverySystem:    decodeLabel(getUint32(buf[16:20])),
		RawStreamID:       int(getUint32(buf[20:24])),
		Rolloff:           decodeLabel(getUint32(buf[32:36])),
		Pilot:             getUint32(buf[36:40]) != 0,
		HasMatype:         matype != 0,
		Matype:            matype,
		ISIBitset:         isiBitset,
	}, nil
}

func decodeLabel(v uint32) string {
	// Driver enumerations are opaque integers on the wire; labels are
	// resolved here for readability in reports. Zero reads as "AUTO";
	// any other value passes through as its decimal digits rather than
	// failing the read.
	switch v {
	case 0:
		return "AUTO"
	default:
		return fmt.Sprintf("%d", v)
	}
}

func (d *Device) SetVoltage(_ context.Context, v Voltage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ioctl(ioctlFESetVoltage, unsafe.Pointer(&v)); err != nil {
		return fmt.Errorf("set voltage: %w", err)
	}
	time.Sleep(15 * time.Millisecond)
	return nil
}

func (d *Device) SetTone(_ context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var v int32
	if on {
		v = 1
	}
	if err := d.ioctl(ioctlFESetTone, unsafe.Pointer(&v)); err != nil {
		return fmt.Errorf("set tone: %w", err)
	}
	time.Sleep(20 * time.Millisecond)
	return nil
}

// AwaitEvent polls FE_READ_STATUS until a non-zero mask, error, or
// timeout, since this driver exposes readiness through a pollable
// status register rather than a blocking read.
func (d *Device) AwaitEvent(ctx context.Context, timeout time.Duration) (EventMask, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
		d.mu.Lock()
		var raw uint32
		err := d.ioctl(ioctlFEReadStatus, unsafe.Pointer(&raw))
		d.mu.Unlock()
		if err != nil {
			return 0, fmt.Errorf("read status: %w", err)
		}
		status := feStatus(raw)
		if status&feTimedout != 0 {
			return status.toEventMask(), fmt.Errorf("frontend timed out")
		}
		if mask := status.toEventMask(); mask.HasCarrierLock() || mask.HasSync() {
			return mask, nil
		}
		if time.Now().After(deadline) {
			return status.toEventMask(), nil
		}
	}
}

// SendSatconfChain re-issues voltage and tone only when the (pol, band)
// pair differs from the cached last tune. It sends no DiSEqC commands:
// the satconf chain devices are not invoked from here.
func (d *Device) SendSatconfChain(ctx context.Context, pol candidate.Polarisation, band candidate.Band, v Voltage, _ int64) error {
	d.mu.Lock()
	if d.cached && d.cachedPol == pol && d.cachedBand == band {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if err := d.SetVoltage(ctx, v); err != nil {
		return err
	}
	if err := d.SetTone(ctx, band == candidate.BandHigh); err != nil {
		return err
	}

	d.mu.Lock()
	d.cachedPol, d.cachedBand, d.cached = pol, band, true
	d.mu.Unlock()
	return nil
}

func (d *Device) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = false
}

func (d *Device) SupportsSpectrumExtension() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.supportsSpectrum
}

// AcquireSpectrum issues the composite spectrum-descriptor get-property
// call and unpacks the packed payload via internal/frontend/proto.
func (d *Device) AcquireSpectrum(_ context.Context, req SpectrumRequest) (SpectrumResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	freqCap := uint32(65536)
	candCap := uint32(req.MaxCandidates)
	if candCap == 0 {
		candCap = 512
	}

	header := proto.SpectrumHeader{
		FreqCapacity:      freqCap,
		CandidateCapacity: candCap,
	}
	hbuf := proto.EncodeSpectrumHeader(header)
	if err := d.ioctl(ioctlFEGetProperty, unsafe.Pointer(&hbuf[0])); err != nil {
		return SpectrumResult{}, fmt.Errorf("acquire spectrum header: %w", err)
	}
	got, err := proto.DecodeSpectrumHeader(hbuf)
	if err != nil {
		return SpectrumResult{}, err
	}

	bodyLen := int(got.FreqCount)*8 + int(got.CandidateCount)*20
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if err := d.ioctl(ioctlFEGetProperty, unsafe.Pointer(&body[0])); err != nil {
			return SpectrumResult{}, fmt.Errorf("acquire spectrum body: %w", err)
		}
	}
	freqs, levels, cands, err := proto.DecodeSpectrumBody(body, got.FreqCount, got.CandidateCount)
	if err != nil {
		return SpectrumResult{}, err
	}

	res := SpectrumResult{
		FrequenciesKHz: make([]int64, len(freqs)),
		LevelsMilliDB:  levels,
	}
	for i, f := range freqs {
		res.FrequenciesKHz[i] = int64(f)
	}
	for _, c := range cands {
		res.Candidates = append(res.Candidates, HardwareCandidate{
			IFFrequencyKHz:    c.IFFrequencyKHz,
			SymbolRateSymPerS: c.SymbolRateSymPerS,
			LevelMilliDB:      c.LevelMilliDB,
		})
	}
	return res, nil
}

func (d *Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
