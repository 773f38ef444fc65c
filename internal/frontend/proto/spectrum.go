// Package proto implements the packed, explicit-offset wire encoding for
// the driver's composite spectrum-acquisition descriptor and the PLS
// search-list property. The spec requires this be marshalled bit-exactly
// rather than via a native-aligned struct overlay (§9 "Parameter readback
// structure"); this package is the one place that assumption lives,
// grounded on the teacher's binary framing conventions (fixed header
// fields at fixed byte offsets, little-endian throughout).
package proto

import (
	"encoding/binary"
	"fmt"

	"github.com/satops/blindscan/internal/candidate"
)

// spectrumHeaderSize is the fixed portion of the composite descriptor:
// four uint32 counts/capacities followed by the frequency step, all
// little-endian, with no padding.
const spectrumHeaderSize = 4*4 + 4

// SpectrumHeader mirrors the driver ABI's composite descriptor header:
// capacities the caller supplied and counts the driver actually filled.
type SpectrumHeader struct {
	FreqCapacity       uint32
	FreqCount          uint32
	CandidateCapacity  uint32
	CandidateCount     uint32
	FreqStepKHz        int32
}

// EncodeSpectrumHeader packs a SpectrumHeader at explicit byte offsets.
// Field layout (little-endian):
//
//	[0:4]   freq capacity
//	[4:8]   freq count
//	[8:12]  candidate capacity
//	[12:16] candidate count
//	[16:20] freq step (kHz, signed)
func EncodeSpectrumHeader(h SpectrumHeader) []byte {
	buf := make([]byte, spectrumHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.FreqCapacity)
	binary.LittleEndian.PutUint32(buf[4:8], h.FreqCount)
	binary.LittleEndian.PutUint32(buf[8:12], h.CandidateCapacity)
	binary.LittleEndian.PutUint32(buf[12:16], h.CandidateCount)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.FreqStepKHz))
	return buf
}

// DecodeSpectrumHeader unpacks a SpectrumHeader from its fixed offsets.
func DecodeSpectrumHeader(buf []byte) (SpectrumHeader, error) {
	if len(buf) < spectrumHeaderSize {
		return SpectrumHeader{}, fmt.Errorf("spectrum header: need %d bytes, got %d", spectrumHeaderSize, len(buf))
	}
	return SpectrumHeader{
		FreqCapacity:      binary.LittleEndian.Uint32(buf[0:4]),
		FreqCount:         binary.LittleEndian.Uint32(buf[4:8]),
		CandidateCapacity: binary.LittleEndian.Uint32(buf[8:12]),
		CandidateCount:    binary.LittleEndian.Uint32(buf[12:16]),
		FreqStepKHz:       int32(binary.LittleEndian.Uint32(buf[16:20])),
	}, nil
}

// candidateWireSize is the packed size of one hardware-candidate record:
// int64 IF frequency, int64 symbol rate, int32 level, all little-endian,
// no padding between fields.
const candidateWireSize = 8 + 8 + 4

// CandidateWire is one hardware candidate as laid out on the wire.
type CandidateWire struct {
	IFFrequencyKHz    int64
	SymbolRateSymPerS int64
	LevelMilliDB      int32
}

// EncodeSpectrumBody packs the frequency array (int32 kHz), the level
// array (int32 milli-dB), and the candidate array back to back after the
// header, each field at its explicit byte offset with no native
// alignment padding.
func EncodeSpectrumBody(freqsKHz []int32, levelsMilliDB []int32, candidates []CandidateWire) []byte {
	n := len(freqsKHz)
	buf := make([]byte, n*4+len(levelsMilliDB)*4+len(candidates)*candidateWireSize)

	off := 0
	for _, f := range freqsKHz {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(f))
		off += 4
	}
	for _, l := range levelsMilliDB {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(l))
		off += 4
	}
	for _, c := range candidates {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(c.IFFrequencyKHz))
		off += 8
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(c.SymbolRateSymPerS))
		off += 8
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(c.LevelMilliDB))
		off += 4
	}
	return buf
}

// DecodeSpectrumBody unpacks a body produced by EncodeSpectrumBody, given
// the counts from the header that preceded it.
func DecodeSpectrumBody(buf []byte, freqCount, candidateCount uint32) (freqsKHz []int32, levelsMilliDB []int32, candidates []CandidateWire, err error) {
	need := int(freqCount)*8 + int(candidateCount)*candidateWireSize
	if len(buf) < need {
		return nil, nil, nil, fmt.Errorf("spectrum body: need %d bytes, got %d", need, len(buf))
	}

	off := 0
	freqsKHz = make([]int32, freqCount)
	for i := range freqsKHz {
		freqsKHz[i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	levelsMilliDB = make([]int32, freqCount)
	for i := range levelsMilliDB {
		levelsMilliDB[i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	candidates = make([]CandidateWire, candidateCount)
	for i := range candidates {
		candidates[i].IFFrequencyKHz = int64(binary.LittleEndian.Uint64(buf[off : off+8]))
		off += 8
		candidates[i].SymbolRateSymPerS = int64(binary.LittleEndian.Uint64(buf[off : off+8]))
		off += 8
		candidates[i].LevelMilliDB = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	return freqsKHz, levelsMilliDB, candidates, nil
}

// EncodePLSEntry packs one PLS search-list entry into the driver's 32-bit
// representation: bits 26-27 carry the mode, bits 8-25 carry the code.
func EncodePLSEntry(mode candidate.PLSMode, code int) uint32 {
	return uint32(mode&0x3)<<26 | uint32(code&0x3FFFF)<<8
}

// DecodePLSEntryRaw unpacks the driver's 32-bit PLS search-list entry
// representation into its mode and code.
func DecodePLSEntryRaw(raw uint32) (candidate.PLSMode, int) {
	mode := candidate.PLSMode((raw >> 26) & 0x3)
	code := int((raw >> 8) & 0x3FFFF)
	return mode, code
}

// EncodeISIBitset walks a sorted, deduplicated ISI list into a
// caller-provided-size bitset, LSB-first per byte, mirroring the driver's
// own encoding so tests can round-trip DecodeISIBitset.
func EncodeISIBitset(isiList []int, size int) []byte {
	buf := make([]byte, size)
	for _, isi := range isiList {
		if isi < 0 || isi >= size*8 {
			continue
		}
		buf[isi/8] |= 1 << uint(isi%8)
	}
	return buf
}

// DecodeISIBitset walks the bitset LSB-first per byte and returns the
// sorted list of set stream ids, per spec 4.D's ISI enumeration.
func DecodeISIBitset(buf []byte) []int {
	var out []int
	for byteIdx, b := range buf {
		if b == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				out = append(out, byteIdx*8+bit)
			}
		}
	}
	return out
}
