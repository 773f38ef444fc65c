package proto

import (
	"reflect"
	"testing"

	"github.com/satops/blindscan/internal/candidate"
)

func TestSpectrumHeaderRoundTrip(t *testing.T) {
	h := SpectrumHeader{
		FreqCapacity:      2048,
		FreqCount:         1500,
		CandidateCapacity: 512,
		CandidateCount:    3,
		FreqStepKHz:       100,
	}
	got, err := DecodeSpectrumHeader(EncodeSpectrumHeader(h))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestSpectrumHeaderDecodeTooShort(t *testing.T) {
	if _, err := DecodeSpectrumHeader(make([]byte, 4)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestSpectrumBodyRoundTrip(t *testing.T) {
	freqs := []int32{10700000, 10700100, 10700200}
	levels := []int32{-7000, -6950, -4000}
	cands := []CandidateWire{
		{IFFrequencyKHz: 10700200, SymbolRateSymPerS: 27500000, LevelMilliDB: -40000},
	}
	body := EncodeSpectrumBody(freqs, levels, cands)

	gotFreqs, gotLevels, gotCands, err := DecodeSpectrumBody(body, uint32(len(freqs)), uint32(len(cands)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(gotFreqs, freqs) {
		t.Fatalf("freqs mismatch: got %v want %v", gotFreqs, freqs)
	}
	if !reflect.DeepEqual(gotLevels, levels) {
		t.Fatalf("levels mismatch: got %v want %v", gotLevels, levels)
	}
	if !reflect.DeepEqual(gotCands, cands) {
		t.Fatalf("candidates mismatch: got %v want %v", gotCands, cands)
	}
}

func TestSpectrumBodyDecodeTooShort(t *testing.T) {
	if _, _, _, err := DecodeSpectrumBody(make([]byte, 4), 10, 0); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestISIBitsetRoundTrip(t *testing.T) {
	isiList := []int{0, 1, 2, 254}
	buf := EncodeISIBitset(isiList, 32)
	got := DecodeISIBitset(buf)
	if !reflect.DeepEqual(got, isiList) {
		t.Fatalf("round trip mismatch: got %v want %v", got, isiList)
	}
}

func TestISIBitsetExampleFromSpec(t *testing.T) {
	// 0b00000111 in the first byte -> ISI 0,1,2.
	buf := []byte{0b00000111}
	got := DecodeISIBitset(buf)
	want := []int{0, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPLSEntryEncodeDecode(t *testing.T) {
	entries := []struct {
		mode candidate.PLSMode
		code int
	}{
		{candidate.PLSRoot, 0},
		{candidate.PLSRoot, 1},
		{candidate.PLSRoot, 8},
		{candidate.PLSRoot, 16416},
		{candidate.PLSGold, 0},
		{candidate.PLSGold, 8192},
	}
	for _, e := range entries {
		raw := EncodePLSEntry(e.mode, e.code)
		gotMode, gotCode := DecodePLSEntryRaw(raw)
		if gotMode != e.mode || gotCode != e.code {
			t.Fatalf("PLS entry round trip: got (%v,%v) want (%v,%v)", gotMode, gotCode, e.mode, e.code)
		}
	}
}
