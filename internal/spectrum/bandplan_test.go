package spectrum

import (
	"testing"

	"github.com/satops/blindscan/internal/candidate"
)

func TestBandForBoundary(t *testing.T) {
	p := DefaultBandPlan
	if got := p.BandFor(p.SplitKHz - 1); got != candidate.BandLow {
		t.Fatalf("expected low band just below split, got %v", got)
	}
	if got := p.BandFor(p.SplitKHz); got != candidate.BandHigh {
		t.Fatalf("expected high band at split, got %v", got)
	}
	if got := p.BandFor(p.SplitKHz + 1); got != candidate.BandHigh {
		t.Fatalf("expected high band above split, got %v", got)
	}
}

func TestToDriverToTransponderRoundTrip(t *testing.T) {
	p := DefaultBandPlan
	cases := []struct {
		freqKHz int64
		band    candidate.Band
	}{
		{10_950_000, candidate.BandLow},
		{12_500_000, candidate.BandHigh},
	}
	for _, c := range cases {
		ifKHz := p.ToDriver(c.freqKHz, c.band)
		got := p.ToTransponder(ifKHz, c.band)
		if got != c.freqKHz {
			t.Fatalf("round trip mismatch for %+v: got %d want %d", c, got, c.freqKHz)
		}
	}
}

func TestLOPerBand(t *testing.T) {
	p := DefaultBandPlan
	if p.LO(candidate.BandLow) != p.LowBandLO {
		t.Fatalf("expected low LO %d, got %d", p.LowBandLO, p.LO(candidate.BandLow))
	}
	if p.LO(candidate.BandHigh) != p.HighBandLO {
		t.Fatalf("expected high LO %d, got %d", p.HighBandLO, p.LO(candidate.BandHigh))
	}
}
