package mux

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/satops/blindscan/internal/candidate"
)

func TestSQLiteRegistryCreateAndLookup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "muxes.db")
	reg := NewSQLiteRegistry(dbPath)

	ctx := context.Background()
	rec, err := reg.Create(ctx, Record{
		NetworkUUID:       "net-1",
		FrequencyKHz:      11_000_000,
		Polarisation:      candidate.PolHorizontal,
		SymbolRateSymPerS: 22_000_000,
		Delivery:          candidate.DeliveryDVBS2,
		Rolloff:           "0.35",
		PLSMode:           candidate.PLSGold,
		PLSCode:           8192,
		IsGSE:             true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Ref == "" || rec.ScanResult != ScanUnknown {
		t.Fatalf("expected a generated ref and unknown scan result, got %+v", rec)
	}

	found, ok, err := reg.Lookup(ctx, "net-1", Record{FrequencyKHz: 11_001_000, SymbolRateSymPerS: 22_000_000, Polarisation: candidate.PolHorizontal})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected a match within the frequency tolerance")
	}
	if found.PLSMode != candidate.PLSGold || found.PLSCode != 8192 || !found.IsGSE {
		t.Fatalf("expected PLS/GSE fields to round-trip, got %+v", found)
	}

	_, ok, err = reg.Lookup(ctx, "net-1", Record{FrequencyKHz: 15_000_000, SymbolRateSymPerS: 22_000_000, Polarisation: candidate.PolHorizontal})
	if err != nil {
		t.Fatalf("lookup miss: %v", err)
	}
	if ok {
		t.Fatal("expected no match far outside the frequency tolerance")
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSQLiteRegistryAllForNetworkFiltersByNetwork(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "muxes.db")
	reg := NewSQLiteRegistry(dbPath)
	ctx := context.Background()

	if _, err := reg.Create(ctx, Record{NetworkUUID: "net-a", FrequencyKHz: 1, Polarisation: candidate.PolHorizontal}); err != nil {
		t.Fatalf("create net-a: %v", err)
	}
	if _, err := reg.Create(ctx, Record{NetworkUUID: "net-b", FrequencyKHz: 2, Polarisation: candidate.PolHorizontal}); err != nil {
		t.Fatalf("create net-b: %v", err)
	}

	all, err := reg.AllForNetwork(ctx, "net-a")
	if err != nil {
		t.Fatalf("all for network: %v", err)
	}
	if len(all) != 1 || all[0].NetworkUUID != "net-a" {
		t.Fatalf("expected only net-a's record, got %+v", all)
	}

	_ = reg.Close()
}

func TestSQLiteRegistryEnqueueRejectsEmptyRef(t *testing.T) {
	reg := NewSQLiteRegistry(filepath.Join(t.TempDir(), "muxes.db"))
	if err := reg.Enqueue(context.Background(), "", "user-scan"); err == nil {
		t.Fatal("expected an error enqueueing an empty ref")
	}
}
