// Command blindscan-cli exercises the full blindscan pipeline against a
// mock frontend and an in-memory mux registry, for manual verification
// without hardware. Grounded on the teacher's cmd/monopulse flag/config
// pattern and cmd/test_ascii's verbose diagnostic style.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/satops/blindscan/internal/candidate"
	"github.com/satops/blindscan/internal/config"
	"github.com/satops/blindscan/internal/events"
	"github.com/satops/blindscan/internal/frontend"
	"github.com/satops/blindscan/internal/logging"
	"github.com/satops/blindscan/internal/mux"
	"github.com/satops/blindscan/internal/satconf"
	"github.com/satops/blindscan/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	startFreq := flag.Int64("start", 10_700_000, "scan start frequency (kHz)")
	endFreq := flag.Int64("end", 11_700_000, "scan end frequency (kHz)")
	pol := flag.String("pol", "H", "polarisation: H, V or B")
	networkUUID := flag.String("network", "demo-network", "target network UUID")
	waitSeconds := flag.Int("wait", 5, "seconds to wait for the scan before reading results")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.FromSettings(settings, os.Stderr)
	if err != nil {
		log.Fatalf("logging config: %v", err)
	}
	hub := events.NewHub(200, logger)

	fe := frontend.NewMock([]frontend.SyntheticCarrier{
		{
			FrequencyKHz:      11_012_000,
			SymbolRateSymPerS: 22_000_000,
			Polarisation:      candidate.PolHorizontal,
			LevelMilliDB:      -40000,
			Modulation:        "8PSK",
			FEC:               "3/4",
			Delivery:          "DVB-S2",
			Rolloff:           "0.35",
			RawStreamID:       511,
			Locks:             true,
		},
	})

	network := mux.NewMemoryRegistry()
	mgr := session.NewManager(network, logger, hub)

	satcfg := satconf.Config{UUID: "demo-satconf", Name: "Universal LNB"}

	handle, err := mgr.Start(context.Background(), session.StartParams{
		Frontend:     fe,
		Satconf:      satcfg,
		NetworkUUID:  *networkUUID,
		StartFreqKHz: *startFreq,
		EndFreqKHz:   *endFreq,
		Polarisation: candidate.Polarisation(*pol),
		Options:      session.OptionsFromConfig(settings),
		Voltage:      frontend.Voltage13V,
	})
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	fmt.Printf("started session %s\n", handle)

	time.Sleep(time.Duration(*waitSeconds) * time.Second)

	status, err := mgr.Status(handle)
	if err != nil {
		log.Fatalf("status: %v", err)
	}
	fmt.Printf("state=%s progress=%d%% peaks=%d duration=%s\n",
		status.State, status.Progress, status.PeakCount,
		humanize.RelTime(time.Now().Add(-time.Duration(status.DurationMillis)*time.Millisecond), time.Now(), "", ""))

	peaks, err := mgr.Peaks(context.Background(), handle)
	if err != nil {
		log.Fatalf("peaks: %v", err)
	}
	for _, p := range peaks {
		fmt.Printf("  %s kHz  %s sym/s  %s  level=%.2fdB\n",
			humanize.Comma(p.FrequencyKHz),
			humanize.Comma(p.SymbolRateSymPerS),
			p.Status,
			float64(p.LevelCentiDB)/100)
	}

	if err := mgr.Release(handle); err != nil {
		log.Fatalf("release: %v", err)
	}
	mgr.Shutdown()
	os.Exit(0)
}
