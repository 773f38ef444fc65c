// Package satconf models the satellite-configuration chain (LNB, DiSEqC
// switches, rotor, Unicable gateway) that the frontend adapter drives.
// Per the spec this chain is a pre-existing external collaborator — this
// package only defines the narrow surface the core parameterises and
// invokes; it does not implement DiSEqC bus electrics.
package satconf

import (
	"context"
	"time"
)

// Universal LNB local-oscillator frequencies and the band split, in kHz.
const (
	LowBandLOKHz   = 9_750_000
	HighBandLOKHz  = 10_600_000
	BandSplitKHz   = 11_700_000
)

// ChainDevice is one element in a satconf's DiSEqC chain (a switch, a
// rotor, or a Unicable gateway), each with its own settle delay.
type ChainDevice interface {
	// Send issues this device's command for the given polarisation/band.
	// The settle wait is the caller's, per SettleDelay.
	Send(ctx context.Context, pol string, band int) error

	// SettleDelay is the minimum time the caller must wait after Send
	// before issuing the next command on the bus (rotor settle can run to
	// several seconds).
	SettleDelay() time.Duration
}

// Unicable describes a Single-Channel-Router gateway: fixed IF output
// frequency and the ODU command used to select a slice.
type Unicable interface {
	// SCRFrequencyKHz is the gateway's fixed IF output frequency.
	SCRFrequencyKHz() int64

	// SendODU selects the slice centred at centerKHz. The Unicable bus may
	// be shared with other sessions; callers must serialise through Lock.
	SendODU(ctx context.Context, centerKHz int64) error

	// Lock serialises ODU-command-then-tune pairs across sessions sharing
	// this gateway. The returned function releases the lock.
	Lock(ctx context.Context) (func(), error)
}

// Config is the resolved satellite configuration for one frontend: its
// DiSEqC chain in invocation order, and an optional Unicable gateway.
type Config struct {
	UUID     string
	Name     string
	Chain    []ChainDevice
	Unicable Unicable
}

// IsUnicable reports whether this configuration routes through a SCR
// gateway rather than direct LNB voltage/tone/DiSEqC switching.
func (c Config) IsUnicable() bool {
	return c.Unicable != nil
}

// SendChain invokes every configured DiSEqC device in order, honouring
// each device's settle delay, for the given (pol, band).
func SendChain(ctx context.Context, cfg Config, pol string, band int) error {
	for _, dev := range cfg.Chain {
		if err := dev.Send(ctx, pol, band); err != nil {
			return err
		}
		delay := dev.SettleDelay()
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}
