// Package rigol provides an interface to Rigol DSA800 series spectrum
// analyzers over their raw SCPI socket.
package rigol

import (
	"fmt"
	"strings"
	"time"

	"github.com/quentinglorieux/Bragg-omega/comm"
	"github.com/quentinglorieux/Bragg-omega/scpi"
)

// TriggerSource selects what starts an acquisition
type TriggerSource string

// trigger sources understood by the analyzer
const (
	TriggerFree     TriggerSource = "IMM"
	TriggerExternal TriggerSource = "EXT"
	TriggerVideo    TriggerSource = "VID"
)

// Slope selects the active edge of the external trigger input
type Slope string

// external trigger slopes
const (
	SlopePositive Slope = "POS"
	SlopeNegative Slope = "NEG"
)

// DSA800 represents a DSA800 series spectrum analyzer
type DSA800 struct {
	scpi.SCPI
}

// NewDSA800 returns a new DSA800.  addr is the host:port of the analyzer's
// SCPI socket, conventionally port 5555.
func NewDSA800(addr string) *DSA800 {
	maker := comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	pool := comm.NewPool(1, 30*time.Second, maker)
	return &DSA800{scpi.SCPI{Pool: pool}}
}

// ID returns the analyzer's identification string
func (d *DSA800) ID() (string, error) {
	return d.ReadString("*IDN?")
}

// SetCenterFrequency sets the center frequency in Hz
func (d *DSA800) SetCenterFrequency(hz float64) error {
	return d.Write(fmt.Sprintf(":SENSe:FREQuency:CENTer %G", hz))
}

// GetCenterFrequency returns the center frequency in Hz
func (d *DSA800) GetCenterFrequency() (float64, error) {
	return d.ReadFloat(":SENSe:FREQuency:CENTer?")
}

// SetRBWVBW sets the resolution and video bandwidths in Hz
func (d *DSA800) SetRBWVBW(rbwHz, vbwHz float64) error {
	err := d.Write(fmt.Sprintf(":SENSe:BANDwidth:RESolution %G", rbwHz))
	if err != nil {
		return err
	}
	return d.Write(fmt.Sprintf(":SENSe:BANDwidth:VIDeo %G", vbwHz))
}

// EnableZeroSpan fixes the analyzer at its center frequency so sweeps run
// in time only, giving a power-vs-time trace
func (d *DSA800) EnableZeroSpan() error {
	return d.Write(":SENSe:FREQuency:SPAN 0")
}

// SetSweepTime sets the sweep time
func (d *DSA800) SetSweepTime(t time.Duration) error {
	return d.Write(fmt.Sprintf(":SWE:TIME %G", t.Seconds()))
}

// triggerCommands builds the command sequence for a trigger setup; the
// slope is only meaningful (and only sent) for the external source
func triggerCommands(source TriggerSource, edge Slope) []string {
	cmds := []string{fmt.Sprintf(":TRIGger:SEQuence:SOURce %s", source)}
	if source == TriggerExternal {
		cmds = append(cmds, fmt.Sprintf(":TRIGger:SEQuence:EXTernal:SLOPe %s", edge))
	}
	return cmds
}

// SetTrigger configures the acquisition trigger
func (d *DSA800) SetTrigger(source TriggerSource, edge Slope) error {
	for _, cmd := range triggerCommands(source, edge) {
		if err := d.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// StartSweep starts acquisition.  With continuous false the analyzer arms a
// single sweep, which then waits on the configured trigger.
func (d *DSA800) StartSweep(continuous bool) error {
	mnemonic := "OFF"
	if continuous {
		mnemonic = "ON"
	}
	err := d.Write(fmt.Sprintf(":INITiate:CONTinuous %s", mnemonic))
	if err != nil {
		return err
	}
	if !continuous {
		return d.Write(":INITiate:IMMediate")
	}
	return nil
}

// FetchTrace retrieves the current trace as the analyzer's ASCII
// representation.  The payload is treated as opaque by the orchestrator.
func (d *DSA800) FetchTrace() (string, error) {
	resp, err := d.ReadLarge(":FETCh?")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// Close releases the connection.  Safe to call if the analyzer was never
// reachable.
func (d *DSA800) Close() error {
	return d.Pool.CloseAll()
}
