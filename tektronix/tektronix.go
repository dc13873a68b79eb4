// Package tektronix provides an interface to the AFG3000C series arbitrary
// function generators.  On this bench it is the alternate two channel
// signal generator: output 1 carries the sweep trigger pulse train, output 2
// a DC level steering the laser frequency control loop.
package tektronix

import (
	"errors"
	"fmt"
	"time"

	"github.com/quentinglorieux/Bragg-omega/comm"
	"github.com/quentinglorieux/Bragg-omega/scpi"
	"github.com/quentinglorieux/Bragg-omega/util"
)

const (
	// DCMin and DCMax bound the channel 2 DC level
	DCMin = -5.0
	DCMax = 5.0
)

var (
	// ErrDutyCycle is generated when a duty cycle outside [0, 100] percent
	// is commanded
	ErrDutyCycle = errors.New("tektronix: duty cycle must be between 0 and 100 percent")

	// ErrPeriod is generated when a non-positive pulse period is commanded
	ErrPeriod = errors.New("tektronix: pulse period must be greater than zero")
)

// AFG3000C represents an AFG3000C series function generator
type AFG3000C struct {
	scpi.SCPI
}

// NewAFG3000C returns a new AFG3000C.  addr is the host:port of the
// instrument's raw socket, conventionally port 4000.
func NewAFG3000C(addr string) *AFG3000C {
	maker := comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	pool := comm.NewPool(1, 30*time.Second, maker)
	return &AFG3000C{scpi.SCPI{Pool: pool}}
}

// Connect establishes the connection and resets the instrument to a known
// state
func (a *AFG3000C) Connect() error {
	if err := a.SCPI.Connect(); err != nil {
		return err
	}
	return a.Write("*RST")
}

// SetTriggerPulse programs the pulse train on output 1.  Unlike generators
// that take an amplitude/offset pair, the AFG accepts the rail voltages and
// period directly.  Invalid parameters are rejected before any command is
// sent, leaving the output state untouched.
func (a *AFG3000C) SetTriggerPulse(high, low float64, period time.Duration, dutyPct float64) error {
	if dutyPct < 0 || dutyPct > 100 {
		return ErrDutyCycle
	}
	if period <= 0 {
		return ErrPeriod
	}
	cmds := []string{
		"SOURce1:FUNCtion PULSe",
		fmt.Sprintf("SOURce1:PULSe:PERiod %G", period.Seconds()),
		fmt.Sprintf("SOURce1:PULSe:DCYCle %G", dutyPct),
		fmt.Sprintf("SOURce1:VOLTage:HIGH %G", high),
		fmt.Sprintf("SOURce1:VOLTage:LOW %G", low),
		"OUTPut1 ON",
	}
	for _, cmd := range cmds {
		if err := a.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetDCVoltage programs output 2 to a constant level, clamped to
// [DCMin, DCMax]
func (a *AFG3000C) SetDCVoltage(volts float64) error {
	volts = util.Clamp(volts, DCMin, DCMax)
	cmds := []string{
		"SOURce2:FUNCtion DC",
		fmt.Sprintf("SOURce2:VOLTage:OFFSet %G", volts),
		"OUTPut2 ON",
	}
	for _, cmd := range cmds {
		if err := a.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// DisableOutputs switches both outputs off
func (a *AFG3000C) DisableOutputs() error {
	for _, cmd := range []string{"OUTPut1 OFF", "OUTPut2 OFF"} {
		if err := a.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection.  Safe to call if the device was never
// reachable.
func (a *AFG3000C) Close() error {
	return a.Pool.CloseAll()
}
