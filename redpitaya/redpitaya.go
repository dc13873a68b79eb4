// Package redpitaya provides an interface to a Red Pitaya running the
// stock SCPI server, used here as a two channel signal generator: output 1
// carries the sweep trigger pulse train, output 2 a DC level steering the
// laser frequency control loop.
package redpitaya

import (
	"errors"
	"fmt"
	"time"

	"github.com/quentinglorieux/Bragg-omega/comm"
	"github.com/quentinglorieux/Bragg-omega/scpi"
	"github.com/quentinglorieux/Bragg-omega/util"
)

const (
	// DCMin and DCMax bound the DC control level; the fast analog outputs
	// clip outside this range
	DCMin = 0.0
	DCMax = 1.8
)

var (
	// ErrDutyCycle is generated when a duty cycle outside [0, 100] percent
	// is commanded
	ErrDutyCycle = errors.New("redpitaya: duty cycle must be between 0 and 100 percent")

	// ErrPeriod is generated when a non-positive pulse period is commanded
	ErrPeriod = errors.New("redpitaya: pulse period must be greater than zero")
)

// pulse holds the derived waveform parameters for a trigger pulse train
type pulse struct {
	frequency float64 // Hz
	amplitude float64 // V, half peak-to-peak
	offset    float64 // V
	ratio     float64 // duty as a fraction of the period
}

// pulseParams validates and derives the waveform parameters from the level
// based description used by the orchestrator
func pulseParams(high, low float64, period time.Duration, dutyPct float64) (pulse, error) {
	if dutyPct < 0 || dutyPct > 100 {
		return pulse{}, ErrDutyCycle
	}
	if period <= 0 {
		return pulse{}, ErrPeriod
	}
	return pulse{
		frequency: 1 / period.Seconds(),
		amplitude: (high - low) / 2,
		offset:    (high + low) / 2,
		ratio:     dutyPct / 100,
	}, nil
}

// SignalGenerator represents the generator side of a Red Pitaya
type SignalGenerator struct {
	scpi.SCPI
}

// NewSignalGenerator returns a new SignalGenerator.  addr is the host:port
// of the SCPI server, conventionally port 5000.
func NewSignalGenerator(addr string) *SignalGenerator {
	maker := comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	pool := comm.NewPool(1, 30*time.Second, maker)
	return &SignalGenerator{scpi.SCPI{Pool: pool}}
}

// SetTriggerPulse programs the pulse train on output 1.  high and low are
// the rail voltages, period the full pulse period, and dutyPct the high
// fraction in percent.  Invalid parameters are rejected before any command
// is sent, leaving the output state untouched.
func (s *SignalGenerator) SetTriggerPulse(high, low float64, period time.Duration, dutyPct float64) error {
	p, err := pulseParams(high, low, period, dutyPct)
	if err != nil {
		return err
	}
	cmds := []string{
		"SOUR1:FUNC PWM",
		fmt.Sprintf("SOUR1:FREQ:FIX %G", p.frequency),
		fmt.Sprintf("SOUR1:VOLT %G", p.amplitude),
		fmt.Sprintf("SOUR1:VOLT:OFFS %G", p.offset),
		fmt.Sprintf("SOUR1:DCYC %G", p.ratio),
		"OUTPUT1:STATE ON",
	}
	for _, cmd := range cmds {
		if err := s.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetDCVoltage programs output 2 to a constant level, clamped to
// [DCMin, DCMax]
func (s *SignalGenerator) SetDCVoltage(volts float64) error {
	volts = util.Clamp(volts, DCMin, DCMax)
	cmds := []string{
		"SOUR2:FUNC DC",
		fmt.Sprintf("SOUR2:VOLT:OFFS %G", volts),
		"OUTPUT2:STATE ON",
	}
	for _, cmd := range cmds {
		if err := s.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// DisableOutputs switches both outputs off
func (s *SignalGenerator) DisableOutputs() error {
	for _, cmd := range []string{"OUTPUT1:STATE OFF", "OUTPUT2:STATE OFF"} {
		if err := s.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection.  Safe to call if the device was never
// reachable.
func (s *SignalGenerator) Close() error {
	return s.Pool.CloseAll()
}
