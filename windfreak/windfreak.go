// Package windfreak provides an interface to Windfreak SynthHD RF
// synthesizers.  The SynthHD enumerates as a USB serial port and speaks a
// terse ASCII protocol in which each setting is a single register letter
// followed by its value; frequencies are exchanged in MHz and sweep step
// times in milliseconds.
package windfreak

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/quentinglorieux/Bragg-omega/comm"
)

// register letters used by this driver.  The full map is much larger, see
// the SynthHD programming reference.
const (
	regChannel     = 'C'
	regFrequency   = 'f'
	regPower       = 'W'
	regRFEnable    = 'E'
	regSweepLow    = 'l'
	regSweepHigh   = 'u'
	regSweepStep   = 's'
	regStepTime    = 't'
	regDiffMethod  = 'n'
	regDiffFreq    = 'k'
	regSweepRun    = 'c'
	regTriggerFunc = 'w'
)

const (
	// StepTimeMin and StepTimeMax bound the per-step dwell accepted by the
	// synthesizer
	StepTimeMin = 4 * time.Millisecond
	StepTimeMax = 10 * time.Second

	// MinPower is the lowest output power in dBm, used to park the outputs
	// at shutdown
	MinPower = -80.0
)

var (
	// ErrStepTime is generated when a sweep step time outside
	// [StepTimeMin, StepTimeMax] is commanded
	ErrStepTime = errors.New("windfreak: step time must be between 4 ms and 10 s")

	// ErrChannel is generated when a channel other than 0 or 1 is addressed
	ErrChannel = errors.New("windfreak: channel must be 0 or 1")
)

// TriggerMode describes what the synthesizer does with its external trigger input
type TriggerMode int

// trigger modes understood by the hardware
const (
	TriggerNone TriggerMode = iota
	TriggerFullSweep
	TriggerStepSweep
)

func (t TriggerMode) String() string {
	switch t {
	case TriggerNone:
		return "no_trigger"
	case TriggerFullSweep:
		return "full_sweep"
	case TriggerStepSweep:
		return "step_sweep"
	}
	return fmt.Sprintf("TriggerMode(%d)", int(t))
}

// ParseTriggerMode converts a config string to a TriggerMode
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch strings.ToLower(s) {
	case "no_trigger", "none", "":
		return TriggerNone, nil
	case "full_sweep":
		return TriggerFullSweep, nil
	case "step_sweep":
		return TriggerStepSweep, nil
	}
	return TriggerNone, fmt.Errorf("windfreak: unknown trigger mode %q", s)
}

// makeSerConf makes a new serial.Config with correct parity, baud, etc, set.
func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        115200,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 1 * time.Second}
}

// SynthHD represents a SynthHD two channel synthesizer
type SynthHD struct {
	pool *comm.Pool
}

// NewSynthHD returns a new SynthHD.  addr is the serial port the device
// enumerated on, e.g. /dev/ttyACM0.
func NewSynthHD(addr string) *SynthHD {
	maker := comm.SerialConnMaker(makeSerConf(addr))
	return &SynthHD{pool: comm.NewPool(1, 30*time.Second, maker)}
}

// writeCommands sends a batch of register writes in order
func (s *SynthHD) writeCommands(cmds []string) error {
	conn, err := s.pool.Get()
	if err != nil {
		return err
	}
	defer func() { s.pool.ReturnWithError(conn, err) }()
	_, err = io.WriteString(conn, strings.Join(cmds, ""))
	return err
}

// command formats one register write
func command(reg byte, format string, args ...interface{}) string {
	return string(reg) + fmt.Sprintf(format, args...)
}

// sweepCommands builds the register write sequence for a differential sweep.
// Channel 1 tracks channel 0 at the differential offset, so only channel 0's
// sweep bounds are programmed.
func sweepCommands(fLowHz, fHighHz, fStepHz, diffHz float64, stepTime time.Duration, mode TriggerMode) []string {
	return []string{
		command(regChannel, "%d", 0),
		command(regSweepLow, "%.6f", fLowHz/1e6),
		command(regSweepHigh, "%.6f", fHighHz/1e6),
		command(regSweepStep, "%.6f", fStepHz/1e6),
		command(regDiffMethod, "%d", 1),
		command(regDiffFreq, "%.6f", diffHz/1e6),
		command(regStepTime, "%.3f", float64(stepTime)/float64(time.Millisecond)),
		command(regTriggerFunc, "%d", int(mode)),
	}
}

// ConfigureDifferentialSweep programs a two channel sweep in which channel 1
// follows channel 0 at a fixed frequency offset.  Frequencies are in Hz and
// the step time in the range [StepTimeMin, StepTimeMax]; out of range step
// times are rejected before anything is written.
func (s *SynthHD) ConfigureDifferentialSweep(fLowHz, fHighHz, fStepHz, diffHz float64, stepTime time.Duration, mode TriggerMode) error {
	if stepTime < StepTimeMin || stepTime > StepTimeMax {
		return ErrStepTime
	}
	if mode < TriggerNone || mode > TriggerStepSweep {
		return fmt.Errorf("windfreak: invalid trigger mode %d", int(mode))
	}
	return s.writeCommands(sweepCommands(fLowHz, fHighHz, fStepHz, diffHz, stepTime, mode))
}

// SetTriggerMode sets the function of the external trigger input
func (s *SynthHD) SetTriggerMode(mode TriggerMode) error {
	if mode < TriggerNone || mode > TriggerStepSweep {
		return fmt.Errorf("windfreak: invalid trigger mode %d", int(mode))
	}
	return s.writeCommands([]string{command(regTriggerFunc, "%d", int(mode))})
}

// Enable switches on the RF output of the given channel
func (s *SynthHD) Enable(channel int) error {
	return s.setEnable(channel, 1)
}

// Disable switches off the RF output of the given channel
func (s *SynthHD) Disable(channel int) error {
	return s.setEnable(channel, 0)
}

func (s *SynthHD) setEnable(channel, on int) error {
	if channel != 0 && channel != 1 {
		return ErrChannel
	}
	return s.writeCommands([]string{
		command(regChannel, "%d", channel),
		command(regRFEnable, "%d", on),
	})
}

// SetFrequency sets the output frequency of the given channel in Hz
func (s *SynthHD) SetFrequency(channel int, hz float64) error {
	if channel != 0 && channel != 1 {
		return ErrChannel
	}
	return s.writeCommands([]string{
		command(regChannel, "%d", channel),
		command(regFrequency, "%.6f", hz/1e6),
	})
}

// SetPower sets the output power of the given channel in dBm
func (s *SynthHD) SetPower(channel int, dBm float64) error {
	if channel != 0 && channel != 1 {
		return ErrChannel
	}
	return s.writeCommands([]string{
		command(regChannel, "%d", channel),
		command(regPower, "%.3f", dBm),
	})
}

// EnableSweep starts or stops the continuous frequency sweep
func (s *SynthHD) EnableSweep(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return s.writeCommands([]string{command(regSweepRun, "%d", v)})
}

// Shutdown stops the sweep, parks both outputs at minimum power, disables
// them, and releases the serial port
func (s *SynthHD) Shutdown() error {
	err := s.EnableSweep(false)
	if err != nil {
		return err
	}
	for _, ch := range []int{0, 1} {
		if err := s.SetPower(ch, MinPower); err != nil {
			return err
		}
		if err := s.Disable(ch); err != nil {
			return err
		}
	}
	return s.Close()
}

// Close releases the serial port.  Safe to call if the synthesizer was
// never reachable.
func (s *SynthHD) Close() error {
	return s.pool.CloseAll()
}
