// Package bragg orchestrates the Bragg spectroscopy experiment: one seed
// laser + EDFA, one RF synthesizer driving the AOMs, one two channel signal
// generator supplying the sweep trigger and the frequency control voltage,
// one spectrum analyzer in zero span, and one wavemeter.
//
// The controller owns one handle per instrument and sequences them through
// connect, configure, a stepped acquisition loop, and shutdown.  Every
// instrument call is synchronous; the only timing control is the caller
// supplied inter-step delay and the settle delays the devices themselves
// enforce.
package bragg

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"

	"github.com/quentinglorieux/Bragg-omega/rigol"
	"github.com/quentinglorieux/Bragg-omega/windfreak"
)

// RampMax is the top of the control voltage ramp commanded during a run
const RampMax = 1.8

// periodMargin widens the trigger pulse period beyond the sweep duration so
// the synthesizer is guaranteed to finish a full sweep within one pulse
const periodMargin = 1.1

// State tracks where the controller is in the experiment sequence
type State int

// experiment sequence states
const (
	StateIdle State = iota
	StateConnected
	StateConfigured
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateConfigured:
		return "configured"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrSequence is generated when a phase is entered out of order, e.g.
// Configure before ConnectAll
var ErrSequence = errors.New("bragg: experiment phases must run in order connect, configure, run")

// ErrBusy is generated when Run is called while another run holds the bench
var ErrBusy = errors.New("bragg: a run is already in progress")

// Laser is the capability the controller needs from the seed laser + EDFA
type Laser interface {
	Connect() error
	SeedOn() error
	SeedOff() error
	SetPower(float64) error
	Shutdown() error
	Close() error
}

// Synthesizer is the capability the controller needs from the RF sweep source
type Synthesizer interface {
	ConfigureDifferentialSweep(fLowHz, fHighHz, fStepHz, diffHz float64, stepTime time.Duration, mode windfreak.TriggerMode) error
	Shutdown() error
}

// SignalGenerator is the capability the controller needs from the trigger
// pulse / control voltage source
type SignalGenerator interface {
	Connect() error
	SetTriggerPulse(high, low float64, period time.Duration, dutyPct float64) error
	SetDCVoltage(float64) error
	DisableOutputs() error
	Close() error
}

// SpectrumAnalyzer is the capability the controller needs from the analyzer
type SpectrumAnalyzer interface {
	Connect() error
	SetCenterFrequency(hz float64) error
	SetRBWVBW(rbwHz, vbwHz float64) error
	EnableZeroSpan() error
	SetTrigger(rigol.TriggerSource, rigol.Slope) error
	StartSweep(continuous bool) error
	FetchTrace() (string, error)
	Close() error
}

// FrequencyMeter is the capability the controller needs from the wavemeter
type FrequencyMeter interface {
	Frequency(channel int) (float64, error)
}

// Config holds the tunable parameters of one experiment run.  It is
// consumed by Configure and never mutated afterward.
type Config struct {
	// EDFAPower is the amplifier power setpoint
	EDFAPower float64 `yaml:"edfaPower" json:"edfaPower"`

	// SweepLowHz, SweepHighHz and SweepStepHz describe the channel 0 RF sweep
	SweepLowHz  float64 `yaml:"sweepLowHz" json:"sweepLowHz"`
	SweepHighHz float64 `yaml:"sweepHighHz" json:"sweepHighHz"`
	SweepStepHz float64 `yaml:"sweepStepHz" json:"sweepStepHz"`

	// DiffFreqHz is the fixed offset channel 1 holds relative to channel 0
	DiffFreqHz float64 `yaml:"diffFreqHz" json:"diffFreqHz"`

	// StepTime is the dwell per sweep step
	StepTime time.Duration `yaml:"stepTime" json:"stepTime"`

	// TriggerHigh, TriggerLow and TriggerDuty describe the sweep trigger
	// pulse train
	TriggerHigh float64 `yaml:"triggerHigh" json:"triggerHigh"`
	TriggerLow  float64 `yaml:"triggerLow" json:"triggerLow"`
	TriggerDuty float64 `yaml:"triggerDuty" json:"triggerDuty"`

	// DCVoltage is the initial frequency control voltage
	DCVoltage float64 `yaml:"dcVoltage" json:"dcVoltage"`

	// CenterFreqHz, RBWHz and VBWHz configure the analyzer
	CenterFreqHz float64 `yaml:"centerFreqHz" json:"centerFreqHz"`
	RBWHz        float64 `yaml:"rbwHz" json:"rbwHz"`
	VBWHz        float64 `yaml:"vbwHz" json:"vbwHz"`
}

// DefaultConfig returns the parameter set of the reference run
func DefaultConfig() Config {
	return Config{
		EDFAPower:    1.2,
		SweepLowHz:   800e6,
		SweepHighHz:  2500e6,
		SweepStepHz:  5e6,
		DiffFreqHz:   10e6,
		StepTime:     4 * time.Millisecond,
		TriggerHigh:  1.8,
		TriggerLow:   0.0,
		TriggerDuty:  90,
		DCVoltage:    1.5,
		CenterFreqHz: 10e6,
		RBWHz:        1e3,
		VBWHz:        1e3,
	}
}

// SweepDuration returns how long one full RF sweep takes with this config
func (c Config) SweepDuration() time.Duration {
	steps := (c.SweepHighHz - c.SweepLowHz) / c.SweepStepHz
	return time.Duration(steps * float64(c.StepTime))
}

// StepResult is the record produced by one step of the acquisition loop
type StepResult struct {
	// Step is the zero based step index
	Step int `yaml:"step" json:"step"`

	// Voltage is the control voltage commanded for this step
	Voltage float64 `yaml:"voltage" json:"voltage"`

	// Frequency is the wavemeter reading in Hz, nil if the read failed
	Frequency *float64 `yaml:"frequency" json:"frequency"`

	// Trace is the analyzer trace payload, empty if the fetch failed
	Trace string `yaml:"trace" json:"trace"`
}

// Controller sequences the experiment across the five instruments
type Controller struct {
	Laser Laser
	Synth Synthesizer
	Gen   SignalGenerator
	SA    SpectrumAnalyzer
	Meter FrequencyMeter

	// MeterChannel is the wavemeter channel the seed laser is patched to
	MeterChannel int

	// Log, if non-nil, receives step progress and recorded gaps
	Log *log.Logger

	mu      sync.Mutex
	state   State
	running bool
	results []StepResult
}

// New returns a Controller over the given instruments
func New(laser Laser, synth Synthesizer, gen SignalGenerator, sa SpectrumAnalyzer, meter FrequencyMeter) *Controller {
	return &Controller{
		Laser:        laser,
		Synth:        synth,
		Gen:          gen,
		SA:           sa,
		Meter:        meter,
		MeterChannel: 3,
	}
}

// State reports where the controller is in the experiment sequence
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Results returns the records collected by the most recent run
func (c *Controller) Results() []StepResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StepResult, len(c.results))
	copy(out, c.results)
	return out
}

func (c *Controller) logf(level log.Level, msg string, kv ...interface{}) {
	if c.Log == nil {
		return
	}
	c.Log.Log(level, msg, kv...)
}

// ConnectAll establishes connections to the laser, signal generator, and
// spectrum analyzer, in that order.  The synthesizer and wavemeter need no
// connection phase.  There is no rollback on partial failure; every device
// is attempted and the per-device errors are combined.
func (c *Controller) ConnectAll() error {
	var err error
	if cerr := c.Laser.Connect(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("laser: %w", cerr))
	}
	if cerr := c.Gen.Connect(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("signal generator: %w", cerr))
	}
	if cerr := c.SA.Connect(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("spectrum analyzer: %w", cerr))
	}
	if err != nil {
		return err
	}
	c.setState(StateConnected)
	c.logf(log.InfoLevel, "all devices connected")
	return nil
}

// Configure programs every instrument from cfg.  The synthesizer must be
// configured before the signal generator: the trigger pulse period is
// derived from the sweep the synthesizer was just given.  The first error
// aborts configuration, since a partially applied parameter set couples
// devices inconsistently.
func (c *Controller) Configure(cfg Config) error {
	if c.State() == StateIdle {
		return ErrSequence
	}
	if err := c.Laser.SeedOn(); err != nil {
		return fmt.Errorf("laser: %w", err)
	}
	if err := c.Laser.SetPower(cfg.EDFAPower); err != nil {
		return fmt.Errorf("laser: %w", err)
	}
	err := c.Synth.ConfigureDifferentialSweep(
		cfg.SweepLowHz, cfg.SweepHighHz, cfg.SweepStepHz, cfg.DiffFreqHz,
		cfg.StepTime, windfreak.TriggerFullSweep)
	if err != nil {
		return fmt.Errorf("synthesizer: %w", err)
	}
	sweep := cfg.SweepDuration()
	period := time.Duration(periodMargin * float64(sweep))
	c.logf(log.InfoLevel, "sweep configured",
		"lowHz", cfg.SweepLowHz, "highHz", cfg.SweepHighHz, "duration", sweep, "pulsePeriod", period)
	if err := c.Gen.SetTriggerPulse(cfg.TriggerHigh, cfg.TriggerLow, period, cfg.TriggerDuty); err != nil {
		return fmt.Errorf("signal generator: %w", err)
	}
	if err := c.Gen.SetDCVoltage(cfg.DCVoltage); err != nil {
		return fmt.Errorf("signal generator: %w", err)
	}
	if err := c.SA.SetCenterFrequency(cfg.CenterFreqHz); err != nil {
		return fmt.Errorf("spectrum analyzer: %w", err)
	}
	if err := c.SA.SetRBWVBW(cfg.RBWHz, cfg.VBWHz); err != nil {
		return fmt.Errorf("spectrum analyzer: %w", err)
	}
	if err := c.SA.EnableZeroSpan(); err != nil {
		return fmt.Errorf("spectrum analyzer: %w", err)
	}
	if err := c.SA.SetTrigger(rigol.TriggerExternal, rigol.SlopePositive); err != nil {
		return fmt.Errorf("spectrum analyzer: %w", err)
	}
	c.setState(StateConfigured)
	return nil
}

// rampVoltage returns the control voltage for a step, ramping linearly from
// 0 to RampMax across the run.  A single step run emits 0 V.
func rampVoltage(step, numSteps int) float64 {
	if numSteps <= 1 {
		return 0
	}
	return float64(step) / float64(numSteps-1) * RampMax
}

// Run executes the acquisition loop.  Per step it commands the ramped
// control voltage, reads the wavemeter, arms and fetches a single triggered
// analyzer sweep, and sleeps delay before the next step.  Wavemeter and
// analyzer failures are recorded as gaps (nil frequency, empty trace) and
// the loop continues; a failure to command the control voltage aborts the
// run, since every subsequent record would be measured at an unknown
// setpoint.  Only one run may hold the bench at a time; a second caller
// gets ErrBusy rather than interleaving device commands.
func (c *Controller) Run(numSteps int, delay time.Duration) ([]StepResult, error) {
	c.mu.Lock()
	if c.state != StateConfigured {
		c.mu.Unlock()
		return nil, ErrSequence
	}
	if c.running {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()
	if numSteps < 1 {
		return nil, fmt.Errorf("bragg: numSteps must be at least 1, got %d", numSteps)
	}
	results := make([]StepResult, 0, numSteps)
	for step := 0; step < numSteps; step++ {
		voltage := rampVoltage(step, numSteps)
		c.logf(log.InfoLevel, "step", "n", step+1, "of", numSteps, "voltage", voltage)
		if err := c.Gen.SetDCVoltage(voltage); err != nil {
			return results, fmt.Errorf("step %d: control voltage: %w", step, err)
		}
		res := StepResult{Step: step, Voltage: voltage}
		freq, err := c.Meter.Frequency(c.MeterChannel)
		if err != nil {
			c.logf(log.WarnLevel, "wavemeter read failed", "step", step, "err", err)
		} else {
			res.Frequency = &freq
		}
		if err := c.SA.StartSweep(false); err != nil {
			c.logf(log.WarnLevel, "sweep arm failed", "step", step, "err", err)
		} else if trace, err := c.SA.FetchTrace(); err != nil {
			c.logf(log.WarnLevel, "trace fetch failed", "step", step, "err", err)
		} else {
			res.Trace = trace
		}
		results = append(results, res)
		if step != numSteps-1 {
			time.Sleep(delay)
		}
	}
	c.mu.Lock()
	c.results = results
	c.mu.Unlock()
	return results, nil
}

// Shutdown powers everything down in a fixed order: laser emission first
// (EDFA then seed, with the laser's own settle delay), then the RF sweep,
// then the signal generator outputs, then the connections.  It is safe to
// call at any point, including before ConnectAll; devices that were never
// reached report errors which are combined and returned, but every device
// is attempted.
func (c *Controller) Shutdown() error {
	var err error
	if serr := c.Laser.Shutdown(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("laser: %w", serr))
	}
	if serr := c.Synth.Shutdown(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("synthesizer: %w", serr))
	}
	if serr := c.Gen.DisableOutputs(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("signal generator: %w", serr))
	}
	if serr := c.SA.Close(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("spectrum analyzer: %w", serr))
	}
	if serr := c.Laser.Close(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("laser: %w", serr))
	}
	if serr := c.Gen.Close(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("signal generator: %w", serr))
	}
	c.setState(StateDone)
	return err
}
