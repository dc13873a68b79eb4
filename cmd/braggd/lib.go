package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/quentinglorieux/Bragg-omega/bragg"
	"github.com/quentinglorieux/Bragg-omega/muquans"
	"github.com/quentinglorieux/Bragg-omega/redpitaya"
	"github.com/quentinglorieux/Bragg-omega/rigol"
	"github.com/quentinglorieux/Bragg-omega/tektronix"
	"github.com/quentinglorieux/Bragg-omega/util"
	"github.com/quentinglorieux/Bragg-omega/wavemeter"
	"github.com/quentinglorieux/Bragg-omega/windfreak"
)

// ExperimentParams is the yaml-facing form of bragg.Config.  The step time
// is in milliseconds, the synthesizer's native sweep unit.
type ExperimentParams struct {
	EDFAPower    float64 `koanf:"edfaPower" yaml:"edfaPower"`
	SweepLowHz   float64 `koanf:"sweepLowHz" yaml:"sweepLowHz"`
	SweepHighHz  float64 `koanf:"sweepHighHz" yaml:"sweepHighHz"`
	SweepStepHz  float64 `koanf:"sweepStepHz" yaml:"sweepStepHz"`
	DiffFreqHz   float64 `koanf:"diffFreqHz" yaml:"diffFreqHz"`
	StepTimeMs   float64 `koanf:"stepTimeMs" yaml:"stepTimeMs"`
	TriggerHigh  float64 `koanf:"triggerHigh" yaml:"triggerHigh"`
	TriggerLow   float64 `koanf:"triggerLow" yaml:"triggerLow"`
	TriggerDuty  float64 `koanf:"triggerDuty" yaml:"triggerDuty"`
	DCVoltage    float64 `koanf:"dcVoltage" yaml:"dcVoltage"`
	CenterFreqHz float64 `koanf:"centerFreqHz" yaml:"centerFreqHz"`
	RBWHz        float64 `koanf:"rbwHz" yaml:"rbwHz"`
	VBWHz        float64 `koanf:"vbwHz" yaml:"vbwHz"`
}

// experimentConfig converts the yaml-facing parameters to a bragg.Config
func (p ExperimentParams) experimentConfig() bragg.Config {
	return bragg.Config{
		EDFAPower:    p.EDFAPower,
		SweepLowHz:   p.SweepLowHz,
		SweepHighHz:  p.SweepHighHz,
		SweepStepHz:  p.SweepStepHz,
		DiffFreqHz:   p.DiffFreqHz,
		StepTime:     util.SecsToDuration(p.StepTimeMs / 1e3),
		TriggerHigh:  p.TriggerHigh,
		TriggerLow:   p.TriggerLow,
		TriggerDuty:  p.TriggerDuty,
		DCVoltage:    p.DCVoltage,
		CenterFreqHz: p.CenterFreqHz,
		RBWHz:        p.RBWHz,
		VBWHz:        p.VBWHz,
	}
}

// defaultParams mirrors bragg.DefaultConfig
func defaultParams() ExperimentParams {
	cfg := bragg.DefaultConfig()
	return ExperimentParams{
		EDFAPower:    cfg.EDFAPower,
		SweepLowHz:   cfg.SweepLowHz,
		SweepHighHz:  cfg.SweepHighHz,
		SweepStepHz:  cfg.SweepStepHz,
		DiffFreqHz:   cfg.DiffFreqHz,
		StepTimeMs:   cfg.StepTime.Seconds() * 1e3,
		TriggerHigh:  cfg.TriggerHigh,
		TriggerLow:   cfg.TriggerLow,
		TriggerDuty:  cfg.TriggerDuty,
		DCVoltage:    cfg.DCVoltage,
		CenterFreqHz: cfg.CenterFreqHz,
		RBWHz:        cfg.RBWHz,
		VBWHz:        cfg.VBWHz,
	}
}

// Config holds everything braggd needs to talk to the bench
type Config struct {
	// LaserAddr is the host:port of the laser controller's telnet shell
	LaserAddr string `koanf:"laserAddr" yaml:"laserAddr"`

	// SynthPort is the serial port the SynthHD enumerated on
	SynthPort string `koanf:"synthPort" yaml:"synthPort"`

	// GenType selects the signal generator driver, "redpitaya" or
	// "tektronix"
	GenType string `koanf:"genType" yaml:"genType"`

	// GenAddr is the host:port of the generator's SCPI socket
	GenAddr string `koanf:"genAddr" yaml:"genAddr"`

	// SAAddr is the host:port of the spectrum analyzer's SCPI socket
	SAAddr string `koanf:"saAddr" yaml:"saAddr"`

	// WavemeterURL is the root of the wavemeter HTTP API
	WavemeterURL string `koanf:"wavemeterURL" yaml:"wavemeterURL"`

	// WavemeterChannel is the fiber switch channel the seed is patched to
	WavemeterChannel int `koanf:"wavemeterChannel" yaml:"wavemeterChannel"`

	// HTTPAddr is the address the serve command listens on
	HTTPAddr string `koanf:"httpAddr" yaml:"httpAddr"`

	// Steps and DelaySeconds parameterize the acquisition loop
	Steps        int     `koanf:"steps" yaml:"steps"`
	DelaySeconds float64 `koanf:"delaySeconds" yaml:"delaySeconds"`

	// Experiment holds the physics parameters
	Experiment ExperimentParams `koanf:"experiment" yaml:"experiment"`
}

func defaultConfig() Config {
	return Config{
		LaserAddr:        "192.168.1.10:23",
		SynthPort:        "/dev/ttyACM0",
		GenType:          "redpitaya",
		GenAddr:          "192.168.1.100:5000",
		SAAddr:           "192.168.1.101:5555",
		WavemeterURL:     "http://localhost:5000",
		WavemeterChannel: 3,
		HTTPAddr:         ":8000",
		Steps:            5,
		DelaySeconds:     2,
		Experiment:       defaultParams(),
	}
}

// buildGenerator selects the signal generator driver named in the config
func buildGenerator(c Config) (bragg.SignalGenerator, error) {
	switch strings.ToLower(c.GenType) {
	case "", "redpitaya":
		return redpitaya.NewSignalGenerator(c.GenAddr), nil
	case "tektronix", "afg3000c":
		return tektronix.NewAFG3000C(c.GenAddr), nil
	}
	return nil, fmt.Errorf("unknown genType %q, expected redpitaya or tektronix", c.GenType)
}

// buildController wires the real drivers into a controller
func buildController(c Config, logger *log.Logger) (*bragg.Controller, error) {
	gen, err := buildGenerator(c)
	if err != nil {
		return nil, err
	}
	ctl := bragg.New(
		muquans.NewLaser(c.LaserAddr),
		windfreak.NewSynthHD(c.SynthPort),
		gen,
		rigol.NewDSA800(c.SAAddr),
		wavemeter.NewClient(c.WavemeterURL),
	)
	ctl.MeterChannel = c.WavemeterChannel
	ctl.Log = logger
	return ctl, nil
}
