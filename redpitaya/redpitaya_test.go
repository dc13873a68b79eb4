package redpitaya

import (
	"math"
	"testing"
	"time"

	"github.com/quentinglorieux/Bragg-omega/util"
)

func TestPulseParamsManualExample(t *testing.T) {
	// the 0.748 s period arises from the reference sweep:
	// (2500 MHz - 800 MHz) / 5 MHz * 2 ms * 1.1
	p, err := pulseParams(1.8, 0.0, 748*time.Millisecond, 90)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.frequency-1/0.748) > 1e-9 {
		t.Errorf("expected frequency %f, got %f", 1/0.748, p.frequency)
	}
	if p.amplitude != 0.9 {
		t.Errorf("expected amplitude 0.9, got %f", p.amplitude)
	}
	if p.offset != 0.9 {
		t.Errorf("expected offset 0.9, got %f", p.offset)
	}
	if p.ratio != 0.9 {
		t.Errorf("expected duty ratio 0.9, got %f", p.ratio)
	}
}

func TestPulseParamsBipolarLevels(t *testing.T) {
	p, err := pulseParams(1.0, -1.0, time.Second, 50)
	if err != nil {
		t.Fatal(err)
	}
	if p.amplitude != 1.0 || p.offset != 0.0 {
		t.Errorf("expected amplitude 1 offset 0, got %f %f", p.amplitude, p.offset)
	}
}

func TestSetTriggerPulseRejectsBadDuty(t *testing.T) {
	s := NewSignalGenerator("localhost:1") // validation fires before any dial
	for _, duty := range []float64{-1, 100.5} {
		if err := s.SetTriggerPulse(1.8, 0, time.Second, duty); err != ErrDutyCycle {
			t.Errorf("duty %f: expected ErrDutyCycle, got %v", duty, err)
		}
	}
}

func TestSetTriggerPulseRejectsBadPeriod(t *testing.T) {
	s := NewSignalGenerator("localhost:1")
	for _, period := range []time.Duration{0, -time.Second} {
		if err := s.SetTriggerPulse(1.8, 0, period, 50); err != ErrPeriod {
			t.Errorf("period %v: expected ErrPeriod, got %v", period, err)
		}
	}
}

func TestDCClampRange(t *testing.T) {
	if out := util.Clamp(2.5, DCMin, DCMax); out != DCMax {
		t.Errorf("expected 2.5 V to clamp to %f, got %f", DCMax, out)
	}
	if out := util.Clamp(-0.3, DCMin, DCMax); out != DCMin {
		t.Errorf("expected -0.3 V to clamp to %f, got %f", DCMin, out)
	}
}
