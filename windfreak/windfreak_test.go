package windfreak

import (
	"strings"
	"testing"
	"time"
)

func TestSweepCommandSequence(t *testing.T) {
	cmds := sweepCommands(800e6, 2500e6, 5e6, 10e6, 2*time.Millisecond, TriggerFullSweep)
	expected := []string{
		"C0",
		"l800.000000",
		"u2500.000000",
		"s5.000000",
		"n1",
		"k10.000000",
		"t2.000",
		"w1",
	}
	if len(cmds) != len(expected) {
		t.Fatalf("expected %d register writes, got %d", len(expected), len(cmds))
	}
	for i := range cmds {
		if cmds[i] != expected[i] {
			t.Errorf("write %d: expected %q got %q", i, expected[i], cmds[i])
		}
	}
}

func TestSweepBoundsBeforeDifferentialSetup(t *testing.T) {
	cmds := strings.Join(sweepCommands(800e6, 2500e6, 5e6, 10e6, 2*time.Millisecond, TriggerFullSweep), "")
	if strings.Index(cmds, "n1") < strings.Index(cmds, "u2500") {
		t.Error("differential mode enabled before sweep bounds were programmed")
	}
}

func TestConfigureSweepRejectsBadStepTime(t *testing.T) {
	s := NewSynthHD("/dev/null") // validation fires before the port is opened
	for _, st := range []time.Duration{0, 3 * time.Millisecond, 11 * time.Second} {
		err := s.ConfigureDifferentialSweep(800e6, 2500e6, 5e6, 10e6, st, TriggerFullSweep)
		if err != ErrStepTime {
			t.Errorf("step time %v: expected ErrStepTime, got %v", st, err)
		}
	}
}

func TestChannelValidation(t *testing.T) {
	s := NewSynthHD("/dev/null")
	if err := s.Enable(2); err != ErrChannel {
		t.Errorf("expected ErrChannel for channel 2, got %v", err)
	}
	if err := s.SetPower(-1, 0); err != ErrChannel {
		t.Errorf("expected ErrChannel for channel -1, got %v", err)
	}
}

func TestParseTriggerMode(t *testing.T) {
	cases := map[string]TriggerMode{
		"no_trigger": TriggerNone,
		"full_sweep": TriggerFullSweep,
		"step_sweep": TriggerStepSweep,
	}
	for s, want := range cases {
		got, err := ParseTriggerMode(s)
		if err != nil {
			t.Errorf("%q: unexpected error %v", s, err)
		}
		if got != want {
			t.Errorf("%q: expected %v got %v", s, want, got)
		}
	}
	if _, err := ParseTriggerMode("bogus"); err == nil {
		t.Error("expected an error for an unknown trigger mode")
	}
}

func TestTriggerModeStrings(t *testing.T) {
	if TriggerFullSweep.String() != "full_sweep" {
		t.Errorf("got %q", TriggerFullSweep.String())
	}
}
