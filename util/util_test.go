package util_test

import (
	"testing"
	"time"

	"github.com/quentinglorieux/Bragg-omega/util"
)

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 1.8
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != high {
		t.Errorf("expected out of range value %f to be clipped to %f, got %f", input, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 1.8
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != low {
		t.Errorf("expected out of range value %f to be clipped to %f, got %f", input, low, clamped)
	}
}

func TestClampPassthrough(t *testing.T) {
	if out := util.Clamp(0.9, 0, 1.8); out != 0.9 {
		t.Errorf("expected in range value to pass through, got %f", out)
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}
