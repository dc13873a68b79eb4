package tektronix

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

// afgLoopback records commands heard on a fake instrument socket
func afgLoopback(t *testing.T, heard chan<- string) string {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal("could not listen, test aborted:", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				rdr := bufio.NewReader(conn)
				for {
					line, err := rdr.ReadString('\n')
					if err != nil {
						return
					}
					heard <- strings.TrimSpace(line)
				}
			}()
		}
	}()
	return ln.Addr().String()
}

func TestConnectResets(t *testing.T) {
	heard := make(chan string, 1)
	a := NewAFG3000C(afgLoopback(t, heard))
	if err := a.Connect(); err != nil {
		t.Fatal("connect errored:", err)
	}
	if msg := <-heard; msg != "*RST" {
		t.Errorf("expected a reset on connect, got %q", msg)
	}
}

func TestSetTriggerPulseCommands(t *testing.T) {
	heard := make(chan string, 6)
	a := NewAFG3000C(afgLoopback(t, heard))
	if err := a.SetTriggerPulse(1.8, 0, 748*time.Millisecond, 90); err != nil {
		t.Fatal("set trigger pulse errored:", err)
	}
	want := []string{
		"SOURce1:FUNCtion PULSe",
		"SOURce1:PULSe:PERiod 0.748",
		"SOURce1:PULSe:DCYCle 90",
		"SOURce1:VOLTage:HIGH 1.8",
		"SOURce1:VOLTage:LOW 0",
		"OUTPut1 ON",
	}
	for i, w := range want {
		if msg := <-heard; msg != w {
			t.Errorf("command %d: expected %q, got %q", i, w, msg)
		}
	}
}

func TestSetTriggerPulseRejectsBadParams(t *testing.T) {
	heard := make(chan string, 1)
	a := NewAFG3000C(afgLoopback(t, heard))
	if err := a.SetTriggerPulse(1.8, 0, 0, 90); err != ErrPeriod {
		t.Errorf("zero period: expected ErrPeriod, got %v", err)
	}
	if err := a.SetTriggerPulse(1.8, 0, time.Second, 101); err != ErrDutyCycle {
		t.Errorf("duty 101: expected ErrDutyCycle, got %v", err)
	}
	select {
	case msg := <-heard:
		t.Errorf("rejected parameters still sent %q", msg)
	default:
	}
}

func TestSetDCVoltageClamps(t *testing.T) {
	heard := make(chan string, 3)
	a := NewAFG3000C(afgLoopback(t, heard))
	if err := a.SetDCVoltage(12); err != nil {
		t.Fatal("set dc errored:", err)
	}
	<-heard // SOURce2:FUNCtion DC
	if msg := <-heard; msg != "SOURce2:VOLTage:OFFSet 5" {
		t.Errorf("expected the level clamped to 5 V, got %q", msg)
	}
}

func TestDisableOutputs(t *testing.T) {
	heard := make(chan string, 2)
	a := NewAFG3000C(afgLoopback(t, heard))
	if err := a.DisableOutputs(); err != nil {
		t.Fatal(err)
	}
	if msg := <-heard; msg != "OUTPut1 OFF" {
		t.Errorf("got %q", msg)
	}
	if msg := <-heard; msg != "OUTPut2 OFF" {
		t.Errorf("got %q", msg)
	}
}
