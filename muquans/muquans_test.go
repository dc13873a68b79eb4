package muquans_test

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/quentinglorieux/Bragg-omega/muquans"
)

// shellLoopback acks every sml780_tool invocation with "ok" and records it
func shellLoopback(t *testing.T, heard chan<- string) string {
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
					io.WriteString(conn, "ok\n")
				}
			}()
		}
	}()
	return ln.Addr().String()
}

func TestSetPowerRejectsOutOfRange(t *testing.T) {
	l := muquans.NewLaser("localhost:1") // never dialed for invalid input
	for _, power := range []float64{-0.1, 2.6, 100} {
		err := l.SetPower(power)
		if err != muquans.ErrPowerRange {
			t.Errorf("power %f: expected ErrPowerRange, got %v", power, err)
		}
		if l.CurrentPower() != 0 {
			t.Errorf("power %f: cached setpoint mutated to %f on rejected command", power, l.CurrentPower())
		}
	}
}

func TestSetPowerCommandsShell(t *testing.T) {
	heard := make(chan string, 1)
	l := muquans.NewLaser(shellLoopback(t, heard))
	err := l.SetPower(1.2)
	if err != nil {
		t.Fatal("set power errored:", err)
	}
	if msg := <-heard; msg != "sml780_tool edfa_set 1.2" {
		t.Errorf("device heard %q", msg)
	}
	if l.CurrentPower() != 1.2 {
		t.Errorf("cached power %f after accepted command", l.CurrentPower())
	}
}

func TestSeedOnOffTracksEmission(t *testing.T) {
	heard := make(chan string, 1)
	l := muquans.NewLaser(shellLoopback(t, heard))
	if err := l.SeedOn(); err != nil {
		t.Fatal("seed on errored:", err)
	}
	if msg := <-heard; msg != "sml780_tool Enable_Current_Laser_Diode on" {
		t.Errorf("device heard %q", msg)
	}
	if !l.Emission() {
		t.Error("emission flag not set after SeedOn")
	}
	if err := l.SeedOff(); err != nil {
		t.Fatal("seed off errored:", err)
	}
	<-heard
	if l.Emission() {
		t.Error("emission flag still set after SeedOff")
	}
}

func TestUnreachableLaserErrorsCleanly(t *testing.T) {
	l := muquans.NewLaser("localhost:1")
	if err := l.SeedOn(); err == nil {
		t.Error("expected an error commanding an unreachable laser")
	}
	if err := l.Close(); err != nil {
		t.Error("Close on a never-connected laser should no-op, got", err)
	}
}
