package rigol

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
)

func TestTriggerCommandsExternal(t *testing.T) {
	cmds := triggerCommands(TriggerExternal, SlopePositive)
	if len(cmds) != 2 {
		t.Fatalf("expected source + slope commands, got %v", cmds)
	}
	if cmds[0] != ":TRIGger:SEQuence:SOURce EXT" {
		t.Errorf("got %q", cmds[0])
	}
	if cmds[1] != ":TRIGger:SEQuence:EXTernal:SLOPe POS" {
		t.Errorf("got %q", cmds[1])
	}
}

func TestTriggerCommandsFreeRunOmitsSlope(t *testing.T) {
	cmds := triggerCommands(TriggerFree, SlopePositive)
	if len(cmds) != 1 {
		t.Fatalf("free run must not program a slope, got %v", cmds)
	}
}

// analyzerLoopback records commands and answers :FETCh? with a short trace
func analyzerLoopback(t *testing.T, heard chan<- string) string {
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
					line = strings.TrimSpace(line)
					heard <- line
					if strings.HasSuffix(line, "?") {
						io.WriteString(conn, "-48.2,-47.9,-48.0\n")
					}
				}
			}()
		}
	}()
	return ln.Addr().String()
}

func TestSingleSweepSendsArmThenImmediate(t *testing.T) {
	heard := make(chan string, 2)
	d := NewDSA800(analyzerLoopback(t, heard))
	if err := d.StartSweep(false); err != nil {
		t.Fatal("start sweep errored:", err)
	}
	if msg := <-heard; msg != ":INITiate:CONTinuous OFF" {
		t.Errorf("first command %q", msg)
	}
	if msg := <-heard; msg != ":INITiate:IMMediate" {
		t.Errorf("second command %q", msg)
	}
}

func TestContinuousSweepSendsNoImmediate(t *testing.T) {
	heard := make(chan string, 2)
	d := NewDSA800(analyzerLoopback(t, heard))
	if err := d.StartSweep(true); err != nil {
		t.Fatal("start sweep errored:", err)
	}
	if msg := <-heard; msg != ":INITiate:CONTinuous ON" {
		t.Errorf("first command %q", msg)
	}
	select {
	case msg := <-heard:
		t.Errorf("unexpected second command %q", msg)
	default:
	}
}

func TestFetchTrace(t *testing.T) {
	heard := make(chan string, 1)
	d := NewDSA800(analyzerLoopback(t, heard))
	trace, err := d.FetchTrace()
	if err != nil {
		t.Fatal("fetch errored:", err)
	}
	<-heard
	if trace != "-48.2,-47.9,-48.0" {
		t.Errorf("got trace %q", trace)
	}
}

func TestZeroSpanCommand(t *testing.T) {
	heard := make(chan string, 1)
	d := NewDSA800(analyzerLoopback(t, heard))
	if err := d.EnableZeroSpan(); err != nil {
		t.Fatal(err)
	}
	if msg := <-heard; msg != ":SENSe:FREQuency:SPAN 0" {
		t.Errorf("got %q", msg)
	}
}
