// Package scpi provides primitives for working with devices that
// have SCPI interfaces
package scpi

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/quentinglorieux/Bragg-omega/comm"
)

const (
	timeout = 5 * time.Second

	// tcpFrameSize is a sufficient buffer for any response that fits in one
	// ethernet frame, which covers everything except trace payloads
	tcpFrameSize = 1500

	// traceBufSize is used for responses that may span multiple frames
	traceBufSize = 1 << 16
)

// SCPI is a type for encapsulating SCPI communication
type SCPI struct {
	Pool *comm.Pool

	// Handshaking indicates if the communication shall append an error query
	// to every set operation to ensure the device accepted the input
	Handshaking bool
}

// Connect verifies the instrument is reachable by opening (and pooling) a
// connection.  Subsequent commands reuse it.
func (s *SCPI) Connect() error {
	conn, err := s.Pool.Get()
	if err != nil {
		return err
	}
	s.Pool.Put(conn)
	return nil
}

// exchange joins cmds with spaces, sends them, and if read is true returns
// the raw response with framing stripped
func (s *SCPI) exchange(read bool, bufSize int, cmds ...string) ([]byte, error) {
	conn, err := s.Pool.Get()
	if err != nil {
		return nil, err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	var wrap io.ReadWriter
	wrap, err = comm.NewTimeout(conn, timeout)
	if err != nil {
		return nil, err
	}
	wrap = comm.NewTerminator(wrap, '\n', '\n')
	if s.Handshaking {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
		read = true
	}
	_, err = io.WriteString(wrap, strings.Join(cmds, " "))
	if err != nil {
		return nil, err
	}
	if !read {
		return nil, nil
	}
	buf := make([]byte, bufSize)
	var n int
	n, err = wrap.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Write sends a command to the device.  If s.Handshaking is true, an error
// query rides along and a non +0 reply is surfaced as an error.  It is
// assumed this is used for set operations and not get.
func (s *SCPI) Write(cmds ...string) error {
	resp, err := s.exchange(false, tcpFrameSize, cmds...)
	if err != nil {
		return err
	}
	if s.Handshaking {
		str := string(resp)
		if !strings.HasPrefix(str, "+0") {
			return fmt.Errorf(str)
		}
	}
	return nil
}

// WriteRead is write, but with a read call after.  It is assumed that "get"
// calls use this underlying mechanism.
func (s *SCPI) WriteRead(cmds ...string) ([]byte, error) {
	resp, err := s.exchange(true, tcpFrameSize, cmds...)
	if err != nil {
		return nil, err
	}
	if s.Handshaking {
		idx := strings.LastIndexByte(string(resp), ';')
		if idx == -1 {
			return resp, nil
		}
		errS := string(resp[idx+1:])
		if !strings.HasPrefix(errS, "+0") {
			return resp, fmt.Errorf(errS)
		}
		return resp[:idx], nil
	}
	return resp, nil
}

// ReadString sends a command to the device, then reads the response
// and returns it as a decoded ASCII or UTF-8 string
func (s *SCPI) ReadString(cmds ...string) (string, error) {
	resp, err := s.WriteRead(cmds...)
	return string(resp), err
}

// ReadLarge is ReadString with a buffer large enough for trace payloads
func (s *SCPI) ReadLarge(cmds ...string) (string, error) {
	resp, err := s.exchange(true, traceBufSize, cmds...)
	return string(resp), err
}

// ReadFloat sends a command to the device, then reads the
// response and parses it as a floating point value
func (s *SCPI) ReadFloat(cmds ...string) (float64, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

// ReadInt sends a command to the device, then reads the
// response and parses it as an integer
func (s *SCPI) ReadInt(cmds ...string) (int, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

// PopError gets a single error from the queue on the device
func (s *SCPI) PopError() error {
	str, err := s.ReadString(":SYSTem:ERRor?")
	if err != nil {
		return err
	}
	if strings.HasPrefix(str, "+0") || strings.HasPrefix(str, "0,") {
		return nil
	}
	return fmt.Errorf(str)
}

// AllErrors drains the device's error queue and returns the contents.  A
// transport failure ends the drain, with the failure as the last entry;
// only an explicit empty-queue reply means the queue is empty.
func (s *SCPI) AllErrors() []error {
	var errs []error
	for {
		str, err := s.ReadString(":SYSTem:ERRor?")
		if err != nil {
			return append(errs, err)
		}
		if strings.HasPrefix(str, "+0") || strings.HasPrefix(str, "0,") {
			return errs
		}
		errs = append(errs, fmt.Errorf(str))
	}
}
