/*Package comm provides transport primitives for communication with lab hardware.

Most devices in this repository speak a line-oriented protocol over TCP or
serial.  The pieces here compose as follows:

	1.  use BackingOffTCPConnMaker or SerialConnMaker to get a CreationFunc
	2.  feed it to NewPool, which lazily opens connections and reclaims
		them after an idle period
	3.  per transaction, Get a connection from the pool and wrap it with
		NewTimeout and NewTerminator as appropriate for the device's
		framing, then return it with ReturnWithError

The wrappers are cheap and are intended to be made fresh for each
request/response exchange.
*/
package comm

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	// ErrNotConnected is generated when an exchange is attempted against a
	// device whose connection could not be established
	ErrNotConnected = errors.New("comm: not connected to remote")

	// ErrNoDeadlineSupport is generated when NewTimeout is used on a
	// connection that cannot set deadlines
	ErrNoDeadlineSupport = errors.New("comm: connection does not support deadlines")
)

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}

// BackingOffTCPConnMaker returns a CreationFunc which dials addr over TCP,
// retrying with exponential backoff.  Some instruments (notably the laser
// controller) reject connections when thrashed, so the first interval is
// kept short and growth is capped at one second.
func BackingOffTCPConnMaker(addr string, timeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		var conn net.Conn
		op := func() error {
			var err error
			conn, err = TCPSetup(addr, timeout)
			if err != nil {
				errS := strings.ToLower(err.Error())
				if strings.Contains(errS, "refused") {
					return backoff.Permanent(err)
				}
				return err
			}
			return nil
		}
		err := backoff.Retry(op, &backoff.ExponentialBackOff{
			InitialInterval:     25 * time.Millisecond,
			RandomizationFactor: 0.,
			Multiplier:          2.,
			MaxInterval:         1 * time.Second,
			MaxElapsedTime:      3 * time.Second,
			Clock:               backoff.SystemClock})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// SerialConnMaker returns a CreationFunc which opens the port described by cfg
func SerialConnMaker(cfg *serial.Config) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(cfg)
	}
}

type deadliner interface {
	SetDeadline(time.Time) error
}

type timeoutWrapper struct {
	rw      io.ReadWriter
	d       deadliner
	timeout time.Duration
}

// NewTimeout wraps a ReadWriter such that each Read and Write call bumps the
// connection deadline forward by timeout.  The underlying connection must
// support SetDeadline or an error is returned.
func NewTimeout(rw io.ReadWriter, timeout time.Duration) (io.ReadWriter, error) {
	d, ok := rw.(deadliner)
	if !ok {
		return rw, ErrNoDeadlineSupport
	}
	return &timeoutWrapper{rw: rw, d: d, timeout: timeout}, nil
}

func (t *timeoutWrapper) Read(p []byte) (int, error) {
	err := t.d.SetDeadline(time.Now().Add(t.timeout))
	if err != nil {
		return 0, err
	}
	return t.rw.Read(p)
}

func (t *timeoutWrapper) Write(p []byte) (int, error) {
	err := t.d.SetDeadline(time.Now().Add(t.timeout))
	if err != nil {
		return 0, err
	}
	return t.rw.Write(p)
}

type terminatorWrapper struct {
	rw io.ReadWriter
	rx byte
	tx byte
}

// NewTerminator wraps a ReadWriter such that writes have the Tx terminator
// appended and reads accumulate until the Rx terminator arrives (long
// responses, e.g. traces, span several TCP segments), with the terminator
// and any carriage return preceding it stripped.
func NewTerminator(rw io.ReadWriter, rx, tx byte) io.ReadWriter {
	return &terminatorWrapper{rw: rw, rx: rx, tx: tx}
}

func (t *terminatorWrapper) Read(p []byte) (int, error) {
	n := 0
	for {
		m, err := t.rw.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
		if n > 0 && p[n-1] == t.rx {
			break
		}
		if n == len(p) {
			break
		}
	}
	for n > 0 && (p[n-1] == t.rx || p[n-1] == '\r') {
		n--
	}
	return n, nil
}

func (t *terminatorWrapper) Write(p []byte) (int, error) {
	buf := make([]byte, len(p)+1)
	copy(buf, p)
	buf[len(p)] = t.tx
	n, err := t.rw.Write(buf)
	if n == len(buf) {
		n--
	}
	return n, err
}
