// Package muquans provides an interface to Muquans SML-series seed lasers
// and their EDFA power stage.  The controller runs a small remote shell on
// the telnet port; every operation is one sml780_tool invocation.
package muquans

import (
	"fmt"
	"io"
	"time"

	"github.com/quentinglorieux/Bragg-omega/comm"
)

const (
	// PowerMin and PowerMax bound the EDFA power setpoint accepted by the
	// controller
	PowerMin = 0.0
	PowerMax = 2.5

	// settle is how long the EDFA needs after shutdown before the seed may
	// be switched off
	settle = 1 * time.Second

	timeout = 5 * time.Second
)

// ErrPowerRange is generated when an EDFA power setpoint outside
// [PowerMin, PowerMax] is commanded
var ErrPowerRange = fmt.Errorf("muquans: EDFA power must be in the range [%.1f, %.1f]", PowerMin, PowerMax)

// Laser represents the seed laser + EDFA assembly
type Laser struct {
	pool *comm.Pool

	emission bool
	power    float64
}

// NewLaser returns a new Laser.  addr is the host:port of the controller's
// telnet interface, conventionally port 23.
func NewLaser(addr string) *Laser {
	maker := comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	return &Laser{pool: comm.NewPool(1, 30*time.Second, maker)}
}

// Connect verifies the controller is reachable by opening (and pooling) a
// connection.  Subsequent commands reuse it.
func (l *Laser) Connect() error {
	conn, err := l.pool.Get()
	if err != nil {
		return err
	}
	l.pool.Put(conn)
	return nil
}

// writeRead sends one shell command and returns the single response line
func (l *Laser) writeRead(cmd string) (string, error) {
	conn, err := l.pool.Get()
	if err != nil {
		return "", err
	}
	defer func() { l.pool.ReturnWithError(conn, err) }()
	var wrap io.ReadWriter
	wrap, err = comm.NewTimeout(conn, timeout)
	if err != nil {
		return "", err
	}
	wrap = comm.NewTerminator(wrap, '\n', '\n')
	_, err = io.WriteString(wrap, cmd)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 256)
	var n int
	n, err = wrap.Read(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// SeedOn enables the seed laser diode current
func (l *Laser) SeedOn() error {
	_, err := l.writeRead("sml780_tool Enable_Current_Laser_Diode on")
	if err != nil {
		return err
	}
	l.emission = true
	return nil
}

// SeedOff disables the seed laser diode current
func (l *Laser) SeedOff() error {
	_, err := l.writeRead("sml780_tool Enable_Current_Laser_Diode off")
	if err != nil {
		return err
	}
	l.emission = false
	return nil
}

// SetPower sets the EDFA power setpoint.  Values outside
// [PowerMin, PowerMax] are rejected without touching the device or the
// cached setpoint.
func (l *Laser) SetPower(power float64) error {
	if power < PowerMin || power > PowerMax {
		return ErrPowerRange
	}
	_, err := l.writeRead(fmt.Sprintf("sml780_tool edfa_set %v", power))
	if err != nil {
		return err
	}
	l.power = power
	return nil
}

// CurrentPower returns the last EDFA power setpoint accepted by the device
func (l *Laser) CurrentPower() float64 {
	return l.power
}

// Emission returns true if the seed diode was last commanded on
func (l *Laser) Emission() bool {
	return l.emission
}

// ShutdownEDFA powers down the EDFA stage
func (l *Laser) ShutdownEDFA() error {
	_, err := l.writeRead("sml780_tool edfa_shutdown")
	if err != nil {
		return err
	}
	l.power = 0
	return nil
}

// Shutdown powers down the EDFA, waits for it to settle, then switches the
// seed off.  The ordering is a hardware requirement; killing the seed with
// the amplifier pumped can damage the fiber stage.
func (l *Laser) Shutdown() error {
	err := l.ShutdownEDFA()
	if err != nil {
		return err
	}
	time.Sleep(settle)
	return l.SeedOff()
}

// Close releases the connection to the controller.  It is safe to call if
// the laser was never reachable.
func (l *Laser) Close() error {
	return l.pool.CloseAll()
}
