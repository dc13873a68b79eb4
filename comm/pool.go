package comm

import (
	"io"
	"sync"
	"time"
)

// CreationFunc is a function which returns a new "connection" to something.
// A closure should be used to encapsulate the variables and functions needed.
type CreationFunc func() (io.ReadWriteCloser, error)

// Pool is a communication pool which holds one or more connections to a
// device.  Connections are opened lazily, reused while the device is busy,
// and closed after they have all been idle for the reclaim timeout.  It is
// concurrent safe.  Pools must be created with NewPool.
type Pool struct {
	mu      sync.Mutex
	maxSize int
	onLease int
	timeout time.Duration
	conns   chan io.ReadWriteCloser
	timer   *time.Timer
	maker   CreationFunc

	reclaiming bool
}

// NewPool creates a new Pool of up to maxSize connections which are freed
// after timeout of disuse
func NewPool(maxSize int, timeout time.Duration, maker CreationFunc) *Pool {
	p := &Pool{
		maxSize: maxSize,
		timeout: timeout,
		conns:   make(chan io.ReadWriteCloser, maxSize),
		timer:   time.NewTimer(timeout),
		maker:   maker,
	}
	p.timer.Stop() // nothing to reclaim yet
	return p
}

// Get retrieves a connection from the pool, opening a new one if none is
// idle and the pool is not yet at capacity, or blocking until one is
// returned if it is.  The consumer should not cast the return value to its
// concrete type.  When done, return it with Put or ReturnWithError, or
// discard it with Destroy if it has gone bad.  A connection obtained along
// with a non-nil error must not be returned to the pool.
func (p *Pool) Get() (io.ReadWriter, error) {
	p.timer.Stop()

	p.mu.Lock()
	if len(p.conns) > 0 || p.onLease == p.maxSize {
		p.mu.Unlock()
		ret := <-p.conns
		p.mu.Lock()
		p.onLease++
		p.mu.Unlock()
		return ret, nil
	}
	defer p.mu.Unlock()
	c, err := p.maker()
	if err == nil {
		p.onLease++
	}
	return c, err
}

// Put restores a connection to the pool for reuse.  Junk connections (ones
// that always error) should be Destroy()'d instead.
func (p *Pool) Put(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	p.mu.Lock()
	p.onLease--
	p.conns <- rwc
	idle := len(p.conns) == p.maxSize
	p.mu.Unlock()
	if idle {
		p.startReclaim()
	}
}

// Destroy immediately closes and forgets a connection leased from the pool.
// This should be used instead of Put if the connection has gone bad.
func (p *Pool) Destroy(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	rwc.Close()
	p.mu.Lock()
	p.onLease--
	p.mu.Unlock()
}

// ReturnWithError puts the connection back in the pool if err is nil and
// destroys it otherwise.  It exists to make the usual
// defer-cleanup-with-named-error pattern a one-liner.
func (p *Pool) ReturnWithError(rw io.ReadWriter, err error) {
	if rw == nil {
		return
	}
	if err != nil {
		p.Destroy(rw)
		return
	}
	p.Put(rw)
}

// Size returns the number of connections in the pool, or given out from it
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns) + p.onLease
}

// Active returns the number of connections owned by the pool that are
// currently given out
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onLease
}

// CloseAll closes every idle connection in the pool.  Leased connections are
// not touched; callers are expected to stop using the pool after CloseAll.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	for len(p.conns) > 0 {
		c := <-p.conns
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// startReclaim arms the idle timer; when it fires with the pool still fully
// idle, all pooled connections are closed
func (p *Pool) startReclaim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timer.Reset(p.timeout)
	if p.reclaiming {
		// the drain goroutine is already parked on the timer; re-arming it is enough
		return
	}
	p.reclaiming = true
	go func() {
		<-p.timer.C
		p.mu.Lock()
		for len(p.conns) > 0 {
			c := <-p.conns
			c.Close()
		}
		p.reclaiming = false
		p.mu.Unlock()
	}()
}
