package registry

import (
	"net"
	"sync"

	vterr "vtrelay/internal/errors"
	"vtrelay/internal/metrics"
	"vtrelay/internal/session"
	"vtrelay/util"
)

// Conn is one registered terminal connection.  Writes are serialised by
// a per-connection mutex, so concurrent commands to the same terminal
// never interleave on the wire.
type Conn struct {
	ip       string
	nc       net.Conn
	outbound bool
	metrics  *metrics.Collector

	wmu sync.Mutex

	dmu     sync.Mutex
	pending session.Directive

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ip string, nc net.Conn, outbound bool, m *metrics.Collector) *Conn {
	return &Conn{
		ip:       ip,
		nc:       nc,
		outbound: outbound,
		metrics:  m,
		done:     make(chan struct{}),
	}
}

// IP returns the terminal address the connection is registered under.
func (c *Conn) IP() string { return c.ip }

// Outbound reports whether the registry dialed this connection.
func (c *Conn) Outbound() bool { return c.outbound }

// RemoteAddr returns the peer address of the underlying socket.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Send writes all parts as one contiguous logical write.  Failures are
// reported as ErrConnectionLost.
func (c *Conn) Send(parts ...[]byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.sendLocked(parts)
}

// Command writes parts and, once they are on the wire, posts d for the
// connection's handler to apply before it processes the next input.
func (c *Conn) Command(d session.Directive, parts ...[]byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.sendLocked(parts); err != nil {
		return err
	}
	if !d.Empty() {
		c.dmu.Lock()
		c.pending = c.pending.Merge(d)
		c.dmu.Unlock()
	}
	return nil
}

func (c *Conn) sendLocked(parts [][]byte) error {
	n, err := util.WriteAll(c.nc, parts...)
	c.metrics.BytesSent(int64(n))
	if err != nil {
		return vterr.ConnectionLost(c.ip, "write", err)
	}
	return nil
}

// TakeDirective returns and clears the pending directive.
func (c *Conn) TakeDirective() session.Directive {
	c.dmu.Lock()
	defer c.dmu.Unlock()
	d := c.pending
	c.pending = session.Directive{}
	return d
}

// Read reads terminal input.  Only the connection's handler reads.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.nc.Read(p)
	c.metrics.BytesReceived(int64(n))
	return n, err
}

// Close closes the socket.  It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.nc.Close()
		c.metrics.TerminalDisconnected()
		close(c.done)
	})
	return err
}

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} { return c.done }
