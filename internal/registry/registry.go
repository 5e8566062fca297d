// Package registry maps terminal IPs to their live connection.  A
// terminal that has connected in is reused for outbound commands; one
// that has not is dialed on demand, and concurrent requests for the
// same terminal share a single dial.
package registry

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	vterr "vtrelay/internal/errors"
	"vtrelay/internal/metrics"
	"vtrelay/internal/transport"
	"vtrelay/util"
)

// DefaultPort is the TCP port terminals listen and connect on.
const DefaultPort = 1001

const defaultDialTimeout = 10 * time.Second

// Options configures a Registry.
type Options struct {
	// Port is the terminal port dialed for outbound connections.
	Port int
	// Dialer opens outbound connections (default plain TCP).
	Dialer transport.Dialer
	// DialTimeout bounds one outbound dial.
	DialTimeout time.Duration
	// OnDial is called with every connection the registry dials, after
	// it is registered, so the owner can start reading from it.
	OnDial  func(*Conn)
	Metrics *metrics.Collector
	Logger  *util.Logger
}

// Registry is the authoritative IP → connection map.
type Registry struct {
	port        int
	dialer      transport.Dialer
	dialTimeout time.Duration
	onDial      func(*Conn)
	metrics     *metrics.Collector
	logger      *util.Logger

	group singleflight.Group

	mu     sync.Mutex
	conns  map[string]*Conn
	closed bool
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &transport.TCPDialer{Timeout: opts.DialTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	return &Registry{
		port:        opts.Port,
		dialer:      opts.Dialer,
		dialTimeout: opts.DialTimeout,
		onDial:      opts.OnDial,
		metrics:     opts.Metrics,
		logger:      opts.Logger.Named("registry"),
		conns:       make(map[string]*Conn),
	}
}

// Register records nc as the connection for ip.  An existing entry for
// the same IP is replaced and closed.  Registering on a closed registry
// closes nc and fails with ErrServerStopped.
func (r *Registry) Register(ip string, nc net.Conn) (*Conn, error) {
	return r.register(ip, nc, false)
}

func (r *Registry) register(ip string, nc net.Conn, outbound bool) (*Conn, error) {
	c := newConn(ip, nc, outbound, r.metrics)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		nc.Close() //nolint:errcheck
		return nil, vterr.ErrServerStopped
	}
	prev := r.conns[ip]
	r.conns[ip] = c
	r.mu.Unlock()

	dir := metrics.Inbound
	if outbound {
		dir = metrics.Outbound
	}
	r.metrics.TerminalConnected(dir)

	if prev != nil {
		r.logger.Verbose("%s reconnected, closing previous connection", ip)
		prev.Close() //nolint:errcheck
	}
	return c, nil
}

// GetOrConnect returns the registered connection for ip, dialing the
// terminal if there is none.  Concurrent calls for the same IP share
// one dial.  ctx bounds only this caller's wait: a dial already in
// flight completes for the other waiters.
func (r *Registry) GetOrConnect(ctx context.Context, ip string) (*Conn, error) {
	canon, err := util.ParseTerminalIP(ip)
	if err != nil {
		return nil, vterr.PeerNotFound(ip, err)
	}
	if c := r.Lookup(canon); c != nil {
		return c, nil
	}

	ch := r.group.DoChan(canon, func() (interface{}, error) {
		return r.dial(canon)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Conn), nil
	case <-ctx.Done():
		return nil, vterr.DialFailed(canon, ctx.Err())
	}
}

func (r *Registry) dial(ip string) (*Conn, error) {
	if c := r.Lookup(ip); c != nil {
		return c, nil
	}
	if r.isClosed() {
		return nil, vterr.PeerNotFound(ip, vterr.ErrServerStopped)
	}

	addr := util.FormatAddr(ip, r.port)
	r.logger.Verbose("dialing %s", addr)

	ctx, cancel := context.WithTimeout(context.Background(), r.dialTimeout)
	defer cancel()

	nc, err := r.dialer.Dial(ctx, "tcp", addr)
	if err != nil {
		r.metrics.DialFailed()
		r.logger.Warn("dial %s: %v", addr, err)
		return nil, vterr.DialFailed(ip, err)
	}

	c, err := r.register(ip, nc, true)
	if err != nil {
		return nil, vterr.PeerNotFound(ip, err)
	}
	if r.onDial != nil {
		r.onDial(c)
	}
	return c, nil
}

// Lookup returns the connection registered for ip, or nil.
func (r *Registry) Lookup(ip string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[ip]
}

// Unregister removes c if it is still the entry for its IP, and closes
// it either way.  A handler whose connection was replaced therefore
// never evicts its successor.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	if r.conns[c.ip] == c {
		delete(r.conns, c.ip)
	}
	r.mu.Unlock()
	c.Close() //nolint:errcheck
}

// Remove drops and closes the entry for ip.  It reports whether there
// was one.
func (r *Registry) Remove(ip string) bool {
	r.mu.Lock()
	c, ok := r.conns[ip]
	delete(r.conns, ip)
	r.mu.Unlock()
	if ok {
		c.Close() //nolint:errcheck
	}
	return ok
}

// ForEach calls fn for every registered connection.  fn runs outside the
// registry lock and may call back into the registry.
func (r *Registry) ForEach(fn func(*Conn)) {
	for _, c := range r.snapshot() {
		fn(c)
	}
}

// IPs returns the registered terminal addresses in sorted order.
func (r *Registry) IPs() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.conns))
	for ip := range r.conns {
		out = append(out, ip)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every connection and refuses further registrations.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close() //nolint:errcheck
	}
}

func (r *Registry) snapshot() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
