// Package relay is the terminal server: it accepts connections from
// VT100 terminals, runs the line discipline for each, publishes their
// committed lines and sends them display commands by IP.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	vterr "vtrelay/internal/errors"
	"vtrelay/internal/metrics"
	"vtrelay/internal/registry"
	"vtrelay/internal/retry"
	"vtrelay/internal/session"
	"vtrelay/internal/transport"
	"vtrelay/internal/vt100"
	"vtrelay/util"
)

// DefaultBeep is the alert duration used when Beep is given zero.
const DefaultBeep = 600 * time.Millisecond

// Config holds the server settings.
type Config struct {
	// Port is both the listening port and the port dialed on terminals.
	Port int
	// BindAddr is the local address to listen on.  Empty means detect
	// the LAN address.
	BindAddr string
	// BindRetries is the number of listen attempts (minimum 1).
	BindRetries int
	// DialTimeout bounds outbound dials to terminals.
	DialTimeout time.Duration
	// ClearOnConnect clears the display of every terminal that connects.
	ClearOnConnect bool
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Server accepts terminal connections and sends terminal commands.
type Server struct {
	cfg     Config
	reg     *registry.Registry
	dialer  transport.Dialer
	metrics *metrics.Collector
	logger  *util.Logger
	hub     *hub

	mu    sync.Mutex
	state state
	ln    net.Listener
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates a server.  dialer reaches terminals that have not
// connected in; nil means plain TCP.  m may be nil.
func New(cfg Config, dialer transport.Dialer, m *metrics.Collector, logger *util.Logger) *Server {
	if cfg.Port == 0 {
		cfg.Port = registry.DefaultPort
	}
	if cfg.BindRetries < 1 {
		cfg.BindRetries = 1
	}
	if dialer == nil {
		dialer = &transport.TCPDialer{Timeout: cfg.DialTimeout, LocalIP: cfg.BindAddr}
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	s := &Server{
		cfg:     cfg,
		dialer:  dialer,
		metrics: m,
		logger:  logger.Named("relay"),
		done:    make(chan struct{}),
	}
	s.hub = newHub(m, s.logger)
	s.reg = registry.New(registry.Options{
		Port:        cfg.Port,
		Dialer:      dialer,
		DialTimeout: cfg.DialTimeout,
		OnDial:      s.adoptDialed,
		Metrics:     m,
		Logger:      logger,
	})
	return s
}

// Start binds the listener and begins accepting terminals in the
// background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return vterr.ErrServerRunning
	case stateStopped:
		return vterr.ErrServerStopped
	}

	host := s.cfg.BindAddr
	if host == "" {
		ip, err := util.DetectLocalIP()
		if err != nil {
			return fmt.Errorf("detecting LAN address (set --bind): %w", err)
		}
		host = ip
	}
	addr := util.FormatAddr(host, s.cfg.Port)

	backoff := retry.DefaultBackoff()
	backoff.MaxAttempts = s.cfg.BindRetries

	var lc net.ListenConfig
	var ln net.Listener
	err := backoff.Do(ctx, func(attempt int) error {
		var err error
		ln, err = lc.Listen(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(err)
			}
			nerr := vterr.Wrap("listen", addr, err)
			if !vterr.IsRetryable(nerr) {
				return retry.Permanent(nerr)
			}
			if attempt < s.cfg.BindRetries {
				s.logger.Warn("listen on %s (attempt %d/%d): %v", addr, attempt, s.cfg.BindRetries, err)
			}
			return nerr
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.ln = ln
	s.state = stateRunning
	s.logger.Info("listening for terminals on %s", ln.Addr())

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop closes the listener and every terminal connection and waits for
// the handlers to finish.  It is safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return nil
	}
	wasRunning := s.state == stateRunning
	s.state = stateStopped
	close(s.done)
	ln := s.ln
	s.mu.Unlock()

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	s.reg.CloseAll()
	s.wg.Wait()
	s.hub.close()
	if cerr := s.dialer.Close(); cerr != nil && err == nil {
		err = cerr
	}

	if wasRunning {
		s.logger.Info("stopped")
		s.logger.Verbose("session metrics: %s", s.metrics.JSON())
	}
	return err
}

// Subscribe returns a channel of notifications and a function that
// cancels the subscription.  Publishing never blocks: when the buffer is
// full the event is dropped for this subscriber.  The channel is closed
// on cancel or Stop.
func (s *Server) Subscribe(buffer int) (<-chan Event, func()) {
	return s.hub.subscribe(buffer)
}

// Terminals returns the IPs of the registered terminals.
func (s *Server) Terminals() []string { return s.reg.IPs() }

// Metrics returns the server's collector, which may be nil.
func (s *Server) Metrics() *metrics.Collector { return s.metrics }

// ── accept loop ──────────────────────────────────────────────────────

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	pause := &retry.Backoff{InitialDelay: 5 * time.Millisecond, MaxDelay: time.Second}
	failures := 0

	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			delay := pause.Delay(failures)
			s.logger.Warn("accept: %v; retrying in %v", err, delay)
			s.metrics.RecordError(fmt.Sprintf("accept: %v", err))
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		s.wg.Add(1)
		go s.serveInbound(nc)
	}
}

func (s *Server) serveInbound(nc net.Conn) {
	defer s.wg.Done()

	ip := util.PeerIP(nc.RemoteAddr())
	c, err := s.reg.Register(ip, nc)
	if err != nil {
		s.logger.Verbose("terminal %s rejected: %v", ip, err)
		return
	}
	s.logger.Info("terminal %s connected", ip)
	s.hub.publish(Event{Kind: EventConnected, IP: ip})

	if s.cfg.ClearOnConnect {
		if err := c.Send(vt100.Clear()); err != nil {
			s.logger.Warn("%v", err)
			s.reg.Unregister(c)
			s.hub.publish(Event{Kind: EventDisconnected, IP: ip})
			return
		}
	}
	s.handle(c)
}

// adoptDialed runs the line discipline on a connection the registry
// dialed, so input from it is committed and its closure is noticed.
func (s *Server) adoptDialed(c *registry.Conn) {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		c.Close() //nolint:errcheck
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("terminal %s connected (outbound)", c.IP())
	s.hub.publish(Event{Kind: EventConnected, IP: c.IP(), Outbound: true})

	go func() {
		defer s.wg.Done()
		s.handle(c)
	}()
}

// handle reads from c until it fails or closes.  All session state
// lives on this goroutine.
func (s *Server) handle(c *registry.Conn) {
	ip := c.IP()
	disc := session.NewDiscipline(c, func(text string) {
		s.metrics.Commit()
		s.logger.Verbose("%s committed %q", ip, text)
		s.hub.publish(Event{Kind: EventDataReceived, IP: ip, Text: text, Outbound: c.Outbound()})
	})

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	for {
		n, err := c.Read(buf)
		if n > 0 {
			if d := c.TakeDirective(); !d.Empty() {
				disc.Apply(d)
			}
			if ferr := disc.Feed(buf[:n]); ferr != nil {
				s.logger.Warn("%v", ferr)
				s.metrics.RecordError(ferr.Error())
				break
			}
		}
		if err != nil {
			if !util.IsHarmless(err) {
				lost := vterr.ConnectionLost(ip, "read", err)
				s.logger.Warn("%v", lost)
				s.metrics.RecordError(lost.Error())
			}
			break
		}
	}

	s.reg.Unregister(c)
	s.logger.Info("terminal %s disconnected", ip)
	s.hub.publish(Event{Kind: EventDisconnected, IP: ip, Outbound: c.Outbound()})
}

func (s *Server) stopping() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
