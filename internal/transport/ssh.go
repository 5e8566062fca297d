package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"vtrelay/internal/retry"
	"vtrelay/tunnel"
	"vtrelay/util"
)

// SSHDialer routes terminal connections through a jump host.  The
// tunnel is connected lazily on the first Dial, reconnected when it has
// died, and guarded by a circuit breaker so an unreachable gateway fails
// commands fast.
type SSHDialer struct {
	tunnel  tunnel.Tunnel
	breaker *retry.CircuitBreaker
	logger  *util.Logger
	mu      sync.Mutex
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH tunnel.  The tunnel is not connected until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, breaker *retry.CircuitBreaker, logger *util.Logger) *SSHDialer {
	return newSSHDialer(tunnel.NewSSHTunnel(cfg, logger), breaker, logger)
}

func newSSHDialer(tun tunnel.Tunnel, breaker *retry.CircuitBreaker, logger *util.Logger) *SSHDialer {
	if breaker == nil {
		breaker = retry.NewCircuitBreaker(nil)
	}
	return &SSHDialer{
		tunnel:  tun,
		breaker: breaker,
		logger:  logger.Named("via"),
	}
}

// connect (re)establishes the tunnel when it is not alive.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.IsAlive() {
		return nil
	}

	return d.breaker.Execute(func() error {
		d.logger.Verbose("establishing jump host tunnel")
		if err := d.tunnel.Connect(ctx); err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		return nil
	})
}

// Dial connects to address through the jump host.  A terminal that
// refuses the forwarded connection says nothing about the gateway, so
// only successful dials reach the breaker.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	conn, err := d.tunnel.Dial(ctx, network, address)
	if err != nil {
		return nil, err
	}
	d.breaker.Success()
	return conn, nil
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
