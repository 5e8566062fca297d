package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections, optionally from a fixed
// local address so traffic leaves through the terminals' LAN interface.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration // 0 uses the net package default
	LocalIP   string        // optional source address ("" = kernel's choice)
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}

	if d.LocalIP != "" {
		ip := net.ParseIP(d.LocalIP)
		if ip == nil {
			return nil, fmt.Errorf("invalid local address %q", d.LocalIP)
		}
		dialer.LocalAddr = &net.TCPAddr{IP: ip}
	}

	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
