// Package tunnel reaches terminals on a remote LAN through an SSH jump
// host.  Terminals speak plain TCP and cannot be exposed directly, so
// the relay opens one SSH session to a gateway on the terminals' network
// and forwards each terminal dial as a direct-tcpip channel.
package tunnel

import (
	"context"
	"net"
)

// Tunnel abstracts an encrypted channel through which terminal
// connections are forwarded.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the tunnel.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}
