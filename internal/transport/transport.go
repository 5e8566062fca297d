// Package transport opens the outbound connections the registry uses to
// reach terminals that have not connected in.  A terminal is either on
// the relay's own LAN (plain TCP) or behind an SSH jump host.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections to terminals.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
