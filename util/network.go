package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// ParseTerminalIP validates a terminal address and returns it in
// canonical dotted-quad form.  Host names are rejected: terminals are
// addressed by IP only.
func ParseTerminalIP(s string) (string, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return "", fmt.Errorf("%q is not an IP address", s)
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String(), nil
	}
	return ip.String(), nil
}

// PeerIP extracts the IP part of a connection's remote address.
func PeerIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.TCPAddr:
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String()
		}
		return a.IP.String()
	case nil:
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// DetectLocalIP returns the LAN-facing IPv4 address of this host: the
// source address the kernel picks for the default route, or failing
// that the first usable address of an interface that is up.
func DetectLocalIP() (string, error) {
	if ip, err := routeSourceIP(); err == nil {
		return ip, nil
	}
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return "", fmt.Errorf("listing interfaces: %w", err)
	}
	var cidrs []string
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			cidrs = append(cidrs, a.Addr)
		}
	}
	ip := PickLANAddress(cidrs)
	if ip == "" {
		return "", fmt.Errorf("no LAN IPv4 address found")
	}
	return ip, nil
}

// routeSourceIP "connects" a UDP socket to a public address.  No packet
// leaves the host; the kernel only resolves the route and binds the
// matching source address.
func routeSourceIP() (string, error) {
	conn, err := net.Dial("udp4", "192.0.2.1:9")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsLoopback() || addr.IP.IsUnspecified() {
		return "", fmt.Errorf("no routable source address")
	}
	return addr.IP.String(), nil
}

// PickLANAddress chooses the best IPv4 address from a list of
// interface addresses in CIDR or plain form.  Private ranges win over
// public ones; loopback and link-local addresses are never chosen.
func PickLANAddress(addrs []string) string {
	var fallback string
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil {
			var err error
			ip, _, err = net.ParseCIDR(a)
			if err != nil {
				continue
			}
		}
		v4 := ip.To4()
		if v4 == nil || v4.IsLoopback() || v4.IsLinkLocalUnicast() || v4.IsUnspecified() {
			continue
		}
		if v4.IsPrivate() {
			return v4.String()
		}
		if fallback == "" {
			fallback = v4.String()
		}
	}
	return fallback
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
