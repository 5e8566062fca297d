// Package errors provides domain-specific error types for vtrelay.
//
// Terminal failures are classified by three sentinels (DialFailed,
// ConnectionLost, PeerNotFound) and carried in a TerminalError that
// names the terminal and the operation, so callers can both log a
// precise message and branch with errors.Is.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrDialFailed     = errors.New("dial failed")
	ErrConnectionLost = errors.New("connection lost")
	ErrPeerNotFound   = errors.New("peer not found")
	ErrServerRunning  = errors.New("server already running")
	ErrServerStopped  = errors.New("server stopped")
	ErrTunnelClosed   = errors.New("tunnel is closed")
	ErrNotConnected   = errors.New("not connected")
	ErrCircuitOpen    = errors.New("circuit breaker is open")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // "dial", "listen", "accept", "write", "read"
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TerminalError attributes a failure to one terminal.  It matches both
// its Kind sentinel and its cause under errors.Is.
type TerminalError struct {
	Kind error  // ErrDialFailed, ErrConnectionLost or ErrPeerNotFound
	IP   string // terminal address
	Op   string // "dial", "write", "read", "lookup"
	Err  error  // underlying cause, may be nil
}

func (e *TerminalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("terminal %s: %s: %v", e.IP, e.Op, e.Kind)
	}
	return fmt.Sprintf("terminal %s: %s: %v: %v", e.IP, e.Op, e.Kind, e.Err)
}

func (e *TerminalError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "channel"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // flag name
	Value   interface{} // the invalid value (nil if missing)
	Message string
	Hint    string // optional suggestion
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// DialFailed reports that the terminal at ip could not be reached.
func DialFailed(ip string, err error) *TerminalError {
	return &TerminalError{Kind: ErrDialFailed, IP: ip, Op: "dial", Err: err}
}

// ConnectionLost reports a read or write failure on an established
// connection.
func ConnectionLost(ip, op string, err error) *TerminalError {
	return &TerminalError{Kind: ErrConnectionLost, IP: ip, Op: op, Err: err}
}

// PeerNotFound reports that ip is neither registered nor dialable.
func PeerNotFound(ip string, err error) *TerminalError {
	return &TerminalError{Kind: ErrPeerNotFound, IP: ip, Op: "lookup", Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsTerminalFailure reports whether err is one of the three per-terminal
// failure kinds.
func IsTerminalFailure(err error) bool {
	return errors.Is(err, ErrDialFailed) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrPeerNotFound)
}

// classifyRetryable treats a busy or not-yet-configured address as
// worth another bind attempt, along with the usual temporary failures.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, syscall.EADDRNOTAVAIL) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // still the only portable hint
	}
	return false
}
