// Package config defines the runtime configuration for vtrelay and
// provides helpers for parsing jump-host specifications and one-shot
// terminal actions.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	vterr "vtrelay/internal/errors"
)

// Config holds every tuneable for a vtrelay process.
type Config struct {
	// ── Relay ────────────────────────────────────────────────────────
	Listen         bool          `yaml:"listen"`
	Port           int           `yaml:"port"` // listening port and port dialed on terminals
	BindAddr       string        `yaml:"bind"` // empty: detect the LAN address
	BindRetries    int           `yaml:"bind_retries"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ClearOnConnect bool          `yaml:"clear_on_connect"`
	ControlAddr    string        `yaml:"control"` // HTTP control API, empty disables it

	// ── SSH jump host ────────────────────────────────────────────────
	Via             string        `yaml:"via"`               // raw [user@]host[:port] from --via
	ViaEnabled      bool          `yaml:"-"`
	ViaUser         string        `yaml:"-"`
	ViaHost         string        `yaml:"-"`
	ViaPort         int           `yaml:"-"`
	SSHKeyPath      string        `yaml:"ssh_key"`
	SSHPassword     bool          `yaml:"ssh_password"`      // true → prompt interactively
	SSHPasswordFile string        `yaml:"ssh_password_file"` // password on the first line, for unattended runs
	UseSSHAgent     bool          `yaml:"ssh_agent"`
	StrictHostKey   bool          `yaml:"strict_hostkey"`
	KnownHostsPath  string        `yaml:"known_hosts"`
	SSHKeepAlive    time.Duration `yaml:"ssh_keepalive"`

	// ── Command mode ─────────────────────────────────────────────────
	Target string `yaml:"-"` // terminal IP
	Action Action `yaml:"-"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int    `yaml:"verbose"`
	LogFile    string `yaml:"log_file"` // base name, one file per day
	Timestamps bool   `yaml:"timestamps"`
	DryRun     bool   `yaml:"-"`
}

// ── Jump-host parser ─────────────────────────────────────────────────

// viaRe matches [user@]host[:port].
var viaRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseJumpHost extracts user, host, and port from a string such as
// "relay@gw.store-12.lan:2222".  Port defaults to 22.
func ParseJumpHost(spec string) (user, host string, port int, err error) {
	m := viaRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid jump host %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid jump host port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ResolveVia fills the Via* fields from Via.  An empty Via disables
// the jump host.
func (c *Config) ResolveVia() error {
	if c.Via == "" {
		c.ViaEnabled = false
		return nil
	}
	user, host, port, err := ParseJumpHost(c.Via)
	if err != nil {
		return &vterr.ConfigError{
			Field:   "via",
			Value:   c.Via,
			Message: err.Error(),
			Hint:    "use --via user@gateway[:port]",
		}
	}
	c.ViaEnabled = true
	c.ViaUser = user
	c.ViaHost = host
	c.ViaPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &vterr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "port out of range 1-65535",
			Hint:    fmt.Sprintf("terminals normally use port %d", DefaultPort),
		}
	}
	if c.BindAddr != "" && net.ParseIP(c.BindAddr) == nil {
		return &vterr.ConfigError{
			Field:   "bind",
			Value:   c.BindAddr,
			Message: "not an IP address",
			Hint:    "give the relay's LAN address, e.g. --bind 192.168.0.10",
		}
	}
	if c.BindRetries < 1 {
		return &vterr.ConfigError{
			Field:   "bind-retries",
			Value:   c.BindRetries,
			Message: "must be at least 1",
		}
	}
	if c.DialTimeout <= 0 {
		return &vterr.ConfigError{
			Field:   "dial-timeout",
			Value:   c.DialTimeout,
			Message: "must be positive",
		}
	}

	if c.Listen {
		if c.Target != "" {
			return &vterr.ConfigError{
				Field:   "listen",
				Value:   c.Target,
				Message: "serve mode takes no terminal argument",
				Hint:    "drop -l to send a single command to a terminal",
			}
		}
		if c.ControlAddr != "" {
			if _, _, err := net.SplitHostPort(c.ControlAddr); err != nil {
				return &vterr.ConfigError{
					Field:   "control",
					Value:   c.ControlAddr,
					Message: err.Error(),
					Hint:    "use host:port, e.g. --control 127.0.0.1:8080",
				}
			}
		}
	} else {
		if c.Target == "" {
			return &vterr.ConfigError{
				Field:   "listen",
				Message: "a terminal IP and command are required outside serve mode",
				Hint:    "run the relay with -l, or: vtrelay <ip> send TEXT",
			}
		}
		if net.ParseIP(c.Target) == nil {
			return &vterr.ConfigError{
				Field:   "target",
				Value:   c.Target,
				Message: "not an IP address",
				Hint:    "terminals are addressed by IP",
			}
		}
		if err := c.Action.Validate(); err != nil {
			return &vterr.ConfigError{
				Field:   "command",
				Value:   c.Action.Kind,
				Message: err.Error(),
				Hint:    "commands: send TEXT, clear, beep [ms], pos ROW COL, line1, line2",
			}
		}
		if c.ControlAddr != "" {
			return &vterr.ConfigError{
				Field:   "control",
				Value:   c.ControlAddr,
				Message: "the control API runs only in serve mode",
				Hint:    "add -l",
			}
		}
	}

	if c.Via == "" && (c.SSHKeyPath != "" || c.SSHPassword || c.SSHPasswordFile != "" || c.UseSSHAgent) {
		return &vterr.ConfigError{
			Field:   "via",
			Message: "SSH credentials given without a jump host",
			Hint:    "add --via user@gateway",
		}
	}
	return nil
}
