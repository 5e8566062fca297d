package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPort is the port terminals connect to and are dialed on.
	DefaultPort = 1001

	// DefaultDialTimeout bounds an outbound dial to a terminal.
	DefaultDialTimeout = 10 * time.Second

	// DefaultBindRetries is the number of listen attempts.  One means
	// a failed bind is fatal at once.
	DefaultBindRetries = 1

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSSHKeepAlive is the jump-host keepalive interval.
	DefaultSSHKeepAlive = 30 * time.Second

	// DefaultGracePeriod is how long shutdown waits for API requests
	// in flight.
	DefaultGracePeriod = 5 * time.Second

	// EnvConfigFile names the environment variable holding the config
	// file path when --config is not given.
	EnvConfigFile = "VTRELAY_CONFIG"
)

// Defaults returns a Config populated with the default values.
func Defaults() *Config {
	return &Config{
		Port:         DefaultPort,
		BindRetries:  DefaultBindRetries,
		DialTimeout:  DefaultDialTimeout,
		SSHKeepAlive: DefaultSSHKeepAlive,
		Verbose:      1,
	}
}
