package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the VTRELAY_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("10s") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if envBool("VTRELAY_LISTEN") {
		cfg.Listen = true
	}
	if v := envInt("VTRELAY_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv("VTRELAY_BIND"); v != "" {
		cfg.BindAddr = v
	}
	if v := envInt("VTRELAY_BIND_RETRIES"); v > 0 {
		cfg.BindRetries = v
	}
	if v := envDuration("VTRELAY_DIAL_TIMEOUT"); v > 0 {
		cfg.DialTimeout = v
	}
	if envBool("VTRELAY_CLEAR_ON_CONNECT") {
		cfg.ClearOnConnect = true
	}
	if v := os.Getenv("VTRELAY_CONTROL"); v != "" {
		cfg.ControlAddr = v
	}

	// SSH jump host
	if v := os.Getenv("VTRELAY_VIA"); v != "" {
		cfg.Via = v
	}
	if v := os.Getenv("VTRELAY_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("VTRELAY_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if v := os.Getenv("VTRELAY_SSH_PASSWORD_FILE"); v != "" {
		cfg.SSHPasswordFile = v
	}
	if envBool("VTRELAY_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("VTRELAY_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("VTRELAY_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}
	if v := envDuration("VTRELAY_SSH_KEEPALIVE"); v > 0 {
		cfg.SSHKeepAlive = v
	}

	// Output
	if v := envInt("VTRELAY_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("VTRELAY_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if envBool("VTRELAY_TIMESTAMPS") {
		cfg.Timestamps = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n := envInt(key); n > 0 {
		return time.Duration(n) * time.Second
	}
	return 0
}
