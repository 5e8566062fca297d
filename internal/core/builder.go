package core

import (
	"vtrelay/config"
	"vtrelay/internal/api"
	vterr "vtrelay/internal/errors"
	"vtrelay/internal/metrics"
	"vtrelay/internal/retry"
	"vtrelay/internal/transport"
	"vtrelay/relay"
	"vtrelay/tunnel"
	"vtrelay/util"
)

// Build constructs the appropriate Mode from the given configuration.
// cfg must already have passed Validate.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	srv, err := buildRelay(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Listen {
		return buildServe(cfg, srv, logger), nil
	}
	return &CommandMode{
		Relay:  srv,
		Target: cfg.Target,
		Action: cfg.Action,
		Logger: logger,
	}, nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, srv *relay.Server, logger *util.Logger) *ServeMode {
	m := &ServeMode{
		Relay:       srv,
		ControlAddr: cfg.ControlAddr,
		Grace:       config.DefaultGracePeriod,
		Logger:      logger,
	}
	if cfg.ControlAddr != "" {
		m.API = api.New(srv, logger)
	}
	return m
}

// ── shared helpers ───────────────────────────────────────────────────

func buildRelay(cfg *config.Config, logger *util.Logger) (*relay.Server, error) {
	m := metrics.New()
	dialer, err := buildDialer(cfg, m, logger)
	if err != nil {
		return nil, err
	}
	return relay.New(relay.Config{
		Port:           cfg.Port,
		BindAddr:       cfg.BindAddr,
		BindRetries:    cfg.BindRetries,
		DialTimeout:    cfg.DialTimeout,
		ClearOnConnect: cfg.ClearOnConnect,
	}, dialer, m, logger), nil
}

// buildDialer creates the transport used to reach terminals that have
// not connected in: through the jump host when --via is set, plain TCP
// otherwise.
func buildDialer(cfg *config.Config, m *metrics.Collector, logger *util.Logger) (transport.Dialer, error) {
	if !cfg.ViaEnabled {
		return &transport.TCPDialer{
			Timeout: cfg.DialTimeout,
			LocalIP: cfg.BindAddr,
		}, nil
	}

	var password string
	if cfg.SSHPasswordFile != "" {
		p, err := config.ReadPassword(cfg.SSHPasswordFile)
		if err != nil {
			return nil, &vterr.ConfigError{
				Field:   "ssh-password-file",
				Value:   cfg.SSHPasswordFile,
				Message: err.Error(),
			}
		}
		password = p
	}

	return transport.NewSSHDialer(&tunnel.SSHConfig{
		User:          cfg.ViaUser,
		Host:          cfg.ViaHost,
		Port:          cfg.ViaPort,
		KeyPath:       cfg.SSHKeyPath,
		Password:      password,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		KeepAlive:     cfg.SSHKeepAlive,
	}, jumpHostBreaker(m, logger), logger), nil
}

// jumpHostBreaker reports circuit transitions to the log and to
// /api/metrics.
func jumpHostBreaker(m *metrics.Collector, logger *util.Logger) *retry.CircuitBreaker {
	log := logger.Named("via")
	m.JumpHostState(retry.StateClosed.String())

	cfg := retry.DefaultCircuitBreakerConfig()
	cfg.OnStateChange = func(from, to retry.State) {
		m.JumpHostState(to.String())
		switch to {
		case retry.StateOpen:
			log.Warn("jump host unreachable, failing dials for %v", cfg.ResetTimeout)
		case retry.StateClosed:
			log.Info("jump host reachable again")
		default:
			log.Verbose("jump host circuit %s -> %s", from, to)
		}
	}
	return retry.NewCircuitBreaker(cfg)
}
