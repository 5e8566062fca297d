// Package cmd wires up the CLI flags and dispatches to the relay core.
package cmd

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"vtrelay/config"
	"vtrelay/internal/core"
	"vtrelay/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X vtrelay/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// invocation is the parsed command line.
type invocation struct {
	cfg         *config.Config
	fs          *flag.FlagSet
	showHelp    bool
	showVersion bool
}

// Execute parses args and runs the appropriate vtrelay mode.
func Execute(ctx context.Context, args []string) error {
	inv, err := parse(args)
	if err != nil {
		return err
	}
	cfg := inv.cfg

	if inv.showHelp || len(args) == 0 {
		printUsage(inv.fs)
		return nil
	}
	if inv.showVersion {
		fmt.Printf("vtrelay %s\n", version)
		return nil
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.ResolveVia(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		printPlan(cfg)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if cfg.LogFile != "" {
		f, err := util.OpenDailyFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		logger.SetFile(f)
	}
	if cfg.Timestamps {
		logger.SetTimestamps(true)
	}

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// parse layers defaults, the config file, the environment and the
// flags, in that order, then reads the positional arguments.
func parse(args []string) (*invocation, error) {
	cfg := config.Defaults()
	if path := config.FilePath(args); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)

	inv := &invocation{cfg: cfg}
	fs := flag.NewFlagSet("vtrelay", flag.ContinueOnError)
	inv.fs = fs

	// ── relay ────────────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Serve mode: accept terminal connections")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Terminal port (listen and dial)")
	fs.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "Local IP to listen on (default: detect LAN address)")
	fs.IntVar(&cfg.BindRetries, "bind-retries", cfg.BindRetries, "Listen attempts before giving up")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Timeout for dialing a terminal")
	fs.BoolVar(&cfg.ClearOnConnect, "clear-on-connect", cfg.ClearOnConnect, "Clear each terminal's display when it connects")
	fs.StringVar(&cfg.ControlAddr, "control", cfg.ControlAddr, "Serve the HTTP control API on host:port")

	// ── command ──────────────────────────────────────────────────
	fs.BoolVar(&cfg.Action.BreakLine, "crlf", false, "With send: end the text with CR LF")

	// ── SSH jump host ────────────────────────────────────────────
	fs.StringVar(&cfg.Via, "via", cfg.Via, "Reach terminals through SSH jump host [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.StringVar(&cfg.SSHPasswordFile, "ssh-password-file", cfg.SSHPasswordFile, "Read the SSH password from this file")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")
	fs.DurationVar(&cfg.SSHKeepAlive, "ssh-keepalive", cfg.SSHKeepAlive, "Jump-host keepalive interval (0 disables)")

	// ── output ───────────────────────────────────────────────────
	baseVerbose := cfg.Verbose
	var moreVerbose int
	fs.CountVarP(&moreVerbose, "verbose", "v", "Increase verbosity (repeatable)")
	quiet := fs.BoolP("quiet", "q", false, "Only print errors")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write every log line to a daily file named after this path")
	fs.BoolVar(&cfg.Timestamps, "timestamps", cfg.Timestamps, "Prefix console log lines with the time")

	var configPath string
	fs.StringVar(&configPath, "config", "", "YAML config file (or $"+config.EnvConfigFile+")")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&inv.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&inv.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Verbose = baseVerbose + moreVerbose
	if *quiet {
		cfg.Verbose = 0
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return nil, err
	}
	return inv, nil
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) == 0 {
		return nil
	}
	cfg.Target = remaining[0]
	if cfg.Listen {
		// Validate reports the stray argument with a hint.
		return nil
	}

	breakLine := cfg.Action.BreakLine
	action, err := config.ParseAction(remaining[1:])
	if err != nil {
		return fmt.Errorf("command: %w", err)
	}
	action.BreakLine = breakLine
	cfg.Action = action
	return nil
}

func printPlan(cfg *config.Config) {
	if cfg.Listen {
		bind := cfg.BindAddr
		if bind == "" {
			bind = "<LAN address>"
		}
		fmt.Printf("serve on %s:%d", bind, cfg.Port)
		if cfg.ControlAddr != "" {
			fmt.Printf(", control API on %s", cfg.ControlAddr)
		}
		fmt.Println()
	} else {
		fmt.Printf("%s to %s:%d\n", cfg.Action.Kind, cfg.Target, cfg.Port)
	}
	if cfg.ViaEnabled {
		fmt.Printf("via %s@%s:%d\n", cfg.ViaUser, cfg.ViaHost, cfg.ViaPort)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `vtrelay – VT100 terminal relay v%s

Accepts TCP connections from VT100 data terminals, echoes and
collects their input, and sends them display commands by IP.

Usage:
  vtrelay -l [options]                          Serve
  vtrelay [options] <ip> <command> [args]       Send one command

Commands:
  send TEXT...        write text at the cursor (--crlf to end the line)
  clear               clear the display
  beep [MS]           sound the buzzer (default 600 ms)
  pos ROW COL         move the cursor
  line1 | line2       switch the auxiliary print line

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  vtrelay -l                                    Serve on the LAN address, port 1001
  vtrelay -l --bind 192.168.0.10 --control 127.0.0.1:8080
  vtrelay 192.168.0.51 send --crlf "PRICE 3.20"
  vtrelay --via relay@gw.store-12 10.1.0.51 beep 250
`)
}
