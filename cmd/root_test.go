package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"vtrelay/config"
	vterr "vtrelay/internal/errors"
	"vtrelay/internal/vt100"
)

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	for _, args := range [][]string{
		{"-l", "--bind", "127.0.0.1", "--dry-run"},
		{"-l", "--control", "127.0.0.1:8080", "--via", "relay@gw", "--dry-run"},
		{"10.0.0.5", "pos", "2", "7", "--dry-run"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"no mode", []string{"--dry-run"}, "listen"},
		{"serve with ip", []string{"-l", "10.0.0.5", "--dry-run"}, "listen"},
		{"hostname target", []string{"till-3", "clear", "--dry-run"}, "target"},
		{"bad port", []string{"-l", "-p", "0", "--dry-run"}, "port"},
		{"control in command mode", []string{"--control", ":8080", "10.0.0.5", "clear", "--dry-run"}, "control"},
		{"key without via", []string{"-l", "--ssh-key", "/k", "--dry-run"}, "via"},
		{"bad via", []string{"-l", "--via", "gw:x", "--dry-run"}, "via"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Execute(context.Background(), tt.args)
			var ce *vterr.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

// TestExecute_BadCommand verifies malformed terminal commands fail
// before anything is dialed.
func TestExecute_BadCommand(t *testing.T) {
	for _, args := range [][]string{
		{"10.0.0.5"},
		{"10.0.0.5", "reboot"},
		{"10.0.0.5", "pos", "x", "1"},
	} {
		if err := Execute(context.Background(), args); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	if err := Execute(context.Background(), []string{"--nonexistent-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

// TestParse_Precedence verifies flags beat the environment, which
// beats the config file, which beats the defaults.
func TestParse_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vtrelay.yaml")
	body := "port: 2001\nbind: 10.0.0.1\nclear_on_connect: true\nverbose: 2\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VTRELAY_BIND", "10.0.0.2")
	t.Setenv("VTRELAY_PORT", "3001")

	inv, err := parse([]string{"--config", path, "-l", "-p", "4001", "-v"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := inv.cfg
	if cfg.Port != 4001 {
		t.Errorf("Port = %d, want flag value 4001", cfg.Port)
	}
	if cfg.BindAddr != "10.0.0.2" {
		t.Errorf("BindAddr = %q, want env value", cfg.BindAddr)
	}
	if !cfg.ClearOnConnect {
		t.Error("ClearOnConnect from file lost")
	}
	if cfg.DialTimeout != config.DefaultDialTimeout {
		t.Errorf("DialTimeout = %v, want default", cfg.DialTimeout)
	}
	if cfg.Verbose != 3 {
		t.Errorf("Verbose = %d, want file 2 plus one -v", cfg.Verbose)
	}
}

func TestParse_Quiet(t *testing.T) {
	inv, err := parse([]string{"-l", "-q"})
	if err != nil {
		t.Fatal(err)
	}
	if inv.cfg.Verbose != 0 {
		t.Errorf("Verbose = %d, want 0", inv.cfg.Verbose)
	}
}

func TestParse_OutputAndSecretFlags(t *testing.T) {
	inv, err := parse([]string{"-l", "--timestamps", "--via", "relay@gw", "--ssh-password-file", "/run/secrets/gw"})
	if err != nil {
		t.Fatal(err)
	}
	if !inv.cfg.Timestamps || inv.cfg.SSHPasswordFile != "/run/secrets/gw" {
		t.Errorf("Timestamps = %v, SSHPasswordFile = %q", inv.cfg.Timestamps, inv.cfg.SSHPasswordFile)
	}
}

func TestParse_SendWithCRLF(t *testing.T) {
	inv, err := parse([]string{"10.0.0.5", "send", "--crlf", "PRICE", "3.20"})
	if err != nil {
		t.Fatal(err)
	}
	want := config.Action{Kind: config.ActionSend, Text: "PRICE 3.20", BreakLine: true}
	if inv.cfg.Target != "10.0.0.5" || inv.cfg.Action != want {
		t.Errorf("target %q action %+v", inv.cfg.Target, inv.cfg.Action)
	}
}

func TestParse_MissingConfigFile(t *testing.T) {
	if _, err := parse([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "-l"}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestExecute_SendsCommand runs a one-shot command against a local
// fake terminal.
func TestExecute_SendsCommand(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(received)
			return
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	args := []string{"-q", "--bind", "127.0.0.1", "-p", port, "127.0.0.1", "send", "HELLO"}
	if err := Execute(ctx, args); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case got := <-received:
		if want := vt100.Message("HELLO", false); !bytes.Equal(got, want) {
			t.Errorf("terminal got %q, want %q", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("terminal received nothing")
	}
}
