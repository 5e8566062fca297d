package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"vtrelay/config"
	vterr "vtrelay/internal/errors"
	"vtrelay/internal/vt100"
	"vtrelay/relay"
	"vtrelay/util"
)

// fakeTerminal accepts one connection and returns everything written
// to it until the relay hangs up.
func fakeTerminal(t *testing.T) (port int, received <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
		data, _ := io.ReadAll(conn)
		ch <- data
	}()
	return ln.Addr().(*net.TCPAddr).Port, ch
}

func TestCommandMode(t *testing.T) {
	tests := []struct {
		name   string
		action config.Action
		want   []byte
	}{
		{"clear", config.Action{Kind: config.ActionClear}, vt100.Clear()},
		{"pos", config.Action{Kind: config.ActionPosition, Row: 2, Column: 7}, vt100.Position(2, 7)},
		{"send", config.Action{Kind: config.ActionSend, Text: "HI", BreakLine: true}, vt100.Message("HI", true)},
		{"line1", config.Action{Kind: config.ActionLine1}, vt100.EnableLine1()},
		{"line2", config.Action{Kind: config.ActionLine2}, vt100.EnableLine2()},
		{
			"beep",
			config.Action{Kind: config.ActionBeep, Duration: 10 * time.Millisecond},
			append(vt100.BeepOn(), vt100.BeepOff()...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, received := fakeTerminal(t)
			logger := util.NewLogger(0)
			mode := &CommandMode{
				Relay:  relay.New(relay.Config{Port: port, BindAddr: "127.0.0.1"}, nil, nil, logger),
				Target: "127.0.0.1",
				Action: tt.action,
				Logger: logger,
			}

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := mode.Run(ctx); err != nil {
				t.Fatalf("Run: %v", err)
			}

			select {
			case got := <-received:
				if !bytes.Equal(got, tt.want) {
					t.Errorf("terminal got %q, want %q", got, tt.want)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("terminal received nothing")
			}
		})
	}
}

// TestCommandMode_DialFailure verifies an unreachable terminal is
// reported as a dial failure.
func TestCommandMode_DialFailure(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	logger := util.NewLogger(0)
	mode := &CommandMode{
		Relay:  relay.New(relay.Config{Port: port, BindAddr: "127.0.0.1"}, nil, nil, logger),
		Target: "127.0.0.1",
		Action: config.Action{Kind: config.ActionClear},
		Logger: logger,
	}

	err = mode.Run(context.Background())
	if !errors.Is(err, vterr.ErrDialFailed) {
		t.Fatalf("error = %v, want ErrDialFailed", err)
	}
}

func TestCommandMode_UnknownAction(t *testing.T) {
	logger := util.NewLogger(0)
	mode := &CommandMode{
		Relay:  relay.New(relay.Config{BindAddr: "127.0.0.1"}, nil, nil, logger),
		Target: "127.0.0.1",
		Action: config.Action{Kind: "reboot"},
		Logger: logger,
	}
	if err := mode.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
