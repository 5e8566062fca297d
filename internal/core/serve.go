package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"vtrelay/internal/api"
	"vtrelay/relay"
	"vtrelay/util"
)

// ServeMode runs the relay until the context ends.  Committed lines
// are printed to Stdout as "IP<TAB>TEXT" so the relay can feed a
// pipeline; the control API, when configured, serves alongside.
type ServeMode struct {
	Relay       *relay.Server
	API         *api.Server // nil disables the control API
	ControlAddr string
	Grace       time.Duration
	Logger      *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *ServeMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run starts the relay and blocks until ctx is cancelled, then shuts
// the API and the relay down.
func (m *ServeMode) Run(ctx context.Context) error {
	if err := m.Relay.Start(ctx); err != nil {
		m.Relay.Stop() //nolint:errcheck
		return fmt.Errorf("start relay: %w", err)
	}

	events, cancel := m.Relay.Subscribe(relay.DefaultEventBuffer)
	defer cancel()

	if m.API != nil {
		if err := m.API.Start(m.ControlAddr); err != nil {
			m.Relay.Stop() //nolint:errcheck
			return fmt.Errorf("start control API: %w", err)
		}
	}

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		m.printLines(events)
	}()

	<-ctx.Done()
	m.Logger.Info("shutting down")

	if m.API != nil {
		grace := m.Grace
		if grace <= 0 {
			grace = 5 * time.Second
		}
		sctx, scancel := context.WithTimeout(context.Background(), grace)
		if err := m.API.Shutdown(sctx); err != nil {
			m.Logger.Warn("control API shutdown: %v", err)
		}
		scancel()
	}

	err := m.Relay.Stop()
	<-printed
	return err
}

// printLines writes each committed line until the relay stops.
func (m *ServeMode) printLines(events <-chan relay.Event) {
	out := m.stdout()
	for ev := range events {
		if ev.Kind != relay.EventDataReceived {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\n", ev.IP, ev.Text); err != nil {
			m.Logger.Debug("stdout: %v", err)
		}
	}
}
