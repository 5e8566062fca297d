package core

import (
	"context"
	"fmt"

	"vtrelay/config"
	"vtrelay/relay"
	"vtrelay/util"
)

// CommandMode sends one command to one terminal and exits.  The relay
// is never started: the registry dials the terminal on its own.
type CommandMode struct {
	Relay  *relay.Server
	Target string
	Action config.Action
	Logger *util.Logger
}

// Run sends the action and tears the relay down.
func (m *CommandMode) Run(ctx context.Context) error {
	defer m.Relay.Stop() //nolint:errcheck

	m.Logger.Verbose("%s → %s", m.Action.Kind, m.Target)

	var err error
	switch a := m.Action; a.Kind {
	case config.ActionSend:
		err = m.Relay.SendMessage(ctx, m.Target, a.Text, a.BreakLine)
	case config.ActionClear:
		err = m.Relay.ClearDisplay(ctx, m.Target)
	case config.ActionBeep:
		err = m.Relay.Beep(ctx, m.Target, a.Duration)
	case config.ActionPosition:
		err = m.Relay.PositionCursor(ctx, m.Target, a.Row, a.Column)
	case config.ActionLine1:
		err = m.Relay.EnableLine1(ctx, m.Target)
	case config.ActionLine2:
		err = m.Relay.EnableLine2(ctx, m.Target)
	default:
		return fmt.Errorf("unknown command %q", a.Kind)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", m.Action.Kind, err)
	}
	return nil
}
