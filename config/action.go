package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActionKind names a one-shot terminal command.
type ActionKind string

const (
	ActionSend     ActionKind = "send"
	ActionClear    ActionKind = "clear"
	ActionBeep     ActionKind = "beep"
	ActionPosition ActionKind = "pos"
	ActionLine1    ActionKind = "line1"
	ActionLine2    ActionKind = "line2"
)

// Action is a single command given on the command line.
type Action struct {
	Kind      ActionKind
	Text      string
	BreakLine bool
	Row       int
	Column    int
	Duration  time.Duration
}

// ParseAction reads the words after the terminal IP:
//
//	send TEXT...   clear   beep [MS]   pos ROW COL   line1   line2
func ParseAction(args []string) (Action, error) {
	if len(args) == 0 {
		return Action{}, fmt.Errorf("command required")
	}
	kind := ActionKind(strings.ToLower(args[0]))
	rest := args[1:]

	switch kind {
	case ActionSend:
		if len(rest) == 0 {
			return Action{}, fmt.Errorf("send needs text")
		}
		return Action{Kind: kind, Text: strings.Join(rest, " ")}, nil

	case ActionClear, ActionLine1, ActionLine2:
		if len(rest) != 0 {
			return Action{}, fmt.Errorf("%s takes no arguments", kind)
		}
		return Action{Kind: kind}, nil

	case ActionBeep:
		switch len(rest) {
		case 0:
			return Action{Kind: kind}, nil
		case 1:
			ms, err := strconv.Atoi(rest[0])
			if err != nil || ms < 0 {
				return Action{}, fmt.Errorf("invalid beep duration %q", rest[0])
			}
			return Action{Kind: kind, Duration: time.Duration(ms) * time.Millisecond}, nil
		}
		return Action{}, fmt.Errorf("beep takes at most one argument")

	case ActionPosition:
		if len(rest) != 2 {
			return Action{}, fmt.Errorf("pos needs ROW COL")
		}
		row, err := strconv.Atoi(rest[0])
		if err != nil {
			return Action{}, fmt.Errorf("invalid row %q", rest[0])
		}
		col, err := strconv.Atoi(rest[1])
		if err != nil {
			return Action{}, fmt.Errorf("invalid column %q", rest[1])
		}
		return Action{Kind: kind, Row: row, Column: col}, nil
	}
	return Action{}, fmt.Errorf("unknown command %q", args[0])
}

// Validate reports an action that cannot be sent.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionSend:
		if a.Text == "" {
			return fmt.Errorf("send needs text")
		}
	case ActionPosition:
		if a.Row < 1 || a.Column < 1 {
			return fmt.Errorf("row and column start at 1")
		}
	case ActionBeep:
		if a.Duration < 0 {
			return fmt.Errorf("beep duration must not be negative")
		}
	case ActionClear, ActionLine1, ActionLine2:
	case "":
		return fmt.Errorf("command required")
	default:
		return fmt.Errorf("unknown command %q", a.Kind)
	}
	return nil
}
