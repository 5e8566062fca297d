package relay

import (
	"context"
	"time"

	"vtrelay/internal/session"
	"vtrelay/internal/vt100"
)

// Send encodes cmd and writes it to the terminal at ip, dialing the
// terminal if it has not connected in.  Clear and Position also update
// the terminal's session so later echoes land where the display
// expects.  Errors are logged here and returned; they never affect
// other terminals.
func (s *Server) Send(ctx context.Context, ip string, cmd vt100.Command) error {
	c, err := s.reg.GetOrConnect(ctx, ip)
	if err != nil {
		s.logger.Warn("%s to %s: %v", cmd.Kind, ip, err)
		s.metrics.RecordError(err.Error())
		return err
	}

	if err := c.Command(directiveFor(cmd), vt100.Encode(cmd)); err != nil {
		s.logger.Warn("%s to %s: %v", cmd.Kind, ip, err)
		s.metrics.RecordError(err.Error())
		s.reg.Unregister(c)
		return err
	}

	s.metrics.CommandSent(cmd.Kind.String())
	s.logger.Debug("%s sent to %s", cmd.Kind, c.IP())
	return nil
}

func directiveFor(cmd vt100.Command) session.Directive {
	switch cmd.Kind {
	case vt100.KindClear:
		return session.Directive{Reset: true}
	case vt100.KindPosition:
		return session.Directive{Move: true, Row: cmd.Row, Column: cmd.Column}
	}
	return session.Directive{}
}

// SendMessage writes text at the current cursor position, followed by
// CR LF when breakLine is set.
func (s *Server) SendMessage(ctx context.Context, ip, text string, breakLine bool) error {
	return s.Send(ctx, ip, vt100.Command{Kind: vt100.KindMessage, Text: text, BreakLine: breakLine})
}

// ClearDisplay clears the screen and discards the terminal's pending
// input.
func (s *Server) ClearDisplay(ctx context.Context, ip string) error {
	return s.Send(ctx, ip, vt100.Command{Kind: vt100.KindClear})
}

// PositionCursor moves the cursor to row, col (1-based).
func (s *Server) PositionCursor(ctx context.Context, ip string, row, col int) error {
	return s.Send(ctx, ip, vt100.Command{Kind: vt100.KindPosition, Row: row, Column: col})
}

// Beep sounds the terminal's alert for d (DefaultBeep when zero).  The
// alert is switched off even if ctx ends during the wait.
func (s *Server) Beep(ctx context.Context, ip string, d time.Duration) error {
	if d <= 0 {
		d = DefaultBeep
	}
	if err := s.Send(ctx, ip, vt100.Command{Kind: vt100.KindBeepOn}); err != nil {
		return err
	}

	t := time.NewTimer(d)
	select {
	case <-t.C:
	case <-ctx.Done():
		t.Stop()
	}
	return s.Send(context.WithoutCancel(ctx), ip, vt100.Command{Kind: vt100.KindBeepOff})
}

// EnableLine1 switches the terminal's first auxiliary line.
func (s *Server) EnableLine1(ctx context.Context, ip string) error {
	return s.Send(ctx, ip, vt100.Command{Kind: vt100.KindLine1})
}

// EnableLine2 switches the terminal's second auxiliary line.
func (s *Server) EnableLine2(ctx context.Context, ip string) error {
	return s.Send(ctx, ip, vt100.Command{Kind: vt100.KindLine2})
}
