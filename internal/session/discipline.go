package session

import "vtrelay/internal/vt100"

// Echo receives the bytes the discipline sends back to the terminal.
// Send must write all parts as one contiguous logical write.
type Echo interface {
	Send(parts ...[]byte) error
}

// CommitFunc receives each finalized line.
type CommitFunc func(text string)

// Discipline interprets terminal input byte by byte.  The terminal has
// no local echo, so every accepted keystroke is echoed together with an
// absolute cursor position; the terminal display and State stay in
// lock-step as long as echo writes succeed.
type Discipline struct {
	state  *State
	echo   Echo
	commit CommitFunc
}

// NewDiscipline returns a discipline over a fresh State.
func NewDiscipline(echo Echo, commit CommitFunc) *Discipline {
	if commit == nil {
		commit = func(string) {}
	}
	return &Discipline{state: NewState(), echo: echo, commit: commit}
}

// State exposes the session state for inspection.
func (d *Discipline) State() *State { return d.state }

// Feed processes one read chunk.  Control bytes are recognised per
// byte, so a chunk such as "AB\r" commits "AB".  The first echo
// failure aborts the chunk and is returned; the caller must treat it
// as a lost connection.
func (d *Discipline) Feed(chunk []byte) error {
	for _, b := range chunk {
		if err := d.feedByte(b); err != nil {
			return err
		}
	}
	return nil
}

func (d *Discipline) feedByte(b byte) error {
	s := d.state
	switch b {
	case vt100.BS:
		if !s.dropLast() {
			return nil
		}
		s.retreat()
		return d.echo.Send(vt100.Backspace())

	case vt100.ESC, vt100.DEL:
		s.Reset()
		return d.echo.Send(vt100.Position(1, 1), vt100.Clear())

	case vt100.CR:
		text := s.take()
		s.newline()
		d.commit(text)
		return nil

	default:
		s.append(b)
		s.advance()
		return d.echo.Send(vt100.Echo(s.Row, s.Column, b))
	}
}

// Apply executes an external directive against the session.  A reset
// discards the buffer and homes the cursor without echoing: the
// command that requested it already redrew the display.
func (d *Discipline) Apply(dir Directive) {
	s := d.state
	if dir.Reset {
		s.Reset()
	}
	if dir.Move {
		s.Row = vt100.ClampRow(dir.Row)
		// The next character lands on the requested column.
		s.Column = dir.Column - 1
		if s.Column < 0 {
			s.Column = 0
		}
		if s.Column > vt100.Columns {
			s.Column = vt100.Columns
		}
	}
}
