// Package session holds the per-connection input state of a terminal
// and the line discipline that drives it.
//
// A State is owned by exactly one connection handler goroutine and is
// never shared: other goroutines influence it only by posting a
// Directive that the handler applies between reads.
package session

import "vtrelay/internal/vt100"

// State is the authoritative cursor and input buffer of one terminal.
type State struct {
	// Row is the display row of the cursor, always in 1..vt100.Rows.
	Row int
	// Column is the column of the last echoed character, 0 when
	// nothing has been typed on the row yet, never above vt100.Columns.
	Column int

	buf []byte
}

// NewState returns the state of a freshly connected terminal.
func NewState() *State {
	return &State{Row: 1}
}

// Text returns the buffered input.
func (s *State) Text() string { return string(s.buf) }

// Len returns the number of buffered characters.
func (s *State) Len() int { return len(s.buf) }

// Reset discards the buffer and homes the cursor.
func (s *State) Reset() {
	s.buf = s.buf[:0]
	s.Row = 1
	s.Column = 0
}

func (s *State) append(b byte) {
	s.buf = append(s.buf, b)
}

// dropLast removes the last buffered character.  It reports false when
// the buffer was already empty.
func (s *State) dropLast() bool {
	if len(s.buf) == 0 {
		return false
	}
	s.buf = s.buf[:len(s.buf)-1]
	return true
}

// take returns the buffered text and empties the buffer.
func (s *State) take() string {
	text := string(s.buf)
	s.buf = s.buf[:0]
	return text
}

// advance moves the cursor one cell right, wrapping to column 1 of the
// next row past the last column.
func (s *State) advance() {
	s.Column++
	if s.Column > vt100.Columns {
		s.Column = 1
		s.Row = vt100.NextRow(s.Row)
	}
}

// retreat moves the cursor one cell left, stopping at column 0.
func (s *State) retreat() {
	s.Column--
	if s.Column < 0 {
		s.Column = 0
	}
}

// newline starts the next row.
func (s *State) newline() {
	s.Row = vt100.NextRow(s.Row)
	s.Column = 0
}

// Directive is an out-of-band change to a session requested by an
// external command (clear display, position cursor).
type Directive struct {
	Reset  bool
	Move   bool
	Row    int
	Column int
}

// Merge folds next into d.  A reset supersedes an earlier move; a move
// after a reset is kept.
func (d Directive) Merge(next Directive) Directive {
	if next.Reset {
		d = Directive{Reset: true}
	}
	if next.Move {
		d.Move = true
		d.Row = next.Row
		d.Column = next.Column
	}
	return d
}

// Empty reports whether d requests nothing.
func (d Directive) Empty() bool { return !d.Reset && !d.Move }
