// Package vt100 encodes the handful of VT100/ANSI commands the relay
// sends to a terminal.  Every function is pure: it allocates a fresh
// byte slice and never fails.
package vt100

import "strconv"

// Control bytes consumed or produced on the wire.
const (
	BEL byte = 7
	BS  byte = 8
	LF  byte = 10
	VT  byte = 11
	CR  byte = 13
	ESC byte = 27
	DEL byte = 127
)

// Display geometry of the terminals driven by the relay.
const (
	Rows    = 4
	Columns = 20
)

// Kind identifies an outbound command.
type Kind int

const (
	KindClear Kind = iota
	KindPosition
	KindBeepOn
	KindBeepOff
	KindMessage
	KindBackspace
	KindLine1
	KindLine2
)

func (k Kind) String() string {
	switch k {
	case KindClear:
		return "clear"
	case KindPosition:
		return "position"
	case KindBeepOn:
		return "beep-on"
	case KindBeepOff:
		return "beep-off"
	case KindMessage:
		return "message"
	case KindBackspace:
		return "backspace"
	case KindLine1:
		return "line1"
	case KindLine2:
		return "line2"
	default:
		return "unknown"
	}
}

// Command is a transient outbound command.  Only the fields relevant to
// Kind are read.
type Command struct {
	Kind      Kind
	Row       int
	Column    int
	Text      string
	BreakLine bool
}

// Encode returns the wire bytes for cmd.
func Encode(cmd Command) []byte {
	switch cmd.Kind {
	case KindClear:
		return Clear()
	case KindPosition:
		return Position(cmd.Row, cmd.Column)
	case KindBeepOn:
		return BeepOn()
	case KindBeepOff:
		return BeepOff()
	case KindMessage:
		return Message(cmd.Text, cmd.BreakLine)
	case KindBackspace:
		return Backspace()
	case KindLine1:
		return EnableLine1()
	case KindLine2:
		return EnableLine2()
	default:
		return nil
	}
}

// Clear homes the cursor and erases the display: ESC[H ESC[J.
func Clear() []byte {
	return []byte{ESC, '[', 'H', ESC, '[', 'J'}
}

// Position moves the cursor to an absolute cell: ESC[RR;CCH.  Rows
// outside 1..Rows wrap back to the first row.
func Position(row, column int) []byte {
	row = ClampRow(row)
	if column < 1 {
		column = 1
	}
	if column > 99 {
		column = 99
	}
	out := make([]byte, 0, 8)
	out = append(out, ESC, '[')
	out = appendPadded(out, row)
	out = append(out, ';')
	out = appendPadded(out, column)
	return append(out, 'H')
}

// ClampRow maps any row number into 1..Rows the way the terminal
// firmware expects: anything past the last row (or below the first)
// lands on row 1.
func ClampRow(row int) int {
	if row < 1 || row > Rows {
		return 1
	}
	return row
}

// NextRow advances row cyclically through 1..Rows.
func NextRow(row int) int {
	row++
	if row > Rows {
		return 1
	}
	return row
}

// BeepOn switches the buzzer on through the auxiliary print channel.
func BeepOn() []byte { return buzzer(BEL) }

// BeepOff switches the buzzer off.
func BeepOff() []byte { return buzzer(VT) }

func buzzer(b byte) []byte {
	return printChannel("?24c", b)
}

// EnableLine1 toggles the first auxiliary line.
func EnableLine1() []byte { return printChannel("?24r", CR, LF) }

// EnableLine2 toggles the second auxiliary line.
func EnableLine2() []byte { return printChannel("?24h", CR, LF) }

// printChannel wraps payload in ESC[<mode> ESC[5i ... ESC[4i.
func printChannel(mode string, payload ...byte) []byte {
	out := make([]byte, 0, len(mode)+len(payload)+10)
	out = append(out, ESC, '[')
	out = append(out, mode...)
	out = append(out, ESC, '[', '5', 'i')
	out = append(out, payload...)
	return append(out, ESC, '[', '4', 'i')
}

// Backspace erases the character left of the cursor: BS SP BS.
func Backspace() []byte {
	return []byte{BS, ' ', BS}
}

// Message returns text as ASCII, optionally followed by CRLF.
// Characters outside 7-bit ASCII become '?'.
func Message(text string, breakLine bool) []byte {
	out := make([]byte, 0, len(text)+2)
	for _, r := range text {
		if r > 127 {
			out = append(out, '?')
			continue
		}
		out = append(out, byte(r))
	}
	if breakLine {
		out = append(out, CR, LF)
	}
	return out
}

// Echo returns the bytes that draw b at (row, column).
func Echo(row, column int, b byte) []byte {
	return append(Position(row, column), b)
}

func appendPadded(dst []byte, n int) []byte {
	if n < 10 {
		dst = append(dst, '0')
	}
	return strconv.AppendInt(dst, int64(n), 10)
}
