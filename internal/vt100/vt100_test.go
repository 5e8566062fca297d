package vt100

import (
	"bytes"
	"testing"
)

func TestClear(t *testing.T) {
	if got, want := Clear(), []byte("\x1b[H\x1b[J"); !bytes.Equal(got, want) {
		t.Errorf("Clear() = %q, want %q", got, want)
	}
}

func TestPosition(t *testing.T) {
	tests := []struct {
		row, col int
		want     string
	}{
		{1, 1, "\x1b[01;01H"},
		{4, 20, "\x1b[04;20H"},
		{2, 9, "\x1b[02;09H"},
		{5, 3, "\x1b[01;03H"},   // row past the display wraps to 1
		{0, 3, "\x1b[01;03H"},   // row below the display
		{3, 0, "\x1b[03;01H"},   // column floor
		{3, 150, "\x1b[03;99H"}, // two digits max
	}
	for _, tt := range tests {
		if got := string(Position(tt.row, tt.col)); got != tt.want {
			t.Errorf("Position(%d, %d) = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestBeep(t *testing.T) {
	if got, want := string(BeepOn()), "\x1b[?24c\x1b[5i\x07\x1b[4i"; got != want {
		t.Errorf("BeepOn() = %q, want %q", got, want)
	}
	if got, want := string(BeepOff()), "\x1b[?24c\x1b[5i\x0b\x1b[4i"; got != want {
		t.Errorf("BeepOff() = %q, want %q", got, want)
	}
}

func TestLines(t *testing.T) {
	if got, want := string(EnableLine1()), "\x1b[?24r\x1b[5i\r\n\x1b[4i"; got != want {
		t.Errorf("EnableLine1() = %q, want %q", got, want)
	}
	if got, want := string(EnableLine2()), "\x1b[?24h\x1b[5i\r\n\x1b[4i"; got != want {
		t.Errorf("EnableLine2() = %q, want %q", got, want)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		text      string
		breakLine bool
		want      string
	}{
		{"HELLO", false, "HELLO"},
		{"HELLO", true, "HELLO\r\n"},
		{"", true, "\r\n"},
		{"café", false, "caf?"},
	}
	for _, tt := range tests {
		if got := string(Message(tt.text, tt.breakLine)); got != tt.want {
			t.Errorf("Message(%q, %v) = %q, want %q", tt.text, tt.breakLine, got, tt.want)
		}
	}
}

func TestNextRow(t *testing.T) {
	want := []int{2, 3, 4, 1}
	for i, row := range []int{1, 2, 3, 4} {
		if got := NextRow(row); got != want[i] {
			t.Errorf("NextRow(%d) = %d, want %d", row, got, want[i])
		}
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		cmd  Command
		want []byte
	}{
		{Command{Kind: KindClear}, Clear()},
		{Command{Kind: KindPosition, Row: 2, Column: 7}, Position(2, 7)},
		{Command{Kind: KindBeepOn}, BeepOn()},
		{Command{Kind: KindBeepOff}, BeepOff()},
		{Command{Kind: KindMessage, Text: "OK", BreakLine: true}, []byte("OK\r\n")},
		{Command{Kind: KindBackspace}, []byte("\b \b")},
		{Command{Kind: KindLine1}, EnableLine1()},
		{Command{Kind: KindLine2}, EnableLine2()},
		{Command{Kind: Kind(99)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Kind.String(), func(t *testing.T) {
			if got := Encode(tt.cmd); !bytes.Equal(got, tt.want) {
				t.Errorf("Encode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEcho(t *testing.T) {
	if got, want := string(Echo(3, 12, 'X')), "\x1b[03;12HX"; got != want {
		t.Errorf("Echo = %q, want %q", got, want)
	}
}
