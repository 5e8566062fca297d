package session

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"vtrelay/internal/vt100"
)

// recorder is an in-memory Echo that keeps each logical write apart.
type recorder struct {
	writes [][]byte
	failAt int // 1-based write number that fails; 0 = never
}

func (r *recorder) Send(parts ...[]byte) error {
	if r.failAt > 0 && len(r.writes)+1 == r.failAt {
		return errors.New("broken pipe")
	}
	r.writes = append(r.writes, bytes.Join(parts, nil))
	return nil
}

func (r *recorder) all() string {
	return string(bytes.Join(r.writes, nil))
}

func newTestDiscipline() (*Discipline, *recorder, *[]string) {
	rec := &recorder{}
	var commits []string
	d := NewDiscipline(rec, func(text string) { commits = append(commits, text) })
	return d, rec, &commits
}

func TestDiscipline_CommitOnCR(t *testing.T) {
	d, rec, commits := newTestDiscipline()

	if err := d.Feed([]byte("AB")); err != nil {
		t.Fatal(err)
	}
	if err := d.Feed([]byte{vt100.CR}); err != nil {
		t.Fatal(err)
	}

	if len(*commits) != 1 || (*commits)[0] != "AB" {
		t.Fatalf("commits = %q, want [\"AB\"]", *commits)
	}
	s := d.State()
	if s.Len() != 0 || s.Row != 2 || s.Column != 0 {
		t.Errorf("state = row %d col %d len %d, want row 2 col 0 len 0", s.Row, s.Column, s.Len())
	}
	if got, want := rec.all(), "\x1b[01;01HA\x1b[01;02HB"; got != want {
		t.Errorf("echo = %q, want %q", got, want)
	}
}

func TestDiscipline_ControlBytesInsideChunk(t *testing.T) {
	d, _, commits := newTestDiscipline()

	if err := d.Feed([]byte("12\r34\r")); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(*commits, ","); got != "12,34" {
		t.Errorf("commits = %q, want %q", got, "12,34")
	}
	if d.State().Row != 3 {
		t.Errorf("row = %d, want 3", d.State().Row)
	}
}

func TestDiscipline_CommitEqualsPrintables(t *testing.T) {
	inputs := []string{"", "X", "HELLO WORLD", "0123456789012345678901234567890123456789ABCDEFG"}
	for _, in := range inputs {
		d, _, commits := newTestDiscipline()
		// Deliver one byte per read, the way terminals usually send.
		for i := 0; i < len(in); i++ {
			if err := d.Feed([]byte{in[i]}); err != nil {
				t.Fatal(err)
			}
		}
		if err := d.Feed([]byte{vt100.CR}); err != nil {
			t.Fatal(err)
		}
		if len(*commits) != 1 || (*commits)[0] != in {
			t.Errorf("input %q: commits = %q", in, *commits)
		}
	}
}

func TestDiscipline_BackspaceEmptyIsNoop(t *testing.T) {
	d, rec, _ := newTestDiscipline()

	if err := d.Feed([]byte{vt100.BS}); err != nil {
		t.Fatal(err)
	}
	s := d.State()
	if s.Len() != 0 || s.Column != 0 || s.Row != 1 {
		t.Errorf("state changed: row %d col %d len %d", s.Row, s.Column, s.Len())
	}
	if len(rec.writes) != 0 {
		t.Errorf("backspace on empty buffer echoed %q", rec.all())
	}
}

func TestDiscipline_BackspaceRemovesOne(t *testing.T) {
	d, rec, commits := newTestDiscipline()

	d.Feed([]byte("ABC")) //nolint:errcheck
	rec.writes = nil
	if err := d.Feed([]byte{vt100.BS}); err != nil {
		t.Fatal(err)
	}

	s := d.State()
	if s.Text() != "AB" || s.Column != 2 {
		t.Errorf("state = %q col %d, want \"AB\" col 2", s.Text(), s.Column)
	}
	if got := rec.all(); got != "\b \b" {
		t.Errorf("echo = %q, want %q", got, "\b \b")
	}

	d.Feed([]byte{vt100.CR}) //nolint:errcheck
	if (*commits)[0] != "AB" {
		t.Errorf("commit = %q", (*commits)[0])
	}
}

func TestDiscipline_BackspaceColumnFloor(t *testing.T) {
	d, _, _ := newTestDiscipline()

	// 21 characters wrap to column 1 of row 2; two backspaces must
	// stop the column at 0 while still shortening the buffer.
	d.Feed([]byte(strings.Repeat("x", 21))) //nolint:errcheck
	d.Feed([]byte{vt100.BS, vt100.BS})      //nolint:errcheck

	s := d.State()
	if s.Column != 0 {
		t.Errorf("column = %d, want 0", s.Column)
	}
	if s.Len() != 19 {
		t.Errorf("len = %d, want 19", s.Len())
	}
}

func TestDiscipline_BackspaceThenCommit(t *testing.T) {
	d, _, commits := newTestDiscipline()

	d.Feed([]byte("A"))      //nolint:errcheck
	d.Feed([]byte{vt100.BS}) //nolint:errcheck
	d.Feed([]byte{vt100.CR}) //nolint:errcheck

	if len(*commits) != 1 || (*commits)[0] != "" {
		t.Errorf("commits = %q, want [\"\"]", *commits)
	}
}

func TestDiscipline_Wrap(t *testing.T) {
	d, rec, _ := newTestDiscipline()

	d.Feed([]byte(strings.Repeat("y", 20))) //nolint:errcheck
	s := d.State()
	if s.Row != 1 || s.Column != 20 {
		t.Fatalf("after 20: row %d col %d, want row 1 col 20", s.Row, s.Column)
	}

	d.Feed([]byte("z")) //nolint:errcheck
	if s.Row != 2 || s.Column != 1 {
		t.Errorf("after 21: row %d col %d, want row 2 col 1", s.Row, s.Column)
	}
	if s.Len() != 21 {
		t.Errorf("buffer holds %d chars, want 21", s.Len())
	}
	if last := string(rec.writes[len(rec.writes)-1]); last != "\x1b[02;01Hz" {
		t.Errorf("last echo = %q", last)
	}
}

func TestDiscipline_ColumnNeverExceedsLimit(t *testing.T) {
	d, _, _ := newTestDiscipline()
	for i := 0; i < 500; i++ {
		d.Feed([]byte{'a' + byte(i%26)}) //nolint:errcheck
		s := d.State()
		if s.Column < 1 || s.Column > vt100.Columns {
			t.Fatalf("step %d: column %d out of range", i, s.Column)
		}
		if s.Row < 1 || s.Row > vt100.Rows {
			t.Fatalf("step %d: row %d out of range", i, s.Row)
		}
	}
}

func TestDiscipline_RowCycles(t *testing.T) {
	d, _, _ := newTestDiscipline()
	want := []int{2, 3, 4, 1, 2}
	for i, w := range want {
		d.Feed([]byte{vt100.CR}) //nolint:errcheck
		if got := d.State().Row; got != w {
			t.Errorf("CR %d: row = %d, want %d", i+1, got, w)
		}
	}
}

func TestDiscipline_EscapeClears(t *testing.T) {
	for _, ctl := range []byte{vt100.ESC, vt100.DEL} {
		d, rec, commits := newTestDiscipline()

		d.Feed([]byte("AB")) //nolint:errcheck
		rec.writes = nil
		if err := d.Feed([]byte{ctl}); err != nil {
			t.Fatal(err)
		}

		s := d.State()
		if s.Len() != 0 || s.Column != 0 {
			t.Errorf("byte %d: len %d col %d, want 0 0", ctl, s.Len(), s.Column)
		}
		if len(*commits) != 0 {
			t.Errorf("byte %d: unexpected commit %q", ctl, *commits)
		}
		if len(rec.writes) != 1 || string(rec.writes[0]) != "\x1b[01;01H\x1b[H\x1b[J" {
			t.Errorf("byte %d: echo = %q", ctl, rec.all())
		}
	}
}

func TestDiscipline_EchoFailureStopsChunk(t *testing.T) {
	rec := &recorder{failAt: 2}
	d := NewDiscipline(rec, nil)

	err := d.Feed([]byte("ABC"))
	if err == nil {
		t.Fatal("expected echo error")
	}
	// The failing byte is already part of the state; the rest of the
	// chunk is never processed.
	if got := d.State().Text(); got != "AB" {
		t.Errorf("buffer = %q, want %q", got, "AB")
	}
}

func TestDiscipline_Apply(t *testing.T) {
	d, _, _ := newTestDiscipline()
	d.Feed([]byte("HELLO")) //nolint:errcheck

	d.Apply(Directive{Reset: true})
	s := d.State()
	if s.Len() != 0 || s.Row != 1 || s.Column != 0 {
		t.Errorf("after reset: row %d col %d len %d", s.Row, s.Column, s.Len())
	}

	d.Apply(Directive{Move: true, Row: 3, Column: 5})
	if s.Row != 3 || s.Column != 4 {
		t.Errorf("after move: row %d col %d, want 3 4", s.Row, s.Column)
	}
	d.Feed([]byte("Q")) //nolint:errcheck
	if s.Column != 5 {
		t.Errorf("next char column = %d, want 5", s.Column)
	}

	d.Apply(Directive{Move: true, Row: 9, Column: 99})
	if s.Row != 1 || s.Column != vt100.Columns {
		t.Errorf("clamped move: row %d col %d", s.Row, s.Column)
	}
}

func TestDirective_Merge(t *testing.T) {
	move := Directive{Move: true, Row: 2, Column: 3}
	reset := Directive{Reset: true}

	if got := move.Merge(reset); got != reset {
		t.Errorf("move+reset = %+v, want reset only", got)
	}
	got := reset.Merge(move)
	if !got.Reset || !got.Move || got.Row != 2 || got.Column != 3 {
		t.Errorf("reset+move = %+v", got)
	}
	if !(Directive{}).Empty() || move.Empty() {
		t.Error("Empty() misreports")
	}
}
