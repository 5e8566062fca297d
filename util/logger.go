// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// fileTimeFormat is the timestamp layout of log file lines.
const fileTimeFormat = "2006-01-02 15:04:05.000 -07:00"

// sink is shared by a Logger and every child created with Named, so
// lines from concurrent connection handlers never interleave.
type sink struct {
	mu         sync.Mutex
	output     io.Writer
	file       io.Writer
	timestamps bool
}

// Logger writes levelled messages to stderr and, optionally, to a log
// file.  Console lines are filtered by verbosity; the file receives
// every level up to debug.
type Logger struct {
	level LogLevel
	name  string
	sink  *sink
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level: LogLevel(verbosity),
		sink: &sink{
			output:     os.Stderr,
			timestamps: verbosity >= 3,
		},
	}
}

// Named returns a child logger whose messages are prefixed with
// "name: ".  Children share output, file and locking with the parent.
func (l *Logger) Named(name string) *Logger {
	child := *l
	if l.name != "" {
		child.name = l.name + "." + name
	} else {
		child.name = name
	}
	return &child
}

// SetTimestamps enables or disables console timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.sink.mu.Lock()
	l.sink.timestamps = on
	l.sink.mu.Unlock()
}

// SetOutput overrides the console writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.mu.Unlock()
}

// SetFile adds a file sink.  Pass nil to detach it.
func (l *Logger) SetFile(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.file = w
	l.sink.mu.Unlock()
}

// Level returns the current console log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LogNormal, "INF", format, args...)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LogNormal, "WRN", format, args...)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.write(LogVerbose, "VRB", format, args...)
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LogDebug, "DBG", format, args...)
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LogQuiet, "ERR", format, args...)
}

func (l *Logger) write(min LogLevel, level, format string, args ...interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	toConsole := l.level >= min
	if !toConsole && s.file == nil {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		msg = l.name + ": " + msg
	}
	now := time.Now()

	if toConsole {
		if s.timestamps {
			fmt.Fprintf(s.output, "%s [%s] %s\n", now.Format("15:04:05.000"), level, msg)
		} else {
			fmt.Fprintf(s.output, "[%s] %s\n", level, msg)
		}
	}
	if s.file != nil {
		fmt.Fprintf(s.file, "%s [%s] %s\n", now.Format(fileTimeFormat), level, msg)
	}
}

// OpenLogFile opens path for appending, creating parent directories.
func OpenLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// ── Daily log file ───────────────────────────────────────────────────

// DailyFile writes to one file per local calendar day.  The date goes
// before the extension: "logs/relay.log" becomes "logs/relay-20240501.log".
type DailyFile struct {
	base string
	now  func() time.Time

	mu  sync.Mutex
	day string
	f   *os.File
}

// OpenDailyFile opens today's file for base.
func OpenDailyFile(base string) (*DailyFile, error) {
	d := &DailyFile{base: base, now: time.Now}
	if err := d.rotate(d.now().Format("20060102")); err != nil {
		return nil, err
	}
	return d, nil
}

// DatedPath returns the file name used for base on the given day.
func DatedPath(base string, day time.Time) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + day.Format("20060102") + ext
}

// Write appends p to the current day's file, switching files after
// midnight.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if day := d.now().Format("20060102"); day != d.day {
		if err := d.rotate(day); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

// Close closes the current file.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// rotate must be called with mu held, except from OpenDailyFile.
func (d *DailyFile) rotate(day string) error {
	t, _ := time.ParseInLocation("20060102", day, time.Local)
	f, err := OpenLogFile(DatedPath(d.base, t))
	if err != nil {
		return err
	}
	if d.f != nil {
		d.f.Close() //nolint:errcheck
	}
	d.f = f
	d.day = day
	return nil
}
