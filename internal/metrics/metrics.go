// Package metrics provides lightweight, lock-free counters for the
// relay: registered terminals, traffic, commits and failures.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Direction says who opened a terminal connection.
type Direction int

const (
	// Inbound connections were accepted from the terminal.
	Inbound Direction = iota
	// Outbound connections were dialed by the registry.
	Outbound
)

// Collector tracks runtime metrics for one relay.
type Collector struct {
	terminalsActive atomic.Int64
	terminalsTotal  atomic.Int64
	inbound         atomic.Int64
	outbound        atomic.Int64
	bytesIn         atomic.Int64
	bytesOut        atomic.Int64
	commits         atomic.Int64
	dialFailures    atomic.Int64
	eventsDropped   atomic.Int64
	errorsTotal     atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	commands     map[string]int64
	lastError    time.Time
	lastErrorMsg string
	jumpHost     string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now(), commands: make(map[string]int64)}
}

// ── Terminal connections ─────────────────────────────────────────────

// TerminalConnected records a new registry entry.
func (c *Collector) TerminalConnected(dir Direction) {
	if c == nil {
		return
	}
	c.terminalsActive.Add(1)
	c.terminalsTotal.Add(1)
	if dir == Outbound {
		c.outbound.Add(1)
	} else {
		c.inbound.Add(1)
	}
}

// TerminalDisconnected records the end of a terminal connection.
func (c *Collector) TerminalDisconnected() {
	if c == nil {
		return
	}
	c.terminalsActive.Add(-1)
}

// ActiveTerminals returns the number of open terminal connections.
func (c *Collector) ActiveTerminals() int64 {
	if c == nil {
		return 0
	}
	return c.terminalsActive.Load()
}

// TotalTerminals returns the lifetime connection count.
func (c *Collector) TotalTerminals() int64 {
	if c == nil {
		return 0
	}
	return c.terminalsTotal.Load()
}

// DialFailed records an outbound dial that did not connect.
func (c *Collector) DialFailed() {
	if c == nil {
		return
	}
	c.dialFailures.Add(1)
}

// ── I/O ──────────────────────────────────────────────────────────────

// BytesReceived records n bytes read from terminals.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to terminals.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Line discipline and commands ─────────────────────────────────────

// Commit records one finalized input line.
func (c *Collector) Commit() {
	if c == nil {
		return
	}
	c.commits.Add(1)
}

// Commits returns the number of lines committed.
func (c *Collector) Commits() int64 {
	if c == nil {
		return 0
	}
	return c.commits.Load()
}

// CommandSent records one outbound command of the given kind.
func (c *Collector) CommandSent(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commands[kind]++
	c.mu.Unlock()
}

// Commands returns the per-kind command count.
func (c *Collector) Commands(kind string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commands[kind]
}

// EventDropped records a notification discarded because a subscriber
// was not keeping up.
func (c *Collector) EventDropped() {
	if c == nil {
		return
	}
	c.eventsDropped.Add(1)
}

// EventsDropped returns the number of discarded notifications.
func (c *Collector) EventsDropped() int64 {
	if c == nil {
		return 0
	}
	return c.eventsDropped.Load()
}

// ── Jump host ────────────────────────────────────────────────────────

// JumpHostState records the jump-host circuit state ("closed", "open"
// or "half-open").  It stays empty when no jump host is configured.
func (c *Collector) JumpHostState(state string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jumpHost = state
	c.mu.Unlock()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// CommandCount is one row of the per-kind command table.
type CommandCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string         `json:"uptime"`
	TerminalsActive  int64          `json:"terminals_active"`
	TerminalsTotal   int64          `json:"terminals_total"`
	Inbound          int64          `json:"inbound"`
	Outbound         int64          `json:"outbound"`
	DialFailures     int64          `json:"dial_failures"`
	BytesIn          int64          `json:"bytes_in"`
	BytesOut         int64          `json:"bytes_out"`
	Commits          int64          `json:"commits"`
	Commands         []CommandCount `json:"commands,omitempty"`
	EventsDropped    int64          `json:"events_dropped"`
	JumpHost         string         `json:"jump_host,omitempty"`
	ErrorsTotal      int64          `json:"errors_total"`
	LastError        string         `json:"last_error,omitempty"`
	LastErrorMessage string         `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		TerminalsActive: c.terminalsActive.Load(),
		TerminalsTotal:  c.terminalsTotal.Load(),
		Inbound:         c.inbound.Load(),
		Outbound:        c.outbound.Load(),
		DialFailures:    c.dialFailures.Load(),
		BytesIn:         c.bytesIn.Load(),
		BytesOut:        c.bytesOut.Load(),
		Commits:         c.commits.Load(),
		EventsDropped:   c.eventsDropped.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		JumpHost:        c.jumpHost,
	}
	for kind, n := range c.commands {
		s.Commands = append(s.Commands, CommandCount{Kind: kind, Count: n})
	}
	sort.Slice(s.Commands, func(i, j int) bool { return s.Commands[i].Kind < s.Commands[j].Kind })
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
