// Package api exposes the relay over HTTP: JSON endpoints that send
// commands to terminals and a websocket stream of terminal events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	vterr "vtrelay/internal/errors"
	"vtrelay/internal/metrics"
	"vtrelay/relay"
	"vtrelay/util"
)

const (
	wsBuffer       = 64
	wsWriteTimeout = 5 * time.Second
	maxBodyBytes   = 4 << 10
)

// Relay is the part of the relay server the API drives.
type Relay interface {
	Terminals() []string
	Metrics() *metrics.Collector
	Subscribe(buffer int) (<-chan relay.Event, func())

	SendMessage(ctx context.Context, ip, text string, breakLine bool) error
	ClearDisplay(ctx context.Context, ip string) error
	PositionCursor(ctx context.Context, ip string, row, col int) error
	Beep(ctx context.Context, ip string, d time.Duration) error
	EnableLine1(ctx context.Context, ip string) error
	EnableLine2(ctx context.Context, ip string) error
}

var _ Relay = (*relay.Server)(nil)

// Server is the control API.
type Server struct {
	relay    Relay
	logger   *util.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	http *http.Server
	ln   net.Listener
}

// New creates the API for r.
func New(r Relay, logger *util.Logger) *Server {
	return &Server{
		relay:  r,
		logger: logger.Named("api"),
		upgrader: websocket.Upgrader{
			// The API has no browser front end; any origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/terminals", s.handleTerminals)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("POST /api/terminals/{ip}/message", s.handleMessage)
	mux.HandleFunc("POST /api/terminals/{ip}/clear", s.handleClear)
	mux.HandleFunc("POST /api/terminals/{ip}/position", s.handlePosition)
	mux.HandleFunc("POST /api/terminals/{ip}/beep", s.handleBeep)
	mux.HandleFunc("POST /api/terminals/{ip}/line1", s.handleLine1)
	mux.HandleFunc("POST /api/terminals/{ip}/line2", s.handleLine2)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return vterr.Wrap("listen", addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("control API on http://%s", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ── read-only endpoints ──────────────────────────────────────────────

func (s *Server) handleTerminals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"terminals": s.relay.Terminals()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.relay.Metrics().Snapshot())
}

// ── commands ─────────────────────────────────────────────────────────

type messageRequest struct {
	Text      string `json:"text"`
	BreakLine bool   `json:"break_line"`
}

type positionRequest struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

type beepRequest struct {
	DurationMS int `json:"duration_ms"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decode(w, r, &req, false) {
		return
	}
	s.result(w, r, s.relay.SendMessage(r.Context(), r.PathValue("ip"), req.Text, req.BreakLine))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.result(w, r, s.relay.ClearDisplay(r.Context(), r.PathValue("ip")))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !decode(w, r, &req, false) {
		return
	}
	if req.Row < 1 || req.Column < 1 {
		writeError(w, http.StatusBadRequest, "row and column must be at least 1")
		return
	}
	s.result(w, r, s.relay.PositionCursor(r.Context(), r.PathValue("ip"), req.Row, req.Column))
}

func (s *Server) handleBeep(w http.ResponseWriter, r *http.Request) {
	var req beepRequest
	if !decode(w, r, &req, true) {
		return
	}
	if req.DurationMS < 0 {
		writeError(w, http.StatusBadRequest, "duration_ms must not be negative")
		return
	}
	d := time.Duration(req.DurationMS) * time.Millisecond
	s.result(w, r, s.relay.Beep(r.Context(), r.PathValue("ip"), d))
}

func (s *Server) handleLine1(w http.ResponseWriter, r *http.Request) {
	s.result(w, r, s.relay.EnableLine1(r.Context(), r.PathValue("ip")))
}

func (s *Server) handleLine2(w http.ResponseWriter, r *http.Request) {
	s.result(w, r, s.relay.EnableLine2(r.Context(), r.PathValue("ip")))
}

// result maps a command outcome to a status: 202 sent, 400 bad address,
// 502 terminal unreachable or gone, 503 relay stopped.
func (s *Server) result(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vterr.ErrServerStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, vterr.ErrPeerNotFound):
		status = http.StatusBadRequest
	case vterr.IsTerminalFailure(err):
		status = http.StatusBadGateway
	}
	s.logger.Debug("%s %s: %d %v", r.Method, r.URL.Path, status, err)
	writeError(w, status, err.Error())
}

// ── websocket ────────────────────────────────────────────────────────

// handleWS streams relay events as JSON text messages until either side
// goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := s.relay.Subscribe(wsBuffer)
	defer cancel()
	s.logger.Verbose("event subscriber %s connected", r.RemoteAddr)

	// Reads only detect the peer closing; incoming messages are ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)) //nolint:errcheck
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Debug("ws write to %s: %v", r.RemoteAddr, err)
			break
		}
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck
	s.logger.Verbose("event subscriber %s disconnected", r.RemoteAddr)
}

// ── helpers ──────────────────────────────────────────────────────────

// decode reads a JSON body into v.  An empty body is accepted when
// optional is set.  On failure it writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
