package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Snapshot is the data payload of the "state_init" message.
type Snapshot struct {
	Scenes        []string `json:"scenes"`
	Slots         []string `json:"slots"`
	Devices       []string `json:"devices"`
	Brightness    float64  `json:"brightness"`
	ShowFPS       bool     `json:"show_fps"`
	ErrorOccurred bool     `json:"error_occurred"`
}

// envelope is the wire format of every message.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// Encode serializes one message.
func Encode(kind string, at time.Time, data any) ([]byte, error) {
	at = at.UTC()
	return json.Marshal(envelope{Type: kind, Ts: &at, Data: data})
}

// ============================================================================
// Server
// ============================================================================

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// snapshot builds the state_init payload. It is called from HTTP
	// handler goroutines and must only use goroutine-safe accessors.
	snapshot func() Snapshot
	now      func() time.Time
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the status server. Register it on a mux and run its
// hub with Hub().Run(ctx).
func NewServer(logger *slog.Logger, snapshot func() Snapshot, cfg ServerConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:   logger,
		hub:      NewHub(logger, cfg.Hub),
		snapshot: snapshot,
		now:      time.Now,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Notify broadcasts a state change to every client. It never blocks and is
// safe to call from any goroutine.
func (s *Server) Notify(kind string, data any) {
	msg, err := Encode(kind, s.now(), data)
	if err != nil {
		s.logger.Warn("failed to encode status message", "type", kind, "error", err)
		return
	}
	s.hub.Publish(msg)
}

// Register installs the WebSocket handler on mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStatusWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStatusWS upgrades the request and hands the connection to the hub.
// state_init is queued before the subscriber joins so it is always the
// first frame sent.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("status upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(conn, r.RemoteAddr, s.hub.outbox)
	if s.snapshot != nil {
		if msg, err := Encode("state_init", s.now(), s.snapshot()); err == nil {
			sub.offer(msg)
		} else {
			s.logger.Warn("failed to encode status snapshot", "error", err)
		}
	}

	// Not tied to the request context: net/http cancels it when the handler
	// returns.
	go s.hub.serve(sub)
}
