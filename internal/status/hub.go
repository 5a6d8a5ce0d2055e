// Package status streams diagnostic state (scene stack, player slots,
// devices, failures) to WebSocket clients.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	defaultOutbox  = 32
	defaultBacklog = 128

	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// Hub fans serialized frames out to connected subscribers. A subscriber
// whose outbox is full when a frame arrives is dropped.
type Hub struct {
	logger *slog.Logger
	frames chan []byte
	outbox int

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type HubConfig struct {
	// Outbox is the per-subscriber frame queue. Zero means 32.
	Outbox int
	// Backlog is how many frames may wait for fan-out. Zero means 128.
	Backlog int
}

func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	if cfg.Outbox <= 0 {
		cfg.Outbox = defaultOutbox
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = defaultBacklog
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		frames: make(chan []byte, cfg.Backlog),
		outbox: cfg.Outbox,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Run fans out published frames until ctx is canceled, then disconnects
// every subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case frame := <-h.frames:
			for _, s := range h.deliver(frame) {
				h.leave(s, "outbox full")
			}
		}
	}
}

// Publish queues a frame for fan-out without blocking. The frame is dropped
// when the backlog is full.
func (h *Hub) Publish(frame []byte) {
	select {
	case h.frames <- frame:
	default:
		h.logger.Warn("status backlog full, dropping frame", "bytes", len(frame))
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// deliver offers frame to every subscriber and returns the ones without room.
func (h *Hub) deliver(frame []byte) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	var full []*subscriber
	for s := range h.subs {
		if !s.offer(frame) {
			full = append(full, s)
		}
	}
	return full
}

func (h *Hub) join(s *subscriber) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.shut()
		return
	}
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Info("status client connected", "remote_addr", s.addr, "clients", n)
}

// leave drops s and closes its outbox. Only the first call for a given
// subscriber logs.
func (h *Hub) leave(s *subscriber, reason string) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}
	s.shut()
	h.logger.Info("status client disconnected", "remote_addr", s.addr, "reason", reason, "clients", n)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.closed = true
	h.mu.Unlock()

	for s := range subs {
		s.shut()
	}
	h.logger.Debug("status hub stopped", "clients", len(subs))
}

// serve joins s and runs both directions of its socket. It returns once the
// connection is finished in both directions.
func (h *Hub) serve(s *subscriber) {
	h.join(s)

	var g errgroup.Group
	g.Go(func() error {
		err := s.pushFrames()
		h.leave(s, "write")
		return err
	})
	g.Go(func() error {
		err := s.discardInbound()
		h.leave(s, "read")
		return err
	})
	if err := g.Wait(); err != nil {
		h.logEnd(s, err)
	}
}

func (h *Hub) logEnd(s *subscriber, err error) {
	var ce *websocket.CloseError
	switch {
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, net.ErrClosed):
	case errors.As(err, &ce):
		h.logger.Debug("status client sent close", "remote_addr", s.addr, "code", ce.Code, "reason", ce.Text)
	default:
		h.logger.Debug("status connection ended", "remote_addr", s.addr, "error", err)
	}
}

// ============================================================================
// subscriber
// ============================================================================

// subscriber is one WebSocket connection. A nil conn is allowed in tests
// that only exercise fan-out.
type subscriber struct {
	conn   *websocket.Conn
	addr   string
	outbox chan []byte
	once   sync.Once
}

func newSubscriber(conn *websocket.Conn, addr string, outbox int) *subscriber {
	return &subscriber{
		conn:   conn,
		addr:   addr,
		outbox: make(chan []byte, outbox),
	}
}

func (s *subscriber) offer(frame []byte) bool {
	select {
	case s.outbox <- frame:
		return true
	default:
		return false
	}
}

// shut closes the outbox and the socket. Repeated calls are harmless.
func (s *subscriber) shut() {
	s.once.Do(func() {
		close(s.outbox)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// pushFrames writes queued frames and keepalive pings until the outbox is
// closed or a write fails.
func (s *subscriber) pushFrames() error {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		kind, payload := websocket.PingMessage, []byte(nil)
		select {
		case frame, ok := <-s.outbox:
			if !ok {
				_ = s.write(websocket.CloseMessage, nil)
				return nil
			}
			kind, payload = websocket.TextMessage, frame
		case <-ping.C:
		}
		if err := s.write(kind, payload); err != nil {
			return err
		}
	}
}

func (s *subscriber) write(kind int, payload []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(kind, payload)
}

// discardInbound reads until the peer goes away. Nothing is expected from
// clients, but reading is what processes pongs and close frames.
func (s *subscriber) discardInbound() error {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return err
		}
	}
}
