package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// message mirrors the status stream envelope.
type message struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type snapshot struct {
	Scenes        []string `json:"scenes"`
	Slots         []string `json:"slots"`
	Devices       []string `json:"devices"`
	Brightness    float64  `json:"brightness"`
	ShowFPS       bool     `json:"show_fps"`
	ErrorOccurred bool     `json:"error_occurred"`
}

// watcher prints what changed since the previous message of the same kind.
type watcher struct {
	out io.Writer

	mu     sync.Mutex
	scenes []string // nil means nothing seen yet
	slots  []string
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws/status", "zed status websocket URL")
		raw   = flag.Bool("raw", false, "Print every message as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// The server pings every 20s; a missed pong window means it is gone.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	w := &watcher{out: os.Stdout}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Printf("%s\n", data)
				continue
			}
			w.handle(data)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handle processes one status message.
func (w *watcher) handle(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		fmt.Fprintf(w.out, "[TEXT] %s\n", data)
		return
	}

	switch msg.Type {
	case "state_init":
		var s snapshot
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			fmt.Fprintf(w.out, "[STATE] %s\n", msg.Data)
			return
		}
		fmt.Fprintf(w.out, "[STATE] brightness=%.0f%% show_fps=%t error=%t devices=%s\n",
			s.Brightness*100, s.ShowFPS, s.ErrorOccurred, strings.Join(s.Devices, ","))
		w.scenesChanged(s.Scenes)
		w.slotsChanged(s.Slots)

	case "scene_stack":
		var scenes []string
		if err := json.Unmarshal(msg.Data, &scenes); err == nil {
			w.scenesChanged(scenes)
		}

	case "player_slots":
		var slots []string
		if err := json.Unmarshal(msg.Data, &slots); err == nil {
			w.slotsChanged(slots)
		}

	case "device_added":
		var d struct {
			Device string `json:"device"`
		}
		_ = json.Unmarshal(msg.Data, &d)
		fmt.Fprintf(w.out, "[DEVICE] %s\n", d.Device)

	case "error":
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(msg.Data, &e)
		fmt.Fprintf(w.out, "[ERROR] %s\n", e.Error)

	default:
		fmt.Fprintf(w.out, "[%s] %s\n", strings.ToUpper(msg.Type), msg.Data)
	}
}

func (w *watcher) scenesChanged(scenes []string) {
	w.mu.Lock()
	changed := w.scenes == nil || !slices.Equal(w.scenes, scenes)
	w.scenes = append([]string{}, scenes...)
	w.mu.Unlock()

	if changed {
		fmt.Fprintf(w.out, "[SCENES] %s\n", strings.Join(scenes, " > "))
	}
}

func (w *watcher) slotsChanged(slots []string) {
	w.mu.Lock()
	changed := w.slots == nil || !slices.Equal(w.slots, slots)
	w.slots = append([]string{}, slots...)
	w.mu.Unlock()

	if !changed {
		return
	}
	parts := make([]string, len(slots))
	for i, s := range slots {
		if s == "" {
			s = "-"
		}
		parts[i] = fmt.Sprintf("p%d=%s", i+1, s)
	}
	fmt.Fprintf(w.out, "[SLOTS] %s\n", strings.Join(parts, " "))
}
