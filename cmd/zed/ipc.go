package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"zed/internal/input"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// External clients (zedctl, scripts, test rigs) drive the cabinet through a
// Unix domain socket as if they were a controller.
//
// Protocol: Line-delimited JSON
//   - {"type":"button","data":{"button":"a","pressed":true}}
//   - {"type":"axis","data":{"axis":"vertical","value":-32767}}
//   - {"type":"quit"}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//
// Events are injected through the "remote" device regardless of the device
// field the client sends.
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string `json:"status"`          // "ok" or "error"
	Error  string `json:"error,omitempty"` // error message if status == "error"
}

const ipcTypeQuit = "quit"

// ipcTarget is what the IPC server drives.
type ipcTarget struct {
	remote *input.Remote
	quit   func()
}

// runIPCServer serves the socket until ctx is canceled.
func runIPCServer(ctx context.Context, socketPath string, target ipcTarget, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, target, logger)
	}
}

// handleIPCConnection handles a single IPC connection
func handleIPCConnection(conn net.Conn, target ipcTarget, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	reply := func(err error) {
		resp := IPCResponse{Status: "ok"}
		if err != nil {
			resp = IPCResponse{Status: "error", Error: err.Error()}
		}
		if encErr := encoder.Encode(resp); encErr != nil {
			logger.Error("IPC failed to send response", "error", encErr)
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		logger.Debug("IPC received", "line", string(line))
		reply(dispatchIPCLine(line, target))
	}

	logger.Debug("IPC connection closed")
}

// dispatchIPCLine applies one request line to target.
func dispatchIPCLine(line []byte, target ipcTarget) error {
	var env input.EventEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return fmt.Errorf("parse event: %w", err)
	}
	if env.Type == ipcTypeQuit {
		if target.quit != nil {
			target.quit()
		}
		return nil
	}

	ev, err := input.UnmarshalEvent(line)
	if err != nil {
		return fmt.Errorf("parse event: %w", err)
	}
	if target.remote == nil {
		return errors.New("remote input disabled")
	}
	if err := target.remote.Push(ev); err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}
