package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"zed/internal/input"
)

// ============================================================================
// zedctl - Command-line IPC Client
// ============================================================================
// Sends input to a running zed daemon through its IPC socket. The daemon
// treats it as the "remote" controller.
//
// Usage:
//   zedctl tap start
//   zedctl press a
//   zedctl axis vertical -32767
//   zedctl down
//   zedctl quit
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/zed.sock)
// ============================================================================

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const dialTimeout = 2 * time.Second

func main() {
	socketPath := "/tmp/zed.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		os.Exit(0)
	}

	requests, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	if err := send(socketPath, requests); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

// parseCommand turns a command line into the request lines to send.
func parseCommand(args []string) ([][]byte, error) {
	var evs []input.Event

	switch cmd := args[0]; cmd {
	case "press", "release", "tap":
		if len(args) < 2 {
			return nil, fmt.Errorf("%s requires a button name", cmd)
		}
		var b input.Button
		if err := b.UnmarshalText([]byte(args[1])); err != nil {
			return nil, err
		}
		if cmd != "release" {
			evs = append(evs, input.ButtonEvent{Button: b, Pressed: true})
		}
		if cmd != "press" {
			evs = append(evs, input.ButtonEvent{Button: b, Pressed: false})
		}

	case "axis":
		if len(args) < 3 {
			return nil, errors.New("axis requires an axis name and a value")
		}
		var a input.Axis
		if err := a.UnmarshalText([]byte(args[1])); err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(args[2], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid axis value: %w", err)
		}
		evs = append(evs, input.AxisEvent{Axis: a, Value: int16(v)})

	case "up", "down", "left", "right":
		evs = nudge(cmd)

	case "quit":
		line, err := json.Marshal(input.EventEnvelope{Type: "quit"})
		if err != nil {
			return nil, err
		}
		return [][]byte{line}, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}

	lines := make([][]byte, 0, len(evs))
	for _, ev := range evs {
		line, err := input.MarshalEvent(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal event: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// nudge is a full deflection in one direction followed by recentring.
func nudge(dir string) []input.Event {
	axis, value := input.AxisVertical, input.AxisMax
	switch dir {
	case "up":
		value = -input.AxisMax
	case "left":
		axis, value = input.AxisHorizontal, -input.AxisMax
	case "right":
		axis = input.AxisHorizontal
	}
	return []input.Event{
		input.AxisEvent{Axis: axis, Value: value},
		input.AxisEvent{Axis: axis, Value: 0},
	}
}

func send(socketPath string, lines [][]byte) error {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	for _, line := range lines {
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			return fmt.Errorf("send request: %w", err)
		}

		_ = conn.SetReadDeadline(time.Now().Add(dialTimeout))
		raw, err := r.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		var response IPCResponse
		if err := json.Unmarshal(raw, &response); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if response.Status == "error" {
			return fmt.Errorf("daemon error: %s", response.Error)
		}
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `zedctl - Drive a zed daemon via IPC

Usage:
  zedctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/zed.sock)

Commands:
  press <button>          Press a button (a b x y select start left_trigger right_trigger)
  release <button>        Release a button
  tap <button>            Press and release a button
  axis <axis> <value>     Set horizontal|vertical to -32767..32767
  up, down, left, right   Push the stick fully in one direction and recentre
  quit                    Ask the daemon to shut down
  help, -h, --help        Show this help message

Examples:
  zedctl tap start
  zedctl down && zedctl tap a
  zedctl -socket /run/zed.sock quit
`)
}
