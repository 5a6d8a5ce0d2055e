package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/term"

	"zed/internal/input"
)

// consoleReadTimeout bounds each tty read so shutdown is noticed promptly.
const consoleReadTimeout = 100 * time.Millisecond

// runConsole puts the controlling terminal into raw mode and feeds its keys
// to kb until ctx is canceled. The terminal is restored on return.
func runConsole(ctx context.Context, path string, kb *input.Keyboard, logger *slog.Logger) error {
	t, err := term.Open(path, term.RawMode)
	if err != nil {
		return fmt.Errorf("open console %s: %w", path, err)
	}
	defer func() {
		if err := t.Restore(); err != nil {
			logger.Warn("failed to restore console", "error", err)
		}
		_ = t.Close()
	}()

	if err := t.SetReadTimeout(consoleReadTimeout); err != nil {
		return fmt.Errorf("set console read timeout: %w", err)
	}

	logger.Info("keyboard console attached", "tty", path)
	return kb.RunConsole(ctx, t)
}

// attachKeyboard tracks kb as an input device. In debug mode it also takes
// player one's slot; otherwise it waits for a controller assignment like
// any other device.
func attachKeyboard(mgr *input.Manager, kb *input.Keyboard, debug bool) {
	mgr.AddDevice(kb)
	if debug {
		mgr.SetDeviceForPlayer(input.PlayerOne, kb)
	}
}
