//go:build !linux

package input

import "context"

// watchHotplug is unavailable off Linux; discovery falls back to the
// periodic scan alone.
func watchHotplug(ctx context.Context, dir string) (<-chan struct{}, error) {
	return nil, nil
}
