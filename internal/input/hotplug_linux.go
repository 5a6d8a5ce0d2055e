//go:build linux

package input

import (
	"context"
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pollTimeoutMS bounds each wait so cancellation is noticed promptly.
const pollTimeoutMS = 250

// watchHotplug reports on the returned channel whenever a joystick node
// ("js*") is created in dir. The channel is closed when ctx is cancelled or
// the watch fails.
func watchHotplug(ctx context.Context, dir string) (<-chan struct{}, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, dir, unix.IN_CREATE|unix.IN_ATTRIB); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inotify add watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer unix.Close(fd)

		buf := make([]byte, 4096)
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

		for ctx.Err() == nil {
			n, err := unix.Poll(fds, pollTimeoutMS)
			if err == unix.EINTR || n == 0 {
				continue
			}
			if err != nil {
				return
			}

			r, err := unix.Read(fd, buf)
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			if err != nil || r <= 0 {
				return
			}
			if !hasJoystickNode(buf[:r]) {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

// hasJoystickNode walks a buffer of inotify records looking for a js* name.
func hasJoystickNode(buf []byte) bool {
	var offset uint32
	for offset+unix.SizeofInotifyEvent <= uint32(len(buf)) {
		ev := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		start := offset + unix.SizeofInotifyEvent
		end := start + ev.Len
		if end > uint32(len(buf)) {
			return false
		}
		name := strings.TrimRight(string(buf[start:end]), "\x00")
		if strings.HasPrefix(name, "js") {
			return true
		}
		offset = end
	}
	return false
}
