package input

import "log/slog"

// RemoteID is the device id of the IPC-fed device.
const RemoteID = "remote"

// Remote is a device fed programmatically, by the IPC socket.
type Remote struct {
	*queue
}

func NewRemote(logger *slog.Logger) *Remote {
	return &Remote{queue: newQueue(RemoteID, defaultQueueSize, logger)}
}

// Push enqueues ev as if this device had produced it. The event's device
// field is overwritten with the remote id.
func (r *Remote) Push(ev Event) error {
	switch e := ev.(type) {
	case ButtonEvent:
		e.Device = r.id
		return r.push(e)
	case AxisEvent:
		e.Device = r.id
		return r.push(e)
	}
	return nil
}
