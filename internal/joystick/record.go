// Package joystick decodes the Linux joystick API event stream.
//
// Every read from /dev/input/jsN yields fixed 8-byte records:
//
//	struct js_event { __u32 time; __s16 value; __u8 type; __u8 number; };
//
// The package is pure: it performs no I/O beyond the io.Reader it is handed
// and keeps no state between records.
package joystick

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// RecordSize is the size of one js_event on the wire.
const RecordSize = 8

// Type bits of the js_event type byte.
const (
	TypeButton uint8 = 0x01
	TypeAxis   uint8 = 0x02
	TypeInit   uint8 = 0x80
)

// ErrShortRecord is returned when fewer than RecordSize bytes are supplied.
var ErrShortRecord = errors.New("joystick: short record")

// Record is one decoded js_event.
type Record struct {
	Time    uint32 // milliseconds, driver clock
	Value   int16
	Type    uint8
	Address uint8 // js_event.number: stable index of the physical control
}

// Decode decodes the first RecordSize bytes of b.
func Decode(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, ErrShortRecord
	}
	var r Record
	if err := binary.Read(bytes.NewReader(b[:RecordSize]), binary.LittleEndian, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// ReadRecord reads and decodes exactly one record from r.
func ReadRecord(r io.Reader) (Record, error) {
	var buf [RecordSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Record{}, err
	}
	return Decode(buf[:])
}

// Encode returns the wire form of r.
func (r Record) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	_ = binary.Write(&buf, binary.LittleEndian, r)
	return buf.Bytes()
}

// kind strips the init flag so a replayed record classifies like a live one.
func (r Record) kind() uint8 { return r.Type &^ TypeInit }

// IsButton reports whether the record describes a button.
func (r Record) IsButton() bool { return r.kind() == TypeButton }

// IsAxis reports whether the record describes an axis.
func (r Record) IsAxis() bool { return r.kind() == TypeAxis }

// IsConfiguration reports whether the record is part of the initial state
// replay the driver sends when the device is opened.
func (r Record) IsConfiguration() bool { return r.Type&TypeInit != 0 }

// IsButtonPressed reports a non-zero button value.
func (r Record) IsButtonPressed() bool { return r.Value != 0 }

// AxisValue returns the raw axis deflection.
func (r Record) AxisValue() int16 { return r.Value }
