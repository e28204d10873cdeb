// Package protocol implements the raw HID command packet format spoken by
// the keyboards: fixed-size reports carrying a command byte, a length byte
// and a short payload, plus the fragmentation scheme used to stream per-LED
// color data across multiple reports.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// ReportID prefixes every outbound report. The keyboards use a single
	// report per interface, so it is always zero.
	ReportID = 0x00

	// headerSize is the outbound framing overhead: report id, command byte
	// and data length byte. Inbound reports arrive without the report id.
	headerSize = 3

	// DefaultPacketSize is the report size both current keyboard models use.
	DefaultPacketSize = 32
)

var (
	// ErrPayloadTooLarge means a caller tried to encode more payload than
	// the report can carry. This is a caller defect (for LED data the
	// fragmenter exists precisely to avoid it), so it is never retried.
	ErrPayloadTooLarge = errors.New("payload too large for packet")

	// ErrCorruptResponse means an inbound report was too short to carry the
	// command header, or its declared data length overran the buffer.
	ErrCorruptResponse = errors.New("corrupt response packet")

	// ErrUnknownCommand means an inbound report carried a command byte
	// outside the keyboard-to-host range.
	ErrUnknownCommand = errors.New("unknown command")
)

// Event is the decoded form of one inbound report. Command selects which of
// the payload fields is meaningful.
type Event struct {
	Command Command

	MemberID  uint8  // CmdSwitchFronterRequest: requested member id
	LayerMask uint32 // CmdLayerChangeNotify: active layer bitmask
	Data      []byte // CmdRawDebugMessage, CmdDebugMessage: message bytes
}

// None reports whether the event carries no command (empty read or padding).
func (e Event) None() bool { return e.Command == CmdNone }

// PayloadCapacity returns the payload bytes available in a report of the
// given total size, after framing overhead.
func PayloadCapacity(packetSize int) int { return packetSize - headerSize }

// Encode frames a host to keyboard command into a full report of exactly
// packetSize bytes: report id, command, payload length, payload, zero
// padding. The bound is checked up front; an oversized payload is rejected
// whole rather than truncated.
func Encode(cmd Command, payload []byte, packetSize int) ([]byte, error) {
	if headerSize+len(payload) > packetSize {
		return nil, fmt.Errorf("%w: %s with %d data bytes, capacity %d",
			ErrPayloadTooLarge, cmd, len(payload), PayloadCapacity(packetSize))
	}
	buf := make([]byte, packetSize)
	buf[0] = ReportID
	buf[1] = byte(cmd)
	buf[2] = byte(len(payload))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// Decode parses one inbound report. An empty buffer decodes to the zero
// Event, as does a report whose command byte is zero; both mean "nothing
// received". The declared data length is checked against the actual buffer
// before any slicing, and trailing padding is never inspected.
func Decode(buf []byte) (Event, error) {
	if len(buf) == 0 {
		return Event{}, nil
	}
	if len(buf) < headerSize {
		return Event{}, fmt.Errorf("%w: %d byte report", ErrCorruptResponse, len(buf))
	}
	cmd := Command(buf[0])
	if cmd == CmdNone {
		return Event{}, nil
	}
	n := int(buf[1])
	if n > len(buf)-2 {
		return Event{}, fmt.Errorf("%w: %s declares %d data bytes, %d in report",
			ErrCorruptResponse, cmd, n, len(buf)-2)
	}
	data := buf[2 : 2+n]

	switch cmd {
	case CmdSwitchFronterRequest:
		if n < 1 {
			return Event{}, fmt.Errorf("%w: %s without a member id", ErrCorruptResponse, cmd)
		}
		return Event{Command: cmd, MemberID: data[0]}, nil
	case CmdLayerChangeNotify:
		// Firmware sends the layer state in however many bytes its build
		// uses, between one and four, little endian.
		if n < 1 || n > 4 {
			return Event{}, fmt.Errorf("%w: %s with a %d byte mask", ErrCorruptResponse, cmd, n)
		}
		return Event{Command: cmd, LayerMask: leUint32(data)}, nil
	case CmdActivityPingNotify:
		return Event{Command: cmd}, nil
	case CmdRawDebugMessage, CmdDebugMessage:
		msg := make([]byte, n)
		copy(msg, data)
		return Event{Command: cmd, Data: msg}, nil
	}
	return Event{}, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, buf[0])
}

func leUint32(b []byte) uint32 {
	var full [4]byte
	copy(full[:], b)
	return binary.LittleEndian.Uint32(full[:])
}
