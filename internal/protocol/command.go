package protocol

import "fmt"

// Command identifies the meaning of a single raw HID packet. Host to
// keyboard commands occupy 1..4, keyboard to host commands occupy 120..124.
// The two ranges never overlap, so direction is recoverable from the value.
type Command uint8

const (
	// CmdNone is the no-op value. Firmware pads unused reports with zero,
	// so a zero command byte means "nothing to do", never an error.
	CmdNone Command = 0

	// Host to keyboard.
	CmdSetFronter   Command = 1 // payload: 1 byte member id
	CmdSetAllRGB    Command = 2 // payload: h, s, v
	CmdSetRGBRange  Command = 3 // payload: runs of [index, h, s, v]
	CmdActivityPing Command = 4 // payload: none

	// Keyboard to host.
	CmdRawDebugMessage      Command = 120 // payload: raw bytes
	CmdDebugMessage         Command = 121 // payload: text bytes
	CmdSwitchFronterRequest Command = 122 // payload: 1 byte member id
	CmdLayerChangeNotify    Command = 123 // payload: 1..4 byte LE layer mask
	CmdActivityPingNotify   Command = 124 // payload: none
)

// IsHostCommand reports whether c is sent from the host to a keyboard.
func (c Command) IsHostCommand() bool {
	return c >= CmdSetFronter && c <= CmdActivityPing
}

// IsKeyboardCommand reports whether c is sent from a keyboard to the host.
func (c Command) IsKeyboardCommand() bool {
	return c >= CmdRawDebugMessage && c <= CmdActivityPingNotify
}

func (c Command) String() string {
	switch c {
	case CmdNone:
		return "None"
	case CmdSetFronter:
		return "SetFronter"
	case CmdSetAllRGB:
		return "SetAllRGB"
	case CmdSetRGBRange:
		return "SetRGBRange"
	case CmdActivityPing:
		return "ActivityPing"
	case CmdRawDebugMessage:
		return "RawDebugMessage"
	case CmdDebugMessage:
		return "DebugMessage"
	case CmdSwitchFronterRequest:
		return "SwitchFronterRequest"
	case CmdLayerChangeNotify:
		return "LayerChangeNotify"
	case CmdActivityPingNotify:
		return "ActivityPingNotify"
	}
	return fmt.Sprintf("Command(0x%02X)", uint8(c))
}
