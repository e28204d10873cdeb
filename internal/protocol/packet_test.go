package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
		size    int
		want    []byte
		wantErr error
	}{
		{
			name:    "fronter with member id",
			cmd:     CmdSetFronter,
			payload: []byte{3},
			size:    8,
			want:    []byte{0x00, 0x01, 0x01, 0x03, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:    "all leds hsv",
			cmd:     CmdSetAllRGB,
			payload: []byte{10, 255, 128},
			size:    8,
			want:    []byte{0x00, 0x02, 0x03, 10, 255, 128, 0x00, 0x00},
		},
		{
			name:    "empty payload pads whole report",
			cmd:     CmdActivityPing,
			payload: nil,
			size:    8,
			want:    []byte{0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:    "payload exactly fills capacity",
			cmd:     CmdSetRGBRange,
			payload: bytes.Repeat([]byte{0xAA}, 29),
			size:    DefaultPacketSize,
		},
		{
			name:    "payload one byte over capacity",
			cmd:     CmdSetRGBRange,
			payload: bytes.Repeat([]byte{0xAA}, 30),
			size:    DefaultPacketSize,
			wantErr: ErrPayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.cmd, tt.payload, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Encode() error = %v, want %v", err, tt.wantErr)
				}
				if got != nil {
					t.Errorf("Encode() returned %d bytes alongside the error", len(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if len(got) != tt.size {
				t.Fatalf("Encode() length = %d, want %d", len(got), tt.size)
			}
			if got[2] != byte(len(tt.payload)) {
				t.Errorf("data length byte = %d, want %d", got[2], len(tt.payload))
			}
			if tt.want != nil && !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		want    Event
		wantErr error
	}{
		{
			name: "empty read is no event",
			buf:  nil,
			want: Event{},
		},
		{
			name: "zero command is padding",
			buf:  make([]byte, DefaultPacketSize),
			want: Event{},
		},
		{
			name:    "two byte report is corrupt",
			buf:     []byte{121, 1},
			wantErr: ErrCorruptResponse,
		},
		{
			name: "switch fronter request",
			buf:  padded(122, 1, 7),
			want: Event{Command: CmdSwitchFronterRequest, MemberID: 7},
		},
		{
			name:    "switch fronter request without member id",
			buf:     padded(122, 0),
			wantErr: ErrCorruptResponse,
		},
		{
			name: "layer mask one byte",
			buf:  padded(123, 1, 0xFF),
			want: Event{Command: CmdLayerChangeNotify, LayerMask: 255},
		},
		{
			name: "layer mask two bytes little endian",
			buf:  padded(123, 2, 0x01, 0x02),
			want: Event{Command: CmdLayerChangeNotify, LayerMask: 0x0201},
		},
		{
			name: "layer mask four bytes",
			buf:  padded(123, 4, 0x01, 0x00, 0x00, 0x80),
			want: Event{Command: CmdLayerChangeNotify, LayerMask: 0x80000001},
		},
		{
			name:    "layer mask five bytes is corrupt",
			buf:     padded(123, 5, 1, 2, 3, 4, 5),
			wantErr: ErrCorruptResponse,
		},
		{
			name:    "layer mask empty is corrupt",
			buf:     padded(123, 0),
			wantErr: ErrCorruptResponse,
		},
		{
			name: "activity ping notify",
			buf:  padded(124, 0),
			want: Event{Command: CmdActivityPingNotify},
		},
		{
			name: "debug message truncated to declared length",
			buf:  padded(121, 2, 'h', 'i', 'x', 'x', 'x'),
			want: Event{Command: CmdDebugMessage, Data: []byte("hi")},
		},
		{
			name: "raw debug message",
			buf:  padded(120, 3, 0xDE, 0xAD, 0xBF),
			want: Event{Command: CmdRawDebugMessage, Data: []byte{0xDE, 0xAD, 0xBF}},
		},
		{
			name:    "declared length overruns report",
			buf:     []byte{121, 31, 'h', 'i'},
			wantErr: ErrCorruptResponse,
		},
		{
			name:    "unrecognized command byte",
			buf:     padded(99, 0),
			wantErr: ErrUnknownCommand,
		},
		{
			name:    "host command arriving inbound",
			buf:     padded(2, 3, 1, 2, 3),
			wantErr: ErrUnknownCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.buf)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.Command != tt.want.Command {
				t.Errorf("Command = %v, want %v", got.Command, tt.want.Command)
			}
			if got.MemberID != tt.want.MemberID {
				t.Errorf("MemberID = %d, want %d", got.MemberID, tt.want.MemberID)
			}
			if got.LayerMask != tt.want.LayerMask {
				t.Errorf("LayerMask = 0x%X, want 0x%X", got.LayerMask, tt.want.LayerMask)
			}
			if !bytes.Equal(got.Data, tt.want.Data) {
				t.Errorf("Data = % X, want % X", got.Data, tt.want.Data)
			}
		})
	}
}

// TestRoundTrip checks that decoding an encoded report, minus the report id
// byte the transport consumes, recovers the command and payload exactly.
func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
	}{
		{name: "debug text", cmd: CmdDebugMessage, payload: []byte("layer up")},
		{name: "raw debug", cmd: CmdRawDebugMessage, payload: []byte{0x00, 0xFF, 0x7F}},
		{name: "switch fronter", cmd: CmdSwitchFronterRequest, payload: []byte{9}},
		{name: "ping", cmd: CmdActivityPingNotify, payload: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Encode(tt.cmd, tt.payload, DefaultPacketSize)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			ev, err := Decode(report[1:])
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if ev.Command != tt.cmd {
				t.Errorf("Command = %v, want %v", ev.Command, tt.cmd)
			}
			switch tt.cmd {
			case CmdDebugMessage, CmdRawDebugMessage:
				if !bytes.Equal(ev.Data, tt.payload) {
					t.Errorf("Data = % X, want % X", ev.Data, tt.payload)
				}
			case CmdSwitchFronterRequest:
				if ev.MemberID != tt.payload[0] {
					t.Errorf("MemberID = %d, want %d", ev.MemberID, tt.payload[0])
				}
			}
		})
	}
}

func TestCommandDirection(t *testing.T) {
	tests := []struct {
		cmd          Command
		host, device bool
	}{
		{CmdNone, false, false},
		{CmdSetFronter, true, false},
		{CmdActivityPing, true, false},
		{CmdRawDebugMessage, false, true},
		{CmdActivityPingNotify, false, true},
		{Command(99), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			if got := tt.cmd.IsHostCommand(); got != tt.host {
				t.Errorf("IsHostCommand() = %v, want %v", got, tt.host)
			}
			if got := tt.cmd.IsKeyboardCommand(); got != tt.device {
				t.Errorf("IsKeyboardCommand() = %v, want %v", got, tt.device)
			}
		})
	}
}

// padded builds an inbound report of the default size from a command byte,
// a declared length and the leading data bytes.
func padded(cmd, n byte, data ...byte) []byte {
	buf := make([]byte, DefaultPacketSize)
	buf[0] = cmd
	buf[1] = n
	copy(buf[2:], data)
	return buf
}
