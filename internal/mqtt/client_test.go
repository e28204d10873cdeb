package mqtt

import (
	"testing"

	"github.com/amadea-system/QmkHidGear/internal/config"
	"github.com/amadea-system/QmkHidGear/internal/core"
)

type fakeMessage struct {
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "" }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestNewClientDisabled(t *testing.T) {
	cfg := &config.Config{}
	if c := NewClient(cfg, make(core.CommandChannel, 1), core.NewEventBus(), nil); c != nil {
		t.Error("NewClient with MQTT disabled should return nil")
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "qmkhidgear", want: "qmkhidgear"},
		{in: "My Agent", want: "My_Agent"},
		{in: "agent#1!", want: "agent1"},
	}
	for _, tt := range tests {
		if got := sanitizeID(tt.in); got != tt.want {
			t.Errorf("sanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandleFronterSet(t *testing.T) {
	commands := make(core.CommandChannel, 1)
	c := &Client{commands: commands}

	c.handleFronterSet(nil, fakeMessage{payload: []byte(" Alice ")})

	select {
	case cmd := <-commands:
		if cmd.Type != core.CmdSetFronter {
			t.Errorf("type = %q, want %q", cmd.Type, core.CmdSetFronter)
		}
		if cmd.Payload["name"] != "Alice" {
			t.Errorf("name = %v, want Alice (trimmed)", cmd.Payload["name"])
		}
	default:
		t.Fatal("no command delivered")
	}

	c.handleFronterSet(nil, fakeMessage{payload: []byte("  ")})
	select {
	case cmd := <-commands:
		t.Fatalf("blank payload delivered a command: %+v", cmd)
	default:
	}
}

func TestHandleLedsSet(t *testing.T) {
	tests := []struct {
		payload string
		want    map[string]float64
	}{
		{payload: "128, 255, 40", want: map[string]float64{"h": 128, "s": 255, "v": 40}},
		{payload: "0,0,0", want: map[string]float64{"h": 0, "s": 0, "v": 0}},
		{payload: "300,0,0"},
		{payload: "1,2"},
		{payload: "red,green,blue"},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			commands := make(core.CommandChannel, 1)
			c := &Client{commands: commands}

			c.handleLedsSet(nil, fakeMessage{payload: []byte(tt.payload)})

			select {
			case cmd := <-commands:
				if tt.want == nil {
					t.Fatalf("invalid payload delivered a command: %+v", cmd)
				}
				for key, want := range tt.want {
					if got := cmd.Payload[key]; got != want {
						t.Errorf("payload[%q] = %v, want %v", key, got, want)
					}
				}
			default:
				if tt.want != nil {
					t.Fatal("no command delivered")
				}
			}
		})
	}
}
