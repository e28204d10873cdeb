package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amadea-system/QmkHidGear/internal/core"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		command  string
		wantType core.CommandType
		wantOK   bool
	}{
		{command: "pattern rainbow.lua", wantType: core.CmdRunPattern, wantOK: true},
		{command: "pattern", wantOK: false},
		{command: "pattern-stop", wantType: core.CmdStopPattern, wantOK: true},
		{command: "leds 128 255 40", wantType: core.CmdSetLeds, wantOK: true},
		{command: "leds 128 255", wantOK: false},
		{command: "leds 300 0 0", wantOK: false},
		{command: "leds red 0 0", wantOK: false},
		{command: "ping", wantType: core.CmdPingKeyboards, wantOK: true},
		{command: "front-refresh", wantType: core.CmdRefreshFront, wantOK: true},
		{command: "reboot", wantOK: false},
		{command: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd, ok := parseCommand(tt.command)
			if ok != tt.wantOK {
				t.Fatalf("parseCommand(%q) ok = %v, want %v", tt.command, ok, tt.wantOK)
			}
			if ok && cmd.Type != tt.wantType {
				t.Errorf("parseCommand(%q) type = %q, want %q", tt.command, cmd.Type, tt.wantType)
			}
		})
	}
}

func TestParseCommandLedValues(t *testing.T) {
	cmd, ok := parseCommand("leds 10 20 30")
	if !ok {
		t.Fatal("parseCommand rejected a valid leds command")
	}
	for key, want := range map[string]float64{"h": 10, "s": 20, "v": 30} {
		if got := cmd.Payload[key]; got != want {
			t.Errorf("payload[%q] = %v, want %v", key, got, want)
		}
	}
}

func TestExecuteDeliversCommand(t *testing.T) {
	cmdChan := make(core.CommandChannel, 1)
	s := NewScheduler(cmdChan, filepath.Join(t.TempDir(), "schedules.json"))

	s.fire("ping")

	select {
	case cmd := <-cmdChan:
		if cmd.Type != core.CmdPingKeyboards {
			t.Errorf("delivered type = %q, want %q", cmd.Type, core.CmdPingKeyboards)
		}
	default:
		t.Fatal("no command delivered")
	}

	// Unrecognized commands must not block or send anything.
	s.fire("launch missiles")
	select {
	case cmd := <-cmdChan:
		t.Fatalf("unexpected command delivered: %+v", cmd)
	default:
	}
}

func TestSchedulePersistence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	cmdChan := make(core.CommandChannel, 1)

	s := NewScheduler(cmdChan, file)
	s.Add("0 22 * * *", "pattern night.lua")
	s.Add("*/5 * * * *", "ping")

	if _, err := os.Stat(file); err != nil {
		t.Fatalf("schedules file not written: %v", err)
	}

	reloaded := NewScheduler(cmdChan, file)
	all := reloaded.GetAll()
	if len(all) != 2 {
		t.Fatalf("reloaded %d schedules, want 2", len(all))
	}
	commands := make(map[string]string)
	for _, entry := range all {
		commands[entry.Command] = entry.Spec
	}
	if commands["pattern night.lua"] != "0 22 * * *" {
		t.Errorf("pattern schedule spec = %q, want %q", commands["pattern night.lua"], "0 22 * * *")
	}
	if commands["ping"] != "*/5 * * * *" {
		t.Errorf("ping schedule spec = %q, want %q", commands["ping"], "*/5 * * * *")
	}

	var removeID int
	for id := range all {
		removeID = int(id)
		break
	}
	reloaded.Remove(removeID)
	if got := len(reloaded.GetAll()); got != 1 {
		t.Errorf("after Remove, %d schedules remain, want 1", got)
	}
}
