package pattern

import (
	"strings"
	"testing"
	"time"

	"github.com/amadea-system/QmkHidGear/internal/protocol"
)

func waitFrame(t *testing.T, frames <-chan []protocol.LedColor) []protocol.LedColor {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(5 * time.Second):
		t.Fatal("no frame published")
		return nil
	}
}

func TestScriptPublishesFrames(t *testing.T) {
	frames := make(chan []protocol.LedColor, 10)
	e := NewEngine(4, frames, t.TempDir(), nil)

	e.ExecuteString(`
		fill(10, 20, 30)
		set_led(0, 1, 2, 3)
		show()
	`)

	frame := waitFrame(t, frames)
	if len(frame) != 4 {
		t.Fatalf("frame length = %d, want 4", len(frame))
	}
	if frame[0] != (protocol.LedColor{H: 1, S: 2, V: 3}) {
		t.Errorf("led 0 = %+v, want set_led color", frame[0])
	}
	if frame[1] != (protocol.LedColor{H: 10, S: 20, V: 30}) {
		t.Errorf("led 1 = %+v, want fill color", frame[1])
	}
}

func TestScriptLedCountAndWrapping(t *testing.T) {
	frames := make(chan []protocol.LedColor, 10)
	e := NewEngine(3, frames, t.TempDir(), nil)

	// 300 wraps to 44; out of range indices are ignored.
	e.ExecuteString(`
		set_led(led_count() - 1, 300, 255, 255)
		set_led(99, 1, 1, 1)
		show()
	`)

	frame := waitFrame(t, frames)
	if frame[2].H != 44 {
		t.Errorf("led 2 hue = %d, want 44 (wrapped)", frame[2].H)
	}
	if frame[0] != (protocol.LedColor{}) {
		t.Errorf("led 0 = %+v, want untouched", frame[0])
	}
}

func TestNextPatternCancelsCurrent(t *testing.T) {
	frames := make(chan []protocol.LedColor, 64)
	e := NewEngine(2, frames, t.TempDir(), nil)

	e.ExecuteString(`
		while not should_stop() do
			fill(1, 1, 1)
			show()
			sleep(5)
		end
	`)
	time.Sleep(50 * time.Millisecond)
	e.ExecuteString(`
		fill(9, 9, 9)
		show()
	`)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case frame := <-frames:
			if frame[0].H == 9 {
				return // second script took over
			}
		case <-deadline:
			t.Fatal("second pattern never ran")
		}
	}
}

func TestPatternFiles(t *testing.T) {
	e := NewEngine(2, make(chan []protocol.LedColor, 1), t.TempDir(), nil)

	const code = "fill(0, 0, 0)\nshow()\n"
	if err := e.SavePatternCode("blank.lua", code); err != nil {
		t.Fatalf("SavePatternCode() error = %v", err)
	}

	list, err := e.PatternList()
	if err != nil {
		t.Fatalf("PatternList() error = %v", err)
	}
	if len(list) != 1 || list[0] != "blank.lua" {
		t.Errorf("PatternList() = %v, want [blank.lua]", list)
	}

	got, err := e.PatternCode("blank.lua")
	if err != nil {
		t.Fatalf("PatternCode() error = %v", err)
	}
	if got != code {
		t.Errorf("PatternCode() = %q, want %q", got, code)
	}

	if err := e.DeletePattern("blank.lua"); err != nil {
		t.Fatalf("DeletePattern() error = %v", err)
	}
	if list, _ := e.PatternList(); len(list) != 0 {
		t.Errorf("PatternList() after delete = %v, want empty", list)
	}
}

func TestPatternPathSanitizes(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(2, make(chan []protocol.LedColor, 1), dir, nil)

	tests := []struct {
		name    string
		wantErr bool
	}{
		{name: "steady.lua"},
		{name: "../escape.lua"}, // traversal is stripped, not fatal
		{name: "noext", wantErr: true},
		{name: ".lua", wantErr: true},
	}
	for _, tt := range tests {
		path, err := e.PatternPath(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("PatternPath(%q) accepted an invalid name", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("PatternPath(%q) error = %v", tt.name, err)
			continue
		}
		if !strings.HasPrefix(path, dir) {
			t.Errorf("PatternPath(%q) = %q, escapes %q", tt.name, path, dir)
		}
	}
}
