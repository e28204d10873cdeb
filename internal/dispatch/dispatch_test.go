package dispatch

import (
	"errors"
	"testing"

	"github.com/amadea-system/QmkHidGear/internal/hid"
	"github.com/amadea-system/QmkHidGear/internal/protocol"
)

type nopTransport struct{}

func (nopTransport) Enumerate(vendorID, productID uint16) ([]hid.DeviceInfo, error) {
	return nil, nil
}

func (nopTransport) Open(path string) (hid.Device, error) {
	return nil, errors.New("no device")
}

func testKeyboard() *hid.Keyboard {
	return hid.NewKeyboard(hid.Navi10(), nopTransport{}, 1e6, 4)
}

func TestDispatch(t *testing.T) {
	t.Run("invokes the registered handler", func(t *testing.T) {
		d := New()
		var gotKb *hid.Keyboard
		var gotEv protocol.Event
		d.Handle(protocol.CmdSwitchFronterRequest, func(kb *hid.Keyboard, ev protocol.Event) error {
			gotKb, gotEv = kb, ev
			return nil
		})

		kb := testKeyboard()
		ev := protocol.Event{Command: protocol.CmdSwitchFronterRequest, MemberID: 4}
		res, err := d.Dispatch(kb, ev)
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if !res.Handled || res.Command != protocol.CmdSwitchFronterRequest {
			t.Errorf("result = %+v, want handled switch fronter request", res)
		}
		if gotKb != kb {
			t.Error("handler received a different keyboard")
		}
		if gotEv.MemberID != 4 {
			t.Errorf("handler event MemberID = %d, want 4", gotEv.MemberID)
		}
	})

	t.Run("no handler is a silent no-op", func(t *testing.T) {
		d := New()
		res, err := d.Dispatch(testKeyboard(), protocol.Event{Command: protocol.CmdDebugMessage})
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if res.Handled {
			t.Error("result handled = true with nothing registered")
		}
		if res.Command != protocol.CmdDebugMessage {
			t.Errorf("result command = %v, want %v", res.Command, protocol.CmdDebugMessage)
		}
	})

	t.Run("zero event dispatches nothing", func(t *testing.T) {
		d := New()
		called := false
		d.Handle(protocol.CmdNone, func(*hid.Keyboard, protocol.Event) error {
			called = true
			return nil
		})
		res, err := d.Dispatch(testKeyboard(), protocol.Event{})
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if called || res.Handled {
			t.Error("zero event reached a handler")
		}
	})

	t.Run("handler errors propagate", func(t *testing.T) {
		d := New()
		boom := errors.New("service down")
		d.Handle(protocol.CmdLayerChangeNotify, func(*hid.Keyboard, protocol.Event) error {
			return boom
		})
		res, err := d.Dispatch(testKeyboard(), protocol.Event{Command: protocol.CmdLayerChangeNotify})
		if !errors.Is(err, boom) {
			t.Fatalf("Dispatch() error = %v, want %v", err, boom)
		}
		if !res.Handled {
			t.Error("result handled = false for an invoked handler")
		}
	})
}
