package agent

import (
	"errors"
	"fmt"
	"log"

	"github.com/amadea-system/QmkHidGear/internal/core"
	"github.com/amadea-system/QmkHidGear/internal/dispatch"
	"github.com/amadea-system/QmkHidGear/internal/front"
	"github.com/amadea-system/QmkHidGear/internal/hid"
	"github.com/amadea-system/QmkHidGear/internal/protocol"
	"github.com/amadea-system/QmkHidGear/internal/roster"
)

// newDispatcher binds the keyboard-originated commands to their handlers.
func (a *Agent) newDispatcher() *dispatch.Dispatcher {
	d := dispatch.New()
	d.Handle(protocol.CmdSwitchFronterRequest, a.handleSwitchFronterRequest)
	d.Handle(protocol.CmdLayerChangeNotify, a.handleLayerChange)
	d.Handle(protocol.CmdActivityPingNotify, a.handleActivityPing)
	d.Handle(protocol.CmdDebugMessage, a.handleDebugMessage)
	d.Handle(protocol.CmdRawDebugMessage, a.handleRawDebugMessage)
	return d
}

// handleSwitchFronterRequest reacts to a physical key asking the front
// service for a switch. The keyboard display is not updated here; the next
// cycle pushes whatever the service confirms.
func (a *Agent) handleSwitchFronterRequest(kb *hid.Keyboard, ev protocol.Event) error {
	member, ok := a.members.ByDeviceID(ev.MemberID)
	if !ok {
		return fmt.Errorf("no member with device id %d", ev.MemberID)
	}
	log.Printf("[Front] %s requested a switch to %s", kb.Profile.Name, member.Name)
	return a.switchTo(member)
}

func (a *Agent) handleLayerChange(kb *hid.Keyboard, ev protocol.Event) error {
	layer := hid.ActiveLayer(ev.LayerMask)
	name := kb.Profile.LayerName(layer)
	log.Printf("[HID] %s layer changed to %s", kb.Profile.Name, name)
	a.state.SetKeyboardLayer(kb.Profile.Name, name, ev.LayerMask)
	a.eventBus.Publish(core.Event{Type: core.LayerChangedEvent, Payload: map[string]interface{}{
		"keyboard": kb.Profile.Name,
		"layer":    layer,
		"name":     name,
	}})
	a.syncState()
	return nil
}

// handleActivityPing relays a ping to every other connected keyboard.
func (a *Agent) handleActivityPing(kb *hid.Keyboard, ev protocol.Event) error {
	log.Printf("[HID] Activity ping from %s", kb.Profile.Name)
	for _, other := range a.keyboards {
		if other == kb || !other.Connected() {
			continue
		}
		if err := other.SendActivityPing(); err != nil {
			a.noteDeviceError(other, err)
		}
	}
	a.eventBus.Publish(core.Event{Type: core.ActivityPingEvent, Payload: map[string]interface{}{
		"keyboard": kb.Profile.Name,
	}})
	return nil
}

func (a *Agent) handleDebugMessage(kb *hid.Keyboard, ev protocol.Event) error {
	log.Printf("[HID] %s debug: %s", kb.Profile.Name, ev.Data)
	return nil
}

func (a *Agent) handleRawDebugMessage(kb *hid.Keyboard, ev protocol.Event) error {
	log.Printf("[HID] %s raw debug: % X", kb.Profile.Name, ev.Data)
	return nil
}

// switchTo asks the front service to make member the fronter and schedules
// an immediate refresh so the keyboards see the result. "Already fronting"
// is an expected outcome and only produces a notice.
func (a *Agent) switchTo(member roster.Member) error {
	if a.front == nil {
		return errors.New("front service not configured")
	}
	err := a.front.SetFronters(a.ctx, []string{member.FrontID})
	switch {
	case errors.Is(err, front.ErrAlreadyFronting):
		a.notice("Already Fronting", fmt.Sprintf("%s was already in front.", member.Name))
	case err != nil:
		return fmt.Errorf("switching fronter to %s: %w", member.Name, err)
	default:
		a.notice("Fronter Switched", fmt.Sprintf("%s is now fronting.", member.Name))
	}
	a.forceRefresh()
	return nil
}
