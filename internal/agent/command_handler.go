package agent

import (
	"log"

	"github.com/amadea-system/QmkHidGear/internal/core"
	"github.com/amadea-system/QmkHidGear/internal/protocol"
)

// handleCommand executes one control-plane command on the poll goroutine.
func (a *Agent) handleCommand(cmd core.Command) {
	log.Printf("[Agent] Handling command: %s", cmd.Type)

	switch cmd.Type {

	case core.CmdSetFronter:
		name, _ := cmd.Payload["name"].(string)
		member, ok := a.members.ByName(name)
		if !ok {
			log.Printf("[Agent] No member named %q", name)
			return
		}
		if err := a.switchTo(member); err != nil {
			log.Printf("[Agent] Switch to %s failed: %v", member.Name, err)
		}

	case core.CmdRefreshFront:
		a.forceRefresh()

	case core.CmdPingKeyboards:
		for _, kb := range a.keyboards {
			if !kb.Connected() {
				continue
			}
			if err := kb.SendActivityPing(); err != nil {
				a.noteDeviceError(kb, err)
			}
		}

	case core.CmdSetLeds:
		color := protocol.LedColor{
			H: payloadByte(cmd.Payload, "h"),
			S: payloadByte(cmd.Payload, "s"),
			V: payloadByte(cmd.Payload, "v"),
		}
		a.patternEngine.StopCurrentPattern()
		for _, kb := range a.keyboards {
			if !kb.Connected() {
				continue
			}
			if err := kb.SendAllLeds(color); err != nil {
				a.noteDeviceError(kb, err)
			}
		}

	case core.CmdRunPattern:
		if name, ok := cmd.Payload["name"].(string); ok {
			a.patternEngine.RunPattern(name)
		}

	case core.CmdStopPattern:
		a.patternEngine.StopCurrentPattern()

	default:
		log.Printf("Unknown command type: %s", cmd.Type)
	}
}

// payloadByte reads a numeric JSON payload field clamped to 0..255.
func payloadByte(payload map[string]interface{}, key string) uint8 {
	v, ok := payload[key].(float64)
	if !ok {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
