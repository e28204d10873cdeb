package core

// CommandType defines the type of command being dispatched.
type CommandType string

const (
	CmdSetFronter    CommandType = "setFronter"
	CmdRefreshFront  CommandType = "refreshFront"
	CmdPingKeyboards CommandType = "pingKeyboards"
	CmdSetLeds       CommandType = "setLeds"
	CmdRunPattern    CommandType = "runPattern"
	CmdStopPattern   CommandType = "stopPattern"
)

// Command is the envelope for incoming requests to change state or perform
// actions. All control surfaces (web panel, MQTT, scheduler) reduce their
// input to Commands so device I/O stays on the agent's poll goroutine.
type Command struct {
	Type    CommandType
	Payload map[string]interface{}
}

// CommandChannel is the single channel the core Agent listens to for
// commands.
type CommandChannel chan Command
