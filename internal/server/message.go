package server

// clientCommand is one JSON request read from a panel client's socket.
// Mutating types are forwarded to the agent; list and file operations are
// answered by the server itself.
type clientCommand struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// envelope is the framing for everything pushed to panel clients, so the
// front end can switch on one type field.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func wrap(msgType string, payload interface{}) envelope {
	return envelope{Type: msgType, Payload: payload}
}
