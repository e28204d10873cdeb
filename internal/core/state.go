package core

import (
	"sync"
	"time"
)

// FronterState describes who the keyboards are currently showing.
type FronterState struct {
	DeviceID uint8     `json:"deviceId"`
	Name     string    `json:"name"`
	FrontID  string    `json:"frontId"`
	Since    time.Time `json:"since"`
}

// KeyboardState is the last known condition of one keyboard session.
type KeyboardState struct {
	Connected bool   `json:"connected"`
	Layer     string `json:"layer"`
	LayerMask uint32 `json:"layerMask"`
}

// Snapshot is a point-in-time copy of the whole agent state, safe to hand
// to the web panel or MQTT mirror.
type Snapshot struct {
	Fronter        FronterState             `json:"fronter"`
	Keyboards      map[string]KeyboardState `json:"keyboards"`
	RunningPattern string                   `json:"runningPattern"`
}

// State holds the single source of truth for the agent.
type State struct {
	mu             sync.RWMutex
	fronter        FronterState
	keyboards      map[string]KeyboardState
	runningPattern string
}

// NewState creates a new State instance.
func NewState() *State {
	return &State{keyboards: make(map[string]KeyboardState)}
}

// Clone returns a snapshot of the current state for safe reading.
func (s *State) Clone() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyboards := make(map[string]KeyboardState, len(s.keyboards))
	for name, kb := range s.keyboards {
		keyboards[name] = kb
	}
	return Snapshot{
		Fronter:        s.fronter,
		Keyboards:      keyboards,
		RunningPattern: s.runningPattern,
	}
}

// SetFronter updates the displayed fronter.
func (s *State) SetFronter(f FronterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fronter = f
}

// Fronter returns the displayed fronter.
func (s *State) Fronter() FronterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fronter
}

// SetKeyboardConnection updates one keyboard's connection flag.
func (s *State) SetKeyboardConnection(name string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kb := s.keyboards[name]
	kb.Connected = connected
	s.keyboards[name] = kb
}

// SetKeyboardLayer updates one keyboard's active layer.
func (s *State) SetKeyboardLayer(name, layer string, mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kb := s.keyboards[name]
	kb.Layer = layer
	kb.LayerMask = mask
	s.keyboards[name] = kb
}

// SetRunningPattern updates the running pattern state.
func (s *State) SetRunningPattern(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runningPattern = pattern
}
