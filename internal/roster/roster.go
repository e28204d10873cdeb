// Package roster resolves between the one-byte member ids the keyboards
// display and the front tracking service's external member ids.
package roster

import (
	"fmt"
	"strings"
)

// SwitchedOut is the device-side id keyboards show when nobody is fronting.
// It is reserved and never assigned to a member.
const SwitchedOut uint8 = 0

// Member binds one system member's identities together.
type Member struct {
	Name     string
	FrontID  string // front service member id
	DeviceID uint8  // id baked into the keyboard firmware
}

// Roster is the fixed member table loaded from configuration. A lookup miss
// is a configuration error: the firmware and the config have drifted.
type Roster struct {
	members []Member
}

// New validates the member table: device ids must be unique and nonzero,
// front ids unique and present.
func New(members []Member) (*Roster, error) {
	seenDevice := make(map[uint8]string)
	seenFront := make(map[string]string)
	for _, m := range members {
		if m.Name == "" {
			return nil, fmt.Errorf("roster: member with device id %d has no name", m.DeviceID)
		}
		if m.DeviceID == SwitchedOut {
			return nil, fmt.Errorf("roster: %s uses reserved device id %d", m.Name, SwitchedOut)
		}
		if m.FrontID == "" {
			return nil, fmt.Errorf("roster: %s has no front service id", m.Name)
		}
		if other, dup := seenDevice[m.DeviceID]; dup {
			return nil, fmt.Errorf("roster: %s and %s share device id %d", other, m.Name, m.DeviceID)
		}
		if other, dup := seenFront[m.FrontID]; dup {
			return nil, fmt.Errorf("roster: %s and %s share front id %s", other, m.Name, m.FrontID)
		}
		seenDevice[m.DeviceID] = m.Name
		seenFront[m.FrontID] = m.Name
	}
	return &Roster{members: append([]Member(nil), members...)}, nil
}

// ByDeviceID resolves a keyboard-side member id.
func (r *Roster) ByDeviceID(id uint8) (Member, bool) {
	for _, m := range r.members {
		if m.DeviceID == id {
			return m, true
		}
	}
	return Member{}, false
}

// ByFrontID resolves a front service member id.
func (r *Roster) ByFrontID(id string) (Member, bool) {
	for _, m := range r.members {
		if m.FrontID == id {
			return m, true
		}
	}
	return Member{}, false
}

// ByName resolves a member by name, case-insensitively. Used by the control
// surfaces, where humans type the name.
func (r *Roster) ByName(name string) (Member, bool) {
	for _, m := range r.members {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Member{}, false
}

// Members returns a copy of the member table.
func (r *Roster) Members() []Member {
	return append([]Member(nil), r.members...)
}
