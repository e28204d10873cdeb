package hid

import (
	"fmt"
	"math/bits"

	"github.com/amadea-system/QmkHidGear/internal/protocol"
)

// Raw HID endpoint identifiers QMK firmware uses unless rebuilt with custom
// values (RAW_USAGE_PAGE / RAW_USAGE_ID).
const (
	RawUsagePage = 0xFF60
	RawUsage     = 0x61
)

// Profile is the static description of one keyboard model. Profiles are
// defined once below and never mutated; a session copies the one it targets.
//
// Matching is by vendor/product id plus the raw usage pair, which cannot
// tell two boards of the same model apart. One session per model.
type Profile struct {
	Name       string
	VendorID   uint16
	ProductID  uint16
	UsagePage  uint16
	Usage      uint16
	PacketSize int
	LedCount   int
	LedSplit   []int // LEDs per half for split boards, nil otherwise
	LayerNames []string
}

// PayloadCapacity returns the per-report payload bytes this model accepts.
func (p Profile) PayloadCapacity() int {
	return protocol.PayloadCapacity(p.PacketSize)
}

// LayerName resolves a firmware layer index to its keymap name.
func (p Profile) LayerName(layer int) string {
	if layer >= 0 && layer < len(p.LayerNames) {
		return p.LayerNames[layer]
	}
	return fmt.Sprintf("layer-%d", layer)
}

// ActiveLayer returns the index of the highest set bit in a firmware layer
// mask; the firmware resolves overlapping layers top down, so that is the
// layer the user sees. An empty mask means the base layer.
func ActiveLayer(mask uint32) int {
	if mask == 0 {
		return 0
	}
	return bits.Len32(mask) - 1
}

// Lily58 is the split 58-key board, six status LEDs per half.
func Lily58() Profile {
	return Profile{
		Name:       "lily58",
		VendorID:   0x04D8,
		ProductID:  0xEB2D,
		UsagePage:  RawUsagePage,
		Usage:      RawUsage,
		PacketSize: protocol.DefaultPacketSize,
		LedCount:   12,
		LedSplit:   []int{6, 6},
		LayerNames: []string{"QWERTY", "LOWER", "RAISE", "ADJUST", "GAME_WASD", "GAME_ESDF"},
	}
}

// Navi10 is the ten-key macropad.
func Navi10() Profile {
	return Profile{
		Name:       "navi10",
		VendorID:   0xFEED,
		ProductID:  0x0000,
		UsagePage:  RawUsagePage,
		Usage:      RawUsage,
		PacketSize: protocol.DefaultPacketSize,
		LedCount:   10,
		LayerNames: []string{"Base", "Function", "Media", "RGB"},
	}
}

// ProfileByName looks up a built-in profile by its model name.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case "lily58":
		return Lily58(), true
	case "navi10":
		return Navi10(), true
	}
	return Profile{}, false
}
