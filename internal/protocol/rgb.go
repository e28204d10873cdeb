package protocol

// LedColor is one LED color in the keyboards' native HSV space. Each channel
// is a full-range byte; hue wraps at 256 rather than 360, so arithmetic on it
// is modular, never clamped.
type LedColor struct {
	H, S, V uint8
}

// BytesPerLed is the wire cost of one LED inside a CmdSetRGBRange payload:
// absolute LED index followed by the three HSV channels.
const BytesPerLed = 4

// LedSegment is one report's worth of a larger LED update. Start is the
// absolute strip index of Colors[0]; the remaining colors are contiguous.
type LedSegment struct {
	Start  int
	Colors []LedColor
}

// LedFragmenter splits a full strip update into CmdSetRGBRange sized
// segments, yielded once each in strip order. Segment boundaries always fall
// between LEDs, never inside one LED's 4 byte tuple.
type LedFragmenter struct {
	colors []LedColor
	first  int
	offset int
	perSeg int
}

// NewLedFragmenter prepares an update of len(colors) LEDs starting at
// absolute index first. payloadCapacity is the data area of one report
// (packet size minus framing); a capacity below BytesPerLed yields no
// segments at all.
func NewLedFragmenter(colors []LedColor, first, payloadCapacity int) *LedFragmenter {
	return &LedFragmenter{
		colors: colors,
		first:  first,
		perSeg: payloadCapacity / BytesPerLed,
	}
}

// Next returns the next segment of the update. ok is false once the update
// is exhausted; the fragmenter does not restart.
func (f *LedFragmenter) Next() (seg LedSegment, ok bool) {
	if f.perSeg <= 0 || f.offset >= len(f.colors) {
		return LedSegment{}, false
	}
	end := f.offset + f.perSeg
	if end > len(f.colors) {
		end = len(f.colors)
	}
	seg = LedSegment{Start: f.first + f.offset, Colors: f.colors[f.offset:end]}
	f.offset = end
	return seg, true
}

// SegmentPayload renders one segment as a CmdSetRGBRange payload: a run of
// [index, h, s, v] tuples with the absolute LED index in each tuple, so the
// firmware can place colors without any cross-report state.
func SegmentPayload(seg LedSegment) []byte {
	payload := make([]byte, 0, len(seg.Colors)*BytesPerLed)
	for i, c := range seg.Colors {
		payload = append(payload, byte(seg.Start+i), c.H, c.S, c.V)
	}
	return payload
}
