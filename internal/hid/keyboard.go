package hid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/amadea-system/QmkHidGear/internal/protocol"
)

var (
	// ErrKeyboardNotFound means no matching HID interface was present at
	// open time. The board is unplugged or enumerating; retry next cycle.
	ErrKeyboardNotFound = errors.New("could not find keyboard")

	// ErrKeyboardDisconnected means a transport operation failed, or was
	// attempted on a session already marked disconnected. Recovery is a
	// fresh Open on a later cycle; the old handle is never reused.
	ErrKeyboardDisconnected = errors.New("keyboard disconnected")
)

// Keyboard is one keyboard session: a Profile plus the live transport
// handle and connection flag. The handle exists only while connected and is
// owned exclusively by the session. Keyboards are driven by the agent's
// single poll goroutine and are not safe for concurrent use.
type Keyboard struct {
	Profile Profile

	transport Transport
	device    Device
	connected bool

	readBuf    []byte
	ledLimiter *rate.Limiter
}

// NewKeyboard creates a disconnected session for one profile. ledRate and
// ledBurst bound how fast multi-report LED updates are streamed so a large
// strip update cannot starve the firmware's report queue.
func NewKeyboard(profile Profile, t Transport, ledRate float64, ledBurst int) *Keyboard {
	return &Keyboard{
		Profile:    profile,
		transport:  t,
		readBuf:    make([]byte, profile.PacketSize),
		ledLimiter: rate.NewLimiter(rate.Limit(ledRate), ledBurst),
	}
}

// Connected reports whether the session currently holds a transport handle.
func (k *Keyboard) Connected() bool { return k.connected }

// Open discards any previous handle and searches the transport's listing
// for an interface matching the profile's vendor/product id and raw usage
// pair, opening the first match. On any miss or failure the session stays
// disconnected and a later cycle retries.
func (k *Keyboard) Open() error {
	k.markDisconnected()

	infos, err := k.transport.Enumerate(k.Profile.VendorID, k.Profile.ProductID)
	if err != nil {
		return fmt.Errorf("%w: %s: enumerate: %v", ErrKeyboardNotFound, k.Profile.Name, err)
	}
	for _, info := range infos {
		if info.UsagePage != k.Profile.UsagePage || info.Usage != k.Profile.Usage {
			continue
		}
		dev, err := k.transport.Open(info.Path)
		if err != nil {
			return fmt.Errorf("%w: %s: open %s: %v", ErrKeyboardNotFound, k.Profile.Name, info.Path, err)
		}
		k.device = dev
		k.connected = true
		log.Printf("[HID] %s connected", k.Profile.Name)
		return nil
	}
	return fmt.Errorf("%w: %s (%04X:%04X)", ErrKeyboardNotFound,
		k.Profile.Name, k.Profile.VendorID, k.Profile.ProductID)
}

// Connect reduces Open to a boolean so callers retrying on a cadence do not
// have to unwrap the error.
func (k *Keyboard) Connect() bool {
	return k.Open() == nil
}

// SendCommand encodes one command into a full report and writes it. A nil
// payload is transmitted as a single zero byte, which is what the firmware
// expects for commands that carry no data. A write failure disconnects the
// session; an oversized payload is reported without touching the transport
// and the session stays connected.
func (k *Keyboard) SendCommand(cmd protocol.Command, payload []byte) error {
	if !k.connected {
		return fmt.Errorf("%w: %s", ErrKeyboardDisconnected, k.Profile.Name)
	}
	if payload == nil {
		payload = []byte{0}
	}
	report, err := protocol.Encode(cmd, payload, k.Profile.PacketSize)
	if err != nil {
		return err
	}
	if _, err := k.device.Write(report); err != nil {
		k.markDisconnected()
		return fmt.Errorf("%w: %s: write: %v", ErrKeyboardDisconnected, k.Profile.Name, err)
	}
	return nil
}

// ReadEvent performs one bounded read and decodes whatever arrived. No data
// within the timeout decodes to the zero Event. Decode failures leave the
// session connected; only a transport failure disconnects it.
func (k *Keyboard) ReadEvent(timeout time.Duration) (protocol.Event, error) {
	if !k.connected {
		return protocol.Event{}, fmt.Errorf("%w: %s", ErrKeyboardDisconnected, k.Profile.Name)
	}
	n, err := k.device.ReadWithTimeout(k.readBuf, timeout)
	if err != nil {
		k.markDisconnected()
		return protocol.Event{}, fmt.Errorf("%w: %s: read: %v", ErrKeyboardDisconnected, k.Profile.Name, err)
	}
	return protocol.Decode(k.readBuf[:n])
}

// SendFronter shows the given member on the keyboard's display.
func (k *Keyboard) SendFronter(memberID uint8) error {
	return k.SendCommand(protocol.CmdSetFronter, []byte{memberID})
}

// SendActivityPing asks the keyboard to flash its activity indicator.
func (k *Keyboard) SendActivityPing() error {
	return k.SendCommand(protocol.CmdActivityPing, nil)
}

// SendAllLeds sets every LED on the board to one color.
func (k *Keyboard) SendAllLeds(c protocol.LedColor) error {
	return k.SendCommand(protocol.CmdSetAllRGB, []byte{c.H, c.S, c.V})
}

// SendLeds streams a per-LED update starting at absolute index first,
// fragmenting it across as many reports as the payload capacity requires.
// Report writes are paced by the session's rate limiter; ctx cancels
// mid-update between reports.
func (k *Keyboard) SendLeds(ctx context.Context, colors []protocol.LedColor, first int) error {
	frag := protocol.NewLedFragmenter(colors, first, k.Profile.PayloadCapacity())
	for {
		seg, ok := frag.Next()
		if !ok {
			return nil
		}
		if err := k.ledLimiter.Wait(ctx); err != nil {
			return err
		}
		if err := k.SendCommand(protocol.CmdSetRGBRange, protocol.SegmentPayload(seg)); err != nil {
			return err
		}
	}
}

// Close releases the transport handle, if any.
func (k *Keyboard) Close() {
	k.markDisconnected()
}

func (k *Keyboard) markDisconnected() {
	if k.device != nil {
		k.device.Close()
		k.device = nil
	}
	k.connected = false
}
