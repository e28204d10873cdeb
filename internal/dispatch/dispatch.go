// Package dispatch routes decoded keyboard events to registered handlers.
package dispatch

import (
	"github.com/amadea-system/QmkHidGear/internal/hid"
	"github.com/amadea-system/QmkHidGear/internal/protocol"
)

// HandlerFunc reacts to one decoded event. The keyboard the event arrived
// from is passed in so a handler can reply to it or act on its peers.
type HandlerFunc func(kb *hid.Keyboard, ev protocol.Event) error

// Result summarizes one dispatch so the poll loop can react to what ran,
// for example by refreshing the fronter sooner after a switch request.
type Result struct {
	Command protocol.Command
	Handled bool
}

// Dispatcher maps commands to handlers. Registration happens once at
// startup; Dispatch runs on the poll goroutine only, so no locking.
type Dispatcher struct {
	handlers map[protocol.Command]HandlerFunc
}

func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[protocol.Command]HandlerFunc)}
}

// Handle registers fn for cmd, replacing any earlier registration.
func (d *Dispatcher) Handle(cmd protocol.Command, fn HandlerFunc) {
	d.handlers[cmd] = fn
}

// Dispatch invokes the handler registered for the event's command,
// synchronously on the caller's goroutine. Events with no handler,
// including the zero event, are dropped silently; not every command needs
// a listener.
func (d *Dispatcher) Dispatch(kb *hid.Keyboard, ev protocol.Event) (Result, error) {
	if ev.None() {
		return Result{}, nil
	}
	fn, ok := d.handlers[ev.Command]
	if !ok {
		return Result{Command: ev.Command}, nil
	}
	return Result{Command: ev.Command, Handled: true}, fn(kb, ev)
}
