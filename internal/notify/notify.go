// Package notify surfaces short user-facing notices, like a fronter switch
// being confirmed or refused.
package notify

import "log"

// Notifier delivers one notice. Implementations decide the medium; the
// agent only cares that delivery never blocks the poll loop for long.
type Notifier interface {
	Notify(title, message string)
}

// LogNotifier writes notices to the process log. It is the default sink
// when no desktop integration is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(title, message string) {
	log.Printf("[Notice] %s: %s", title, message)
}

// Func adapts a function to the Notifier interface.
type Func func(title, message string)

func (f Func) Notify(title, message string) { f(title, message) }
