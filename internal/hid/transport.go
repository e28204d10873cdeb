// Package hid manages the keyboard sessions: enumerating and opening the raw
// HID interfaces, tracking per-device connection state, and moving encoded
// reports across the transport. Sessions are poll driven and owned by a
// single goroutine; nothing in this package locks.
package hid

import "time"

// DeviceInfo describes one enumerated HID interface.
type DeviceInfo struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	UsagePage uint16
	Usage     uint16
}

// Device is an open HID handle.
type Device interface {
	Write(p []byte) (int, error)
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
	Close() error
}

// Transport enumerates HID interfaces and opens them by path. The concrete
// implementation wraps the platform hidapi library; tests substitute an
// in-memory one.
type Transport interface {
	Enumerate(vendorID, productID uint16) ([]DeviceInfo, error)
	Open(path string) (Device, error)
}
