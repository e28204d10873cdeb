package hid

import (
	hidapi "github.com/sstallion/go-hid"
)

// Init readies the platform hidapi library. Call once before using a
// SystemTransport.
func Init() error { return hidapi.Init() }

// Exit releases the platform hidapi library at shutdown.
func Exit() error { return hidapi.Exit() }

// SystemTransport is the Transport backed by the platform hidapi library.
type SystemTransport struct{}

func (SystemTransport) Enumerate(vendorID, productID uint16) ([]DeviceInfo, error) {
	var found []DeviceInfo
	err := hidapi.Enumerate(vendorID, productID, func(info *hidapi.DeviceInfo) error {
		found = append(found, DeviceInfo{
			Path:      info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			UsagePage: info.UsagePage,
			Usage:     info.Usage,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (SystemTransport) Open(path string) (Device, error) {
	return hidapi.OpenPath(path)
}
