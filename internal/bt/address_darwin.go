//go:build darwin

package bt

import (
	"fmt"

	"tinygo.org/x/bluetooth"
)

// parseAddress turns a stored identity back into an address. CoreBluetooth
// identifies peripherals by a per-host UUID.
func parseAddress(id string) (bluetooth.Address, error) {
	uuid, err := bluetooth.ParseUUID(id)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("invalid peripheral uuid %q: %w", id, err)
	}
	return bluetooth.Address{UUID: uuid}, nil
}
