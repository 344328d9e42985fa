//go:build !darwin

package bt

import (
	"fmt"

	"tinygo.org/x/bluetooth"
)

// parseAddress turns a stored identity back into an address
func parseAddress(id string) (bluetooth.Address, error) {
	mac, err := bluetooth.ParseMAC(id)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("invalid peripheral address %q: %w", id, err)
	}
	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}
