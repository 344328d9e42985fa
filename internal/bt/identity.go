package bt

// DeviceIdentity names a peripheral. ID is the platform address string
// (a MAC on Linux and Windows, a CoreBluetooth UUID on macOS).
type DeviceIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (d DeviceIdentity) IsZero() bool {
	return d.ID == ""
}

func (d DeviceIdentity) String() string {
	if d.Name == "" {
		return d.ID
	}
	return d.Name + " " + d.ID
}

// IdentityStore persists the last bound device between runs
type IdentityStore interface {
	// LoadIdentity returns false when nothing was stored yet
	LoadIdentity() (DeviceIdentity, bool, error)
	SaveIdentity(DeviceIdentity) error
}
