package bt

import "fmt"

type StateKind int

const (
	StateIdle StateKind = iota
	StateScanning
	StateConnecting
	StateDiscoveringServices
	StateSubscribed
	StateDisconnected
	StateFailed
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateConnecting:
		return "Connecting"
	case StateDiscoveringServices:
		return "DiscoveringServices"
	case StateSubscribed:
		return "Subscribed"
	case StateDisconnected:
		return "Disconnected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ConnectionState is the supervisor state. Device is set for Connecting,
// DiscoveringServices and Subscribed; Reason only for Failed.
type ConnectionState struct {
	Kind   StateKind
	Device DeviceIdentity
	Reason string
}

func Idle() ConnectionState     { return ConnectionState{Kind: StateIdle} }
func Scanning() ConnectionState { return ConnectionState{Kind: StateScanning} }

func ConnectingTo(device DeviceIdentity) ConnectionState {
	return ConnectionState{Kind: StateConnecting, Device: device}
}

func FailedWith(reason string) ConnectionState {
	return ConnectionState{Kind: StateFailed, Reason: reason}
}

// Bound reports whether a peripheral is being connected or is connected
func (s ConnectionState) Bound() bool {
	switch s.Kind {
	case StateConnecting, StateDiscoveringServices, StateSubscribed:
		return true
	}
	return false
}

func (s ConnectionState) String() string {
	switch s.Kind {
	case StateConnecting:
		return fmt.Sprintf("Connecting(%s)", s.Device)
	case StateFailed:
		return fmt.Sprintf("Failed(%s)", s.Reason)
	default:
		return s.Kind.String()
	}
}
