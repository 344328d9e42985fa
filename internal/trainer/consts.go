package trainer

// UIMode represents the current UI mode/screen
type UIMode int

const (
	UIModeRide    UIMode = iota // Live connection, session and track progress
	UIModeHistory               // Recorded workouts
)

// UIModeInfo contains display information for a UI mode
type UIModeInfo struct {
	Mode        UIMode
	DisplayName string
	KeyBinding  rune // The number key to activate this mode (1-9)
}

// AllUIModes defines all available UI modes in order
var AllUIModes = []UIModeInfo{
	{Mode: UIModeRide, DisplayName: "Ride", KeyBinding: '1'},
	{Mode: UIModeHistory, DisplayName: "History", KeyBinding: '2'},
}

// GetUIModeByKey returns the mode for a given key binding
func GetUIModeByKey(key rune) (UIMode, bool) {
	for _, info := range AllUIModes {
		if info.KeyBinding == key {
			return info.Mode, true
		}
	}
	return 0, false
}

// GetUIModeInfo returns the info for a given mode
func GetUIModeInfo(mode UIMode) (UIModeInfo, bool) {
	for _, info := range AllUIModes {
		if info.Mode == mode {
			return info, true
		}
	}
	return UIModeInfo{}, false
}

const (
	// SpeedStepKph is how much +/- changes the simulated bike's speed
	SpeedStepKph = 1.0
	// HistoryListLimit caps the workouts shown in History mode
	HistoryListLimit = 50
	maxLogLines      = 1000
)
