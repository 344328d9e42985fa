package trainer

import (
	"errors"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/workout"
)

// EngineCommands is the operator surface of the Engine
type EngineCommands interface {
	ToggleWorkout() error
	StopWorkout() error
	NextTrack() error
	Reconnect() error
	Disconnect() error
}

// BikeSimulator is implemented by the mock radio
type BikeSimulator interface {
	AdjustSpeed(deltaKph float64)
	ToggleSilence()
}

// UIController handles UI events and coordinates with the UIModel
type UIController struct {
	model     *UIModel
	engine    EngineCommands
	simulator BikeSimulator
	logger    logging.Logger
}

// NewUIController creates a new UIController. simulator is nil unless the
// app runs against the mock radio.
func NewUIController(model *UIModel, engine EngineCommands, simulator BikeSimulator, logger logging.Logger) *UIController {
	if model == nil {
		panic("UIController: model cannot be nil")
	}
	if engine == nil {
		panic("UIController: engine cannot be nil")
	}
	if logger == nil {
		panic("UIController: logger cannot be nil")
	}
	return &UIController{
		model:     model,
		engine:    engine,
		simulator: simulator,
		logger:    logger,
	}
}

// OnEscapeKey handles when the Escape key is pressed
func (c *UIController) OnEscapeKey() {
	c.model.RequestCloseApplication()
}

// OnModeChange handles when the user requests a mode change
func (c *UIController) OnModeChange(mode UIMode) {
	if info, ok := GetUIModeInfo(mode); ok {
		c.logger.Printf("Switching to %s mode", info.DisplayName)
	}
	if mode == UIModeHistory {
		c.RefreshHistory()
	}
	c.model.SetMode(mode)
}

// ToggleWorkout starts, pauses, or resumes the workout based on current state
func (c *UIController) ToggleWorkout() {
	c.report("toggle workout", c.engine.ToggleWorkout())
}

// StopWorkout completes the workout and records it
func (c *UIController) StopWorkout() {
	err := c.engine.StopWorkout()
	if errors.Is(err, workout.ErrNothingToStop) {
		c.logger.Printf("No workout running - press 's' to start")
		return
	}
	c.report("stop workout", err)
}

func (c *UIController) NextTrack() {
	c.report("next track", c.engine.NextTrack())
}

func (c *UIController) Reconnect() {
	err := c.engine.Reconnect()
	if errors.Is(err, ErrCommandIgnored) {
		c.logger.Printf("Reconnect only works while idle or failed with bluetooth on")
		return
	}
	c.report("reconnect", err)
}

func (c *UIController) Disconnect() {
	err := c.engine.Disconnect()
	if errors.Is(err, ErrCommandIgnored) {
		c.logger.Printf("No bike to disconnect")
		return
	}
	c.report("disconnect", err)
}

// IncreaseSpeed speeds up the simulated bike
func (c *UIController) IncreaseSpeed() {
	if c.simulator == nil {
		c.logger.Printf("Speed keys only work with --mock")
		return
	}
	c.simulator.AdjustSpeed(SpeedStepKph)
}

// DecreaseSpeed slows down the simulated bike
func (c *UIController) DecreaseSpeed() {
	if c.simulator == nil {
		c.logger.Printf("Speed keys only work with --mock")
		return
	}
	c.simulator.AdjustSpeed(-SpeedStepKph)
}

// ToggleSensorSilence stops the simulated bike's notifications so the
// stale-data watchdog can be watched at work
func (c *UIController) ToggleSensorSilence() {
	if c.simulator == nil {
		c.logger.Printf("Sensor silence only works with --mock")
		return
	}
	c.simulator.ToggleSilence()
}

// --- History Methods ---

func (c *UIController) RefreshHistory() {
	if err := c.model.RefreshHistory(); err != nil {
		c.logger.Printf("History unavailable: %v", err)
	}
}

// OnHistorySelected handles when a workout is highlighted in the history list
func (c *UIController) OnHistorySelected(index int) {
	if err := c.model.SelectHistory(index); err != nil {
		c.logger.Printf("History: %v", err)
	}
}

func (c *UIController) report(action string, err error) {
	if err != nil {
		c.logger.Printf("Failed to %s: %v", action, err)
	}
}
