package trainer

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/history"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
)

// Page names for tview.Pages
const (
	pageRide    = "ride"
	pageHistory = "history"
)

// CursesUIViewImpl implements UIViewImpl using tview (curses-based terminal UI)
type CursesUIViewImpl struct {
	logger      logging.Logger
	app         *tview.Application
	currentMode UIMode
	mock        bool

	// Root container that holds all pages
	pages *tview.Pages

	// Shared components (visible in all modes)
	logView  *tview.TextView
	mainFlex *tview.Flex // Main layout: mode content on left, logs on right

	// Ride mode components
	rideFlex        *tview.Flex
	connectionPanel *tview.TextView
	livePanel       *tview.TextView
	sessionPanel    *tview.TextView
	trackPanel      *tview.TextView

	// History mode components
	historyFlex        *tview.Flex
	historyList        *tview.List
	historyDetailPanel *tview.TextView
}

// NewCursesUIView builds the terminal UI. mock adds the simulator keys to
// the help line.
func NewCursesUIView(logger logging.Logger, app *tview.Application, mock bool) *CursesUIViewImpl {
	if logger == nil {
		panic("CursesUIViewImpl: logger cannot be nil")
	}
	if app == nil {
		panic("CursesUIViewImpl: app cannot be nil")
	}
	return &CursesUIViewImpl{
		logger:      logger,
		app:         app,
		currentMode: UIModeRide,
		mock:        mock,
	}
}

func newPanel(title string) *tview.TextView {
	panel := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	panel.SetBorder(true).SetTitle(title)
	return panel
}

// Initialize sets up the tview widgets
func (ui *CursesUIViewImpl) Initialize(controller *UIController) {
	// Don't use SetChangedFunc with app.Draw(); it can hang during shutdown.
	// BaseUIView's listeners call Draw() after updating content.
	ui.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	ui.logView.SetBorder(true).SetTitle(" Logs ")

	ui.pages = tview.NewPages()

	ui.initRideMode()
	ui.initHistoryMode(controller)

	ui.pages.AddPage(pageRide, ui.rideFlex, true, true)
	ui.pages.AddPage(pageHistory, ui.historyFlex, true, false)

	ui.mainFlex = tview.NewFlex().
		AddItem(ui.pages, 0, 3, true).
		AddItem(ui.logView, 0, 2, false)
}

func (ui *CursesUIViewImpl) helpText() string {
	text := "[yellow]S[white] Start/Pause  |  [yellow]X[white] Stop  |  [yellow]T[white] Track  |  [yellow]R[white] Reconnect  |  [yellow]D[white] Disconnect"
	if ui.mock {
		text += "\n[yellow]+/-[white] Mock speed  |  [yellow]Z[white] Silence sensor"
	}
	text += "\n[yellow]1[white] Ride  |  [yellow]2[white] History  |  [yellow]Q[white] Quit"
	return text
}

// initRideMode sets up the live ride panels
func (ui *CursesUIViewImpl) initRideMode() {
	instructionsText := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	instructionsText.SetText(ui.helpText())

	ui.connectionPanel = newPanel(" Connection ")
	ui.livePanel = newPanel(" Live ")
	ui.sessionPanel = newPanel(" Workout ")
	ui.trackPanel = newPanel(" Track ")
	ui.UpdateDashboard(Dashboard{})

	leftColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.connectionPanel, 0, 1, false).
		AddItem(ui.livePanel, 0, 1, false)

	rightColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.sessionPanel, 0, 3, false).
		AddItem(ui.trackPanel, 0, 2, false)

	panels := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(leftColumn, 0, 1, false).
		AddItem(rightColumn, 0, 1, false)

	helpHeight := 2
	if ui.mock {
		helpHeight = 3
	}
	ui.rideFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(instructionsText, helpHeight, 0, false).
		AddItem(panels, 0, 1, true)
}

// initHistoryMode sets up the recorded workout list and details
func (ui *CursesUIViewImpl) initHistoryMode(controller *UIController) {
	ui.historyList = tview.NewList().
		ShowSecondaryText(true).
		SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			controller.OnHistorySelected(index)
		})
	ui.historyList.SetBorder(true).SetTitle(" Workouts ")

	ui.historyDetailPanel = newPanel(" Details ")
	ui.historyDetailPanel.SetText("\n  [gray]No workouts recorded yet[white]\n")

	ui.historyFlex = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.historyList, 0, 1, true).
		AddItem(ui.historyDetailPanel, 0, 1, false)
}

// SetMode switches the UI to the specified mode
func (ui *CursesUIViewImpl) SetMode(mode UIMode) {
	ui.currentMode = mode
	switch mode {
	case UIModeRide:
		ui.pages.SwitchToPage(pageRide)
	case UIModeHistory:
		ui.pages.SwitchToPage(pageHistory)
		ui.app.SetFocus(ui.historyList)
	}
}

func (ui *CursesUIViewImpl) GetCurrentMode() UIMode {
	return ui.currentMode
}

// SetupKeyboardHandlers sets up keyboard event handlers
func (ui *CursesUIViewImpl) SetupKeyboardHandlers(controller *UIController) {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			controller.OnEscapeKey()
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}

		// Number keys for mode switching
		if mode, ok := GetUIModeByKey(event.Rune()); ok {
			controller.OnModeChange(mode)
			return nil
		}

		switch event.Rune() {
		case 'q':
			controller.OnEscapeKey()
		case 's', ' ':
			controller.ToggleWorkout()
		case 'x':
			controller.StopWorkout()
		case 't':
			controller.NextTrack()
		case 'r':
			controller.Reconnect()
		case 'd':
			controller.Disconnect()
		case '+', '=':
			controller.IncreaseSpeed()
		case '-':
			controller.DecreaseSpeed()
		case 'z':
			controller.ToggleSensorSilence()
		default:
			return event
		}
		return nil
	})
}

// GetLogViewHeight returns the visible height of the log view
func (ui *CursesUIViewImpl) GetLogViewHeight() int {
	_, _, _, height := ui.logView.GetInnerRect()
	return height
}

func (ui *CursesUIViewImpl) ClearLogView() {
	ui.logView.Clear()
}

func (ui *CursesUIViewImpl) WriteLogLine(line string) error {
	_, err := fmt.Fprint(ui.logView, tview.Escape(line))
	return err
}

// UpdateDashboard refreshes every ride panel from one snapshot
func (ui *CursesUIViewImpl) UpdateDashboard(d Dashboard) {
	if ui.connectionPanel == nil {
		return
	}
	ui.connectionPanel.SetText(formatConnectionPanel(d))
	ui.livePanel.SetText(formatLivePanel(d))
	ui.sessionPanel.SetText(formatSessionPanel(d))
	ui.trackPanel.SetText(formatTrackPanel(d.Track))
}

// SetHistoryList replaces the workout list, keeping the selection index
func (ui *CursesUIViewImpl) SetHistoryList(records []history.WorkoutRecord) {
	current := ui.historyList.GetCurrentItem()
	ui.historyList.Clear()
	for _, rec := range records {
		main, secondary := formatHistoryItem(rec)
		ui.historyList.AddItem(main, secondary, 0, nil)
	}
	if len(records) == 0 {
		ui.historyDetailPanel.SetText("\n  [gray]No workouts recorded yet[white]\n")
		return
	}
	if current >= len(records) {
		current = len(records) - 1
	}
	ui.historyList.SetCurrentItem(current)
}

func (ui *CursesUIViewImpl) UpdateHistoryDetail(detail HistoryDetail) {
	ui.historyDetailPanel.SetText(formatHistoryDetail(detail))
}

// Draw refreshes/redraws the UI
func (ui *CursesUIViewImpl) Draw() error {
	ui.app.Draw()
	return nil
}

// Run starts the UI and blocks until it exits
func (ui *CursesUIViewImpl) Run() error {
	ui.app.SetRoot(ui.mainFlex, true)
	return ui.app.Run()
}

// Stop stops the UI framework
func (ui *CursesUIViewImpl) Stop() {
	ui.app.Stop()
}
