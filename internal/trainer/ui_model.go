package trainer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/events"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/history"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/workout"
)

const historyQueryTimeout = 5 * time.Second

// DashboardSource publishes engine snapshots
type DashboardSource interface {
	ListenToDashboard(ch chan<- Dashboard) func()
}

// HistorySource reads recorded workouts back
type HistorySource interface {
	List(ctx context.Context, limit int) ([]history.WorkoutRecord, error)
	Samples(ctx context.Context, workoutID string) ([]workout.Sample, error)
}

// UIState holds the current state of the UI that views need to render
type UIState struct {
	Mode UIMode
}

// HistoryDetail is the selected workout with its sample-derived stats
type HistoryDetail struct {
	Record      history.WorkoutRecord
	SampleCount int
	MaxSpeedKph float64
	Err         string
}

type UIModel struct {
	logEvent              *events.ChannelEvent[string]
	closeApplicationEvent *events.ChannelEvent[struct{}]
	uiStateEvent          *events.ChannelEvent[UIState]
	uiState               UIState
	dashboardEvent        *events.ChannelEvent[Dashboard]
	dashboard             Dashboard
	historyEvent          *events.ChannelEvent[[]history.WorkoutRecord]
	historyRecords        []history.WorkoutRecord
	historyDetailEvent    *events.ChannelEvent[HistoryDetail]
	historySource         HistorySource
	logLines              []string
	logMu                 sync.RWMutex
	mu                    sync.RWMutex
	ctx                   context.Context
	cancel                context.CancelFunc
	wg                    sync.WaitGroup
	logger                logging.Logger
}

// NewUIModel mirrors engine snapshots and log lines for the view.
// historySource may be nil when no history store could be opened.
func NewUIModel(source DashboardSource, historySource HistorySource, logger logging.Logger, uiLogChan <-chan string) *UIModel {
	if source == nil {
		panic("UIModel: source cannot be nil")
	}
	if logger == nil {
		panic("UIModel: logger cannot be nil")
	}
	if uiLogChan == nil {
		panic("UIModel: uiLogChan cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	model := &UIModel{
		logEvent:              events.NewChannelEvent[string](false),
		closeApplicationEvent: events.NewChannelEvent[struct{}](true),
		uiStateEvent:          events.NewChannelEvent[UIState](true),
		uiState:               UIState{Mode: UIModeRide},
		dashboardEvent:        events.NewChannelEvent[Dashboard](true),
		historyEvent:          events.NewChannelEvent[[]history.WorkoutRecord](true),
		historyDetailEvent:    events.NewChannelEvent[HistoryDetail](true),
		historySource:         historySource,
		logLines:              make([]string, 0, maxLogLines),
		ctx:                   ctx,
		cancel:                cancel,
		logger:                logger,
	}

	model.wg.Add(1)
	go_func_utils.SafeGo(model.logger, func() { model.listenToDashboard(ctx, source) })

	// Read from the UI log channel and populate logLines
	model.wg.Add(1)
	go_func_utils.SafeGo(model.logger, func() { model.readFromLogChannel(ctx, uiLogChan) })

	return model
}

// Shutdown stops all goroutines and waits for them to finish
func (m *UIModel) Shutdown() {
	m.logger.Printf("UIModel: Shutting down")
	m.cancel()
	m.wg.Wait()
	m.logger.Printf("UIModel: Shutdown complete")
}

// ListenToLog registers a channel to receive log messages
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToLog(ch chan<- string) func() {
	return m.logEvent.Listen(ch)
}

func (m *UIModel) ListenToCloseApplication(ch chan<- struct{}) func() {
	return m.closeApplicationEvent.Listen(ch)
}

func (m *UIModel) RequestCloseApplication() {
	m.logger.Printf("UIModel: close requested")
	m.closeApplicationEvent.Notify(struct{}{})
}

func (m *UIModel) ListenToUIState(ch chan<- UIState) func() {
	return m.uiStateEvent.Listen(ch)
}

func (m *UIModel) GetUIState() UIState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uiState
}

func (m *UIModel) SetMode(mode UIMode) {
	m.mu.Lock()
	if m.uiState.Mode == mode {
		m.mu.Unlock()
		return
	}
	m.uiState.Mode = mode
	state := m.uiState
	m.mu.Unlock()
	m.uiStateEvent.Notify(state)
}

// ListenToDashboard registers a channel for engine snapshots
func (m *UIModel) ListenToDashboard(ch chan<- Dashboard) func() {
	return m.dashboardEvent.Listen(ch)
}

func (m *UIModel) GetDashboard() Dashboard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dashboard
}

func (m *UIModel) ListenToHistory(ch chan<- []history.WorkoutRecord) func() {
	return m.historyEvent.Listen(ch)
}

func (m *UIModel) ListenToHistoryDetail(ch chan<- HistoryDetail) func() {
	return m.historyDetailEvent.Listen(ch)
}

func (m *UIModel) GetHistory() []history.WorkoutRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]history.WorkoutRecord, len(m.historyRecords))
	copy(out, m.historyRecords)
	return out
}

// RefreshHistory reloads the most recent workouts from the history store
func (m *UIModel) RefreshHistory() error {
	if m.historySource == nil {
		return fmt.Errorf("no history store")
	}
	ctx, cancel := context.WithTimeout(m.ctx, historyQueryTimeout)
	defer cancel()
	records, err := m.historySource.List(ctx, HistoryListLimit)
	if err != nil {
		return fmt.Errorf("list workouts: %w", err)
	}
	m.mu.Lock()
	m.historyRecords = records
	m.mu.Unlock()
	m.historyEvent.Notify(records)
	return nil
}

// SelectHistory loads the samples of the workout at index and publishes
// its detail
func (m *UIModel) SelectHistory(index int) error {
	m.mu.RLock()
	if index < 0 || index >= len(m.historyRecords) {
		m.mu.RUnlock()
		return fmt.Errorf("history index %d out of range", index)
	}
	rec := m.historyRecords[index]
	m.mu.RUnlock()

	detail := HistoryDetail{Record: rec}
	if m.historySource != nil {
		ctx, cancel := context.WithTimeout(m.ctx, historyQueryTimeout)
		defer cancel()
		samples, err := m.historySource.Samples(ctx, rec.ID)
		if err != nil {
			detail.Err = err.Error()
		} else {
			detail.SampleCount = len(samples)
			detail.MaxSpeedKph = workout.MaxSpeedKph(samples)
		}
	}
	m.historyDetailEvent.Notify(detail)
	return nil
}

// listenToDashboard keeps the latest engine snapshot and re-publishes it
// to the view
func (m *UIModel) listenToDashboard(ctx context.Context, source DashboardSource) {
	defer m.wg.Done()

	ch := make(chan Dashboard, 1)
	unregister := source.ListenToDashboard(ch)
	defer unregister()

	var lastSummary *workout.Summary
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-ch:
			if !ok {
				return
			}
			m.mu.Lock()
			m.dashboard = d
			mode := m.uiState.Mode
			m.mu.Unlock()
			m.dashboardEvent.Notify(d)

			// a newly recorded workout shows up in History right away
			if d.LastSummary != nil && (lastSummary == nil || !lastSummary.EndTime.Equal(d.LastSummary.EndTime)) && mode == UIModeHistory {
				if err := m.RefreshHistory(); err != nil {
					m.logger.Printf("UIModel: %v", err)
				}
			}
			lastSummary = d.LastSummary
		}
	}
}

// readFromLogChannel reads log lines from the channel and populates logLines
func (m *UIModel) readFromLogChannel(ctx context.Context, logChan <-chan string) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-logChan:
			if !ok {
				return
			}

			m.logMu.Lock()
			m.logLines = append(m.logLines, line)
			if len(m.logLines) > maxLogLines {
				m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
			}
			m.logMu.Unlock()

			m.logEvent.Notify(line)
		}
	}
}

// GetLogTail returns the last n lines of logs
func (m *UIModel) GetLogTail(n int) []string {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	if n >= len(m.logLines) {
		result := make([]string, len(m.logLines))
		copy(result, m.logLines)
		return result
	}
	result := make([]string, n)
	copy(result, m.logLines[len(m.logLines)-n:])
	return result
}
