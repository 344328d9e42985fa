package trainer

import (
	"context"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/history"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
)

// BaseUIView contains the base logic shared by all UI implementations
type BaseUIView struct {
	uiViewImpl   UIViewImpl
	uiModel      *UIModel
	uiController *UIController
	context      context.Context
	cancelFunc   context.CancelFunc
	waitGroup    sync.WaitGroup
	logger       logging.Logger
}

// NewBaseUIViewArg holds the arguments for creating a new BaseUIView
type NewBaseUIViewArg struct {
	UIViewImpl   UIViewImpl
	UIModel      *UIModel
	UIController *UIController
	Logger       logging.Logger
}

// NewBaseUIView creates a new BaseUIView with the given implementation
func NewBaseUIView(args NewBaseUIViewArg) *BaseUIView {
	if args.Logger == nil {
		panic("BaseUIView: logger cannot be nil")
	}
	if args.UIViewImpl == nil {
		panic("BaseUIView: UIViewImpl cannot be nil")
	}
	if args.UIModel == nil {
		panic("BaseUIView: UIModel cannot be nil")
	}
	if args.UIController == nil {
		panic("BaseUIView: UIController cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())

	base := &BaseUIView{
		uiViewImpl:   args.UIViewImpl,
		uiModel:      args.UIModel,
		uiController: args.UIController,
		context:      ctx,
		cancelFunc:   cancel,
		logger:       args.Logger,
	}

	args.UIViewImpl.Initialize(args.UIController)
	args.UIViewImpl.SetupKeyboardHandlers(args.UIController)
	args.UIViewImpl.SetMode(args.UIModel.GetUIState().Mode)

	// Set up periodic resize check and initial display
	base.waitGroup.Add(1)
	go_func_utils.SafeGo(base.logger, func() { base.monitorLogResize() })
	base.updateLogDisplay()

	base.setupEventListeners()

	return base
}

// listenAndDraw runs apply for every value on ch and redraws, until the
// view shuts down
func listenAndDraw[T any](base *BaseUIView, register func(chan<- T) func(), apply func(T)) {
	ch := make(chan T, 1)
	unregister := register(ch)
	base.waitGroup.Add(1)
	go_func_utils.SafeGo(base.logger, func() {
		defer base.waitGroup.Done()
		defer unregister()
		for {
			select {
			case <-base.context.Done():
				return
			case value, ok := <-ch:
				if !ok {
					return
				}
				apply(value)
				if err := base.uiViewImpl.Draw(); err != nil {
					base.logger.Printf("BaseUIView: Error drawing: %v", err)
				}
			}
		}
	})
}

func (base *BaseUIView) setupEventListeners() {
	// When a new log arrives, update the display to show the tail
	listenAndDraw(base, base.uiModel.ListenToLog, func(string) {
		base.updateLogDisplay()
	})

	listenAndDraw(base, base.uiModel.ListenToDashboard, base.uiViewImpl.UpdateDashboard)

	listenAndDraw(base, base.uiModel.ListenToUIState, func(state UIState) {
		base.uiViewImpl.SetMode(state.Mode)
	})

	listenAndDraw(base, base.uiModel.ListenToHistory, func(records []history.WorkoutRecord) {
		base.uiViewImpl.SetHistoryList(records)
	})

	listenAndDraw(base, base.uiModel.ListenToHistoryDetail, base.uiViewImpl.UpdateHistoryDetail)

	// Listen to close application event from model
	closeChan := make(chan struct{}, 1)
	closeUnregister := base.uiModel.ListenToCloseApplication(closeChan)
	base.waitGroup.Add(1)
	go_func_utils.SafeGo(base.logger, func() {
		defer base.waitGroup.Done()
		defer closeUnregister()
		select {
		case <-base.context.Done():
			return
		case _, ok := <-closeChan:
			if !ok {
				return
			}
			base.uiViewImpl.Stop()
		}
	})
}

func (base *BaseUIView) updateLogDisplay() {
	height := base.uiViewImpl.GetLogViewHeight()
	if height <= 0 {
		return
	}

	logLines := base.uiModel.GetLogTail(height)

	base.uiViewImpl.ClearLogView()
	for _, line := range logLines {
		if err := base.uiViewImpl.WriteLogLine(line + "\n"); err != nil {
			base.logger.Printf("BaseUIView: Error writing to log view: %v", err)
		}
	}
}

func (base *BaseUIView) monitorLogResize() {
	defer base.waitGroup.Done()
	var lastHeight int
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-base.context.Done():
			return
		case <-ticker.C:
			height := base.uiViewImpl.GetLogViewHeight()
			if height != lastHeight && height > 0 {
				lastHeight = height
				base.updateLogDisplay()
				if err := base.uiViewImpl.Draw(); err != nil {
					base.logger.Printf("BaseUIView: Error drawing: %v", err)
				}
			}
		}
	}
}

// Shutdown stops all goroutines and waits for them to finish
func (base *BaseUIView) Shutdown() {
	base.logger.Printf("BaseUIView: Shutting down")
	base.cancelFunc()
	base.waitGroup.Wait()
	base.logger.Printf("BaseUIView: Shutdown complete")
}

// Run starts the UI and blocks until it exits
func (base *BaseUIView) Run() error {
	return base.uiViewImpl.Run()
}
