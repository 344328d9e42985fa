// Command smart_trainer records indoor rides from an FTMS bike in a terminal
// dashboard.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/rivo/tview"
	"github.com/spf13/pflag"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/bt"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/config"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/history"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/track"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/trainer"
)

const uiLogBuffer = 256

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "smart_trainer: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	// The curses UI owns the terminal, so logs go to the file and the log pane
	uiLogChan := make(chan string, uiLogBuffer)
	logger, logCloser := logging.New(logging.Options{
		FilePath:  cfg.LogFile,
		MaxSizeMB: cfg.LogMaxSizeMB,
		UILines:   uiLogChan,
	})
	defer logCloser.Close()

	logger.Printf("smart_trainer: starting, data in %s", cfg.DataDir)
	if cfg.ConfigFile != "" {
		logger.Printf("smart_trainer: settings from %s", cfg.ConfigFile)
	}

	catalog := track.DefaultCatalog()
	var initialTrack *track.Definition
	if cfg.Track != "" {
		def, err := catalog.Get(cfg.Track)
		if err != nil {
			return err
		}
		initialTrack = &def
	}

	store, err := history.OpenSQLiteStore(cfg.HistoryPath(), logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	recorders := history.MultiRecorder{store}
	if cfg.FITExport {
		recorders = append(recorders, history.NewFITExporter(cfg.FITDir(), logger))
	}

	var radio bt.Radio
	var simulator trainer.BikeSimulator
	if cfg.Mock {
		mock := trainer.NewMockRadio(logger, trainer.DefaultMockRadioConfig())
		radio, simulator = mock, mock
	} else {
		radio = bt.NewTinygoRadio(bluetooth.DefaultAdapter, logger)
	}

	supervisorOpts := bt.DefaultOptions()
	supervisorOpts.KnownDeviceGrace = cfg.PreferKnownGrace

	engine := trainer.NewEngine(logger, trainer.EngineOptions{
		Radio:               radio,
		Store:               trainer.NewFileIdentityStore(cfg.IdentityPath(), logger),
		Recorder:            recorders,
		Catalog:             catalog,
		InitialTrack:        initialTrack,
		Supervisor:          supervisorOpts,
		MetersPerRevolution: cfg.MetersPerRevolution,
		TargetDistanceKm:    cfg.TargetDistanceKm,
	})
	engine.Start()
	defer engine.Shutdown()

	model := trainer.NewUIModel(engine, store, logger, uiLogChan)
	defer model.Shutdown()

	controller := trainer.NewUIController(model, engine, simulator, logger)

	app := tview.NewApplication()
	view := trainer.NewBaseUIView(trainer.NewBaseUIViewArg{
		UIViewImpl:   trainer.NewCursesUIView(logger, app, cfg.Mock),
		UIModel:      model,
		UIController: controller,
		Logger:       logger,
	})
	defer view.Shutdown()

	stopSignals := watchSignals(logger, engine, model)
	defer stopSignals()

	if err := view.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	logger.Printf("smart_trainer: exiting")
	return nil
}

// watchSignals quits on interrupt and catches the session up when the
// process is resumed after a suspension
func watchSignals(logger logging.Logger, engine *trainer.Engine, model *trainer.UIModel) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, append([]os.Signal{os.Interrupt, syscall.SIGTERM}, resumeSignals...)...)

	done := make(chan struct{})
	go_func_utils.SafeGo(logger, func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				if slices.Contains(resumeSignals, sig) {
					if err := engine.AppDidBecomeActive(); err != nil {
						logger.Printf("smart_trainer: resume: %v", err)
					}
					continue
				}
				logger.Printf("smart_trainer: %v, quitting", sig)
				model.RequestCloseApplication()
			}
		}
	})

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
