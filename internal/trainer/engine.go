package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/bt"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/events"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/history"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/telemetry"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/track"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/workout"
)

var (
	ErrEngineStopped  = errors.New("engine stopped")
	ErrCommandIgnored = errors.New("command ignored in current state")
)

const (
	eventQueueSize = 64
	recordTimeout  = 10 * time.Second
)

// engineCommand represents operator requests sent to the engine goroutine
type engineCommand int

const (
	cmdToggleWorkout engineCommand = iota
	cmdStopWorkout
	cmdNextTrack
	cmdReconnect
	cmdDisconnect
	cmdForeground
)

func (c engineCommand) String() string {
	switch c {
	case cmdToggleWorkout:
		return "toggle workout"
	case cmdStopWorkout:
		return "stop workout"
	case cmdNextTrack:
		return "next track"
	case cmdReconnect:
		return "reconnect"
	case cmdDisconnect:
		return "disconnect"
	case cmdForeground:
		return "foreground"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

type commandRequest struct {
	cmd   engineCommand
	reply chan error
}

// Dashboard is everything the UI shows, captured on the engine goroutine
type Dashboard struct {
	Connection bt.Status
	Metrics    telemetry.LiveMetrics
	// Reading is what the session integrates: reported speed, or the
	// cadence estimate for bikes without a speed field
	Reading         workout.Reading
	Session         workout.SessionState
	ElapsedSeconds  float64
	DistanceMeters  float64
	AverageSpeedKph float64
	MaxSpeedKph     float64
	Window          workout.WindowStats
	HasWindow       bool
	Track           track.Status
	LastSummary     *workout.Summary
	LastRecordError string
}

type EngineOptions struct {
	Radio    bt.Radio
	Store    bt.IdentityStore
	Recorder history.Recorder
	Catalog  *track.Catalog
	// InitialTrack is selected before the first workout. May be nil.
	InitialTrack        *track.Definition
	Supervisor          bt.Options
	StaleAfter          time.Duration
	MetersPerRevolution float64
	TargetDistanceKm    float64
	TrailingWindow      time.Duration
	// Clock defaults to time.Now
	Clock func() time.Time
}

// Engine is the single execution context that owns the connection
// supervisor, live metrics, the workout session and the track tracker.
// Radio callbacks and operator commands are serialized through its goroutine.
type Engine struct {
	logger   logging.Logger
	radio    bt.Radio
	recorder history.Recorder
	catalog  *track.Catalog
	clock    func() time.Time

	supervisor *bt.Supervisor
	watchdog   *telemetry.Watchdog
	session    *workout.Session
	tracker    *track.Tracker

	trailingWindow time.Duration
	lastSummary    *workout.Summary
	lastRecordErr  string
	dirty          bool

	dashboardEvent *events.ChannelEvent[Dashboard]
	unlisten       []func()

	// Goroutine management
	eventChan    chan bt.Event
	cmdChan      chan commandRequest
	doneChan     chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
}

func NewEngine(logger logging.Logger, opts EngineOptions) *Engine {
	if logger == nil {
		panic("Engine: logger cannot be nil")
	}
	if opts.Radio == nil {
		panic("Engine: radio cannot be nil")
	}
	if opts.Store == nil {
		panic("Engine: store cannot be nil")
	}
	if opts.Recorder == nil {
		panic("Engine: recorder cannot be nil")
	}
	if opts.Catalog == nil {
		opts.Catalog = track.NewCatalog()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = telemetry.DefaultStaleAfter
	}
	if opts.TrailingWindow <= 0 {
		opts.TrailingWindow = workout.DefaultTrailingWindow
	}

	e := &Engine{
		logger:         logger,
		radio:          opts.Radio,
		recorder:       opts.Recorder,
		catalog:        opts.Catalog,
		clock:          opts.Clock,
		supervisor:     bt.NewSupervisor(logger, opts.Radio, opts.Store, opts.Supervisor),
		watchdog:       telemetry.NewWatchdog(logger, opts.StaleAfter),
		session:        workout.NewSession(logger, opts.MetersPerRevolution),
		tracker:        track.NewTracker(logger, opts.TargetDistanceKm),
		trailingWindow: opts.TrailingWindow,
		dashboardEvent: events.NewChannelEvent[Dashboard](true),
		eventChan:      make(chan bt.Event, eventQueueSize),
		cmdChan:        make(chan commandRequest),
		doneChan:       make(chan struct{}),
	}

	// Supervisor events fire synchronously on the engine goroutine
	e.unlisten = append(e.unlisten,
		e.supervisor.ListenStatus(func(bt.Status) { e.dirty = true }),
		e.supervisor.ListenMetrics(func(telemetry.LiveMetrics) { e.dirty = true }),
	)

	if opts.InitialTrack != nil {
		e.tracker.Select(opts.InitialTrack, 0)
	} else {
		e.tracker.WorkoutStarted(0)
	}
	return e
}

// Start powers the radio and runs the engine goroutine. Only the first
// call has effect.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.wg.Add(1)
		go_func_utils.SafeGo(e.logger, func() { e.runLoop() })
	})
}

// ListenToDashboard registers a channel for dashboard snapshots
// Returns a deregistration function that can be called to remove the listener
func (e *Engine) ListenToDashboard(ch chan<- Dashboard) func() {
	return e.dashboardEvent.Listen(ch)
}

// LastDashboard returns the most recent snapshot, if any was published
func (e *Engine) LastDashboard() (Dashboard, bool) {
	return e.dashboardEvent.Last()
}

// ToggleWorkout starts, pauses or resumes the session. A completed session
// is discarded and a new one started.
func (e *Engine) ToggleWorkout() error { return e.send(cmdToggleWorkout) }

// StopWorkout completes the session and hands it to the recorder
func (e *Engine) StopWorkout() error { return e.send(cmdStopWorkout) }

// NextTrack cycles the selected track through the catalog
func (e *Engine) NextTrack() error { return e.send(cmdNextTrack) }

func (e *Engine) Reconnect() error { return e.send(cmdReconnect) }

func (e *Engine) Disconnect() error { return e.send(cmdDisconnect) }

// AppDidBecomeActive catches the session up after the process was suspended
func (e *Engine) AppDidBecomeActive() error { return e.send(cmdForeground) }

// Shutdown completes any running session, releases the radio and waits for
// the engine goroutine. Safe to call multiple times.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.logger.Printf("Engine: Shutting down")
		close(e.doneChan)
		e.wg.Wait()
		for _, unlisten := range e.unlisten {
			unlisten()
		}
		e.radio.Shutdown()
		e.logger.Printf("Engine: Shutdown complete")
	})
}

// post is the radio's event sink. It may be called from any goroutine.
func (e *Engine) post(ev bt.Event) {
	select {
	case e.eventChan <- ev:
	case <-e.doneChan:
	}
}

func (e *Engine) send(cmd engineCommand) error {
	req := commandRequest{cmd: cmd, reply: make(chan error, 1)}
	select {
	case e.cmdChan <- req:
	case <-e.doneChan:
		return ErrEngineStopped
	}
	select {
	case err := <-req.reply:
		return err
	case <-e.doneChan:
		return ErrEngineStopped
	}
}

// runLoop is the engine goroutine. All supervisor, session and tracker
// state is touched only from here.
func (e *Engine) runLoop() {
	defer e.wg.Done()

	e.supervisor.Start()
	if err := e.radio.Start(e.post); err != nil {
		e.logger.Printf("Engine: radio start failed: %v", err)
	}
	e.publish()

	watchdogTicker := time.NewTicker(telemetry.WatchdogInterval)
	defer watchdogTicker.Stop()

	sessionTicker := time.NewTicker(workout.TickInterval)
	sessionTicker.Stop() // Start stopped, runs only while the session is active
	sessionTicking := false

	for {
		select {
		case <-e.doneChan:
			sessionTicker.Stop()
			e.shutdownSession(e.clock())
			e.supervisor.Shutdown()
			e.logger.Printf("Engine: Goroutine exiting")
			return

		case ev := <-e.eventChan:
			e.handleEvent(ev, e.clock())

		case req := <-e.cmdChan:
			req.reply <- e.handleCommand(req.cmd, e.clock())

		case <-watchdogTicker.C:
			e.onWatchdogTick(e.clock())

		case <-sessionTicker.C:
			e.onSessionTick(e.clock())
		}

		if active := e.session.State() == workout.StateActive; active != sessionTicking {
			sessionTicking = active
			if active {
				sessionTicker.Reset(workout.TickInterval)
			} else {
				sessionTicker.Stop()
			}
		}
		if e.dirty {
			e.publish()
		}
	}
}

func (e *Engine) handleEvent(ev bt.Event, now time.Time) {
	e.supervisor.Handle(ev, now)
}

func (e *Engine) handleCommand(cmd engineCommand, now time.Time) error {
	e.dirty = true
	switch cmd {
	case cmdToggleWorkout:
		e.toggleWorkout(now)
		return nil
	case cmdStopWorkout:
		_, err := e.finishWorkout(now)
		return err
	case cmdNextTrack:
		e.nextTrack()
		return nil
	case cmdReconnect:
		if !e.supervisor.Reconnect(now) {
			return ErrCommandIgnored
		}
		return nil
	case cmdDisconnect:
		if !e.supervisor.Disconnect(now) {
			return ErrCommandIgnored
		}
		return nil
	case cmdForeground:
		e.foreground(now)
		return nil
	default:
		e.logger.Printf("Engine: unknown command %s", cmd)
		return fmt.Errorf("unknown command %s", cmd)
	}
}

// onWatchdogTick drives supervisor retries and the stale-data watchdog
func (e *Engine) onWatchdogTick(now time.Time) {
	e.supervisor.Tick(now)
	e.supervisor.Watch(now, e.watchdog)
}

func (e *Engine) onSessionTick(now time.Time) {
	if e.session.State() != workout.StateActive {
		return
	}
	e.session.Tick(now, e.supervisor.Metrics())
	e.dirty = true
	e.checkAutoStop(now)
}

func (e *Engine) checkAutoStop(now time.Time) {
	if _, fired := e.tracker.Update(e.session.DistanceMeters()); !fired {
		return
	}
	e.logger.Printf("Engine: target distance reached, stopping workout")
	if _, err := e.finishWorkout(now); err != nil {
		e.logger.Printf("Engine: auto-stop: %v", err)
	}
}

func (e *Engine) toggleWorkout(now time.Time) {
	switch e.session.State() {
	case workout.StateCompleted:
		e.session.Reset()
		e.lastSummary = nil
		fallthrough
	case workout.StateReady:
		e.session.Start(now)
		e.tracker.WorkoutStarted(e.session.DistanceMeters())
		e.logger.Printf("Engine: workout started, target %.1f km", e.tracker.TargetKm())
	case workout.StateActive:
		e.session.Pause(now, e.supervisor.Metrics())
		// the partial interval may have reached the target
		e.checkAutoStop(now)
	case workout.StatePaused:
		e.session.Resume(now)
	}
}

// finishWorkout stops the session and records it with its track context
func (e *Engine) finishWorkout(now time.Time) (workout.Summary, error) {
	summary, err := e.session.Stop(now, e.supervisor.Metrics())
	if err != nil {
		return workout.Summary{}, err
	}
	e.lastSummary = &summary
	e.dirty = true

	status, _ := e.tracker.Update(summary.DistanceMeters)
	rec := history.NewWorkoutRecord(summary, e.session.Samples(), trackContext(status))

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := e.recorder.Record(ctx, rec); err != nil {
		e.lastRecordErr = err.Error()
		e.logger.Printf("Engine: could not record workout %s: %v", rec.ID, err)
		return summary, nil
	}
	e.lastRecordErr = ""
	e.logger.Printf("Engine: recorded workout %s, %.2f km in %s", rec.ID, summary.DistanceMeters/1000,
		formatDurationHMS(time.Duration(summary.ElapsedSeconds*float64(time.Second))))
	return summary, nil
}

// shutdownSession keeps a ride in progress when the app quits
func (e *Engine) shutdownSession(now time.Time) {
	switch e.session.State() {
	case workout.StateActive, workout.StatePaused:
		e.logger.Printf("Engine: completing workout on shutdown")
		if _, err := e.finishWorkout(now); err != nil {
			e.logger.Printf("Engine: %v", err)
		}
	}
}

func (e *Engine) nextTrack() {
	var current string
	if def, ok := e.tracker.Selected(); ok {
		current = def.ID
	}
	if def, ok := e.catalog.Next(current); ok {
		e.tracker.Select(&def, e.session.DistanceMeters())
		return
	}
	e.tracker.Select(nil, e.session.DistanceMeters())
}

// foreground integrates the suspended gap using the metrics as they were
// before the suspension; the watchdog catches up on its next tick
func (e *Engine) foreground(now time.Time) {
	e.logger.Printf("Engine: app became active")
	if e.session.CatchUp(now, e.supervisor.Metrics()) {
		e.checkAutoStop(now)
	}
}

func (e *Engine) snapshot() Dashboard {
	metrics := e.supervisor.Metrics()
	distance := e.session.DistanceMeters()
	d := Dashboard{
		Connection:      e.supervisor.Status(),
		Metrics:         metrics,
		Reading:         e.session.Reading(metrics),
		Session:         e.session.State(),
		ElapsedSeconds:  e.session.ElapsedSeconds(),
		DistanceMeters:  distance,
		AverageSpeedKph: e.session.AverageSpeedKph(),
		MaxSpeedKph:     e.session.MaxSpeedKph(),
		Track:           e.tracker.Status(distance),
		LastRecordError: e.lastRecordErr,
	}
	d.Window, d.HasWindow = e.session.RecentWindow(e.trailingWindow)
	if e.lastSummary != nil {
		s := *e.lastSummary
		d.LastSummary = &s
	}
	return d
}

func (e *Engine) publish() {
	e.dirty = false
	e.dashboardEvent.Notify(e.snapshot())
}

func trackContext(st track.Status) history.TrackContext {
	tc := history.TrackContext{
		TargetDistanceKm: st.TargetDistanceKm,
		ProgressFraction: st.Fraction,
		Completed:        st.Completed,
	}
	if st.Track != nil {
		tc.TrackID = st.Track.ID
		tc.TrackName = st.Track.Name
	}
	return tc
}
