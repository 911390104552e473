// Package app runs the drawing board: it owns the frame loop and is the only
// goroutine that touches the board.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/board"
	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/compose"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/persist"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// commandQueue bounds the triggers waiting for the next frame boundary.
const commandQueue = 32

// ErrNotRunning is returned by controller calls once the loop has stopped.
var ErrNotRunning = errors.New("app is not running")

// Settings keys in the store.
const (
	settingColor = "color"
	settingBrush = "brush"
	settingShape = "shape"
	settingTrail = "trail"
)

// Options configures an App. Nil dependencies are created from Config.
type Options struct {
	Config   *config.Config
	Camera   capture.Camera
	Detector detector.Detector
	Store    *store.Store
	Hub      *server.Hub
	Frames   *server.FrameBuffer

	// Load is a drawing ID or image path put on the canvas at start.
	Load string
}

type command struct {
	run  func(ctx context.Context)
	done chan struct{}
}

// App is the main application that ties capture, gestures, drawing and
// persistence together.
type App struct {
	cfg        *config.Config
	camera     capture.Camera
	detector   detector.Detector
	motion     *capture.MotionDetector
	throttle   *capture.Throttle
	compositor *compose.Compositor
	persister  *persist.Persister
	store      *store.Store
	plugins    *plugin.Manager
	dispatcher *plugin.Dispatcher
	hub        *server.Hub
	frames     *server.FrameBuffer
	load       string

	// owned by the loop goroutine
	board       *board.Board
	window      window
	autoPending bool
	activity    bool

	commands chan command
	enabled  atomic.Bool
	started  atomic.Bool
	done     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once

	// OnStatus, when set, is called from the loop after any board change.
	OnStatus func(board.Status)
}

// New creates an App. It does not open the camera; Run does.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	a := &App{
		cfg:        cfg,
		camera:     opts.Camera,
		detector:   opts.Detector,
		motion:     capture.NewMotionDetector(capture.DefaultMotionPercent),
		throttle:   capture.NewThrottle(capture.IdleTimeout),
		compositor: compose.New(cfg.BlendAlpha),
		store:      opts.Store,
		hub:        opts.Hub,
		frames:     opts.Frames,
		load:       opts.Load,
		commands:   make(chan command, commandQueue),
		done:       make(chan struct{}),
		quit:       make(chan struct{}),
	}
	a.enabled.Store(true)

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Config{
			DeviceID: cfg.CameraID,
			Width:    cfg.CameraWidth,
			Height:   cfg.CameraHeight,
			FPS:      capture.IdleFPS,
			Mirror:   cfg.Mirror,
		})
	}

	// Try MediaPipe first, fall back to mock detector
	if a.detector == nil {
		dcfg := detector.DefaultConfig()
		dcfg.MinConfidence = cfg.MinConfidence
		if mp, err := detector.NewMediaPipeDetector(dcfg); err == nil {
			a.detector = mp
			log.Info("using MediaPipe hand detection")
		} else {
			log.WithError(err).Warn("MediaPipe not available, using mock detector")
			a.detector = detector.NewMockDetector()
		}
	}

	if a.hub == nil {
		a.hub = server.NewHub()
	}
	if a.frames == nil {
		a.frames = server.NewFrameBuffer()
	}

	p, err := persist.New(persist.Config{
		Dir:        cfg.DrawingsDir(),
		AutoDir:    cfg.AutoSaveDir(),
		Format:     cfg.SaveFormat,
		AutoFormat: cfg.AutoSaveFormat,
		MaxAuto:    cfg.AutoSaveMaxFiles,
	}, opts.Store)
	if err != nil {
		return nil, fmt.Errorf("init persistence: %w", err)
	}
	a.persister = p

	a.plugins = plugin.NewManager(cfg.PluginDir)
	if err := a.plugins.Discover(); err != nil {
		log.WithError(err).Warn("plugin discovery failed")
	}
	a.dispatcher = plugin.NewDispatcher(a.plugins, plugin.NewExecutor(cfg.PluginTimeout))
	a.dispatcher.OnResult = logPluginResult

	return a, nil
}

func logPluginResult(p *plugin.Plugin, req plugin.Request, resp *plugin.Response, err error) {
	entry := log.WithFields(log.Fields{"plugin": p.Manifest.Name, "event": req.Event})
	switch {
	case err != nil:
		entry.WithError(err).Warn("plugin failed")
	case !resp.Success:
		entry.WithField("error", resp.Error).Warn("plugin reported failure")
	default:
		entry.Debug("plugin ran")
	}
}

// boardConfig maps the application config onto a board of the given size.
func boardConfig(cfg *config.Config, size image.Point) board.Config {
	bc := board.DefaultConfig(size.X, size.Y)
	bc.HistoryDepth = cfg.HistoryDepth
	bc.Smoothing = cfg.Smoothing
	bc.Gesture = gesture.Config{
		ExtensionRatio: cfg.ExtensionRatio,
		MaxHoldFrames:  cfg.HoldFrames,
		LenientThumb:   cfg.LenientThumb,
	}
	bc.Engine.Color = cfg.Color
	bc.Engine.Brush = cfg.Brush
	bc.Engine.EraserSize = cfg.EraserSize
	bc.Engine.ShowTrail = cfg.Trail
	if policy, err := engine.ParseExitPolicy(cfg.ShapeExit); err == nil {
		bc.Engine.ExitPolicy = policy
	}
	return bc
}

// setup opens the camera and builds the board at the negotiated size.
func (a *App) setup() error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.throttle.FPS())

	size := a.camera.Size()
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(a.cfg.CameraWidth, a.cfg.CameraHeight)
	}
	a.board = board.New(boardConfig(a.cfg, size))
	a.restoreSettings()

	if a.load != "" {
		c, err := a.persister.Open(a.load)
		if err != nil {
			return fmt.Errorf("load %s: %w", a.load, err)
		}
		a.board.Load(c)
		log.WithField("ref", a.load).Info("drawing loaded")
	}

	a.board.OnEvent = a.onEvent
	log.WithFields(log.Fields{"width": size.X, "height": size.Y}).Info("board ready")
	return nil
}

// restoreSettings applies tool selections saved by a previous run.
func (a *App) restoreSettings() {
	if a.store == nil {
		return
	}
	cur := a.board.Settings()
	trail := 0
	if cur.Trail {
		trail = 1
	}
	settings := a.store.Settings()
	a.board.ApplySettings(board.Settings{
		Color: settings.GetInt(settingColor, cur.Color),
		Brush: settings.GetInt(settingBrush, cur.Brush),
		Shape: canvas.ShapeKind(settings.GetInt(settingShape, int(cur.Shape))),
		Trail: settings.GetInt(settingTrail, trail) != 0,
	})
}

// saveSettings persists the current tool selections.
func (a *App) saveSettings() {
	if a.store == nil || a.board == nil {
		return
	}
	s := a.board.Settings()
	trail := "0"
	if s.Trail {
		trail = "1"
	}
	err := a.store.Settings().SetMany(map[string]string{
		settingColor: strconv.Itoa(s.Color),
		settingBrush: strconv.Itoa(s.Brush),
		settingShape: strconv.Itoa(int(s.Shape)),
		settingTrail: trail,
	})
	if err != nil {
		log.WithError(err).Warn("failed to save settings")
	}
}

// onEvent fans board events out to the event feed and plugins.
func (a *App) onEvent(e board.Event) {
	a.hub.BroadcastEvent(e)

	switch {
	case e.Type == board.EventSettings:
		a.saveSettings()
	case e.Type == board.EventCommit && e.Kind == engine.KindClear.String():
		size := a.board.Engine().Canvas().Bounds().Size()
		a.dispatcher.Notify(plugin.Request{Event: plugin.EventClear, Width: size.X, Height: size.Y})
	}
}

// statusChanged pushes the board status to observers.
func (a *App) statusChanged() {
	s := a.board.Status()
	a.hub.BroadcastStatus(s)
	if a.OnStatus != nil {
		a.OnStatus(s)
	}
}

// apply runs a trigger on the loop goroutine.
func (a *App) apply(ctx context.Context, t board.Trigger) api.Result {
	out := a.board.Do(t)
	res := api.Result{Applied: out.Applied}

	if out.Save {
		d, err := a.save(ctx)
		if err != nil {
			log.WithError(err).Error("save failed")
			a.compositor.Notify("Save failed")
			res.Applied = false
		}
		res.Drawing = d
	}

	log.WithFields(log.Fields{"trigger": t.Kind, "applied": res.Applied}).Debug("trigger")
	if res.Applied {
		a.statusChanged()
	}
	res.Status = a.board.Status()
	return res
}

// save writes the committed canvas as a manual save.
func (a *App) save(ctx context.Context) (*store.Drawing, error) {
	d, err := a.persister.Save(ctx, a.board.Snapshot())
	if err != nil {
		return nil, err
	}
	a.compositor.Notify("Saved " + d.Path)
	a.hub.BroadcastSaved(d)
	a.dispatcher.Notify(plugin.Request{
		Event:     plugin.EventSave,
		DrawingID: d.ID,
		Path:      d.Path,
		Width:     d.Width,
		Height:    d.Height,
	})
	return d, nil
}

// autoSave saves the canvas when no stroke or preview is in progress;
// otherwise it stays pending until the board is back to rest.
func (a *App) autoSave(ctx context.Context) {
	if a.board.Engine().Mode() != engine.Inactive {
		a.autoPending = true
		return
	}
	a.autoPending = false

	d, err := a.persister.AutoSave(ctx, a.board.Snapshot(), a.board.Revision())
	if err != nil {
		log.WithError(err).Error("auto-save failed")
		return
	}
	if d == nil {
		return
	}
	a.hub.BroadcastSaved(d)
	a.dispatcher.Notify(plugin.Request{
		Event:     plugin.EventAutoSave,
		DrawingID: d.ID,
		Path:      d.Path,
		Width:     d.Width,
		Height:    d.Height,
	})
}

// call runs fn on the loop goroutine at the next frame boundary.
func (a *App) call(ctx context.Context, fn func(ctx context.Context)) error {
	cmd := command{run: fn, done: make(chan struct{})}
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrNotRunning
	}

	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrNotRunning
	}
}

// Do queues a trigger and waits for its result.
func (a *App) Do(ctx context.Context, t board.Trigger) (api.Result, error) {
	var res api.Result
	err := a.call(ctx, func(ctx context.Context) {
		res = a.apply(ctx, t)
	})
	if err != nil {
		return api.Result{}, err
	}
	return res, nil
}

// Trigger queues t without waiting, for callers such as the tray that do
// not need the result.
func (a *App) Trigger(t board.Trigger) {
	go func() {
		if _, err := a.Do(context.Background(), t); err != nil {
			log.WithError(err).WithField("trigger", t.Kind).Debug("trigger dropped")
		}
	}()
}

// Status returns the board status.
func (a *App) Status(ctx context.Context) (board.Status, error) {
	var s board.Status
	err := a.call(ctx, func(context.Context) {
		s = a.board.Status()
	})
	return s, err
}

// Snapshot returns a copy of the committed canvas and its revision.
func (a *App) Snapshot(ctx context.Context) (*canvas.Canvas, uint64, error) {
	var (
		c   *canvas.Canvas
		rev uint64
	)
	err := a.call(ctx, func(context.Context) {
		c = a.board.Snapshot()
		rev = a.board.Revision()
	})
	return c, rev, err
}

// SetEnabled pauses or resumes hand tracking. While paused every frame
// counts as "no hand".
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) != enabled {
		log.WithField("enabled", enabled).Info("hand tracking toggled")
	}
}

// IsEnabled returns whether hand tracking is on.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// Quit asks the loop to stop.
func (a *App) Quit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// Done is closed when Run has returned.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Hub returns the event hub fed by the app.
func (a *App) Hub() *server.Hub {
	return a.hub
}

// Frames returns the composited frame buffer.
func (a *App) Frames() *server.FrameBuffer {
	return a.frames
}

// Persister returns the drawing persister.
func (a *App) Persister() *persist.Persister {
	return a.persister
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.plugins
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}
