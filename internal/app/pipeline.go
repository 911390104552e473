package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/board"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/compose"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/engine"
)

// WindowName is the title of the preview window.
const WindowName = "Mudra"

// maxReadFailures stops the loop after this many consecutive camera errors.
const maxReadFailures = 50

// Keys handled by the loop itself rather than the board.
const (
	keyEscape = 27
	keyHUD    = 'h'
)

// window is the preview window; *gocv.Window satisfies it.
type window interface {
	IMShow(img gocv.Mat) error
	WaitKey(delay int) int
	Close() error
}

// Run opens the camera and runs the frame loop until ctx is done, Quit is
// called, 'q' is pressed in the preview window or a mock camera runs out of
// frames.
//
// Each iteration:
//  1. read a frame and measure motion
//  2. detect the hand unless tracking is paused
//  3. step the board (classify, draw, commit)
//  4. pick the frame rate: active while anything moves or a hand is seen
//  5. composite canvas, preview and HUD onto the frame
//  6. publish the frame to stream viewers and the window
//
// Triggers from the server, tray and keyboard run between iterations.
func (a *App) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return errors.New("app: already running")
	}
	defer close(a.done)

	if err := a.setup(); err != nil {
		a.release()
		return err
	}
	defer a.release()

	ctx, cancel := context.WithCancel(ctx)
	defer a.dispatcher.Wait()
	defer cancel()
	go a.dispatcher.Run(ctx)

	if a.cfg.Window {
		a.window = gocv.NewWindow(WindowName)
	}

	log.Info("drawing loop started")
	a.statusChanged()
	err := a.loop(ctx)
	a.saveSettings()
	log.Info("drawing loop stopped")
	return err
}

// release closes everything Run opened.
func (a *App) release() {
	if a.window != nil {
		a.window.Close()
		a.window = nil
	}
	if err := a.camera.Close(); err != nil {
		log.WithError(err).Warn("error closing camera")
	}
	a.motion.Close()
	a.compositor.Close()
	if err := a.detector.Close(); err != nil {
		log.WithError(err).Warn("error closing detector")
	}
}

func (a *App) loop(ctx context.Context) error {
	ticker := time.NewTicker(a.throttle.Interval())
	defer ticker.Stop()

	var autosave <-chan time.Time
	if a.cfg.AutoSaveInterval > 0 {
		t := time.NewTicker(a.cfg.AutoSaveInterval)
		defer t.Stop()
		autosave = t.C
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.quit:
			return nil
		case cmd := <-a.commands:
			cmd.run(ctx)
			close(cmd.done)
		case <-autosave:
			a.autoSave(ctx)
		case <-ticker.C:
			err := a.step(ctx)
			switch {
			case errors.Is(err, capture.ErrNoFrames):
				log.Info("camera playback finished")
				return nil
			case err != nil:
				failures++
				log.WithError(err).Debug("frame skipped")
				if failures >= maxReadFailures {
					return fmt.Errorf("camera: %d consecutive failures: %w", failures, err)
				}
				continue
			}
			failures = 0

			if fps, changed := a.throttle.Observe(a.activity); changed {
				a.camera.SetFPS(fps)
				ticker.Reset(a.throttle.Interval())
				log.WithField("fps", fps).Debug("frame rate changed")
			}
		}
	}
}

// step processes one camera frame. It returns the camera error when no
// frame could be read.
func (a *App) step(ctx context.Context) error {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		return err
	}
	defer frame.Close()

	moving, _ := a.motion.Detect(frame)

	var hand *detector.HandLandmarks
	if a.enabled.Load() {
		hands, err := a.detector.Detect(frame)
		if err != nil {
			log.WithError(err).Debug("hand detection failed")
		}
		hand = detector.Primary(hands).Scale(frame.Cols(), frame.Rows(), false)
	}

	f := a.board.Step(hand)
	a.activity = moving || hand != nil
	if f.Commit != nil {
		a.statusChanged()
	}
	if a.autoPending && a.board.Engine().Mode() == engine.Inactive {
		a.autoSave(ctx)
	}

	if err := a.compositor.Render(frame, compose.SceneOf(a.board, f, a.throttle.FPS())); err != nil {
		log.WithError(err).Warn("compositing failed")
	}
	if err := a.frames.Publish(frame); err != nil {
		log.WithError(err).Debug("stream publish failed")
	}

	if a.window != nil {
		a.window.IMShow(*frame)
		a.handleKey(ctx, a.window.WaitKey(1))
	}
	return nil
}

// handleKey maps a preview window key press. -1 means no key.
func (a *App) handleKey(ctx context.Context, key int) {
	if key < 0 {
		return
	}
	key &= 0xFF

	switch key {
	case 'q', 'Q', keyEscape:
		a.Quit()
		return
	case keyHUD:
		a.compositor.HUD = !a.compositor.HUD
		return
	}

	if t, ok := board.KeyTrigger(key); ok {
		a.apply(ctx, t)
	}
}
