// Package tray provides the system tray menu of the drawing board.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/board"
	"github.com/ayusman/mudra/internal/canvas"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle  func(enabled bool)
	onTrigger func(t board.Trigger)
	onOpen    func()
	onQuit    func()
	enabled   bool
	status    board.Status
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuMode   *systray.MenuItem
	menuUndo   *systray.MenuItem
	menuRedo   *systray.MenuItem
	colors     []*systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when drawing is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnTrigger sets the callback for board commands chosen from the menu.
func (t *Tray) OnTrigger(fn func(board.Trigger)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrigger = fn
}

// OnOpen sets the callback for the "Open Viewer" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra air drawing board")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle hand tracking")
	systray.AddSeparator()

	t.menuMode = systray.AddMenuItem(modeTitle(t.status), "Current mode")
	t.menuMode.Disable()
	systray.AddSeparator()

	t.menuUndo = systray.AddMenuItem("Undo", "Undo the last change")
	t.menuRedo = systray.AddMenuItem("Redo", "Redo the last undone change")
	menuClear := systray.AddMenuItem("Clear", "Clear the canvas")
	menuSave := systray.AddMenuItem("Save", "Save the canvas")

	menuColor := systray.AddMenuItem("Color", "Drawing color")
	t.colors = make([]*systray.MenuItem, len(canvas.Palette))
	for i, sw := range canvas.Palette {
		t.colors[i] = menuColor.AddSubMenuItemCheckbox(sw.Name, "Select "+sw.Name, i == t.status.ColorIndex)
	}
	menuShape := systray.AddMenuItem("Next Shape", "Cycle the shape tool")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Viewer...", "Open the viewer in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")
	t.refresh()
	t.mu.Unlock()

	for i, item := range t.colors {
		go func(i int, item *systray.MenuItem) {
			for range item.ClickedCh {
				t.handleTrigger(board.Trigger{Kind: board.SelectColor, Color: i})
			}
		}(i, item)
	}

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuUndo.ClickedCh:
				t.handleTrigger(board.Trigger{Kind: board.Undo})
			case <-t.menuRedo.ClickedCh:
				t.handleTrigger(board.Trigger{Kind: board.Redo})
			case <-menuClear.ClickedCh:
				t.handleTrigger(board.Trigger{Kind: board.Clear})
			case <-menuSave.ClickedCh:
				t.handleTrigger(board.Trigger{Kind: board.Save})
			case <-menuShape.ClickedCh:
				t.handleTrigger(board.Trigger{Kind: board.CycleShape})
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func modeTitle(s board.Status) string {
	if s.Mode == "" {
		return "Mode: idle"
	}
	title := fmt.Sprintf("Mode: %s · %s · %s", s.Mode, s.Color, s.Shape)
	if s.Previewing {
		title += " (preview)"
	}
	return title
}

// refresh pushes the stored state into the menu. The caller holds mu.
func (t *Tray) refresh() {
	if t.menuMode == nil {
		return
	}
	t.menuToggle.SetTitle(toggleTitle(t.enabled))
	t.menuMode.SetTitle(modeTitle(t.status))
	setEnabled(t.menuUndo, t.status.Undo > 0)
	setEnabled(t.menuRedo, t.status.Redo > 0)
	for i, item := range t.colors {
		if i == t.status.ColorIndex {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func setEnabled(item *systray.MenuItem, on bool) {
	if on {
		item.Enable()
	} else {
		item.Disable()
	}
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.refresh()
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleTrigger(tr board.Trigger) {
	t.mu.RLock()
	callback := t.onTrigger
	t.mu.RUnlock()

	if callback != nil {
		callback(tr)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the mode line and the undo, redo and color items.
func (t *Tray) SetStatus(s board.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	t.refresh()
}

// Status returns the last status given to SetStatus.
func (t *Tray) Status() board.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetEnabled updates the tracking toggle without calling OnToggle.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	t.refresh()
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
