// Package plugin runs external executables that react to saved and cleared
// drawings.
package plugin

import (
	"encoding/json"
	"slices"
)

// Events a plugin can subscribe to.
const (
	EventSave     = "save"
	EventAutoSave = "autosave"
	EventClear    = "clear"
)

// Manifest describes a plugin, read from its plugin.json.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is written to the plugin's stdin as JSON.
type Request struct {
	Event     string          `json:"event"`
	DrawingID string          `json:"drawing_id,omitempty"`
	Path      string          `json:"path,omitempty"`
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin and its location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Subscribes reports whether the plugin wants event.
func (p *Plugin) Subscribes(event string) bool {
	return slices.Contains(p.Manifest.Events, event)
}
