// Package main provides a desktop notification plugin for macOS.
// It announces saved and cleared drawings via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event     string          `json:"event"`
	DrawingID string          `json:"drawing_id"`
	Path      string          `json:"path"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is read from the manifest.
type Config struct {
	Sound string `json:"sound"`
}

// messages maps events to notification text builders.
var messages = map[string]func(Request) string{
	"save": func(r Request) string {
		return fmt.Sprintf("Saved %s (%dx%d)", filepath.Base(r.Path), r.Width, r.Height)
	},
	"autosave": func(r Request) string {
		return "Auto-saved " + filepath.Base(r.Path)
	},
	"clear": func(Request) string {
		return "Canvas cleared. Undo brings it back."
	},
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	build, ok := messages[req.Event]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("bad config: %v", err))
			return
		}
	}

	if err := runAppleScript(notificationScript(build(req), cfg.Sound)); err != nil {
		writeErrorResponse(fmt.Sprintf("notify failed: %v", err))
		return
	}

	writeSuccessResponse()
}

// notificationScript builds the AppleScript that shows msg.
func notificationScript(msg, sound string) string {
	script := fmt.Sprintf(`display notification "%s" with title "Mudra"`, escape(msg))
	if sound != "" {
		script += fmt.Sprintf(` sound name "%s"`, escape(sound))
	}
	return script
}

// escape quotes s for an AppleScript string literal.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
