// Package main provides a clipboard plugin for macOS.
// It copies a saved drawing to the clipboard via AppleScript.
package main

import (
	"encoding/json"
	"errors"
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
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// classes maps file extensions to AppleScript picture classes.
var classes = map[string]string{
	".png":  "«class PNGf»",
	".jpg":  "JPEG picture",
	".jpeg": "JPEG picture",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Event {
	case "save", "autosave":
		script, err := buildCopyScript(req.Path)
		if err != nil {
			writeErrorResponse(err.Error())
			return
		}
		if err := runAppleScript(script); err != nil {
			writeErrorResponse(fmt.Sprintf("copy failed: %v", err))
			return
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	writeSuccessResponse()
}

// buildCopyScript returns the AppleScript that puts the image at path on
// the clipboard.
func buildCopyScript(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	class, ok := classes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("unsupported image type: %s", filepath.Ext(path))
	}
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(path)
	return fmt.Sprintf(`set the clipboard to (read (POSIX file "%s") as %s)`, quoted, class), nil
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
