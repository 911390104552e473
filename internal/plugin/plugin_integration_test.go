package plugin

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestPlugin_Notify_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS != "darwin" {
		t.Skip("notify plugin only works on macOS")
	}

	pluginDir := findPluginDir("notify")
	if pluginDir == "" {
		t.Skip("notify plugin not built")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	plug, err := mgr.Get("notify")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// unknown events are rejected without showing anything
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, &Request{Event: "bogus"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for unknown event")
	}
}

func TestPlugin_Clipboard_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS != "darwin" {
		t.Skip("clipboard plugin only works on macOS")
	}

	pluginDir := findPluginDir("clipboard")
	if pluginDir == "" {
		t.Skip("clipboard plugin not built")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	mgr.Discover()
	plug, err := mgr.Get("clipboard")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, &Request{Event: EventSave})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for missing path")
	}
}

func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err == nil {
			return dir
		}
	}
	return ""
}
