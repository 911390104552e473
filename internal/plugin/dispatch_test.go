package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher(t *testing.T) {
	p := scriptPlugin(t, "record", `cat > "$(dirname "$0")/last.json"
echo '{"success":true}'
`, EventSave)

	// the manager reads the manifest written next to the script
	manifest, err := json.Marshal(p.Manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(p.Path, ManifestFile), manifest, 0644))

	manager := NewManager(filepath.Dir(p.Path))
	require.NoError(t, manager.Discover())
	require.Len(t, manager.List(), 1)

	d := NewDispatcher(manager, NewExecutor(5*time.Second))

	var mu sync.Mutex
	var results []string
	var runErr error
	done := make(chan struct{}, 4)
	d.OnResult = func(p *Plugin, req Request, resp *Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			runErr = err
		}
		results = append(results, p.Manifest.Name+":"+req.Event)
		done <- struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	assert.True(t, d.Notify(Request{Event: EventClear}), "no subscribers is not a drop")
	assert.True(t, d.Notify(Request{Event: EventSave, Path: "/tmp/a.png"}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("plugin did not run")
	}
	cancel()
	d.Wait()

	mu.Lock()
	assert.NoError(t, runErr)
	assert.Equal(t, []string{"record:save"}, results)
	mu.Unlock()

	data, err := os.ReadFile(filepath.Join(p.Path, "last.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"path":"/tmp/a.png"`)
}

func TestDispatcher_QueueFull(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, Manifest{Name: "sink", Executable: "sink", Events: []string{EventAutoSave}})

	manager := NewManager(root)
	require.NoError(t, manager.Discover())
	d := NewDispatcher(manager, NewExecutor(time.Second))

	for i := 0; i < queueSize; i++ {
		require.True(t, d.Notify(Request{Event: EventAutoSave}))
	}
	assert.False(t, d.Notify(Request{Event: EventAutoSave}))
}
