package template

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var libs []*Library
	var errs []error
	w, err := NewWatcher(afero.NewOsFs(), dir, 20*time.Millisecond, func(lib *Library, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		libs = append(libs, lib)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "studio.json"), []byte(`{
  "id": "studio", "name": "Studio",
  "stages": [{"id": "s", "label": "Sketch"}]
}`), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, lib := range libs {
			if lib.Catalog.Has("studio") {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "studio.json"), []byte(`{"id":`), 0o644))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(afero.NewOsFs(), filepath.Join(t.TempDir(), "missing"), 0, func(*Library, error) {})
	assert.Error(t, err)
}
