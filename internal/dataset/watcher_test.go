package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plays.json")
	require.NoError(t, os.WriteFile(path, []byte(samplePlayLog), 0644))

	reloaded := make(chan *Dataset, 1)
	w, err := NewWatcher(path, func(ds *Dataset) { reloaded <- ds })
	require.NoError(t, err)
	defer w.Close()

	w.reload()
	select {
	case ds := <-reloaded:
		assert.Equal(t, 4, ds.Len())
	default:
		t.Fatal("expected a reload callback")
	}

	// A malformed file keeps the previous snapshot: no callback.
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	w.reload()
	select {
	case <-reloaded:
		t.Fatal("malformed file must not trigger a reload")
	default:
	}
}

func TestWatcherRunStopsOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plays.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	w, err := NewWatcher(path, func(*Dataset) {})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}
