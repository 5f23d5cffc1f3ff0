package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeScript(t *testing.T, path, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

// startWatch runs w in the background and returns a channel receiving
// each reloaded path plus a stop function that waits for Watch to return.
func startWatch(t *testing.T, w *Watcher, reload ReloadFunc) (func() error, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(ctx context.Context, path string) error {
			err := reload(ctx, path)
			calls <- struct{}{}
			return err
		})
	}()
	return func() error {
		cancel()
		return <-done
	}, calls
}

func waitCall(t *testing.T, calls <-chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not called")
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.sprig")
	writeScript(t, path, "box")

	w, err := New(Config{Path: path, Debounce: 20 * time.Millisecond, Logger: quiet})
	require.NoError(t, err)

	var seen atomic.Value
	stop, calls := startWatch(t, w, func(_ context.Context, p string) error {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		seen.Store(string(data))
		return nil
	})

	waitCall(t, calls)
	assert.Equal(t, "box", seen.Load())

	writeScript(t, path, "sphere")
	waitCall(t, calls)
	assert.Equal(t, "sphere", seen.Load())

	require.NoError(t, stop())
}

func TestWatch_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.sprig")
	writeScript(t, path, "box")

	w, err := New(Config{Path: path, Debounce: 200 * time.Millisecond, Logger: quiet})
	require.NoError(t, err)

	var count atomic.Int32
	stop, calls := startWatch(t, w, func(context.Context, string) error {
		count.Add(1)
		return nil
	})
	waitCall(t, calls)

	for i := 0; i < 5; i++ {
		writeScript(t, path, "box box")
	}
	waitCall(t, calls)

	require.NoError(t, stop())
	assert.Equal(t, int32(2), count.Load())
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.sprig")
	writeScript(t, path, "box")

	w, err := New(Config{Path: path, Debounce: 20 * time.Millisecond, Logger: quiet})
	require.NoError(t, err)

	stop, calls := startWatch(t, w, func(context.Context, string) error { return nil })
	waitCall(t, calls)

	writeScript(t, filepath.Join(dir, "other.sprig"), "sphere")

	select {
	case <-calls:
		t.Fatal("reload called for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
	require.NoError(t, stop())
}

func TestWatch_ReloadErrorKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.sprig")
	writeScript(t, path, "box")

	w, err := New(Config{Path: path, Debounce: 20 * time.Millisecond, Logger: quiet})
	require.NoError(t, err)

	stop, calls := startWatch(t, w, func(context.Context, string) error {
		return errors.New("syntax error")
	})
	waitCall(t, calls)

	writeScript(t, path, "still broken")
	waitCall(t, calls)

	require.NoError(t, stop())
}

func TestWatch_SingleUse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.sprig")
	writeScript(t, path, "box")

	w, err := New(Config{Path: path, Logger: quiet})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Watch(ctx, func(context.Context, string) error { return nil }))

	err = w.Watch(context.Background(), func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, ErrAlreadyWatching)
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Path: filepath.Join(dir, "missing.sprig")})
	assert.Error(t, err)

	_, err = New(Config{Path: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}
