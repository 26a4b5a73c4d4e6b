package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "routes.yaml", "routes:\n  - path: /one\n")

	loaded := make(chan *File, 4)
	w, err := NewWatcher([]string{path}, func(f *File) error {
		loaded <- f
		return nil
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - path: /one\n  - path: /two\n"), 0644))

	select {
	case f := <-loaded:
		assert.Len(t, f.Routes, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}
}

func TestWatcher_RejectedReloadIsObserved(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "routes.yaml", "routes:\n  - path: /one\n")

	type outcome struct {
		routes int
		err    error
	}
	observed := make(chan outcome, 4)
	calls := 0
	w, err := NewWatcher([]string{path}, func(*File) error {
		calls++
		return nil
	}, WithReloadObserver(func(routes int, err error) {
		observed <- outcome{routes, err}
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.fs.Close() })

	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - path: broken\n"), 0644))
	require.Error(t, w.Reload())
	got := <-observed
	assert.Error(t, got.err)
	assert.Zero(t, calls, "a broken file never reaches the reload func")

	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - path: /fixed\n"), 0644))
	require.NoError(t, w.Reload())
	got = <-observed
	assert.NoError(t, got.err)
	assert.Equal(t, 1, got.routes)
	assert.Equal(t, 1, calls)
}

func TestWatcher_ReloadFuncError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "routes.yaml", "routes: []\n")
	boom := errors.New("boom")

	w, err := NewWatcher([]string{path}, func(*File) error { return boom })
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.fs.Close() })

	assert.ErrorIs(t, w.Reload(), boom)
}

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(nil, func(*File) error { return nil })
	assert.ErrorIs(t, err, ErrNoConfig)

	_, err = NewWatcher([]string{"x.yaml"}, nil)
	assert.Error(t, err)
}

func TestRootDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, rootDir(dir))
	assert.Equal(t, dir, rootDir(filepath.Join(dir, "routes.yaml")))
	assert.Equal(t, filepath.Join(dir, "routes"), rootDir(filepath.Join(dir, "routes", "**", "*.yaml")))
}
