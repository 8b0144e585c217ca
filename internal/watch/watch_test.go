package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_IngestsFileOnWrite(t *testing.T) {
	dir := t.TempDir()

	ingested := make(chan string, 10)
	w, err := New(func(ctx context.Context, path string) error {
		ingested <- path
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, []string{dir}) }()

	// Give the watcher time to register the root before writing.
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	select {
	case path := <-ingested:
		require.Equal(t, target, path)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for ingest callback")
	}

	cancel()
	<-done
}

func TestWatcher_AddsNewSubdirectories(t *testing.T) {
	dir := t.TempDir()

	ingested := make(chan string, 10)
	w, err := New(func(ctx context.Context, path string) error {
		ingested <- path
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, []string{dir}) }()

	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))

	time.Sleep(200 * time.Millisecond)

	target := filepath.Join(sub, "note.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	select {
	case path := <-ingested:
		require.Equal(t, target, path)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for ingest callback in new subdirectory")
	}

	cancel()
	<-done
}
