package configwatcher

import (
	"context"
	"edu_progress_backend/internal/config"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("progress:\n  video_threshold: 0.8\n"), 0o644))

	var threshold atomic.Value
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, func(cfg *config.Config) {
			threshold.Store(cfg.Progress.VideoThreshold)
		})
	}()
	time.Sleep(200 * time.Millisecond)

	// 非法配置不会触发回调
	require.NoError(t, os.WriteFile(path, []byte("progress:\n  video_threshold: 2\n"), 0o644))
	time.Sleep(debounce + 500*time.Millisecond)
	assert.Nil(t, threshold.Load())

	require.NoError(t, os.WriteFile(path, []byte("progress:\n  video_threshold: 0.95\n"), 0o644))
	assert.Eventually(t, func() bool {
		v, ok := threshold.Load().(float64)
		return ok && v == 0.95
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchMissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), func(*config.Config) {})
	assert.Error(t, err)
}
