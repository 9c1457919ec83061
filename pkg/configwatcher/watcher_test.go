package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"knowledge_graph_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func masteryConfig(weight float64) string {
	return fmt.Sprintf(`
server:
  mode: debug
database:
  driver: sqlite
  path: ":memory:"
mastery:
  evidence_weights:
    assessment: %v
`, weight)
}

type runningWatcher struct {
	file     string
	reloaded chan *config.Config
	cancel   context.CancelFunc
	done     chan error
}

func startWatcher(t *testing.T, debounce time.Duration) *runningWatcher {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(masteryConfig(0.4)), 0644))

	rw := &runningWatcher{
		file:     file,
		reloaded: make(chan *config.Config, 16),
		done:     make(chan error, 1),
	}
	w, err := New(dir, debounce, func(cfg *config.Config) { rw.reloaded <- cfg })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rw.cancel = cancel
	go func() { rw.done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-rw.done
	})
	return rw
}

func (rw *runningWatcher) write(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(rw.file, []byte(content), 0644))
}

// awaitReload 持续写入直到收到回调，避开监听尚未建立的窗口；写入间隔需大于防抖时长
func (rw *runningWatcher) awaitReload(t *testing.T, content string) *config.Config {
	t.Helper()
	var got *config.Config
	require.Eventually(t, func() bool {
		select {
		case got = <-rw.reloaded:
			return true
		default:
			_ = os.WriteFile(rw.file, []byte(content), 0644)
			return false
		}
	}, 5*time.Second, 150*time.Millisecond)
	return got
}

func TestWatcherReloadsAfterWrite(t *testing.T) {
	rw := startWatcher(t, 50*time.Millisecond)

	cfg := rw.awaitReload(t, masteryConfig(0.5))
	require.NotNil(t, cfg)
	assert.Equal(t, 0.5, cfg.Mastery.EvidenceWeights["assessment"])
}

func TestWatcherDebouncesBurstOfWrites(t *testing.T) {
	rw := startWatcher(t, 100*time.Millisecond)
	rw.awaitReload(t, masteryConfig(0.5))

	for _, weight := range []float64{0.51, 0.52, 0.53, 0.54, 0.55} {
		rw.write(t, masteryConfig(weight))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case cfg := <-rw.reloaded:
		assert.Equal(t, 0.55, cfg.Mastery.EvidenceWeights["assessment"])
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after burst of writes")
	}
	assert.Never(t, func() bool { return len(rw.reloaded) > 0 }, 500*time.Millisecond, 50*time.Millisecond)
}

func TestWatcherSkipsInvalidConfig(t *testing.T) {
	rw := startWatcher(t, 50*time.Millisecond)
	rw.awaitReload(t, masteryConfig(0.5))

	rw.write(t, "mastery:\n  evidence_weights:\n    bogus: 0.3\n")
	assert.Never(t, func() bool { return len(rw.reloaded) > 0 }, 400*time.Millisecond, 50*time.Millisecond)

	cfg := rw.awaitReload(t, masteryConfig(0.7))
	assert.Equal(t, 0.7, cfg.Mastery.EvidenceWeights["assessment"])
}

func TestWatcherStopsOnCancel(t *testing.T) {
	rw := startWatcher(t, 50*time.Millisecond)
	rw.cancel()

	select {
	case err := <-rw.done:
		assert.NoError(t, err)
		rw.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestNewDefaultsDebounce(t *testing.T) {
	w, err := New(t.TempDir(), 0, func(*config.Config) {})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.Equal(t, "config.yaml", filepath.Base(w.file))
}
