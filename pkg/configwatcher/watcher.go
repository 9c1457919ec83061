package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"knowledge_graph_backend/internal/config"
	"knowledge_graph_backend/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = time.Second

// Reloader 接收重新加载成功的配置
type Reloader func(cfg *config.Config)

// Watcher 监听 config.yaml，连续写入合并为一次重新加载
type Watcher struct {
	file     string
	debounce time.Duration
	reload   Reloader
}

// New configDir 为 LoadConfig 使用的目录
func New(configDir string, debounce time.Duration, reload Reloader) (*Watcher, error) {
	dir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		file:     filepath.Join(dir, "config.yaml"),
		debounce: debounce,
		reload:   reload,
	}, nil
}

// Run 阻塞直到 ctx 结束
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// 监听目录，编辑器以替换文件方式保存时仍能收到事件
	if err := watcher.Add(filepath.Dir(w.file)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	logger.Log.Info("Watching configuration file", zap.String("file", w.file))

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.debounce)
			}
		case <-fire:
			w.load()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) load() {
	cfg, err := config.LoadConfig(filepath.Dir(w.file))
	if err != nil {
		logger.Log.Error("Failed to reload config", zap.String("file", w.file), zap.Error(err))
		return
	}
	logger.Log.Info("Configuration reloaded", zap.String("file", w.file))
	w.reload(cfg)
}
