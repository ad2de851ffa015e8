package internal

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	pkgconfig "github.com/starford/leveler/pkg/config"
)

const reloadDebounce = 200 * time.Millisecond

// WatchLogLevel watches the config file and applies log_level changes to
// level until ctx is cancelled. Other settings need a restart.
//
// The parent directory is watched since editors often replace the file by
// rename.
func WatchLogLevel(ctx context.Context, path string, level *slog.LevelVar, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("config watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("config watcher: stopped")
			return nil

		case <-timerCh:
			timerCh = nil
			reloadLogLevel(abs, level, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerCh = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func reloadLogLevel(path string, level *slog.LevelVar, logger *slog.Logger) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		logger.Warn("config watcher: reload rejected", slog.String("error", err.Error()))
		return
	}
	if cfg.App.LogLevel == level.Level() {
		return
	}
	logger.Info("config watcher: log level changed",
		slog.String("from", level.Level().String()),
		slog.String("to", cfg.App.LogLevel.String()))
	level.Set(cfg.App.LogLevel)
}
