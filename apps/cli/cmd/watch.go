package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/config"
	"github.com/fsnotify/fsnotify"
)

const watchBanner = "Watching for changes... (press Ctrl+C to stop)"

// watch re-runs the suites whenever a file under the watched paths changes,
// until ctx is cancelled.
func (s *session) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	paths, debounce := watchSettings(s.cfg)
	for _, path := range paths {
		if err := addWatchTree(watcher, path); err != nil {
			s.logger.Warn("cannot watch path", "path", path, "error", err)
		}
	}
	ignored := ignoredFiles(s.cfg)

	out := s.cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s\n\n", watchBanner)

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantChange(ev, ignored) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addWatchTree(watcher, ev.Name)
				}
			}

			// Debounce: reset timer on each event
			name := ev.Name
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(out, "\n\nFile changed: %s\nRe-running tests...\n\n", name)
			if _, err := s.run(ctx); err != nil {
				fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			fmt.Fprintf(out, "\n%s\n", watchBanner)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

func watchSettings(cfg *config.Config) ([]string, time.Duration) {
	paths := []string{"."}
	debounce := config.DefaultWatchDebounce
	if cfg.Watch != nil {
		if len(cfg.Watch.Paths) > 0 {
			paths = cfg.Watch.Paths
		}
		if cfg.Watch.Debounce > 0 {
			debounce = cfg.Watch.Debounce
		}
	}
	return paths, time.Duration(debounce) * time.Millisecond
}

// addWatchTree watches root and every directory below it, skipping hidden
// directories other than root itself.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(root)
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// ignoredFiles are the files a run writes itself.
func ignoredFiles(cfg *config.Config) map[string]bool {
	ignored := make(map[string]bool)
	add := func(path string) {
		if path == "" {
			return
		}
		if abs, err := filepath.Abs(path); err == nil {
			ignored[abs] = true
		}
	}
	add(cfg.OutputFile)
	if cfg.Metrics != nil {
		add(cfg.Metrics.File)
	}
	return ignored
}

func relevantChange(ev fsnotify.Event, ignored map[string]bool) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	// editor swap and backup files
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return true
	}
	// temp files renamed into place share the target's name as prefix
	for path := range ignored {
		if strings.HasPrefix(abs, path) {
			return false
		}
	}
	return true
}
