package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/config"
)

// Trigger decides when the next pass runs and what it covers. Next blocks
// until the pass is due or ctx is done; report is the result of the pass
// that just finished.
type Trigger interface {
	Next(ctx context.Context, report *PassReport) (Pass, error)
	Close() error
}

// PollTrigger runs a full pass every interval.
type PollTrigger struct {
	interval time.Duration
}

func NewPollTrigger(interval time.Duration) *PollTrigger {
	return &PollTrigger{interval: interval}
}

func (t *PollTrigger) Next(ctx context.Context, _ *PassReport) (Pass, error) {
	if err := sleep(ctx, t.interval); err != nil {
		return Pass{}, err
	}
	return FullPass, nil
}

func (t *PollTrigger) Close() error { return nil }

// NotifyTrigger collects file system events between passes and hands the
// touched paths to the scheduler as a partial pass. It falls back to a full
// pass every fullEvery passes, after new directories appear and whenever
// the event stream may have lost events.
type NotifyTrigger struct {
	watcher   *fsnotify.Watcher
	interval  time.Duration
	fullEvery int
	logger    cdmkn.Logger

	mu       sync.Mutex
	dirty    map[string]struct{}
	needFull bool
	// degraded is set once a directory could not be watched; every pass is
	// then full.
	degraded bool
	watched  map[string]struct{}
	passes   int

	done chan struct{}
	wg   sync.WaitGroup
}

func NewNotifyTrigger(interval time.Duration, fullEvery int, logger cdmkn.Logger) (*NotifyTrigger, error) {
	if logger == nil {
		logger = cdmkn.NewNopLogger()
	}
	if fullEvery < 1 {
		fullEvery = 1
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	t := &NotifyTrigger{
		watcher:   watcher,
		interval:  interval,
		fullEvery: fullEvery,
		logger:    logger,
		dirty:     make(map[string]struct{}),
		watched:   make(map[string]struct{}),
		done:      make(chan struct{}),
	}

	t.wg.Add(1)
	go t.processEvents()
	return t, nil
}

func (t *NotifyTrigger) processEvents() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return

		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.record(event)

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("file watcher error, scheduling full pass", "error", err)
			t.mu.Lock()
			t.needFull = true
			t.mu.Unlock()
		}
	}
}

func (t *NotifyTrigger) record(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dirty[event.Name] = struct{}{}
	if event.Has(fsnotify.Create) && isDir(event.Name) {
		// Files created inside a new directory before it is watched are
		// only found by a walk.
		t.needFull = true
		t.addWatchLocked(event.Name)
	}
}

// Next waits one interval and returns the pass to run.
func (t *NotifyTrigger) Next(ctx context.Context, report *PassReport) (Pass, error) {
	if report != nil && report.Full {
		t.watchRoots(report.Roots)
	}

	if err := sleep(ctx, t.interval); err != nil {
		return Pass{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.passes++
	full := t.needFull || t.degraded || t.passes%t.fullEvery == 0
	dirty := make([]string, 0, len(t.dirty))
	for p := range t.dirty {
		dirty = append(dirty, p)
	}
	t.dirty = make(map[string]struct{})
	t.needFull = false

	if full {
		return FullPass, nil
	}
	sort.Strings(dirty)
	return Pass{Dirty: dirty}, nil
}

// watchRoots adds watches for every non-hidden directory below roots.
func (t *NotifyTrigger) watchRoots(roots []string) {
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			t.mu.Lock()
			t.addWatchLocked(path)
			t.mu.Unlock()
			return nil
		})
	}
}

func (t *NotifyTrigger) addWatchLocked(dir string) {
	if _, ok := t.watched[dir]; ok {
		return
	}
	if err := t.watcher.Add(dir); err != nil {
		if !t.degraded {
			t.logger.Warn("cannot watch directory, falling back to full passes", "path", dir, "error", err)
		}
		t.degraded = true
		return
	}
	t.watched[dir] = struct{}{}
}

func (t *NotifyTrigger) Close() error {
	select {
	case <-t.done:
		return nil
	default:
		close(t.done)
	}
	err := t.watcher.Close()
	t.wg.Wait()
	return err
}

// NewTriggerFromConfig builds the change source selected by cfg.
func NewTriggerFromConfig(cfg config.WatcherConfig, logger cdmkn.Logger) (Trigger, error) {
	interval := cfg.Interval.Duration
	if interval <= 0 {
		interval = config.DefaultInterval
	}
	switch cfg.Trigger {
	case "", "poll":
		return NewPollTrigger(interval), nil
	case "notify":
		return NewNotifyTrigger(interval, cfg.FullEvery, logger)
	default:
		return nil, fmt.Errorf("unknown watcher trigger type: %s", cfg.Trigger)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}
