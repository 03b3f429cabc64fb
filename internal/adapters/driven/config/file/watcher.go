package file

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/stackqa/internal/logger"
)

// DefaultDebounce groups bursts of editor writes into one reload.
const DefaultDebounce = 250 * time.Millisecond

// PromptWatcher reloads a PromptStore when files in its directory change.
type PromptWatcher struct {
	store    *PromptStore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload func()

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewPromptWatcher watches the store's directory. The directory must exist;
// call store.Load once beforehand to create it.
func NewPromptWatcher(store *PromptStore, debounce time.Duration) (*PromptWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating prompt watcher: %w", err)
	}
	// Watch the directory, not the files: editors often replace files on save.
	if err := w.Add(store.Dir()); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", store.Dir(), err)
	}

	return &PromptWatcher{
		store:    store,
		watcher:  w,
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// OnReload registers fn to run after each reload. Must be called before Start.
func (pw *PromptWatcher) OnReload(fn func()) {
	pw.onReload = fn
}

// Start runs the watch loop until ctx is cancelled or Stop is called.
func (pw *PromptWatcher) Start(ctx context.Context) {
	ctx, pw.cancel = context.WithCancel(ctx)
	go pw.loop(ctx)
	logger.Debug("watching prompts in %s", pw.store.Dir())
}

// Stop ends the watch loop and releases the watcher.
func (pw *PromptWatcher) Stop() error {
	var err error
	pw.once.Do(func() {
		if pw.cancel != nil {
			pw.cancel()
			<-pw.done
		}
		err = pw.watcher.Close()
	})
	return err
}

func (pw *PromptWatcher) loop(ctx context.Context) {
	defer close(pw.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if !isPromptEvent(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(pw.debounce, pw.reload)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("prompt watcher: %v", err)
		}
	}
}

func (pw *PromptWatcher) reload() {
	pw.store.Reload()
	logger.Info("prompts reloaded from %s", pw.store.Dir())
	if pw.onReload != nil {
		pw.onReload()
	}
}

func isPromptEvent(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".txt") || strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
