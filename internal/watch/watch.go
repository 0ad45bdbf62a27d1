// SPDX-License-Identifier: MPL-2.0

// Package watch monitors the workspace tools directory and fires a debounced
// rebuild callback when module sources change.
//
// Events within the debounce window are coalesced so an editor's
// write-then-rename dance triggers a single rebuild, not several.
package watch

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period after the last filesystem event before
// the rebuild callback fires.
const defaultDebounce = 500 * time.Millisecond

// defaultPatterns selects tool module sources.
var defaultPatterns = []string{"*.c"}

// defaultIgnores excludes editor temp files and the atomic-write droppings
// the registry itself produces.
var defaultIgnores = []string{
	"*.swp",
	"*.swo",
	"*~",
	".*.tmp-*",
	".DS_Store",
}

// Config holds the parameters for a Watcher.
type Config struct {
	// Dir is the tools directory to monitor.
	Dir string

	// Patterns are doublestar globs selecting files that trigger a rebuild.
	// Empty means the default "*.c".
	Patterns []string

	// Debounce is the quiet period before the callback fires. Zero or
	// negative falls back to defaultDebounce.
	Debounce time.Duration

	// OnChange is invoked after the debounce window closes with the
	// deduplicated list of changed file names. A nil callback is a no-op.
	OnChange func(ctx context.Context, changed []string) error

	// Stderr receives informational and error messages; nil means os.Stderr.
	Stderr io.Writer
}

// Watcher monitors the tools directory. Run must be called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	debounce time.Duration
	patterns []string
	stderr   io.Writer
	started  atomic.Bool
}

// New creates a Watcher for the configured tools directory.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch: no directory configured")
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	for _, pat := range patterns {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("watch: invalid pattern %q: %w", pat, err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch: add directory %q: %w", cfg.Dir, err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		debounce: debounce,
		patterns: patterns,
		stderr:   stderr,
	}, nil
}

// Run blocks until ctx is cancelled, processing filesystem events and
// dispatching debounced callbacks. It returns nil on clean cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire drains the pending set and invokes OnChange. The skip-if-busy
	// guard prevents overlapping rebuilds when a build outlasts the debounce
	// window; the retry reset keeps accumulated events from being lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				fmt.Fprintf(w.stderr, "watch: rebuild error: %v\n", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		localTimer := timer
		mu.Unlock()
		if localTimer != nil && !localTimer.Stop() {
			select {
			case <-localTimer.C:
			default:
			}
		}
		if err := w.fsw.Close(); err != nil {
			fmt.Fprintf(w.stderr, "watch: close fsnotify: %v\n", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}

			name := filepath.Base(evt.Name)
			if w.isIgnored(name) || !w.matches(name) {
				continue
			}

			mu.Lock()
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			fmt.Fprintf(w.stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

func (w *Watcher) isIgnored(name string) bool {
	for _, pat := range defaultIgnores {
		if matched, err := doublestar.Match(pat, name); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) matches(name string) bool {
	for _, pat := range w.patterns {
		if matched, err := doublestar.Match(pat, name); err == nil && matched {
			return true
		}
	}
	return false
}
