package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const watchDebounce = 100 * time.Millisecond

// Loader reads, validates, and caches settings from one YAML file.
type Loader struct {
	path string

	mu   sync.Mutex
	last atomic.Pointer[Settings]
}

// NewLoader wires a loader for the given config path. The file does not
// have to exist yet; loading then yields defaults plus env overrides.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		return nil, errors.New("config: path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	return &Loader{path: abs}, nil
}

// Path returns the absolute config file path.
func (l *Loader) Path() string { return l.path }

// Last returns the most recent valid settings.
func (l *Loader) Last() (*Settings, bool) {
	s := l.last.Load()
	if s == nil {
		return nil, false
	}
	return s, true
}

// Load parses the file, overlays the environment, and validates.
func (l *Loader) Load() (*Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.loadOnce()
	if err != nil {
		return nil, err
	}
	l.last.Store(s)
	return s, nil
}

// Reload refreshes settings, keeping the last good state on error.
func (l *Loader) Reload() (*Settings, error) {
	prev, _ := l.Last()
	s, err := l.Load()
	if err != nil {
		if prev != nil {
			return prev, fmt.Errorf("config: reload failed, keeping last good settings: %w", err)
		}
		return nil, err
	}
	return s, nil
}

func (l *Loader) loadOnce() (*Settings, error) {
	s := &Settings{}
	raw, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, s); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", l.path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", l.path, err)
	}

	s.applyEnv()
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch reloads the file on change and delivers each valid result on the
// returned channel. The channel closes when ctx is cancelled. Reload
// failures keep the previous settings and deliver nothing.
func (l *Loader) Watch(ctx context.Context) (<-chan *Settings, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	// Watch the directory; editors and atomic writers replace the file,
	// which drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(l.path), err)
	}

	updates := make(chan *Settings, 1)
	go func() {
		defer close(updates)
		defer watcher.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		pending := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Name != l.path {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			case <-pending:
				s, err := l.Load()
				if err != nil {
					continue
				}
				select {
				case updates <- s:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return updates, nil
}
