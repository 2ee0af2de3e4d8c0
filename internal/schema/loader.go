package schema

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML policy file and watches it for changes. A failed
// reload keeps the previous policy in effect.
type Loader struct {
	path    string
	mu      sync.RWMutex
	current *Policy
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	p, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = p
	return l, nil
}

// Policy returns the current (latest) policy.
func (l *Loader) Policy() *Policy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch starts a background goroutine that hot-reloads the policy on file
// changes. Call the returned stop function to clean up.
func (l *Loader) Watch(log *zap.Logger) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("policy watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("policy watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					p, err := l.load()
					if err != nil {
						log.Warn("policy reload failed, keeping previous policy",
							zap.String("path", l.path), zap.Error(err))
						continue
					}
					l.mu.Lock()
					l.current = p
					l.mu.Unlock()
					log.Info("policy reloaded",
						zap.String("path", l.path), zap.Int("families", len(p.Families)))
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the policy file.
func (l *Loader) Reload() (*Policy, error) {
	p, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = p
	l.mu.Unlock()
	return p, nil
}

func (l *Loader) load() (*Policy, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", l.path, err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", l.path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("policy %s: %w", l.path, err)
	}
	p.index()
	return &p, nil
}
