package registry

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/logger"
)

// Source hands out the registry currently in effect.
type Source interface {
	Current() *Registry
}

// Static is a Source that never changes.
type Static struct {
	r *Registry
}

// NewStatic wraps a registry as a Source.
func NewStatic(r *Registry) *Static {
	return &Static{r: r}
}

// Current implements Source.
func (s *Static) Current() *Registry {
	return s.r
}

// Watcher reloads a registry file whenever it changes on disk. A reload
// that fails validation is logged and the previous registry stays active.
type Watcher struct {
	path     string
	current  atomic.Pointer[Registry]
	log      *logger.Logger
	onReload func(*Registry)
}

// NewWatcher loads path once. The file must be valid at startup.
func NewWatcher(path string, log *logger.Logger) (*Watcher, error) {
	r, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	w := &Watcher{path: path, log: log.WithComponent("registry")}
	w.current.Store(r)
	return w, nil
}

// Current implements Source.
func (w *Watcher) Current() *Registry {
	return w.current.Load()
}

// OnReload registers a callback run after each successful reload.
// It must be set before Start.
func (w *Watcher) OnReload(fn func(*Registry)) {
	w.onReload = fn
}

// Reload re-reads the file and swaps it in when it is valid.
func (w *Watcher) Reload() error {
	r, err := LoadFile(w.path)
	if err != nil {
		w.log.WithError(err).Warn("registry reload rejected, keeping previous table")
		return err
	}
	w.current.Store(r)
	w.log.WithField("endpoints", r.Len()).Info("registry reloaded")
	if w.onReload != nil {
		w.onReload(r)
	}
	return nil
}

// Start watches the file's directory until ctx is done. Editors often
// replace files by rename, so the directory is watched rather than the file.
func (w *Watcher) Start(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return err
	}

	go func() {
		defer func() { _ = fw.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					_ = w.Reload()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Warn("error watching registry file")
			}
		}
	}()
	return nil
}
