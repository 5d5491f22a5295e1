package credential

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// KeyFile is a master-key credential whose key lives in a file and is
// reloaded when the file changes, so operators can rotate account keys
// without restarting the process. A rotation that leaves the file unreadable
// or malformed keeps the previous key in effect.
type KeyFile struct {
	path    string
	log     *slog.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current *MasterKey

	done chan struct{}
}

// NewKeyFile loads the key at path and starts watching it for rotation. The
// logger may be nil.
func NewKeyFile(path string, logger *slog.Logger) (*KeyFile, error) {
	if logger == nil {
		logger = slog.Default()
	}
	k := &KeyFile{path: path, log: logger, done: make(chan struct{})}
	if err := k.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("credential: watch key file: %w", err)
	}
	// Watch the directory: editors and secret mounts typically replace the
	// file by rename, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("credential: watch key file: %w", err)
	}
	k.watcher = watcher
	go k.watch()
	return k, nil
}

// Authorize signs with the key most recently loaded.
func (k *KeyFile) Authorize(req *http.Request, verb, resourceType, resourceLink string) error {
	k.mu.RLock()
	current := k.current
	k.mu.RUnlock()
	return current.Authorize(req, verb, resourceType, resourceLink)
}

// Close stops watching the key file.
func (k *KeyFile) Close() error {
	close(k.done)
	return k.watcher.Close()
}

func (k *KeyFile) watch() {
	for {
		select {
		case <-k.done:
			return
		case event, ok := <-k.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(k.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := k.reload(); err != nil {
				k.log.Warn("key file rotation failed, keeping previous key",
					slog.String("path", k.path), slog.String("error", err.Error()))
				continue
			}
			k.log.Info("key file rotated", slog.String("path", k.path))
		case err, ok := <-k.watcher.Errors:
			if !ok {
				return
			}
			k.log.Warn("key file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (k *KeyFile) reload() error {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return fmt.Errorf("credential: read key file: %w", err)
	}
	key, err := NewMasterKey(string(bytes.TrimSpace(raw)))
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.current = key
	k.mu.Unlock()
	return nil
}
