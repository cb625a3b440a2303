package candle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/rickgao/kalshi-bot/internal/buffer"
)

// Follow tails the event log at path, sending each complete line to lines,
// until ctx is done. Existing content is read first. The file may not exist
// yet; it is picked up once created. lines is closed on return.
func Follow(ctx context.Context, path string, lines *buffer.Growable[string], logger *slog.Logger) error {
	defer lines.Close()
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so creation of the file is seen too.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	t := &tail{path: path, lines: lines}
	defer t.close()

	if err := t.read(); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				logger.Warn("followed file moved away, waiting for it to reappear", "path", path)
				t.close()
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if err := t.read(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)
		}
	}
}

// tail reads whatever has been appended since the last call and keeps any
// trailing partial line for the next one.
type tail struct {
	path    string
	lines   *buffer.Growable[string]
	f       *os.File
	pending []byte
}

func (t *tail) read() error {
	if t.f == nil {
		f, err := os.Open(t.path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("open followed file: %w", err)
		}
		t.f = f
		t.pending = t.pending[:0]
	}

	data, err := io.ReadAll(t.f)
	if err != nil {
		return fmt.Errorf("read followed file: %w", err)
	}
	t.pending = append(t.pending, data...)

	for {
		i := bytes.IndexByte(t.pending, '\n')
		if i < 0 {
			break
		}
		t.lines.Send(string(t.pending[:i]))
		t.pending = t.pending[i+1:]
	}
	return nil
}

func (t *tail) close() {
	if t.f != nil {
		t.f.Close()
		t.f = nil
	}
}
