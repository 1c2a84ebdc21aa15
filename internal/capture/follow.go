package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Follow reads path like Read and then keeps reading lines appended to it
// until ctx is done. A truncated or recreated file is read again from the
// start. Malformed lines are logged and skipped. A partial trailing line is
// held until its newline arrives.
func Follow(ctx context.Context, path string, p *Parser, logger zerolog.Logger, fn func(Record) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("capture: watcher: %w", err)
	}
	defer w.Close()
	// Watch the directory so rotation by rename or recreate is seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("capture: watch %s: %w", path, err)
	}

	t := &tail{path: path, p: p, logger: logger, fn: fn}
	defer t.close()
	if err := t.readMore(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				t.close()
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if ev.Op&fsnotify.Create != 0 {
					t.close()
				}
				if err := t.readMore(); err != nil {
					return err
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Str("path", path).Msg("capture watcher error")
		}
	}
}

type tail struct {
	path    string
	p       *Parser
	logger  zerolog.Logger
	fn      func(Record) error
	f       *os.File
	offset  int64
	line    int
	partial []byte
}

func (t *tail) close() {
	if t.f != nil {
		t.f.Close()
		t.f = nil
	}
	t.offset, t.line, t.partial = 0, 0, nil
}

func (t *tail) readMore() error {
	if t.f == nil {
		f, err := os.Open(t.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		t.f = f
	}
	if st, err := t.f.Stat(); err == nil && st.Size() < t.offset {
		t.logger.Info().Str("path", t.path).Msg("capture truncated, reading from start")
		if _, err := t.f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		t.offset, t.line, t.partial = 0, 0, nil
	}

	r := bufio.NewReader(t.f)
	for {
		chunk, err := r.ReadBytes('\n')
		t.offset += int64(len(chunk))
		t.partial = append(t.partial, chunk...)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line := string(t.partial)
		t.partial = t.partial[:0]
		t.line++
		rec, perr := t.p.ParseLine(line)
		if errors.Is(perr, ErrBlank) {
			continue
		}
		if perr != nil {
			t.logger.Warn().Err(perr).Int("line", t.line).Msg("skipping capture line")
			continue
		}
		if err := t.fn(rec); err != nil {
			return err
		}
	}
}
