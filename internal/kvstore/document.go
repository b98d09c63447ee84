// Package kvstore persists named JSON documents with atomic writes.
//
// A Document is a single file rewritten wholesale on every Save. Writers
// to the same document are serialized; a crash mid-save never leaves a
// partially written file in place because the content is written to a
// temporary file first and renamed over the target.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

type Document[T any] struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewDocument returns a document stored at dir/name. The directory is
// created on the first Save.
func NewDocument[T any](log *slog.Logger, dir, name string) *Document[T] {
	if log == nil {
		log = slog.Default()
	}
	return &Document[T]{
		path:   filepath.Join(dir, name),
		logger: log.With(slog.String("component", "kvstore"), slog.String("document", name)),
	}
}

// Path returns the document's location on disk.
func (d *Document[T]) Path() string { return d.path }

// Load reads the document, returning def when the file is missing or does
// not decode. Corruption is tolerated by falling back, never by failing.
func (d *Document[T]) Load(def T) T {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("read failed, using default", slog.Any("error", err))
		}
		return def
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		d.logger.Warn("decode failed, using default", slog.Any("error", err))
		return def
	}
	return v
}

// Save rewrites the document. The content lands via temp file + rename so
// readers only ever observe a fully written document.
func (d *Document[T]) Save(v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.path, err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(d.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", d.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, d.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit %s: %w", d.path, err)
	}
	return nil
}
