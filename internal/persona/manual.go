package persona

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ManualLog is the operator-curated reference document. It is a single
// free-text blob, overwritten wholesale on update and included verbatim in
// every instruction while non-empty.
type ManualLog struct {
	logger *slog.Logger
	path   string

	mu   sync.RWMutex
	text string
}

// NewManualLog loads the document from path. A missing file means an
// empty manual, not an error.
func NewManualLog(log *slog.Logger, path string) *ManualLog {
	if log == nil {
		log = slog.Default()
	}
	m := &ManualLog{
		logger: log.With(slog.String("component", "manual")),
		path:   path,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("read failed, starting empty", slog.Any("error", err))
		}
		return m
	}
	m.text = strings.TrimSpace(string(data))
	return m
}

// Text returns the current document, "" when unset.
func (m *ManualLog) Text() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text
}

// Set replaces the document and rewrites the backing file.
func (m *ManualLog) Set(text string) error {
	text = strings.TrimSpace(text)
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
	if err := os.WriteFile(m.path, []byte(text+"\n"), 0o644); err != nil {
		return err
	}
	m.logger.Info("manual updated", slog.Int("bytes", len(text)))
	return nil
}
