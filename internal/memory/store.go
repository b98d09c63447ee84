// Package memory keeps a bounded per-channel window of conversation turns.
package memory

import (
	"log/slog"
	"sync"

	"github.com/kommissarhq/kommissar/internal/kvstore"
)

// Turn is one recorded utterance in a channel.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Store holds the conversation windows for all channels. Every mutation is
// written through to the backing document; the cap is a hard limit and is
// never exceeded in what is persisted.
type Store struct {
	logger *slog.Logger
	doc    *kvstore.Document[map[string][]Turn]
	max    int

	mu       sync.Mutex
	channels map[string][]Turn
}

// NewStore loads existing history from doc. max is the per-channel cap.
func NewStore(log *slog.Logger, doc *kvstore.Document[map[string][]Turn], max int) *Store {
	if log == nil {
		log = slog.Default()
	}
	if max <= 0 {
		max = 1
	}
	s := &Store{
		logger:   log.With(slog.String("component", "memory")),
		doc:      doc,
		max:      max,
		channels: doc.Load(map[string][]Turn{}),
	}
	if s.channels == nil {
		s.channels = make(map[string][]Turn)
	}
	// A restart with a lowered cap must not carry oversized windows.
	for id, turns := range s.channels {
		if len(turns) > s.max {
			s.channels[id] = turns[len(turns)-s.max:]
		}
	}
	return s
}

// Append records one turn for a channel, evicting the oldest turns beyond
// the cap, and persists the store. Append never fails; a write error is
// logged and the in-memory state stands.
func (s *Store) Append(channelID, speaker, text string) {
	s.mu.Lock()
	turns := append(s.channels[channelID], Turn{Speaker: speaker, Text: text})
	if len(turns) > s.max {
		turns = turns[len(turns)-s.max:]
	}
	s.channels[channelID] = turns
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.doc.Save(snapshot); err != nil {
		s.logger.Error("persist failed", slog.String("channel_id", channelID), slog.Any("error", err))
	}
}

// Recent returns a copy of the channel's window in arrival order, oldest
// first. Channels without history yield an empty slice.
func (s *Store) Recent(channelID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.channels[channelID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

func (s *Store) snapshotLocked() map[string][]Turn {
	snap := make(map[string][]Turn, len(s.channels))
	for id, turns := range s.channels {
		cp := make([]Turn, len(turns))
		copy(cp, turns)
		snap[id] = cp
	}
	return snap
}
