// Package alias maps user IDs to operator-assigned callsigns.
package alias

import (
	"log/slog"
	"sync"

	"github.com/kommissarhq/kommissar/internal/kvstore"
)

// Store is the persisted user-to-callsign mapping. Callsigns label memory
// turns and prompts; they never expire.
type Store struct {
	logger *slog.Logger
	doc    *kvstore.Document[map[string]string]

	mu        sync.Mutex
	callsigns map[string]string
}

func NewStore(log *slog.Logger, doc *kvstore.Document[map[string]string]) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		logger:    log.With(slog.String("component", "alias")),
		doc:       doc,
		callsigns: doc.Load(map[string]string{}),
	}
	if s.callsigns == nil {
		s.callsigns = make(map[string]string)
	}
	return s
}

// Set assigns or replaces a user's callsign and persists the store.
func (s *Store) Set(userID, callsign string) error {
	s.mu.Lock()
	s.callsigns[userID] = callsign
	snapshot := make(map[string]string, len(s.callsigns))
	for k, v := range s.callsigns {
		snapshot[k] = v
	}
	s.mu.Unlock()
	return s.doc.Save(snapshot)
}

// Get returns the user's callsign, or "" when none is assigned.
func (s *Store) Get(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callsigns[userID]
}

// Resolve returns the callsign when one exists, otherwise fallback.
func (s *Store) Resolve(userID, fallback string) string {
	if cs := s.Get(userID); cs != "" {
		return cs
	}
	return fallback
}
