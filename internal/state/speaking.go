package state

import (
	"sync"

	"github.com/linguaroom/linguaroom/internal/domain"
)

// SpeakingSet tracks which participants currently read as speaking.
// The local user's flag comes from the capture level meter; remote
// flags arrive over the session channel and are trusted as-is.
type SpeakingSet struct {
	mu sync.RWMutex
	on map[domain.UserID]struct{}
}

func NewSpeakingSet() *SpeakingSet {
	return &SpeakingSet{on: make(map[domain.UserID]struct{})}
}

func (s *SpeakingSet) Set(userID domain.UserID, speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if speaking {
		s.on[userID] = struct{}{}
	} else {
		delete(s.on, userID)
	}
}

func (s *SpeakingSet) IsSpeaking(userID domain.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.on[userID]
	return ok
}

// Clear drops all flags, used when the roster is replaced on resync.
func (s *SpeakingSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = make(map[domain.UserID]struct{})
}
