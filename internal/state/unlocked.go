package state

import (
	"sync"
	"time"

	"questline/internal/models"
)

// UnlockedSet remembers every achievement seen unlocked, per user. Entries
// are never removed, so a later stale read cannot report one locked again.
type UnlockedSet struct {
	mu    sync.RWMutex
	users map[string]map[models.AchievementKey]models.Achievement
}

// NewUnlockedSet returns an empty set.
func NewUnlockedSet() *UnlockedSet {
	return &UnlockedSet{users: make(map[string]map[models.AchievementKey]models.Achievement)}
}

// Mark records a as unlocked for userID.
func (s *UnlockedSet) Mark(userID string, a models.Achievement) {
	a.Unlocked = true
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.users[userID]
	if !ok {
		keys = make(map[models.AchievementKey]models.Achievement)
		s.users[userID] = keys
	}
	if prev, ok := keys[a.Key()]; ok && a.UnlockedAt == nil {
		a.UnlockedAt = prev.UnlockedAt
	}
	keys[a.Key()] = a
}

// Has reports whether key is known unlocked for userID.
func (s *UnlockedSet) Has(userID string, key models.AchievementKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID][key]
	return ok
}

// Merge overlays the set onto a fresh listing: entries reported unlocked are
// recorded, and entries known unlocked are forced to stay unlocked.
func (s *UnlockedSet) Merge(userID string, list []models.Achievement) []models.Achievement {
	out := make([]models.Achievement, len(list))
	for i, a := range list {
		if a.Unlocked {
			s.Mark(userID, a)
			out[i] = a
			continue
		}
		s.mu.RLock()
		known, ok := s.users[userID][a.Key()]
		s.mu.RUnlock()
		if ok {
			a.Unlocked = true
			a.UnlockedAt = known.UnlockedAt
			if a.CompletedGoalsAtUnlock == 0 {
				a.CompletedGoalsAtUnlock = known.CompletedGoalsAtUnlock
			}
		}
		out[i] = a
	}
	return out
}

// UnlockedAt returns when key was unlocked, if known.
func (s *UnlockedSet) UnlockedAt(userID string, key models.AchievementKey) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.users[userID][key]
	if !ok || a.UnlockedAt == nil {
		return time.Time{}, false
	}
	return *a.UnlockedAt, true
}
