package models

import (
	"fmt"
	"time"
)

// AchievementKey identifies an achievement for one user.
type AchievementKey struct {
	Category  string
	Milestone int
}

func (k AchievementKey) String() string {
	return fmt.Sprintf("%s:%d", k.Category, k.Milestone)
}

// Achievement is a (category, milestone) pair. Unlocked is monotonic: once
// true it is never reported false again.
type Achievement struct {
	Category               string     `json:"category"`
	Milestone              int        `json:"milestone"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Unlocked               bool       `json:"unlocked"`
	CompletedGoalsAtUnlock int        `json:"completedGoalsAtUnlock"`
	UnlockedAt             *time.Time `json:"unlockedAt"`
}

// Key returns the achievement's identity.
func (a Achievement) Key() AchievementKey {
	return AchievementKey{Category: a.Category, Milestone: a.Milestone}
}

// UnlockRequest asks the backend to unlock one milestone.
type UnlockRequest struct {
	Category       string `json:"category"`
	Milestone      int    `json:"milestone"`
	CompletedGoals int    `json:"completedGoals"`
}

// UnlockResult is the backend's answer to an unlock. A repeated unlock
// reports Success with AlreadyUnlocked set.
type UnlockResult struct {
	Success         bool
	AlreadyUnlocked bool
	Achievement     *Achievement
}

// Reward is what a milestone grants once.
type Reward struct {
	Coins      int `json:"coins" yaml:"coins"`
	Experience int `json:"experience" yaml:"xp"`
}

// RewardGrant records a reward tied to the achievement that earned it.
type RewardGrant struct {
	Category  string `json:"category"`
	Milestone int    `json:"milestone"`
	Reward
}
