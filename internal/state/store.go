package state

import "questline/internal/models"

// Store bundles the mirrors one signed-in session works against.
type Store struct {
	Posts       *Mirror[models.Post]
	Comments    *Mirror[models.Comment]
	Communities *Mirror[models.Community]
	Unlocked    *UnlockedSet
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		Posts:       NewMirror[models.Post](),
		Comments:    NewMirror[models.Comment](),
		Communities: NewMirror[models.Community](),
		Unlocked:    NewUnlockedSet(),
	}
}
