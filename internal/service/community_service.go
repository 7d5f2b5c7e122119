package service

import (
	"context"

	"questline/internal/models"
	"questline/internal/observability"
	"questline/internal/repository"
	"questline/internal/state"
)

type CommunityService struct {
	communityRepo repository.CommunityRepository
	store         *state.Store
	mutator       *Mutator
	logger        *observability.ClientLogger
}

func NewCommunityService(communityRepo repository.CommunityRepository, store *state.Store, mutator *Mutator) *CommunityService {
	return &CommunityService{
		communityRepo: communityRepo,
		store:         store,
		mutator:       mutator,
		logger:        observability.NewClientLogger("communities"),
	}
}

// Joined returns the viewer's joined communities. Anonymous viewers and
// failures yield an empty list.
func (s *CommunityService) Joined(ctx context.Context, viewer models.Viewer) []models.Community {
	userID, ok := viewer.UserID()
	if !ok {
		return []models.Community{}
	}
	joined, err := s.communityRepo.Joined(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "list joined communities failed", map[string]interface{}{"error": err.Error()})
		return []models.Community{}
	}
	s.store.Communities.Set(state.Joined, joined)
	return joined
}

// List returns every community. Failures yield an empty list.
func (s *CommunityService) List(ctx context.Context, viewer models.Viewer) []models.Community {
	userID, _ := viewer.UserID()
	all, err := s.communityRepo.List(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "list communities failed", map[string]interface{}{"error": err.Error()})
		return []models.Community{}
	}
	s.store.Communities.Set(state.Communities, all)
	return all
}

// ToggleMembership joins or leaves a community. The joined collection
// follows the membership flag through every stage of the mutation.
func (s *CommunityService) ToggleMembership(ctx context.Context, viewer models.Viewer, communityID string) (MutationResult, error) {
	userID, _ := viewer.UserID()
	mirror := s.store.Communities
	return runToggle(ctx, s.mutator, viewer, communityID, toggle[models.Community]{
		entity: "community",
		mirror: mirror,
		get:    func(c models.Community) (bool, int) { return c.ViewerHasJoined, c.MemberCount },
		set: func(c models.Community, joined bool, count int) models.Community {
			c.ViewerHasJoined, c.MemberCount = joined, count
			return c
		},
		on:  func(ctx context.Context) (models.Ack, error) { return s.communityRepo.Join(ctx, communityID, userID) },
		off: func(ctx context.Context) (models.Ack, error) { return s.communityRepo.Leave(ctx, communityID, userID) },
		changed: func(c models.Community, joined bool) {
			if joined {
				mirror.Append(c, state.Joined)
				return
			}
			mirror.Drop(state.Joined, c.ID)
		},
	})
}
