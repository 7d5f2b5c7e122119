package repository

import (
	"context"
	"net/http"

	"questline/internal/models"
	"questline/internal/normalize"
	"questline/internal/transport"
)

// CommunityRepository defines the interface for community operations against the backend.
type CommunityRepository interface {
	List(ctx context.Context, userID string) ([]models.Community, error)
	Joined(ctx context.Context, userID string) ([]models.Community, error)
	Join(ctx context.Context, communityID, userID string) (models.Ack, error)
	Leave(ctx context.Context, communityID, userID string) (models.Ack, error)
}

type communityRepository struct {
	client Doer
}

// NewCommunityRepository creates a community repository over client.
func NewCommunityRepository(client Doer) CommunityRepository {
	return &communityRepository{client: client}
}

func (r *communityRepository) List(ctx context.Context, userID string) ([]models.Community, error) {
	raws, err := getList(ctx, r.client, routeCommunities, viewerQuery(userID))
	if err != nil {
		return nil, err
	}
	return normalize.Communities(raws), nil
}

// Joined returns the viewer's joined communities. Every entry is marked
// joined regardless of how the backend encodes membership on this route.
func (r *communityRepository) Joined(ctx context.Context, userID string) ([]models.Community, error) {
	raws, err := getList(ctx, r.client, routeJoined, viewerQuery(userID))
	if err != nil {
		return nil, err
	}
	communities := normalize.Communities(raws)
	for i := range communities {
		communities[i].ViewerHasJoined = true
	}
	return communities, nil
}

func (r *communityRepository) Join(ctx context.Context, communityID, userID string) (models.Ack, error) {
	return r.membership(ctx, communityID, userID, "/join")
}

func (r *communityRepository) Leave(ctx context.Context, communityID, userID string) (models.Ack, error) {
	return r.membership(ctx, communityID, userID, "/leave")
}

func (r *communityRepository) membership(ctx context.Context, communityID, userID, action string) (models.Ack, error) {
	env, err := send(ctx, r.client, http.MethodPost, communityPath(communityID)+action, transport.KindWrite, map[string]string{"userId": userID})
	if err != nil {
		return models.Ack{}, err
	}
	return normalize.MembershipAck(env.Merged()), nil
}
