package repository

import (
	"context"
	"net/http"
	"net/url"

	"questline/internal/models"
	"questline/internal/normalize"
	"questline/internal/transport"
)

// AchievementRepository defines the interface for achievement operations against the backend.
type AchievementRepository interface {
	// Progress returns the user's completed-goal count in category.
	Progress(ctx context.Context, userID, category string) (int, error)
	List(ctx context.Context, userID string) ([]models.Achievement, error)
	// Get returns one achievement. A 404 means it has never been unlocked.
	Get(ctx context.Context, userID, category string, milestone int) (models.Achievement, error)
	Unlock(ctx context.Context, userID string, req models.UnlockRequest) (models.UnlockResult, error)
}

// RewardRepository records rewards earned by unlocks.
type RewardRepository interface {
	Grant(ctx context.Context, userID string, grant models.RewardGrant) error
}

type achievementRepository struct {
	client Doer
}

// NewAchievementRepository creates an achievement repository over client.
func NewAchievementRepository(client Doer) AchievementRepository {
	return &achievementRepository{client: client}
}

func (r *achievementRepository) Progress(ctx context.Context, userID, category string) (int, error) {
	path := userAchievementsPath(userID) + "/progress/" + url.PathEscape(category)
	resp, err := r.client.Do(ctx, transport.Request{Path: path, Kind: transport.KindRead})
	if err != nil {
		return 0, err
	}
	raw, err := normalize.DecodeObject(resp.Body, "progress")
	if err != nil {
		return 0, malformed("GET "+path, err)
	}
	n, err := normalize.CompletedGoals(raw)
	if err != nil {
		return 0, malformed("GET "+path, err)
	}
	return n, nil
}

func (r *achievementRepository) List(ctx context.Context, userID string) ([]models.Achievement, error) {
	raws, err := getList(ctx, r.client, userAchievementsPath(userID)+"/achievements", nil)
	if err != nil {
		return nil, err
	}
	return normalize.Achievements(raws), nil
}

func (r *achievementRepository) Get(ctx context.Context, userID, category string, milestone int) (models.Achievement, error) {
	path := achievementPath(userID, category, milestone)
	resp, err := r.client.Do(ctx, transport.Request{Path: path, Kind: transport.KindRead})
	if err != nil {
		return models.Achievement{}, err
	}
	raw, err := normalize.DecodeObject(resp.Body, "achievement")
	if err != nil {
		return models.Achievement{}, malformed("GET "+path, err)
	}
	a, err := normalize.Achievement(raw)
	if err != nil {
		return models.Achievement{}, malformed("GET "+path, err)
	}
	return a, nil
}

func (r *achievementRepository) Unlock(ctx context.Context, userID string, req models.UnlockRequest) (models.UnlockResult, error) {
	env, err := send(ctx, r.client, http.MethodPost, userAchievementsPath(userID)+"/achievements/unlock", transport.KindWrite, req)
	if err != nil {
		return models.UnlockResult{}, err
	}
	return normalize.UnlockResult(env.Merged()), nil
}

type rewardRepository struct {
	client Doer
}

// NewRewardRepository creates a reward ledger backed by the rewards route.
func NewRewardRepository(client Doer) RewardRepository {
	return &rewardRepository{client: client}
}

func (r *rewardRepository) Grant(ctx context.Context, userID string, grant models.RewardGrant) error {
	_, err := r.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   userAchievementsPath(userID) + "/rewards",
		Body:   grant,
		Kind:   transport.KindWrite,
	})
	return err
}
