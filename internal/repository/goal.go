package repository

import (
	"context"
	"net/http"
	"strings"

	"questline/internal/models"
	"questline/internal/normalize"
	"questline/internal/transport"
)

// GoalRepository records finished goals.
type GoalRepository interface {
	// Complete records one finished goal and returns the category's new
	// completed-goal count.
	Complete(ctx context.Context, userID, category, title string) (int, error)
}

type goalRepository struct {
	client Doer
}

// NewGoalRepository creates a goal repository over client.
func NewGoalRepository(client Doer) GoalRepository {
	return &goalRepository{client: client}
}

func (r *goalRepository) Complete(ctx context.Context, userID, category, title string) (int, error) {
	if userID == "" || strings.TrimSpace(category) == "" {
		return 0, models.NewValidationError("userId and category are required")
	}
	path := userAchievementsPath(userID) + "/goals"
	env, err := send(ctx, r.client, http.MethodPost, path, transport.KindWrite,
		map[string]string{"category": category, "title": title})
	if err != nil {
		return 0, err
	}
	n, err := normalize.CompletedGoals(env.Merged())
	if err != nil {
		return 0, malformed("POST "+path, err)
	}
	return n, nil
}
