package service

import (
	"context"
	"time"

	"questline/internal/achievements"
	"questline/internal/featureflags"
	"questline/internal/models"
	"questline/internal/notifications"
	"questline/internal/observability"
	"questline/internal/repository"
	"questline/internal/state"

	"go.opentelemetry.io/otel/attribute"
)

// Unlock results, as recorded in metrics.
const (
	unlockNew       = "unlocked"
	unlockDuplicate = "already_unlocked"
	unlockRejected  = "rejected"
	unlockFailed    = "error"
)

type AchievementService struct {
	achievementRepo repository.AchievementRepository
	ledger          repository.RewardRepository
	catalog         *achievements.Catalog
	store           *state.Store
	now             func() time.Time
	logger          *observability.ClientLogger
}

// NewAchievementService creates the service. ledger may be nil, in which
// case no rewards are granted.
func NewAchievementService(
	achievementRepo repository.AchievementRepository,
	ledger repository.RewardRepository,
	catalog *achievements.Catalog,
	store *state.Store,
) *AchievementService {
	if catalog == nil {
		catalog = achievements.Default()
	}
	return &AchievementService{
		achievementRepo: achievementRepo,
		ledger:          ledger,
		catalog:         catalog,
		store:           store,
		now:             time.Now,
		logger:          observability.NewClientLogger("achievements"),
	}
}

// Check commits every milestone in category the viewer has reached but not
// yet unlocked, and returns the ones unlocked by this call. Progress is read
// once; a failed progress read yields nothing, and a failed unlock is left
// for the next check.
func (s *AchievementService) Check(ctx context.Context, viewer models.Viewer, category string) []models.Achievement {
	unlocked, _ := s.check(ctx, viewer, category)
	return unlocked
}

func (s *AchievementService) check(ctx context.Context, viewer models.Viewer, category string) ([]models.Achievement, int) {
	userID, ok := viewer.UserID()
	if !ok || category == "" {
		return []models.Achievement{}, 0
	}

	span, ctx := observability.StartSpan(ctx, "achievements.check",
		attribute.String("user.id", userID),
		attribute.String("achievement.category", category),
	)
	defer span.End()

	if !s.catalog.HasCategory(category) {
		s.logger.Warn(ctx, "category not in catalog", map[string]interface{}{"category": category})
	}

	completed, err := s.achievementRepo.Progress(ctx, userID, category)
	if err != nil {
		span.SetError(err)
		s.logger.Warn(ctx, "progress fetch failed", map[string]interface{}{
			"category": category,
			"error":    err.Error(),
		})
		return []models.Achievement{}, 0
	}

	newly := []models.Achievement{}
	for _, milestone := range s.catalog.Qualifying(completed) {
		if a, ok := s.unlock(ctx, userID, category, milestone, completed); ok {
			newly = append(newly, a)
		}
	}
	span.AddAttributes(
		attribute.Int("achievement.completed_goals", completed),
		attribute.Int("achievement.unlocked", len(newly)),
	)
	return newly, completed
}

// unlock runs one milestone through Locked → Unlocked and reports whether
// this call made the transition.
func (s *AchievementService) unlock(ctx context.Context, userID, category string, milestone, completed int) (models.Achievement, bool) {
	fields := map[string]interface{}{"category": category, "milestone": milestone}

	existing, err := s.achievementRepo.Get(ctx, userID, category, milestone)
	switch {
	case err == nil && existing.Unlocked:
		s.store.Unlocked.Mark(userID, existing)
		return models.Achievement{}, false
	case err != nil && !models.IsNotFound(err):
		// The unlock below is idempotent, so an unknown state is safe to retry.
		fields["error"] = err.Error()
		s.logger.Debug(ctx, "unlock state check failed", fields)
	}

	res, err := s.achievementRepo.Unlock(ctx, userID, models.UnlockRequest{
		Category:       category,
		Milestone:      milestone,
		CompletedGoals: completed,
	})
	switch {
	case err != nil:
		observability.RecordUnlock(category, unlockFailed)
		s.logger.LogError(ctx, err, "unlock_achievement", fields)
		return models.Achievement{}, false
	case !res.Success:
		observability.RecordUnlock(category, unlockRejected)
		s.logger.Warn(ctx, "unlock rejected", fields)
		return models.Achievement{}, false
	}

	a := s.catalog.Achievement(category, milestone)
	if res.Achievement != nil {
		if res.Achievement.Title != "" {
			a.Title = res.Achievement.Title
		}
		if res.Achievement.Description != "" {
			a.Description = res.Achievement.Description
		}
		a.UnlockedAt = res.Achievement.UnlockedAt
		a.CompletedGoalsAtUnlock = res.Achievement.CompletedGoalsAtUnlock
	}
	a.Unlocked = true
	if a.CompletedGoalsAtUnlock == 0 {
		a.CompletedGoalsAtUnlock = completed
	}
	if a.UnlockedAt == nil {
		now := s.now().UTC()
		a.UnlockedAt = &now
	}

	if res.AlreadyUnlocked {
		s.store.Unlocked.Mark(userID, a)
		observability.RecordUnlock(category, unlockDuplicate)
		return models.Achievement{}, false
	}

	s.store.Unlocked.Mark(userID, a)
	observability.RecordUnlock(category, unlockNew)
	s.grant(ctx, userID, a)
	return a, true
}

// grant records the milestone's reward. A ledger failure is logged and
// never undoes the unlock.
func (s *AchievementService) grant(ctx context.Context, userID string, a models.Achievement) {
	if s.ledger == nil {
		return
	}
	reward := s.catalog.Reward(a.Milestone)
	if reward.Coins == 0 && reward.Experience == 0 {
		return
	}
	err := s.ledger.Grant(ctx, userID, models.RewardGrant{
		Category:  a.Category,
		Milestone: a.Milestone,
		Reward:    reward,
	})
	if err != nil {
		s.logger.LogError(ctx, err, "grant_reward", map[string]interface{}{
			"category":  a.Category,
			"milestone": a.Milestone,
		})
	}
}

// List returns every achievement in the catalog with the viewer's unlock
// state overlaid. An achievement seen unlocked once stays unlocked, even if
// a later listing says otherwise or the listing fails.
func (s *AchievementService) List(ctx context.Context, viewer models.Viewer) []models.Achievement {
	all := s.catalog.Enumerate()
	userID, ok := viewer.UserID()
	if !ok {
		return all
	}

	remote, err := s.achievementRepo.List(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "list achievements failed", map[string]interface{}{"error": err.Error()})
	}
	byKey := make(map[models.AchievementKey]models.Achievement, len(remote))
	for _, a := range remote {
		byKey[a.Key()] = a
	}

	for i, a := range all {
		r, ok := byKey[a.Key()]
		if !ok || !r.Unlocked {
			continue
		}
		a.Unlocked = true
		a.UnlockedAt = r.UnlockedAt
		a.CompletedGoalsAtUnlock = r.CompletedGoalsAtUnlock
		all[i] = a
	}
	return s.store.Unlocked.Merge(userID, all)
}

// GoalCompletionFlow runs after a goal is completed: it commits any new
// achievements, then shows the completion and announces them.
type GoalCompletionFlow struct {
	achievements *AchievementService
	announcer    *notifications.Announcer
	flags        *featureflags.Manager
}

func NewGoalCompletionFlow(svc *AchievementService, announcer *notifications.Announcer, flags *featureflags.Manager) *GoalCompletionFlow {
	return &GoalCompletionFlow{achievements: svc, announcer: announcer, flags: flags}
}

// OnGoalCompleted returns the newly unlocked achievements. Unlocks are
// committed even when announcing them fails or is switched off.
func (f *GoalCompletionFlow) OnGoalCompleted(ctx context.Context, viewer models.Viewer, category, goalTitle string) ([]models.Achievement, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return nil, models.NewValidationError("Sign in to track goals")
	}
	if category == "" {
		return nil, models.NewValidationError("Category is required")
	}

	unlocked, completed := f.achievements.check(ctx, viewer, category)
	if f.announcer == nil || !f.flags.EnabledByDefault(featureflags.AchievementToasts, userID) {
		return unlocked, nil
	}

	err := f.announcer.Announce(ctx, notifications.Completion{
		UserID:         userID,
		Category:       category,
		GoalTitle:      goalTitle,
		CompletedGoals: completed,
	}, unlocked)
	return unlocked, err
}
