package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"questline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	feedFn        func(context.Context, string) ([]models.Post, error)
	byCommunityFn func(context.Context, string, string) ([]models.Post, error)
	listFn        func(context.Context, string) ([]models.Post, error)
	createFn      func(context.Context, string, models.NewPost) (models.Post, error)
	deleteFn      func(context.Context, string, string) error
	likeFn        func(context.Context, string, string) (models.Ack, error)
	unlikeFn      func(context.Context, string, string) (models.Ack, error)

	mu    sync.Mutex
	calls []string
}

func (s *postRepoStub) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *postRepoStub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *postRepoStub) Feed(ctx context.Context, userID string) ([]models.Post, error) {
	s.record("feed")
	return s.feedFn(ctx, userID)
}
func (s *postRepoStub) ByCommunity(ctx context.Context, communityID, userID string) ([]models.Post, error) {
	s.record("community:" + communityID)
	return s.byCommunityFn(ctx, communityID, userID)
}
func (s *postRepoStub) List(ctx context.Context, userID string) ([]models.Post, error) {
	s.record("list")
	return s.listFn(ctx, userID)
}
func (s *postRepoStub) Create(ctx context.Context, userID string, in models.NewPost) (models.Post, error) {
	s.record("create")
	return s.createFn(ctx, userID, in)
}
func (s *postRepoStub) Delete(ctx context.Context, postID, userID string) error {
	s.record("delete:" + postID)
	return s.deleteFn(ctx, postID, userID)
}
func (s *postRepoStub) Like(ctx context.Context, postID, userID string) (models.Ack, error) {
	s.record("like:" + postID)
	return s.likeFn(ctx, postID, userID)
}
func (s *postRepoStub) Unlike(ctx context.Context, postID, userID string) (models.Ack, error) {
	s.record("unlike:" + postID)
	return s.unlikeFn(ctx, postID, userID)
}

func okAck() (models.Ack, error) { return models.Ack{Success: true}, nil }

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		feedFn:        func(_ context.Context, _ string) ([]models.Post, error) { return nil, nil },
		byCommunityFn: func(_ context.Context, _, _ string) ([]models.Post, error) { return nil, nil },
		listFn:        func(_ context.Context, _ string) ([]models.Post, error) { return nil, nil },
		createFn: func(_ context.Context, _ string, in models.NewPost) (models.Post, error) {
			return models.Post{ID: "new", CommunityID: in.CommunityID, Content: in.Content}, nil
		},
		deleteFn: func(_ context.Context, _, _ string) error { return nil },
		likeFn:   func(_ context.Context, _, _ string) (models.Ack, error) { return okAck() },
		unlikeFn: func(_ context.Context, _, _ string) (models.Ack, error) { return okAck() },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	listFn   func(context.Context, string, string) ([]models.Comment, error)
	createFn func(context.Context, string, string, string) (models.Comment, error)
	likeFn   func(context.Context, string, string) (models.Ack, error)
	unlikeFn func(context.Context, string, string) (models.Ack, error)
}

func (s *commentRepoStub) List(ctx context.Context, postID, userID string) ([]models.Comment, error) {
	return s.listFn(ctx, postID, userID)
}
func (s *commentRepoStub) Create(ctx context.Context, postID, userID, content string) (models.Comment, error) {
	return s.createFn(ctx, postID, userID, content)
}
func (s *commentRepoStub) Like(ctx context.Context, commentID, userID string) (models.Ack, error) {
	return s.likeFn(ctx, commentID, userID)
}
func (s *commentRepoStub) Unlike(ctx context.Context, commentID, userID string) (models.Ack, error) {
	return s.unlikeFn(ctx, commentID, userID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		listFn: func(_ context.Context, _, _ string) ([]models.Comment, error) { return nil, nil },
		createFn: func(_ context.Context, postID, _, content string) (models.Comment, error) {
			return models.Comment{ID: "k-new", PostID: postID, Content: content}, nil
		},
		likeFn:   func(_ context.Context, _, _ string) (models.Ack, error) { return okAck() },
		unlikeFn: func(_ context.Context, _, _ string) (models.Ack, error) { return okAck() },
	}
}

// communityRepoStub is a stub for repository.CommunityRepository.
type communityRepoStub struct {
	listFn   func(context.Context, string) ([]models.Community, error)
	joinedFn func(context.Context, string) ([]models.Community, error)
	joinFn   func(context.Context, string, string) (models.Ack, error)
	leaveFn  func(context.Context, string, string) (models.Ack, error)

	mu          sync.Mutex
	joinedCalls int
}

func (s *communityRepoStub) List(ctx context.Context, userID string) ([]models.Community, error) {
	return s.listFn(ctx, userID)
}
func (s *communityRepoStub) Joined(ctx context.Context, userID string) ([]models.Community, error) {
	s.mu.Lock()
	s.joinedCalls++
	s.mu.Unlock()
	return s.joinedFn(ctx, userID)
}
func (s *communityRepoStub) Join(ctx context.Context, communityID, userID string) (models.Ack, error) {
	return s.joinFn(ctx, communityID, userID)
}
func (s *communityRepoStub) Leave(ctx context.Context, communityID, userID string) (models.Ack, error) {
	return s.leaveFn(ctx, communityID, userID)
}

func (s *communityRepoStub) JoinedCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinedCalls
}

func noopCommunityRepo() *communityRepoStub {
	return &communityRepoStub{
		listFn:   func(_ context.Context, _ string) ([]models.Community, error) { return nil, nil },
		joinedFn: func(_ context.Context, _ string) ([]models.Community, error) { return nil, nil },
		joinFn:   func(_ context.Context, _, _ string) (models.Ack, error) { return okAck() },
		leaveFn:  func(_ context.Context, _, _ string) (models.Ack, error) { return okAck() },
	}
}

// achievementRepoStub is a stub for repository.AchievementRepository.
type achievementRepoStub struct {
	progressFn func(context.Context, string, string) (int, error)
	listFn     func(context.Context, string) ([]models.Achievement, error)
	getFn      func(context.Context, string, string, int) (models.Achievement, error)
	unlockFn   func(context.Context, string, models.UnlockRequest) (models.UnlockResult, error)
}

func (s *achievementRepoStub) Progress(ctx context.Context, userID, category string) (int, error) {
	return s.progressFn(ctx, userID, category)
}
func (s *achievementRepoStub) List(ctx context.Context, userID string) ([]models.Achievement, error) {
	return s.listFn(ctx, userID)
}
func (s *achievementRepoStub) Get(ctx context.Context, userID, category string, milestone int) (models.Achievement, error) {
	return s.getFn(ctx, userID, category, milestone)
}
func (s *achievementRepoStub) Unlock(ctx context.Context, userID string, req models.UnlockRequest) (models.UnlockResult, error) {
	return s.unlockFn(ctx, userID, req)
}

// fakeAchievementBackend keeps unlocks in memory with the backend's
// idempotent semantics.
type fakeAchievementBackend struct {
	mu        sync.Mutex
	progress  map[string]int
	unlocked  map[models.AchievementKey]bool
	unlocks   int
	failUntil map[models.AchievementKey]int
}

func newFakeAchievementBackend(progress map[string]int) *fakeAchievementBackend {
	return &fakeAchievementBackend{
		progress:  progress,
		unlocked:  make(map[models.AchievementKey]bool),
		failUntil: make(map[models.AchievementKey]int),
	}
}

func (f *fakeAchievementBackend) repo() *achievementRepoStub {
	return &achievementRepoStub{
		progressFn: func(_ context.Context, _, category string) (int, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			n, ok := f.progress[category]
			if !ok {
				return 0, models.NewNotFoundError("progress", category)
			}
			return n, nil
		},
		listFn: func(_ context.Context, _ string) ([]models.Achievement, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			var out []models.Achievement
			for k := range f.unlocked {
				out = append(out, models.Achievement{Category: k.Category, Milestone: k.Milestone, Unlocked: true})
			}
			return out, nil
		},
		getFn: func(_ context.Context, _, category string, milestone int) (models.Achievement, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			key := models.AchievementKey{Category: category, Milestone: milestone}
			if !f.unlocked[key] {
				return models.Achievement{}, models.NewNotFoundError("achievement", key)
			}
			return models.Achievement{Category: category, Milestone: milestone, Unlocked: true}, nil
		},
		unlockFn: func(_ context.Context, _ string, req models.UnlockRequest) (models.UnlockResult, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			key := models.AchievementKey{Category: req.Category, Milestone: req.Milestone}
			if f.failUntil[key] > 0 {
				f.failUntil[key]--
				return models.UnlockResult{}, models.NewServerError("unlock", 503)
			}
			f.unlocks++
			if f.unlocked[key] {
				return models.UnlockResult{Success: true, AlreadyUnlocked: true}, nil
			}
			f.unlocked[key] = true
			return models.UnlockResult{Success: true}, nil
		},
	}
}

// rewardLedgerStub records grants.
type rewardLedgerStub struct {
	mu     sync.Mutex
	grants []models.RewardGrant
	err    error
}

func (s *rewardLedgerStub) Grant(_ context.Context, _ string, g models.RewardGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, g)
	return s.err
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

var (
	alice = models.SignedIn("u1")
	anon  = models.Anonymous()
)
