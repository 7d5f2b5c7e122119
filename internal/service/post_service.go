package service

import (
	"context"
	"strings"
	"time"

	"questline/internal/models"
	"questline/internal/observability"
	"questline/internal/repository"
	"questline/internal/state"
)

const maxContentLen = 50000 // characters

type PostService struct {
	postRepo repository.PostRepository
	store    *state.Store
	mutator  *Mutator
	logger   *observability.ClientLogger
}

func NewPostService(postRepo repository.PostRepository, store *state.Store, mutator *Mutator) *PostService {
	return &PostService{
		postRepo: postRepo,
		store:    store,
		mutator:  mutator,
		logger:   observability.NewClientLogger("posts"),
	}
}

// ToggleLike likes or unlikes postID depending on its current local state,
// updating every collection that holds the post before the backend is called.
func (s *PostService) ToggleLike(ctx context.Context, viewer models.Viewer, postID string) (MutationResult, error) {
	userID, _ := viewer.UserID()
	return runToggle(ctx, s.mutator, viewer, postID, toggle[models.Post]{
		entity: "post",
		mirror: s.store.Posts,
		get:    func(p models.Post) (bool, int) { return p.ViewerHasLiked, p.LikeCount },
		set: func(p models.Post, liked bool, count int) models.Post {
			p.ViewerHasLiked, p.LikeCount = liked, count
			return p
		},
		on:  func(ctx context.Context) (models.Ack, error) { return s.postRepo.Like(ctx, postID, userID) },
		off: func(ctx context.Context) (models.Ack, error) { return s.postRepo.Unlike(ctx, postID, userID) },
	})
}

// Create publishes a post. The community's post count is bumped right away;
// the post itself is inserted locally only once the backend echoes it with
// an id. An explicit refusal restores the count.
func (s *PostService) Create(ctx context.Context, viewer models.Viewer, in models.NewPost) (models.Post, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return models.Post{}, models.NewValidationError("Sign in to post")
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return models.Post{}, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxContentLen {
		return models.Post{}, models.NewValidationError("Content too long (max 50000 characters)")
	}
	if strings.TrimSpace(in.CommunityID) == "" {
		return models.Post{}, models.NewValidationError("Community is required")
	}
	if in.Image != nil && strings.TrimSpace(*in.Image) == "" {
		in.Image = nil
	}

	unlock, err := s.mutator.lock(ctx, "community", in.CommunityID)
	if err != nil {
		return models.Post{}, err
	}
	defer unlock()

	prevCounts := map[string]int{}
	s.store.Communities.Update(in.CommunityID, func(c models.Community) models.Community {
		prevCounts[c.ID] = c.PostCount
		c.PostCount++
		return c
	})

	start := time.Now()
	post, err := s.postRepo.Create(ctx, userID, in)
	if err != nil {
		outcome := s.mutator.settle(userID, err, false)
		if outcome == OutcomeRolledBack {
			if prev, ok := prevCounts[in.CommunityID]; ok {
				s.store.Communities.Update(in.CommunityID, func(c models.Community) models.Community {
					c.PostCount = prev
					return c
				})
			}
		}
		observability.RecordMutation("post_create", string(outcome))
		s.logger.LogError(ctx, err, "create_post", map[string]interface{}{
			"community_id": in.CommunityID,
			"outcome":      string(outcome),
		})
		return models.Post{}, err
	}

	if post.CommunityID == "" {
		post.CommunityID = in.CommunityID
	}
	targets := []string{state.CommunityPosts(post.CommunityID)}
	for _, name := range []string{state.Feed, state.All} {
		if s.store.Posts.Has(name) {
			targets = append(targets, name)
		}
	}
	s.store.Posts.Prepend(post, targets...)

	observability.RecordMutation("post_create", string(OutcomeConfirmed))
	s.logger.Info(ctx, "post created", map[string]interface{}{
		"post_id":     post.ID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return post, nil
}

// Delete removes postID from every local collection, then asks the backend
// to delete it. Only an explicit refusal (other than 404) puts the post back,
// at its original positions. Result.Active reports whether the post is
// present locally afterwards.
func (s *PostService) Delete(ctx context.Context, viewer models.Viewer, postID string) (MutationResult, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return MutationResult{}, models.NewValidationError("Sign in to continue")
	}
	if postID == "" {
		return MutationResult{}, models.NewValidationError("post id is required")
	}

	unlock, err := s.mutator.lock(ctx, "post", postID)
	if err != nil {
		return MutationResult{}, err
	}
	defer unlock()

	removed := s.store.Posts.Remove(postID)
	err = s.postRepo.Delete(ctx, postID, userID)

	var outcome Outcome
	switch {
	case err == nil:
		outcome = OutcomeConfirmed
	case models.IsNotFound(err):
		// Already gone remotely; keep it gone locally.
		outcome = OutcomeConfirmed
	default:
		outcome = s.mutator.settle(userID, err, false)
	}
	if outcome == OutcomeRolledBack {
		s.store.Posts.Restore(removed)
	}

	observability.RecordMutation("post_delete", string(outcome))
	if err != nil {
		s.logger.Warn(ctx, "delete post failed", map[string]interface{}{
			"post_id": postID,
			"outcome": string(outcome),
			"error":   err.Error(),
		})
	}
	return MutationResult{Outcome: outcome, Active: outcome == OutcomeRolledBack, Err: err}, nil
}
