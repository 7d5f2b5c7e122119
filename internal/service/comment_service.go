package service

import (
	"context"
	"strings"

	"questline/internal/models"
	"questline/internal/observability"
	"questline/internal/repository"
	"questline/internal/state"
)

const maxCommentLen = 5000

type CommentService struct {
	commentRepo repository.CommentRepository
	store       *state.Store
	mutator     *Mutator
	logger      *observability.ClientLogger
}

func NewCommentService(commentRepo repository.CommentRepository, store *state.Store, mutator *Mutator) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		store:       store,
		mutator:     mutator,
		logger:      observability.NewClientLogger("comments"),
	}
}

// List fetches a post's comments. Failures yield an empty list.
func (s *CommentService) List(ctx context.Context, viewer models.Viewer, postID string) []models.Comment {
	if postID == "" {
		return []models.Comment{}
	}
	userID, _ := viewer.UserID()
	comments, err := s.commentRepo.List(ctx, postID, userID)
	if err != nil {
		s.logger.Warn(ctx, "list comments failed", map[string]interface{}{
			"post_id": postID,
			"error":   err.Error(),
		})
		return []models.Comment{}
	}
	s.store.Comments.Set(state.PostComments(postID), comments)
	return comments
}

// Create adds a comment to postID. The parent post's comment count is bumped
// in every collection immediately and is not undone if the call fails; the
// comment itself is appended only once the backend echoes it.
func (s *CommentService) Create(ctx context.Context, viewer models.Viewer, postID, content string) (models.Comment, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return models.Comment{}, models.NewValidationError("Sign in to comment")
	}
	if postID == "" {
		return models.Comment{}, models.NewValidationError("post id is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, models.NewValidationError("Comment cannot be empty")
	}
	if len(content) > maxCommentLen {
		return models.Comment{}, models.NewValidationError("Comment too long (max 5000 characters)")
	}

	s.store.Posts.Update(postID, func(p models.Post) models.Post {
		p.CommentCount++
		return p
	})

	comment, err := s.commentRepo.Create(ctx, postID, userID, content)
	if err != nil {
		observability.RecordMutation("comment_create", "failed")
		s.logger.LogError(ctx, err, "create_comment", map[string]interface{}{"post_id": postID})
		return models.Comment{}, err
	}

	s.store.Comments.Append(comment, state.PostComments(postID))
	observability.RecordMutation("comment_create", string(OutcomeConfirmed))
	return comment, nil
}

// ToggleLike likes or unlikes a comment with the same protocol as posts.
func (s *CommentService) ToggleLike(ctx context.Context, viewer models.Viewer, commentID string) (MutationResult, error) {
	userID, _ := viewer.UserID()
	return runToggle(ctx, s.mutator, viewer, commentID, toggle[models.Comment]{
		entity: "comment",
		mirror: s.store.Comments,
		get:    func(c models.Comment) (bool, int) { return c.ViewerHasLiked, c.LikeCount },
		set: func(c models.Comment, liked bool, count int) models.Comment {
			c.ViewerHasLiked, c.LikeCount = liked, count
			return c
		},
		on:  func(ctx context.Context) (models.Ack, error) { return s.commentRepo.Like(ctx, commentID, userID) },
		off: func(ctx context.Context) (models.Ack, error) { return s.commentRepo.Unlike(ctx, commentID, userID) },
	})
}
