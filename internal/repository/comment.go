package repository

import (
	"context"
	"net/http"

	"questline/internal/models"
	"questline/internal/normalize"
	"questline/internal/transport"
)

// CommentRepository defines the interface for comment operations against the backend.
type CommentRepository interface {
	List(ctx context.Context, postID, userID string) ([]models.Comment, error)
	Create(ctx context.Context, postID, userID, content string) (models.Comment, error)
	Like(ctx context.Context, commentID, userID string) (models.Ack, error)
	Unlike(ctx context.Context, commentID, userID string) (models.Ack, error)
}

type commentRepository struct {
	client Doer
}

// NewCommentRepository creates a comment repository over client.
func NewCommentRepository(client Doer) CommentRepository {
	return &commentRepository{client: client}
}

func (r *commentRepository) List(ctx context.Context, postID, userID string) ([]models.Comment, error) {
	raws, err := getList(ctx, r.client, postPath(postID)+"/comments", viewerQuery(userID))
	if err != nil {
		return nil, err
	}
	comments := normalize.Comments(raws)
	for i := range comments {
		if comments[i].PostID == "" {
			comments[i].PostID = postID
		}
	}
	return comments, nil
}

func (r *commentRepository) Create(ctx context.Context, postID, userID, content string) (models.Comment, error) {
	path := postPath(postID) + "/comments"
	env, err := send(ctx, r.client, http.MethodPost, path, transport.KindWrite,
		map[string]string{"userId": userID, "content": content}, "comment")
	if err != nil {
		return models.Comment{}, err
	}
	c, err := normalize.Comment(env.Inner)
	if err != nil {
		return models.Comment{}, malformed("POST "+path, err)
	}
	if c.PostID == "" {
		c.PostID = postID
	}
	return c, nil
}

func (r *commentRepository) Like(ctx context.Context, commentID, userID string) (models.Ack, error) {
	return r.toggle(ctx, commentID, userID, "/like")
}

func (r *commentRepository) Unlike(ctx context.Context, commentID, userID string) (models.Ack, error) {
	return r.toggle(ctx, commentID, userID, "/unlike")
}

func (r *commentRepository) toggle(ctx context.Context, commentID, userID, action string) (models.Ack, error) {
	env, err := send(ctx, r.client, http.MethodPost, commentPath(commentID)+action, transport.KindWrite, map[string]string{"userId": userID})
	if err != nil {
		return models.Ack{}, err
	}
	return normalize.LikeAck(env.Merged()), nil
}
