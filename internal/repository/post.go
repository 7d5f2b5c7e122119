package repository

import (
	"context"
	"net/http"

	"questline/internal/models"
	"questline/internal/normalize"
	"questline/internal/transport"
)

// PostRepository defines the interface for post operations against the backend.
type PostRepository interface {
	Feed(ctx context.Context, userID string) ([]models.Post, error)
	ByCommunity(ctx context.Context, communityID, userID string) ([]models.Post, error)
	List(ctx context.Context, userID string) ([]models.Post, error)
	Create(ctx context.Context, userID string, in models.NewPost) (models.Post, error)
	Delete(ctx context.Context, postID, userID string) error
	Like(ctx context.Context, postID, userID string) (models.Ack, error)
	Unlike(ctx context.Context, postID, userID string) (models.Ack, error)
}

type postRepository struct {
	client Doer
}

// NewPostRepository creates a post repository over client.
func NewPostRepository(client Doer) PostRepository {
	return &postRepository{client: client}
}

func (r *postRepository) Feed(ctx context.Context, userID string) ([]models.Post, error) {
	raws, err := getList(ctx, r.client, routeFeed, viewerQuery(userID))
	if err != nil {
		return nil, err
	}
	return normalize.Posts(raws), nil
}

func (r *postRepository) ByCommunity(ctx context.Context, communityID, userID string) ([]models.Post, error) {
	raws, err := getList(ctx, r.client, communityPostsPath(communityID), viewerQuery(userID))
	if err != nil {
		return nil, err
	}
	return normalize.Posts(raws), nil
}

func (r *postRepository) List(ctx context.Context, userID string) ([]models.Post, error) {
	raws, err := getList(ctx, r.client, routePosts, viewerQuery(userID))
	if err != nil {
		return nil, err
	}
	return normalize.Posts(raws), nil
}

func (r *postRepository) Create(ctx context.Context, userID string, in models.NewPost) (models.Post, error) {
	body := map[string]any{
		"userId":      userID,
		"communityId": in.CommunityID,
		"content":     in.Content,
	}
	if in.Image != nil {
		body["image"] = *in.Image
	}
	env, err := send(ctx, r.client, http.MethodPost, routePosts, transport.KindUpload, body, "post")
	if err != nil {
		return models.Post{}, err
	}
	post, err := normalize.Post(env.Inner)
	if err != nil {
		return models.Post{}, malformed("POST "+routePosts, err)
	}
	return post, nil
}

func (r *postRepository) Delete(ctx context.Context, postID, userID string) error {
	_, err := r.client.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   postPath(postID),
		Query:  viewerQuery(userID),
		Kind:   transport.KindWrite,
	})
	return err
}

func (r *postRepository) Like(ctx context.Context, postID, userID string) (models.Ack, error) {
	return r.toggle(ctx, postID, userID, "/like")
}

func (r *postRepository) Unlike(ctx context.Context, postID, userID string) (models.Ack, error) {
	return r.toggle(ctx, postID, userID, "/unlike")
}

func (r *postRepository) toggle(ctx context.Context, postID, userID, action string) (models.Ack, error) {
	env, err := send(ctx, r.client, http.MethodPost, postPath(postID)+action, transport.KindWrite, map[string]string{"userId": userID})
	if err != nil {
		return models.Ack{}, err
	}
	return normalize.LikeAck(env.Merged()), nil
}
