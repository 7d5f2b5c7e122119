package models

import "time"

// Comment represents a comment owned by exactly one post.
type Comment struct {
	ID             string    `json:"id"`
	PostID         string    `json:"postId"`
	Author         Author    `json:"author"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	LikeCount      int       `json:"likeCount"`
	ViewerHasLiked bool      `json:"viewerHasLiked"`
}

// EntityID implements state.Entity.
func (c Comment) EntityID() string { return c.ID }
