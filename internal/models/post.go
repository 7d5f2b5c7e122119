// Package models contains the canonical entity shapes the client works with.
// Raw backend payloads never reach this package; see internal/normalize.
package models

import "time"

// Placeholders used when a payload omits a display name.
const (
	AnonymousUserName    = "Anonymous User"
	UnnamedCommunityName = "Unnamed Community"
)

// Author identifies who wrote a post or comment.
type Author struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
}

// Post represents a post in a community.
type Post struct {
	ID             string    `json:"id"`
	CommunityID    string    `json:"communityId"`
	CommunityName  string    `json:"communityName"`
	Author         Author    `json:"author"`
	Content        string    `json:"content"`
	Image          *string   `json:"image"`
	CreatedAt      time.Time `json:"createdAt"`
	LikeCount      int       `json:"likeCount"`
	CommentCount   int       `json:"commentCount"`
	ViewerHasLiked bool      `json:"viewerHasLiked"`
}

// EntityID implements state.Entity.
func (p Post) EntityID() string { return p.ID }

// NewPost is the payload for creating a post.
type NewPost struct {
	CommunityID string  `json:"communityId"`
	Content     string  `json:"content"`
	Image       *string `json:"image,omitempty"`
}

// Ack is a canonical mutation response. Some endpoints echo the server's
// view of the toggled flag (liked or joined) and its counter; those fields
// are nil when absent.
type Ack struct {
	Success bool
	Message string
	State   *bool
	Count   *int
}
