// Package mockapi is a development backend that serves every route the
// client calls. Its payloads deliberately mix key spellings, boolean and
// timestamp encodings so the client's normalizer runs end to end.
package mockapi

import "time"

// User is a member of the mock backend.
type User struct {
	ID        string `gorm:"primaryKey;size:64"`
	Username  string `gorm:"size:100"`
	AvatarURL string
	CreatedAt time.Time
}

// Community groups posts.
type Community struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;size:120"`
	Description string
	Category    string `gorm:"size:60"`
	ImageURL    string
	CreatedAt   time.Time
}

// Membership records that a user joined a community.
type Membership struct {
	UserID      string `gorm:"primaryKey;size:64"`
	CommunityID uint   `gorm:"primaryKey"`
	CreatedAt   time.Time
}

// Post belongs to one community.
type Post struct {
	ID          uint   `gorm:"primaryKey"`
	CommunityID uint   `gorm:"index"`
	UserID      string `gorm:"index;size:64"`
	Content     string
	ImageURL    string
	CreatedAt   time.Time

	User      User      `gorm:"foreignKey:UserID"`
	Community Community `gorm:"foreignKey:CommunityID"`
}

// PostLike is one user's like on one post.
type PostLike struct {
	UserID    string `gorm:"primaryKey;size:64"`
	PostID    uint   `gorm:"primaryKey"`
	CreatedAt time.Time
}

// Comment belongs to one post.
type Comment struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    uint   `gorm:"index"`
	UserID    string `gorm:"index;size:64"`
	Content   string
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}

// CommentLike is one user's like on one comment.
type CommentLike struct {
	UserID    string `gorm:"primaryKey;size:64"`
	CommentID uint   `gorm:"primaryKey"`
	CreatedAt time.Time
}

// GoalCompletion is one finished goal; progress counts these per category.
type GoalCompletion struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index:idx_goal_user_category;size:64"`
	Category  string `gorm:"index:idx_goal_user_category;size:60"`
	Title     string
	CreatedAt time.Time
}

// UnlockedAchievement is unique per (user, category, milestone).
type UnlockedAchievement struct {
	ID             uint   `gorm:"primaryKey"`
	UserID         string `gorm:"uniqueIndex:idx_unlock_key;size:64"`
	Category       string `gorm:"uniqueIndex:idx_unlock_key;size:60"`
	Milestone      int    `gorm:"uniqueIndex:idx_unlock_key"`
	Title          string
	Description    string
	CompletedGoals int
	UnlockedAt     time.Time
}

// RewardEntry is the ledger row for one granted milestone reward.
type RewardEntry struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"uniqueIndex:idx_reward_key;size:64"`
	Category   string `gorm:"uniqueIndex:idx_reward_key;size:60"`
	Milestone  int    `gorm:"uniqueIndex:idx_reward_key"`
	Coins      int
	Experience int
	CreatedAt  time.Time
}

// Schema lists every table for AutoMigrate.
func Schema() []interface{} {
	return []interface{}{
		&User{},
		&Community{},
		&Membership{},
		&Post{},
		&PostLike{},
		&Comment{},
		&CommentLike{},
		&GoalCompletion{},
		&UnlockedAchievement{},
		&RewardEntry{},
	}
}

// PostView is a post with viewer-relative counters.
type PostView struct {
	Post
	LikeCount    int
	CommentCount int
	Liked        bool
}

// CommentView is a comment with viewer-relative counters.
type CommentView struct {
	Comment
	LikeCount int
	Liked     bool
}

// CommunityView is a community with viewer-relative counters.
type CommunityView struct {
	Community
	MemberCount int
	PostCount   int
	Joined      bool
}
