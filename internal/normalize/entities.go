package normalize

import (
	"context"
	"fmt"

	"questline/internal/models"
	"questline/internal/observability"
)

var logger = observability.NewClientLogger("normalize")

// Key spellings observed across backend payloads.
var (
	postIDKeys       = []string{"id", "_id", "postId", "post_id"}
	commentIDKeys    = []string{"id", "_id", "commentId", "comment_id"}
	communityIDKeys  = []string{"id", "_id", "communityId", "community_id"}
	authorObjectKeys = []string{"author", "user", "owner"}
	authorIDKeys     = []string{"userId", "user_id", "authorId", "author_id", "uid"}
	authorNameKeys   = []string{"userName", "user_name", "username", "authorName", "author_name", "displayName", "display_name"}
	authorAvatarKeys = []string{"userAvatar", "user_avatar", "authorAvatar", "author_avatar", "avatar", "avatarUrl", "avatar_url", "photoURL"}
	contentKeys      = []string{"content", "text", "body"}
	imageKeys        = []string{"image", "imageUrl", "image_url", "imageURL"}
	createdAtKeys    = []string{"createdAt", "created_at", "timestamp", "createdOn"}
	likeCountKeys    = []string{"likeCount", "likesCount", "like_count", "likes_count", "likes"}
	commentCountKeys = []string{"commentCount", "commentsCount", "comment_count", "comments_count", "comments"}
	likedKeys        = []string{"viewerHasLiked", "isLiked", "is_liked", "liked", "hasLiked", "has_liked", "userHasLiked", "user_has_liked"}
	memberCountKeys  = []string{"memberCount", "membersCount", "member_count", "members_count", "members"}
	postCountKeys    = []string{"postCount", "postsCount", "post_count", "posts_count"}
	joinedKeys       = []string{"viewerHasJoined", "isJoined", "is_joined", "joined", "isMember", "is_member"}
	successKeys      = []string{"success", "ok"}
)

func reject(entity string, raw Raw, reason string) error {
	observability.RecordReject(entity)
	logger.Warn(context.Background(), "normalizer rejected record", map[string]interface{}{
		"entity": entity,
		"reason": reason,
		"keys":   raw.Keys(),
	})
	return fmt.Errorf("%s %s: %w", entity, reason, ErrRejected)
}

// Author resolves the author from a nested object, falling back to flat
// fields on the record itself.
func Author(raw Raw) models.Author {
	a := models.Author{
		UserID:     raw.str(authorIDKeys...),
		UserName:   raw.str(authorNameKeys...),
		UserAvatar: raw.str(authorAvatarKeys...),
	}
	if nested := raw.obj(authorObjectKeys...); nested != nil {
		if id := nested.str(append(authorIDKeys, "id", "_id")...); id != "" {
			a.UserID = id
		}
		if name := nested.str(append(authorNameKeys, "name")...); name != "" {
			a.UserName = name
		}
		if avatar := nested.str(authorAvatarKeys...); avatar != "" {
			a.UserAvatar = avatar
		}
	} else if a.UserName == "" {
		// "author": "Jane"
		a.UserName = raw.str(authorObjectKeys...)
	}
	if a.UserName == "" {
		a.UserName = models.AnonymousUserName
	}
	return a
}

// Post normalizes one post record.
func Post(raw Raw) (models.Post, error) {
	id := raw.str(postIDKeys...)
	if id == "" {
		return models.Post{}, reject("post", raw, "missing id")
	}

	p := models.Post{
		ID:             id,
		CommunityID:    raw.str("communityId", "community_id"),
		CommunityName:  raw.str("communityName", "community_name"),
		Author:         Author(raw),
		Content:        raw.str(contentKeys...),
		Image:          optString(raw.str(imageKeys...)),
		CreatedAt:      raw.time(createdAtKeys...),
		LikeCount:      raw.count(likeCountKeys...),
		CommentCount:   raw.count(commentCountKeys...),
		ViewerHasLiked: raw.flag(likedKeys...),
	}
	if c := raw.obj("community"); c != nil {
		if p.CommunityID == "" {
			p.CommunityID = c.str(communityIDKeys...)
		}
		if p.CommunityName == "" {
			p.CommunityName = c.str("name", "communityName", "community_name")
		}
	}
	return p, nil
}

// Comment normalizes one comment record.
func Comment(raw Raw) (models.Comment, error) {
	id := raw.str(commentIDKeys...)
	if id == "" {
		return models.Comment{}, reject("comment", raw, "missing id")
	}
	return models.Comment{
		ID:             id,
		PostID:         raw.str("postId", "post_id"),
		Author:         Author(raw),
		Content:        raw.str(contentKeys...),
		CreatedAt:      raw.time(createdAtKeys...),
		LikeCount:      raw.count(likeCountKeys...),
		ViewerHasLiked: raw.flag(likedKeys...),
	}, nil
}

// Community normalizes one community record.
func Community(raw Raw) (models.Community, error) {
	id := raw.str(communityIDKeys...)
	if id == "" {
		return models.Community{}, reject("community", raw, "missing id")
	}
	name := raw.str("name", "communityName", "community_name", "title")
	if name == "" {
		name = models.UnnamedCommunityName
	}
	return models.Community{
		ID:              id,
		Name:            name,
		Description:     raw.str("description", "desc", "about"),
		Category:        raw.str("category"),
		ImageURL:        raw.str("imageUrl", "image_url", "imageURL", "image", "coverImage"),
		MemberCount:     raw.count(memberCountKeys...),
		PostCount:       raw.count(postCountKeys...),
		ViewerHasJoined: raw.flag(joinedKeys...),
	}, nil
}

// Achievement normalizes one achievement record. Category and a positive
// milestone are required.
func Achievement(raw Raw) (models.Achievement, error) {
	category := raw.str("category", "categoryName", "category_name")
	milestone := raw.count("milestone", "goalCount", "goal_count", "threshold")
	if category == "" || milestone <= 0 {
		return models.Achievement{}, reject("achievement", raw, "missing category or milestone")
	}

	a := models.Achievement{
		Category:               category,
		Milestone:              milestone,
		Title:                  raw.str("title", "name"),
		Description:            raw.str("description", "desc"),
		CompletedGoalsAtUnlock: raw.count("completedGoalsAtUnlock", "completed_goals_at_unlock", "completedGoals", "completed_goals"),
	}
	if at := raw.time("unlockedAt", "unlocked_at"); !at.IsZero() {
		a.UnlockedAt = &at
	}
	if raw.has("unlocked", "isUnlocked", "is_unlocked") {
		a.Unlocked = raw.flag("unlocked", "isUnlocked", "is_unlocked")
	} else {
		a.Unlocked = a.UnlockedAt != nil
	}
	return a, nil
}

// Ack normalizes a mutation response. A body without a success flag is a
// success; stateKeys and countKeys name the echoed flag and counter.
func Ack(raw Raw, stateKeys, countKeys []string) models.Ack {
	ack := models.Ack{
		Success: true,
		Message: raw.str("message", "error"),
		State:   raw.optFlag(stateKeys...),
		Count:   raw.optCount(countKeys...),
	}
	if raw.has(successKeys...) {
		ack.Success = raw.flag(successKeys...)
	}
	return ack
}

// LikeAck normalizes a like/unlike response.
func LikeAck(raw Raw) models.Ack {
	return Ack(raw, likedKeys, likeCountKeys)
}

// MembershipAck normalizes a join/leave response.
func MembershipAck(raw Raw) models.Ack {
	return Ack(raw, joinedKeys, memberCountKeys)
}

// UnlockResult normalizes an unlock response.
func UnlockResult(raw Raw) models.UnlockResult {
	res := models.UnlockResult{
		Success:         true,
		AlreadyUnlocked: raw.flag("alreadyUnlocked", "already_unlocked"),
	}
	if raw.has(successKeys...) {
		res.Success = raw.flag(successKeys...)
	}
	nested := raw.obj("achievement", "data")
	if nested == nil && raw.has("category", "categoryName", "category_name") {
		nested = raw
	}
	if nested != nil {
		if a, err := Achievement(nested); err == nil {
			res.Achievement = &a
		}
	}
	return res
}

// CompletedGoals reads a progress counter.
func CompletedGoals(raw Raw) (int, error) {
	v := raw.optCount("completedGoals", "completed_goals", "completedCount", "completed_count", "count")
	if v == nil {
		return 0, reject("progress", raw, "missing completed goal count")
	}
	return *v, nil
}

// batch maps records through fn and drops rejects. It never fails.
func batch[T any](raws []Raw, fn func(Raw) (T, error)) []T {
	out := make([]T, 0, len(raws))
	for _, r := range raws {
		v, err := fn(r)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Posts normalizes a batch of post records, dropping rejects.
func Posts(raws []Raw) []models.Post { return batch(raws, Post) }

// Comments normalizes a batch of comment records, dropping rejects.
func Comments(raws []Raw) []models.Comment { return batch(raws, Comment) }

// Communities normalizes a batch of community records, dropping rejects.
func Communities(raws []Raw) []models.Community { return batch(raws, Community) }

// Achievements normalizes a batch of achievement records, dropping rejects.
func Achievements(raws []Raw) []models.Achievement { return batch(raws, Achievement) }

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
