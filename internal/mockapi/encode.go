package mockapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// The mock backend answers each route in its own dialect, the way a
// backend that grew over several rewrites would.

var easternOffset = time.FixedZone("EST", -5*60*60)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// feedPost: camelCase, numeric ids, nested author, RFC 3339 timestamps.
func feedPost(p PostView) fiber.Map {
	return fiber.Map{
		"id":            p.ID,
		"communityId":   p.CommunityID,
		"communityName": p.Community.Name,
		"author": fiber.Map{
			"id":     p.UserID,
			"name":   p.User.Username,
			"avatar": p.User.AvatarURL,
		},
		"content":   p.Content,
		"image":     nullable(p.ImageURL),
		"createdAt": p.CreatedAt.UTC().Format(time.RFC3339Nano),
		"likes":     p.LikeCount,
		"comments":  p.CommentCount,
		"isLiked":   p.Liked,
	}
}

// snakePost: snake_case, flat author, epoch millisecond timestamps, 0/1 flags.
func snakePost(p PostView) fiber.Map {
	return fiber.Map{
		"post_id":        p.ID,
		"community_id":   p.CommunityID,
		"community_name": p.Community.Name,
		"user_id":        p.UserID,
		"user_name":      p.User.Username,
		"user_avatar":    p.User.AvatarURL,
		"text":           p.Content,
		"image_url":      p.ImageURL,
		"created_at":     p.CreatedAt.UnixMilli(),
		"like_count":     p.LikeCount,
		"comment_count":  p.CommentCount,
		"is_liked":       boolInt(p.Liked),
	}
}

// legacyPost: string ids, nested community and user objects, seconds
// timestamp objects, string booleans.
func legacyPost(p PostView) fiber.Map {
	return fiber.Map{
		"_id": strconv.FormatUint(uint64(p.ID), 10),
		"community": fiber.Map{
			"id":   strconv.FormatUint(uint64(p.CommunityID), 10),
			"name": p.Community.Name,
		},
		"user": fiber.Map{
			"_id":         p.UserID,
			"displayName": p.User.Username,
			"photoURL":    p.User.AvatarURL,
		},
		"body":     p.Content,
		"imageURL": p.ImageURL,
		"timestamp": fiber.Map{
			"_seconds":     p.CreatedAt.Unix(),
			"_nanoseconds": p.CreatedAt.Nanosecond(),
		},
		"likesCount":    p.LikeCount,
		"commentsCount": p.CommentCount,
		"hasLiked":      strconv.FormatBool(p.Liked),
	}
}

func commentRecord(c CommentView) fiber.Map {
	return fiber.Map{
		"comment_id": c.ID,
		"post_id":    c.PostID,
		"author": fiber.Map{
			"user_id":      c.UserID,
			"display_name": c.User.Username,
			"avatar_url":   c.User.AvatarURL,
		},
		"body":        c.Content,
		"created_at":  c.CreatedAt.In(easternOffset).Format(time.RFC3339),
		"likes_count": c.LikeCount,
		"is_liked":    boolInt(c.Liked),
	}
}

func communityRecord(c CommunityView) fiber.Map {
	return fiber.Map{
		"id":            c.ID,
		"name":          c.Name,
		"desc":          c.Description,
		"category":      c.Category,
		"image_url":     c.ImageURL,
		"members_count": c.MemberCount,
		"posts_count":   c.PostCount,
		"is_member":     boolInt(c.Joined),
	}
}

// joinedRecord omits the membership flag; the route implies it.
func joinedRecord(c CommunityView) fiber.Map {
	return fiber.Map{
		"community_id":   strconv.FormatUint(uint64(c.ID), 10),
		"community_name": c.Name,
		"description":    c.Description,
		"memberCount":    c.MemberCount,
		"postCount":      c.PostCount,
	}
}

func achievementRecord(a UnlockedAchievement) fiber.Map {
	return fiber.Map{
		"category":                  a.Category,
		"milestone":                 a.Milestone,
		"title":                     a.Title,
		"description":               a.Description,
		"unlocked":                  1,
		"unlocked_at":               a.UnlockedAt.Unix(),
		"completed_goals_at_unlock": a.CompletedGoals,
	}
}

func mapEach[T any](items []T, fn func(T) fiber.Map) []fiber.Map {
	out := make([]fiber.Map, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}
