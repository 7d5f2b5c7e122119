package mockapi

import (
	"errors"
	"strings"

	"questline/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

const maxContentLen = 50000

// Health handles GET /health
func (s *Server) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": "questline-mockapi"})
}

// SelfOnly rejects achievement routes for anyone but the token's subject.
func (s *Server) SelfOnly(c *fiber.Ctx) error {
	if c.Params("userId") != viewerID(c) {
		return respondError(c, fiber.StatusForbidden, models.CodeUnauthorized, "Cannot access another user's achievements")
	}
	return c.Next()
}

// parseID extracts a positive numeric route parameter, writing a 400 on failure.
func parseID(c *fiber.Ctx, param string) (uint, bool) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Invalid "+param)
		return 0, false
	}
	return uint(id), true
}

// actingAs rejects bodies that name a different user than the token.
func actingAs(c *fiber.Ctx, bodyUserID string) bool {
	if bodyUserID != "" && bodyUserID != viewerID(c) {
		_ = respondError(c, fiber.StatusForbidden, models.CodeUnauthorized, "userId does not match token")
		return false
	}
	return true
}

func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return respondError(c, fiber.StatusNotFound, models.CodeNotFound, "Not found")
	case errors.Is(err, ErrForbidden):
		return respondError(c, fiber.StatusForbidden, models.CodeUnauthorized, "Not allowed")
	default:
		return respondError(c, fiber.StatusInternalServerError, models.CodeInternal, err.Error())
	}
}

// GetFeed handles GET /posts/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	posts, err := s.store.Feed(c.UserContext(), viewerID(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"posts": mapEach(posts, feedPost)})
}

// GetCommunityPosts handles GET /posts/community/:id
func (s *Server) GetCommunityPosts(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	posts, err := s.store.PostsByCommunity(c.UserContext(), id, viewerID(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(mapEach(posts, snakePost))
}

// GetPosts handles GET /posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.store.Posts(c.UserContext(), viewerID(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"data": mapEach(posts, legacyPost)})
}

// CreatePost handles POST /posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		UserID      string      `json:"userId"`
		CommunityID interface{} `json:"communityId"`
		Content     string      `json:"content"`
		Image       string      `json:"image"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Invalid request body")
	}
	if !actingAs(c, req.UserID) {
		return nil
	}
	communityID, err := cast.ToUintE(req.CommunityID)
	if err != nil || communityID == 0 {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "communityId is required")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxContentLen {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "content must be 1-50000 characters")
	}

	ctx := c.UserContext()
	if err := s.store.EnsureUser(ctx, &User{ID: viewerID(c), CreatedAt: s.now().UTC()}); err != nil {
		return storeError(c, err)
	}
	post, err := s.store.CreatePost(ctx, &Post{
		CommunityID: communityID,
		UserID:      viewerID(c),
		Content:     content,
		ImageURL:    strings.TrimSpace(req.Image),
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "post": feedPost(post)})
}

// DeletePost handles DELETE /posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.store.DeletePost(c.UserContext(), id, viewerID(c)); err != nil {
		return storeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error { return s.setPostLike(c, true) }

// UnlikePost handles POST /posts/:id/unlike
func (s *Server) UnlikePost(c *fiber.Ctx) error { return s.setPostLike(c, false) }

func (s *Server) setPostLike(c *fiber.Ctx, liked bool) error {
	id, ok := parseID(c, "id")
	if !ok || !actingAs(c, bodyUser(c)) {
		return nil
	}
	count, err := s.store.SetPostLike(c.UserContext(), id, viewerID(c), liked)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "liked": liked, "likes": count})
}

// GetComments handles GET /posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	comments, err := s.store.Comments(c.UserContext(), id, viewerID(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"comments": mapEach(comments, commentRecord)})
}

// CreateComment handles POST /posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		UserID  string `json:"userId"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Invalid request body")
	}
	if !actingAs(c, req.UserID) {
		return nil
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Comment cannot be empty")
	}

	ctx := c.UserContext()
	if err := s.store.EnsureUser(ctx, &User{ID: viewerID(c), CreatedAt: s.now().UTC()}); err != nil {
		return storeError(c, err)
	}
	comment, err := s.store.CreateComment(ctx, &Comment{
		PostID:    id,
		UserID:    viewerID(c),
		Content:   content,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": commentRecord(comment)})
}

// LikeComment handles POST /comments/:id/like
func (s *Server) LikeComment(c *fiber.Ctx) error { return s.setCommentLike(c, true) }

// UnlikeComment handles POST /comments/:id/unlike
func (s *Server) UnlikeComment(c *fiber.Ctx) error { return s.setCommentLike(c, false) }

func (s *Server) setCommentLike(c *fiber.Ctx, liked bool) error {
	id, ok := parseID(c, "id")
	if !ok || !actingAs(c, bodyUser(c)) {
		return nil
	}
	count, err := s.store.SetCommentLike(c.UserContext(), id, viewerID(c), liked)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"ok": 1, "isLiked": liked, "likeCount": count})
}

// GetCommunities handles GET /communities
func (s *Server) GetCommunities(c *fiber.Ctx) error {
	communities, err := s.store.Communities(c.UserContext(), viewerID(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"communities": mapEach(communities, communityRecord)})
}

// GetJoinedCommunities handles GET /communities/joined
func (s *Server) GetJoinedCommunities(c *fiber.Ctx) error {
	communities, err := s.store.JoinedCommunities(c.UserContext(), viewerID(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(mapEach(communities, joinedRecord))
}

// JoinCommunity handles POST /communities/:id/join
func (s *Server) JoinCommunity(c *fiber.Ctx) error { return s.setMembership(c, true) }

// LeaveCommunity handles POST /communities/:id/leave
func (s *Server) LeaveCommunity(c *fiber.Ctx) error { return s.setMembership(c, false) }

func (s *Server) setMembership(c *fiber.Ctx, joined bool) error {
	id, ok := parseID(c, "id")
	if !ok || !actingAs(c, bodyUser(c)) {
		return nil
	}
	count, err := s.store.SetMembership(c.UserContext(), id, viewerID(c), joined)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "joined": joined, "memberCount": count})
}

// bodyUser reads the optional userId from a mutation body.
func bodyUser(c *fiber.Ctx) string {
	var req struct {
		UserID string `json:"userId"`
	}
	if len(c.Body()) == 0 {
		return ""
	}
	_ = c.BodyParser(&req)
	return req.UserID
}

// achievementKey validates a catalog (category, milestone) pair, writing a 400 on failure.
func (s *Server) achievementKey(c *fiber.Ctx, category string, milestone int) bool {
	if !s.catalog.HasCategory(category) {
		_ = respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Unknown category")
		return false
	}
	if _, ok := s.catalog.Tier(milestone); !ok {
		_ = respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Unknown milestone")
		return false
	}
	return true
}

// GetProgress handles GET /achievements/users/:userId/progress/:category
func (s *Server) GetProgress(c *fiber.Ctx) error {
	category := c.Params("category")
	if !s.catalog.HasCategory(category) {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Unknown category")
	}
	n, err := s.store.CompletedGoals(c.UserContext(), viewerID(c), category)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"progress": fiber.Map{"category": category, "completed_goals": n}})
}

// RecordGoal handles POST /achievements/users/:userId/goals
func (s *Server) RecordGoal(c *fiber.Ctx) error {
	var req struct {
		Category string `json:"category"`
		Title    string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Invalid request body")
	}
	if !s.catalog.HasCategory(req.Category) {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Unknown category")
	}

	ctx := c.UserContext()
	if err := s.store.EnsureUser(ctx, &User{ID: viewerID(c), CreatedAt: s.now().UTC()}); err != nil {
		return storeError(c, err)
	}
	n, err := s.store.RecordGoal(ctx, &GoalCompletion{
		UserID:    viewerID(c),
		Category:  req.Category,
		Title:     strings.TrimSpace(req.Title),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "completedGoals": n})
}

// GetAchievements handles GET /achievements/users/:userId/achievements
func (s *Server) GetAchievements(c *fiber.Ctx) error {
	unlocked, err := s.store.Achievements(c.UserContext(), viewerID(c))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"achievements": mapEach(unlocked, achievementRecord)})
}

// GetAchievement handles GET /achievements/users/:userId/achievements/:category/:milestone
func (s *Server) GetAchievement(c *fiber.Ctx) error {
	milestone, err := c.ParamsInt("milestone")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Invalid milestone")
	}
	category := c.Params("category")
	if !s.achievementKey(c, category, milestone) {
		return nil
	}
	a, err := s.store.Achievement(c.UserContext(), viewerID(c), category, milestone)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"achievement": achievementRecord(a)})
}

// UnlockAchievement handles POST /achievements/users/:userId/achievements/unlock.
// A milestone the user has not reached answers 200 with success false.
func (s *Server) UnlockAchievement(c *fiber.Ctx) error {
	var req models.UnlockRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Invalid request body")
	}
	if !s.achievementKey(c, req.Category, req.Milestone) {
		return nil
	}

	ctx := c.UserContext()
	completed, err := s.store.CompletedGoals(ctx, viewerID(c), req.Category)
	if err != nil {
		return storeError(c, err)
	}
	if completed < req.Milestone {
		return c.JSON(fiber.Map{"success": false, "message": "milestone not reached"})
	}

	def := s.catalog.Achievement(req.Category, req.Milestone)
	a := &UnlockedAchievement{
		UserID:         viewerID(c),
		Category:       req.Category,
		Milestone:      req.Milestone,
		Title:          def.Title,
		Description:    def.Description,
		CompletedGoals: completed,
		UnlockedAt:     s.now().UTC(),
	}
	created, err := s.store.Unlock(ctx, a)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":         true,
		"alreadyUnlocked": !created,
		"achievement":     achievementRecord(*a),
	})
}

// GrantReward handles POST /achievements/users/:userId/rewards. Amounts come
// from the catalog; a repeated grant answers 200 with duplicate set.
func (s *Server) GrantReward(c *fiber.Ctx) error {
	var req models.RewardGrant
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, models.CodeValidation, "Invalid request body")
	}
	if !s.achievementKey(c, req.Category, req.Milestone) {
		return nil
	}

	ctx := c.UserContext()
	if _, err := s.store.Achievement(ctx, viewerID(c), req.Category, req.Milestone); err != nil {
		if errors.Is(err, ErrNotFound) {
			return respondError(c, fiber.StatusConflict, models.CodeValidation, "Achievement is not unlocked")
		}
		return storeError(c, err)
	}

	reward := s.catalog.Reward(req.Milestone)
	created, err := s.store.GrantReward(ctx, &RewardEntry{
		UserID:     viewerID(c),
		Category:   req.Category,
		Milestone:  req.Milestone,
		Coins:      reward.Coins,
		Experience: reward.Experience,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return storeError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"success": true, "duplicate": !created, "reward": reward})
}
