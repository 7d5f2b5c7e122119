package mockapi

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the viewer may not touch a row.
	ErrForbidden = errors.New("forbidden")
)

// Store defines the mock backend's data operations.
type Store interface {
	EnsureUser(ctx context.Context, user *User) error

	Feed(ctx context.Context, viewerID string) ([]PostView, error)
	PostsByCommunity(ctx context.Context, communityID uint, viewerID string) ([]PostView, error)
	Posts(ctx context.Context, viewerID string) ([]PostView, error)
	CreatePost(ctx context.Context, post *Post) (PostView, error)
	DeletePost(ctx context.Context, postID uint, viewerID string) error
	SetPostLike(ctx context.Context, postID uint, viewerID string, liked bool) (int, error)

	Comments(ctx context.Context, postID uint, viewerID string) ([]CommentView, error)
	CreateComment(ctx context.Context, comment *Comment) (CommentView, error)
	SetCommentLike(ctx context.Context, commentID uint, viewerID string, liked bool) (int, error)

	Communities(ctx context.Context, viewerID string) ([]CommunityView, error)
	JoinedCommunities(ctx context.Context, viewerID string) ([]CommunityView, error)
	SetMembership(ctx context.Context, communityID uint, viewerID string, joined bool) (int, error)

	RecordGoal(ctx context.Context, goal *GoalCompletion) (int, error)
	CompletedGoals(ctx context.Context, userID, category string) (int, error)
	Achievements(ctx context.Context, userID string) ([]UnlockedAchievement, error)
	Achievement(ctx context.Context, userID, category string, milestone int) (UnlockedAchievement, error)
	// Unlock inserts a once; created is false when it already existed, in
	// which case a is overwritten with the stored row.
	Unlock(ctx context.Context, a *UnlockedAchievement) (created bool, err error)
	GrantReward(ctx context.Context, entry *RewardEntry) (created bool, err error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) EnsureUser(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error
}

func (s *gormStore) Feed(ctx context.Context, viewerID string) ([]PostView, error) {
	joined := s.db.Model(&Membership{}).Select("community_id").Where("user_id = ?", viewerID)
	return s.postViews(ctx, viewerID, func(q *gorm.DB) *gorm.DB {
		return q.Where("community_id IN (?)", joined)
	})
}

func (s *gormStore) PostsByCommunity(ctx context.Context, communityID uint, viewerID string) ([]PostView, error) {
	return s.postViews(ctx, viewerID, func(q *gorm.DB) *gorm.DB {
		return q.Where("community_id = ?", communityID)
	})
}

func (s *gormStore) Posts(ctx context.Context, viewerID string) ([]PostView, error) {
	return s.postViews(ctx, viewerID, func(q *gorm.DB) *gorm.DB { return q })
}

// postViews loads posts newest first and attaches counters in two grouped
// queries rather than one per post.
func (s *gormStore) postViews(ctx context.Context, viewerID string, scope func(*gorm.DB) *gorm.DB) ([]PostView, error) {
	var posts []Post
	err := scope(s.db.WithContext(ctx).Model(&Post{})).
		Preload("User").
		Preload("Community").
		Order("created_at DESC").
		Order("id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return []PostView{}, nil
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	likes, err := s.countBy(ctx, &PostLike{}, "post_id", ids)
	if err != nil {
		return nil, err
	}
	comments, err := s.countBy(ctx, &Comment{}, "post_id", ids)
	if err != nil {
		return nil, err
	}
	liked, err := s.viewerSet(ctx, &PostLike{}, "post_id", viewerID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]PostView, len(posts))
	for i, p := range posts {
		out[i] = PostView{Post: p, LikeCount: likes[p.ID], CommentCount: comments[p.ID], Liked: liked[p.ID]}
	}
	return out, nil
}

type countRow struct {
	ID uint
	N  int
}

func (s *gormStore) countBy(ctx context.Context, model interface{}, column string, ids []uint) (map[uint]int, error) {
	var rows []countRow
	err := s.db.WithContext(ctx).Model(model).
		Select(column+" AS id, COUNT(*) AS n").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int, len(rows))
	for _, r := range rows {
		out[r.ID] = r.N
	}
	return out, nil
}

func (s *gormStore) viewerSet(ctx context.Context, model interface{}, column, viewerID string, ids []uint) (map[uint]bool, error) {
	out := map[uint]bool{}
	if viewerID == "" {
		return out, nil
	}
	var hits []uint
	err := s.db.WithContext(ctx).Model(model).
		Where("user_id = ? AND "+column+" IN ?", viewerID, ids).
		Pluck(column, &hits).Error
	if err != nil {
		return nil, err
	}
	for _, id := range hits {
		out[id] = true
	}
	return out, nil
}

func (s *gormStore) CreatePost(ctx context.Context, post *Post) (PostView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var community Community
		if err := tx.First(&community, post.CommunityID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Omit("User", "Community").Create(post).Error; err != nil {
			return err
		}
		return tx.Preload("User").Preload("Community").First(post, post.ID).Error
	})
	if err != nil {
		return PostView{}, err
	}
	return PostView{Post: *post}, nil
}

func (s *gormStore) DeletePost(ctx context.Context, postID uint, viewerID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		if err := tx.First(&post, postID).Error; err != nil {
			return notFound(err)
		}
		if post.UserID != viewerID {
			return ErrForbidden
		}
		if err := tx.Where("post_id = ?", postID).Delete(&PostLike{}).Error; err != nil {
			return err
		}
		commentIDs := tx.Model(&Comment{}).Select("id").Where("post_id = ?", postID)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Post{}, postID).Error
	})
}

func (s *gormStore) SetPostLike(ctx context.Context, postID uint, viewerID string, liked bool) (int, error) {
	return s.toggle(ctx, &Post{}, postID, &PostLike{UserID: viewerID, PostID: postID, CreatedAt: time.Now().UTC()},
		&PostLike{}, "post_id", viewerID, liked)
}

func (s *gormStore) SetCommentLike(ctx context.Context, commentID uint, viewerID string, liked bool) (int, error) {
	return s.toggle(ctx, &Comment{}, commentID, &CommentLike{UserID: viewerID, CommentID: commentID, CreatedAt: time.Now().UTC()},
		&CommentLike{}, "comment_id", viewerID, liked)
}

// toggle inserts or deletes a (user, parent) edge row and returns the
// parent's new edge count. Repeating either direction is a no-op.
func (s *gormStore) toggle(ctx context.Context, parent interface{}, parentID uint, edge, edgeModel interface{}, column, viewerID string, on bool) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(parent, parentID).Error; err != nil {
			return notFound(err)
		}
		if on {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("user_id = ? AND "+column+" = ?", viewerID, parentID).Delete(edgeModel).Error; err != nil {
				return err
			}
		}
		return tx.Model(edgeModel).Where(column+" = ?", parentID).Count(&count).Error
	})
	return int(count), err
}

func (s *gormStore) Comments(ctx context.Context, postID uint, viewerID string) ([]CommentView, error) {
	if err := s.db.WithContext(ctx).First(&Post{}, postID).Error; err != nil {
		return nil, notFound(err)
	}
	var comments []Comment
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return []CommentView{}, nil
	}

	ids := make([]uint, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	likes, err := s.countBy(ctx, &CommentLike{}, "comment_id", ids)
	if err != nil {
		return nil, err
	}
	liked, err := s.viewerSet(ctx, &CommentLike{}, "comment_id", viewerID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CommentView, len(comments))
	for i, c := range comments {
		out[i] = CommentView{Comment: c, LikeCount: likes[c.ID], Liked: liked[c.ID]}
	}
	return out, nil
}

func (s *gormStore) CreateComment(ctx context.Context, comment *Comment) (CommentView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Post{}, comment.PostID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Omit("User").Create(comment).Error; err != nil {
			return err
		}
		return tx.Preload("User").First(comment, comment.ID).Error
	})
	if err != nil {
		return CommentView{}, err
	}
	return CommentView{Comment: *comment}, nil
}

func (s *gormStore) Communities(ctx context.Context, viewerID string) ([]CommunityView, error) {
	return s.communityViews(ctx, viewerID, func(q *gorm.DB) *gorm.DB { return q })
}

func (s *gormStore) JoinedCommunities(ctx context.Context, viewerID string) ([]CommunityView, error) {
	joined := s.db.Model(&Membership{}).Select("community_id").Where("user_id = ?", viewerID)
	return s.communityViews(ctx, viewerID, func(q *gorm.DB) *gorm.DB {
		return q.Where("id IN (?)", joined)
	})
}

func (s *gormStore) communityViews(ctx context.Context, viewerID string, scope func(*gorm.DB) *gorm.DB) ([]CommunityView, error) {
	var communities []Community
	if err := scope(s.db.WithContext(ctx).Model(&Community{})).Order("name ASC").Find(&communities).Error; err != nil {
		return nil, err
	}
	if len(communities) == 0 {
		return []CommunityView{}, nil
	}

	ids := make([]uint, len(communities))
	for i, c := range communities {
		ids[i] = c.ID
	}
	members, err := s.countBy(ctx, &Membership{}, "community_id", ids)
	if err != nil {
		return nil, err
	}
	posts, err := s.countBy(ctx, &Post{}, "community_id", ids)
	if err != nil {
		return nil, err
	}
	joined, err := s.viewerSet(ctx, &Membership{}, "community_id", viewerID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CommunityView, len(communities))
	for i, c := range communities {
		out[i] = CommunityView{Community: c, MemberCount: members[c.ID], PostCount: posts[c.ID], Joined: joined[c.ID]}
	}
	return out, nil
}

func (s *gormStore) SetMembership(ctx context.Context, communityID uint, viewerID string, joined bool) (int, error) {
	return s.toggle(ctx, &Community{}, communityID,
		&Membership{UserID: viewerID, CommunityID: communityID, CreatedAt: time.Now().UTC()},
		&Membership{}, "community_id", viewerID, joined)
}

func (s *gormStore) RecordGoal(ctx context.Context, goal *GoalCompletion) (int, error) {
	if err := s.db.WithContext(ctx).Create(goal).Error; err != nil {
		return 0, err
	}
	return s.CompletedGoals(ctx, goal.UserID, goal.Category)
}

func (s *gormStore) CompletedGoals(ctx context.Context, userID, category string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&GoalCompletion{}).
		Where("user_id = ? AND category = ?", userID, category).
		Count(&n).Error
	return int(n), err
}

func (s *gormStore) Achievements(ctx context.Context, userID string) ([]UnlockedAchievement, error) {
	var out []UnlockedAchievement
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("category ASC").
		Order("milestone ASC").
		Find(&out).Error
	return out, err
}

func (s *gormStore) Achievement(ctx context.Context, userID, category string, milestone int) (UnlockedAchievement, error) {
	var a UnlockedAchievement
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND milestone = ?", userID, category, milestone).
		First(&a).Error
	if err != nil {
		return UnlockedAchievement{}, notFound(err)
	}
	return a, nil
}

func (s *gormStore) Unlock(ctx context.Context, a *UnlockedAchievement) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(a)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	existing, err := s.Achievement(ctx, a.UserID, a.Category, a.Milestone)
	if err != nil {
		return false, err
	}
	*a = existing
	return false, nil
}

func (s *gormStore) GrantReward(ctx context.Context, entry *RewardEntry) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
