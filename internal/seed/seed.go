// Package seed fills the mock backend's database with demo data. It is meant
// for development and tests only.
package seed

import (
	"fmt"
	"log/slog"
	"time"

	"questline/internal/achievements"
	"questline/internal/mockapi"
	"questline/internal/observability"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options configures a seeding run. Zero values pick the defaults.
type Options struct {
	Users             int
	PostsPerCommunity int
	// MaxCommentsPerPost and MaxGoalsPerCategory are upper bounds; each
	// post and user draws a random count up to them.
	MaxCommentsPerPost  int
	MaxGoalsPerCategory int
	MaxDays             int
	// RandSeed makes content reproducible. Zero seeds from the clock.
	RandSeed int64
	Clean    bool
	// DevUserID, when set, is created alongside the generated users and
	// joined to the first few communities so a local client has a feed.
	DevUserID string
	Catalog   *achievements.Catalog
}

func (o *Options) defaults() {
	if o.Users <= 0 {
		o.Users = 12
	}
	if o.PostsPerCommunity <= 0 {
		o.PostsPerCommunity = 6
	}
	if o.MaxCommentsPerPost <= 0 {
		o.MaxCommentsPerPost = 4
	}
	if o.MaxGoalsPerCategory <= 0 {
		o.MaxGoalsPerCategory = 20
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 30
	}
	if o.RandSeed == 0 {
		o.RandSeed = time.Now().UnixNano()
	}
	if o.Catalog == nil {
		o.Catalog = achievements.Default()
	}
}

// Summary counts what a run created.
type Summary struct {
	UserIDs     []string
	Communities int
	Posts       int
	Comments    int
	Likes       int
	Goals       int
}

// Seeder writes demo data through GORM.
type Seeder struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	opts  Options
	now   time.Time
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	opts.defaults()
	return &Seeder{
		db:    db,
		faker: gofakeit.New(opts.RandSeed),
		opts:  opts,
		now:   time.Now().UTC(),
	}
}

// Run seeds communities, users, memberships, posts, engagement and goal
// history, in that order.
func (s *Seeder) Run() (Summary, error) {
	var sum Summary
	if s.opts.Clean {
		if err := ClearAll(s.db); err != nil {
			return sum, fmt.Errorf("clean: %w", err)
		}
	}

	communities, err := Communities(s.db)
	if err != nil {
		return sum, fmt.Errorf("communities: %w", err)
	}
	sum.Communities = len(communities)

	users, err := s.createUsers()
	if err != nil {
		return sum, fmt.Errorf("users: %w", err)
	}
	for _, u := range users {
		sum.UserIDs = append(sum.UserIDs, u.ID)
	}

	members, err := s.joinCommunities(users, communities)
	if err != nil {
		return sum, fmt.Errorf("memberships: %w", err)
	}

	posts, err := s.createPosts(communities, members)
	if err != nil {
		return sum, fmt.Errorf("posts: %w", err)
	}
	sum.Posts = len(posts)

	if sum.Comments, sum.Likes, err = s.createEngagement(posts, users); err != nil {
		return sum, fmt.Errorf("engagement: %w", err)
	}
	if sum.Goals, err = s.createGoals(users); err != nil {
		return sum, fmt.Errorf("goals: %w", err)
	}

	observability.GlobalLogger.Info("seed completed",
		slog.Int("users", len(sum.UserIDs)),
		slog.Int("communities", sum.Communities),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("likes", sum.Likes),
		slog.Int("goals", sum.Goals),
	)
	return sum, nil
}

// ClearAll deletes every row from every table, children first.
func ClearAll(db *gorm.DB) error {
	schema := mockapi.Schema()
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(schema) - 1; i >= 0; i-- {
		if err := all.Delete(schema[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) createUsers() ([]mockapi.User, error) {
	users := make([]mockapi.User, 0, s.opts.Users+1)
	if s.opts.DevUserID != "" {
		users = append(users, mockapi.User{
			ID:        s.opts.DevUserID,
			Username:  "Dev User",
			AvatarURL: "https://i.pravatar.cc/150?u=" + s.opts.DevUserID,
			CreatedAt: s.now,
		})
	}
	for i := 0; i < s.opts.Users; i++ {
		id := uuid.NewString()
		users = append(users, mockapi.User{
			ID:        id,
			Username:  s.faker.FirstName() + " " + s.faker.LastName(),
			AvatarURL: "https://i.pravatar.cc/150?u=" + id,
			CreatedAt: s.past(),
		})
	}
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&users, 100).Error
	return users, err
}

// joinCommunities gives each user one to four communities and returns the
// members of each community. The dev user joins the first three.
func (s *Seeder) joinCommunities(users []mockapi.User, communities []mockapi.Community) (map[uint][]string, error) {
	members := map[uint][]string{}
	var rows []mockapi.Membership
	for _, u := range users {
		picked := map[int]bool{}
		if u.ID == s.opts.DevUserID {
			for i := 0; i < 3 && i < len(communities); i++ {
				picked[i] = true
			}
		} else {
			for n := s.faker.Number(1, 4); n > 0; n-- {
				picked[s.faker.Number(0, len(communities)-1)] = true
			}
		}
		for i := range picked {
			c := communities[i]
			members[c.ID] = append(members[c.ID], u.ID)
			rows = append(rows, mockapi.Membership{UserID: u.ID, CommunityID: c.ID, CreatedAt: s.past()})
		}
	}
	if len(rows) == 0 {
		return members, nil
	}
	return members, s.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 200).Error
}

// createPosts writes PostsPerCommunity posts into every community that has
// members, each by one of its members.
func (s *Seeder) createPosts(communities []mockapi.Community, members map[uint][]string) ([]mockapi.Post, error) {
	var posts []mockapi.Post
	for _, c := range communities {
		authors := members[c.ID]
		if len(authors) == 0 {
			continue
		}
		for i := 0; i < s.opts.PostsPerCommunity; i++ {
			p := mockapi.Post{
				CommunityID: c.ID,
				UserID:      authors[s.faker.Number(0, len(authors)-1)],
				Content:     s.faker.Paragraph(1, s.faker.Number(1, 3), 12, " "),
				CreatedAt:   s.past(),
			}
			if s.faker.Number(1, 4) == 1 {
				p.ImageURL = "https://picsum.photos/seed/" + s.faker.UUID() + "/800/800"
			}
			posts = append(posts, p)
		}
	}
	if len(posts) == 0 {
		return posts, nil
	}
	err := s.db.Omit("User", "Community").CreateInBatches(&posts, 100).Error
	return posts, err
}

// createEngagement adds comments and likes from random users.
func (s *Seeder) createEngagement(posts []mockapi.Post, users []mockapi.User) (int, int, error) {
	var (
		comments []mockapi.Comment
		likes    []mockapi.PostLike
	)
	for _, p := range posts {
		for n := s.faker.Number(0, s.opts.MaxCommentsPerPost); n > 0; n-- {
			comments = append(comments, mockapi.Comment{
				PostID:    p.ID,
				UserID:    users[s.faker.Number(0, len(users)-1)].ID,
				Content:   s.faker.Sentence(s.faker.Number(4, 14)),
				CreatedAt: p.CreatedAt.Add(time.Duration(s.faker.Number(1, 600)) * time.Minute),
			})
		}
		for _, u := range users {
			if s.faker.Number(1, 3) == 1 {
				likes = append(likes, mockapi.PostLike{UserID: u.ID, PostID: p.ID, CreatedAt: p.CreatedAt})
			}
		}
	}
	if len(comments) > 0 {
		if err := s.db.Omit("User").CreateInBatches(&comments, 200).Error; err != nil {
			return 0, 0, err
		}
	}
	if len(likes) > 0 {
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&likes, 500).Error; err != nil {
			return 0, 0, err
		}
	}
	return len(comments), len(likes), nil
}

// createGoals records completed-goal history. Achievements are left for
// the client to unlock.
func (s *Seeder) createGoals(users []mockapi.User) (int, error) {
	var goals []mockapi.GoalCompletion
	for _, u := range users {
		for _, category := range s.opts.Catalog.Categories {
			for n := s.faker.Number(0, s.opts.MaxGoalsPerCategory); n > 0; n-- {
				goals = append(goals, mockapi.GoalCompletion{
					UserID:    u.ID,
					Category:  category,
					Title:     s.faker.HipsterSentence(3),
					CreatedAt: s.past(),
				})
			}
		}
	}
	if len(goals) == 0 {
		return 0, nil
	}
	return len(goals), s.db.CreateInBatches(&goals, 500).Error
}

// past returns a random instant within the last MaxDays.
func (s *Seeder) past() time.Time {
	back := time.Duration(s.faker.Number(0, s.opts.MaxDays*24*60)) * time.Minute
	return s.now.Add(-back)
}
