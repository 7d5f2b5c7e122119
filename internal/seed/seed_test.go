package seed

import (
	"testing"

	"questline/internal/database"
	"questline/internal/mockapi"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(mockapi.Schema()...))
	return db
}

func count(t *testing.T, db *gorm.DB, model interface{}) int {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return int(n)
}

func TestCommunities_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	first, err := Communities(db)
	require.NoError(t, err)
	second, err := Communities(db)
	require.NoError(t, err)

	assert.Equal(t, len(BuiltInCommunities), count(t, db, &mockapi.Community{}))
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, first[i].Name)
		assert.NotZero(t, second[i].ID)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Couch to 5K":      "couch-to-5k",
		"The Reading Room": "the-reading-room",
		"  Iron  Club":     "iron-club",
	}
	for in, want := range tests {
		assert.Equal(t, want, slug(in), in)
	}
}

func TestSeeder_Run(t *testing.T) {
	db := setupTestDB(t)

	s := NewSeeder(db, Options{
		Users:               5,
		PostsPerCommunity:   2,
		MaxCommentsPerPost:  3,
		MaxGoalsPerCategory: 4,
		RandSeed:            42,
		DevUserID:           "dev-user",
	})
	sum, err := s.Run()
	require.NoError(t, err)

	require.Len(t, sum.UserIDs, 6)
	assert.Equal(t, "dev-user", sum.UserIDs[0])
	assert.Equal(t, 6, count(t, db, &mockapi.User{}))
	assert.Equal(t, len(BuiltInCommunities), sum.Communities)
	assert.Equal(t, sum.Posts, count(t, db, &mockapi.Post{}))
	assert.Equal(t, sum.Comments, count(t, db, &mockapi.Comment{}))
	assert.Equal(t, sum.Likes, count(t, db, &mockapi.PostLike{}))
	assert.Equal(t, sum.Goals, count(t, db, &mockapi.GoalCompletion{}))
	assert.Positive(t, sum.Posts)
	assert.Zero(t, count(t, db, &mockapi.UnlockedAchievement{}))

	// the dev user gets a feed
	feed, err := mockapi.NewStore(db).Feed(t.Context(), "dev-user")
	require.NoError(t, err)
	assert.NotEmpty(t, feed)

	var orphans int64
	require.NoError(t, db.Model(&mockapi.Post{}).
		Where("user_id NOT IN (?)", db.Model(&mockapi.Membership{}).Select("user_id").Where("community_id = posts.community_id")).
		Count(&orphans).Error)
	assert.Zero(t, orphans, "every post author is a member of its community")
}

func TestSeeder_Clean(t *testing.T) {
	db := setupTestDB(t)
	opts := Options{Users: 3, PostsPerCommunity: 1, RandSeed: 7}

	_, err := NewSeeder(db, opts).Run()
	require.NoError(t, err)
	opts.Clean = true
	sum, err := NewSeeder(db, opts).Run()
	require.NoError(t, err)

	assert.Equal(t, 3, count(t, db, &mockapi.User{}))
	assert.Equal(t, sum.Posts, count(t, db, &mockapi.Post{}))
}
