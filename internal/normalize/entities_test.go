package normalize

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"questline/internal/models"
	"questline/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost_KeySpellings(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want models.Post
	}{
		{
			name: "canonical camelCase",
			raw: Raw{
				"id": "p1", "communityId": "c1", "communityName": "Runners",
				"author":    map[string]any{"userId": "u1", "userName": "Ada", "userAvatar": "a.png"},
				"content":   "hello", "image": "i.png",
				"createdAt": "2024-03-01T10:00:00Z",
				"likeCount": 5, "commentCount": 2, "viewerHasLiked": true,
			},
			want: models.Post{
				ID: "p1", CommunityID: "c1", CommunityName: "Runners",
				Author:  models.Author{UserID: "u1", UserName: "Ada", UserAvatar: "a.png"},
				Content: "hello", Image: strPtr("i.png"),
				CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
				LikeCount: 5, CommentCount: 2, ViewerHasLiked: true,
			},
		},
		{
			name: "snake_case flat author",
			raw: Raw{
				"_id": "p2", "community_id": "c9", "user_id": "u2", "user_name": "Bo",
				"text": "hi", "image_url": "", "created_at": float64(1700000000),
				"likes_count": "7", "comments_count": float64(1), "is_liked": "1",
			},
			want: models.Post{
				ID: "p2", CommunityID: "c9",
				Author:    models.Author{UserID: "u2", UserName: "Bo"},
				Content:   "hi",
				CreatedAt: time.Unix(1700000000, 0).UTC(),
				LikeCount: 7, CommentCount: 1, ViewerHasLiked: true,
			},
		},
		{
			name: "nested community and list counters",
			raw: Raw{
				"postId":    float64(42),
				"community": map[string]any{"id": "c3", "name": "Readers"},
				"user":      map[string]any{"id": "u3", "name": "Cy"},
				"body":      "x",
				"likes":     []any{"u1", "u2"},
				"comments":  []any{map[string]any{"id": "k1"}},
				"liked":     float64(0),
				"timestamp": map[string]any{"_seconds": float64(1700000000), "_nanoseconds": float64(5)},
			},
			want: models.Post{
				ID: "42", CommunityID: "c3", CommunityName: "Readers",
				Author:    models.Author{UserID: "u3", UserName: "Cy"},
				Content:   "x",
				CreatedAt: time.Unix(1700000000, 5).UTC(),
				LikeCount: 2, CommentCount: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Post(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPost_Defaults(t *testing.T) {
	got, err := Post(Raw{"id": "p1", "likeCount": float64(-3)})
	require.NoError(t, err)

	assert.Equal(t, models.AnonymousUserName, got.Author.UserName)
	assert.Zero(t, got.LikeCount)
	assert.Zero(t, got.CommentCount)
	assert.False(t, got.ViewerHasLiked)
	assert.Nil(t, got.Image)
	assert.True(t, got.CreatedAt.IsZero())
}

func TestPost_AuthorAsString(t *testing.T) {
	got, err := Post(Raw{"id": "p1", "author": "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.Author.UserName)
}

func TestPost_MissingIDRejected(t *testing.T) {
	_, err := Post(Raw{"content": "orphan"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestPost_RejectIsLogged(t *testing.T) {
	prev := observability.GlobalLogger
	defer observability.SetGlobalLogger(prev)
	var buf bytes.Buffer
	observability.SetGlobalLogger(observability.NewLoggerTo(&buf, "production", slog.LevelDebug))

	_, err := Post(Raw{"content": "orphan"})
	require.ErrorIs(t, err, ErrRejected)

	out := buf.String()
	assert.Contains(t, out, `"msg":"normalizer rejected record"`)
	assert.Contains(t, out, `"component":"normalize"`)
	assert.Contains(t, out, `"entity":"post"`)
}

func TestBooleanEncodings(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{float64(1), true},
		{float64(0), false},
		{"1", true},
		{"0", false},
		{"true", true},
		{"false", false},
		{"yes", true},
		{"", false},
		{nil, false},
	}
	for _, tt := range tests {
		got, err := Post(Raw{"id": "p", "isLiked": tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.ViewerHasLiked, "input %#v", tt.in)
	}
}

func TestTimeFormats(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	inputs := []any{
		"2024-03-01T10:00:00Z",
		"2024-03-01T12:00:00+02:00",
		float64(want.Unix()),
		float64(want.UnixMilli()),
		"1709287200",
		map[string]any{"seconds": float64(want.Unix())},
	}
	for _, in := range inputs {
		got, err := Comment(Raw{"id": "k", "created_at": in})
		require.NoError(t, err)
		assert.True(t, want.Equal(got.CreatedAt), "input %#v gave %v", in, got.CreatedAt)
		assert.Equal(t, time.UTC, got.CreatedAt.Location())
	}

	got, err := Comment(Raw{"id": "k", "createdAt": "not a date"})
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.IsZero())
}

func TestCommunity_Defaults(t *testing.T) {
	got, err := Community(Raw{"community_id": "c1", "members": float64(12), "isMember": "true"})
	require.NoError(t, err)

	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, models.UnnamedCommunityName, got.Name)
	assert.Equal(t, 12, got.MemberCount)
	assert.True(t, got.ViewerHasJoined)

	_, err = Community(Raw{"name": "no id"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestAchievement(t *testing.T) {
	got, err := Achievement(Raw{
		"category":        "Learning",
		"goal_count":      "7",
		"unlocked_at":     "2024-03-01T10:00:00Z",
		"completed_goals": float64(8),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AchievementKey{Category: "Learning", Milestone: 7}, got.Key())
	assert.True(t, got.Unlocked, "unlockedAt implies unlocked")
	assert.Equal(t, 8, got.CompletedGoalsAtUnlock)
	require.NotNil(t, got.UnlockedAt)

	got, err = Achievement(Raw{"category": "Health", "milestone": float64(14), "isUnlocked": float64(0)})
	require.NoError(t, err)
	assert.False(t, got.Unlocked)
	assert.Nil(t, got.UnlockedAt)

	_, err = Achievement(Raw{"category": "Health"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestAcks(t *testing.T) {
	ack := LikeAck(Raw{})
	assert.True(t, ack.Success, "missing success flag means success")
	assert.Nil(t, ack.State)
	assert.Nil(t, ack.Count)

	ack = LikeAck(Raw{"success": false, "message": "already liked"})
	assert.False(t, ack.Success)
	assert.Equal(t, "already liked", ack.Message)

	ack = LikeAck(Raw{"ok": "1", "liked": true, "likesCount": float64(6)})
	assert.True(t, ack.Success)
	require.NotNil(t, ack.State)
	assert.True(t, *ack.State)
	require.NotNil(t, ack.Count)
	assert.Equal(t, 6, *ack.Count)

	ack = MembershipAck(Raw{"isMember": float64(0), "member_count": float64(3)})
	require.NotNil(t, ack.State)
	assert.False(t, *ack.State)
	assert.Equal(t, 3, *ack.Count)
}

func TestUnlockResult(t *testing.T) {
	res := UnlockResult(Raw{
		"success":          true,
		"already_unlocked": float64(1),
		"achievement":      map[string]any{"category": "Learning", "milestone": float64(7), "unlocked": true},
	})
	assert.True(t, res.Success)
	assert.True(t, res.AlreadyUnlocked)
	require.NotNil(t, res.Achievement)
	assert.Equal(t, 7, res.Achievement.Milestone)
}

func TestCompletedGoals(t *testing.T) {
	n, err := CompletedGoals(Raw{"completed_goals": "8"})
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	_, err = CompletedGoals(Raw{"other": 1})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestBatchesDropRejects(t *testing.T) {
	posts := Posts([]Raw{{"id": "a"}, {"content": "no id"}, {"id": "b"}})
	require.Len(t, posts, 2)
	assert.Equal(t, "a", posts[0].ID)
	assert.Equal(t, "b", posts[1].ID)

	assert.Empty(t, Communities(nil))
	assert.Len(t, Achievements([]Raw{{"category": "x"}}), 0)
	assert.Len(t, Comments([]Raw{{"id": "k"}}), 1)
}

func TestIdempotence(t *testing.T) {
	unlockedAt := time.Date(2024, 3, 1, 10, 0, 0, 123000000, time.UTC)
	entities := []struct {
		name  string
		value any
		again func(Raw) (any, error)
	}{
		{
			name: "post",
			value: models.Post{
				ID: "p1", CommunityID: "c1", CommunityName: "Runners",
				Author:    models.Author{UserID: "u1", UserName: "Ada"},
				Content:   "hi", Image: strPtr("i.png"),
				CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
				LikeCount: 3, CommentCount: 1, ViewerHasLiked: true,
			},
			again: func(r Raw) (any, error) { return Post(r) },
		},
		{
			name: "post with zero values",
			value: models.Post{
				ID: "p2", Author: models.Author{UserName: models.AnonymousUserName},
			},
			again: func(r Raw) (any, error) { return Post(r) },
		},
		{
			name: "comment",
			value: models.Comment{
				ID: "k1", PostID: "p1", Author: models.Author{UserID: "u2", UserName: "Bo", UserAvatar: "b.png"},
				Content: "nice", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), LikeCount: 4,
			},
			again: func(r Raw) (any, error) { return Comment(r) },
		},
		{
			name: "community",
			value: models.Community{
				ID: "c1", Name: "Runners", Description: "d", Category: "Fitness",
				ImageURL: "c.png", MemberCount: 10, PostCount: 3, ViewerHasJoined: true,
			},
			again: func(r Raw) (any, error) { return Community(r) },
		},
		{
			name: "achievement",
			value: models.Achievement{
				Category: "Learning", Milestone: 7, Title: "t", Description: "d",
				Unlocked: true, CompletedGoalsAtUnlock: 8, UnlockedAt: &unlockedAt,
			},
			again: func(r Raw) (any, error) { return Achievement(r) },
		},
	}

	for _, tt := range entities {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Canonical(tt.value)
			require.NoError(t, err)
			got, err := tt.again(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestDecodeList_Envelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":"a"},{"id":"b"}]`, 2},
		{"data envelope", `{"data":[{"id":"a"}]}`, 1},
		{"named envelope", `{"posts":[{"id":"a"},{"id":"b"},{"id":"c"}]}`, 3},
		{"nested data", `{"data":{"items":[{"id":"a"}]}}`, 1},
		{"non-objects skipped", `[{"id":"a"},1,"x",null]`, 1},
		{"no list", `{"message":"ok"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeList([]byte(tt.body))
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := DecodeList([]byte(`{`))
	assert.Error(t, err)
}

func TestDecodeObject(t *testing.T) {
	raw, err := DecodeObject(nil)
	require.NoError(t, err)
	assert.Empty(t, raw)

	raw, err = DecodeObject([]byte(`{"data":{"id":"p1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "p1", raw.str("id"))

	raw, err = DecodeObject([]byte(`{"post":{"id":"p2"}}`), "post")
	require.NoError(t, err)
	assert.Equal(t, "p2", raw.str("id"))
}

func TestDecodeEnvelope_FlagsBesidePayload(t *testing.T) {
	t.Parallel()

	env, err := DecodeEnvelope([]byte(`{"success":false,"message":"post locked","data":{"postId":"p1","liked":true,"likes":4}}`))
	require.NoError(t, err)
	assert.Equal(t, "data", env.Key)
	assert.True(t, env.Refused())
	ack := LikeAck(env.Merged())
	assert.False(t, ack.Success)
	assert.Equal(t, "post locked", ack.Message)
	require.NotNil(t, ack.Count)
	assert.Equal(t, 4, *ack.Count)

	env, err = DecodeEnvelope([]byte(`{"success":true,"alreadyUnlocked":true,"data":{"category":"Learning","milestone":7,"unlocked":true}}`))
	require.NoError(t, err)
	assert.False(t, env.Refused())
	res := UnlockResult(env.Merged())
	assert.True(t, res.Success)
	assert.True(t, res.AlreadyUnlocked)
	require.NotNil(t, res.Achievement)
	assert.Equal(t, 7, res.Achievement.Milestone)

	env, err = DecodeEnvelope([]byte(`{"ok":1,"isLiked":0}`))
	require.NoError(t, err)
	assert.Equal(t, env.Outer, env.Merged())
	assert.False(t, env.Refused())
}

func strPtr(s string) *string { return &s }
