package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"questline/internal/models"
	"questline/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]any
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) at(i int) recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func (r *recorder) last() recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// backend serves canned bodies keyed by "METHOD path" and records calls.
func backend(t *testing.T, routes map[string]string) (*transport.Client, *recorder) {
	t.Helper()
	calls := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.EscapedPath(), query: r.URL.RawQuery}
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		calls.mu.Lock()
		calls.calls = append(calls.calls, rec)
		calls.mu.Unlock()

		body, ok := routes[r.Method+" "+r.URL.EscapedPath()]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return transport.NewClient(srv.URL, transport.WithTokenSource(transport.StaticToken("tok"))), calls
}

func TestPostRepository_Feed(t *testing.T) {
	client, calls := backend(t, map[string]string{
		"GET /posts/feed": `{"data":[{"_id":"p1","user_name":"Ada","likes_count":"3","is_liked":1},{"content":"no id"}]}`,
	})

	posts, err := NewPostRepository(client).Feed(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, 3, posts[0].LikeCount)
	assert.True(t, posts[0].ViewerHasLiked)
	assert.Equal(t, "userId=u1", calls.at(0).query)
}

func TestPostRepository_ByCommunityEscapesID(t *testing.T) {
	client, calls := backend(t, map[string]string{
		"GET /posts/community/c%201": `[{"id":"p1"}]`,
	})

	posts, err := NewPostRepository(client).ByCommunity(context.Background(), "c 1", "u1")
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.Equal(t, "/posts/community/c%201", calls.at(0).path)
}

func TestPostRepository_LikeUnlike(t *testing.T) {
	client, calls := backend(t, map[string]string{
		"POST /posts/p1/like":   `{"success":true,"liked":true,"likeCount":6}`,
		"POST /posts/p1/unlike": `{"success":false,"message":"not liked"}`,
	})
	repo := NewPostRepository(client)

	ack, err := repo.Like(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.True(t, ack.Success)
	require.NotNil(t, ack.Count)
	assert.Equal(t, 6, *ack.Count)
	assert.Equal(t, "u1", calls.at(0).body["userId"])

	ack, err = repo.Unlike(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.False(t, ack.Success)
	assert.Equal(t, "not liked", ack.Message)
}

func TestPostRepository_CreateAndDelete(t *testing.T) {
	client, calls := backend(t, map[string]string{
		"POST /posts":      `{"post":{"id":42,"community_id":"c1","content":"hi"}}`,
		"DELETE /posts/p9": ``,
	})
	repo := NewPostRepository(client)

	img := "x.png"
	post, err := repo.Create(context.Background(), "u1", models.NewPost{CommunityID: "c1", Content: "hi", Image: &img})
	require.NoError(t, err)
	assert.Equal(t, "42", post.ID)
	assert.Equal(t, "c1", post.CommunityID)
	assert.Equal(t, "x.png", calls.at(0).body["image"])

	require.NoError(t, repo.Delete(context.Background(), "p9", "u1"))

	err = repo.Delete(context.Background(), "missing", "u1")
	assert.True(t, models.IsNotFound(err))
}

func TestPostRepository_CreateUnusableEcho(t *testing.T) {
	client, _ := backend(t, map[string]string{"POST /posts": `{"ok":true}`})

	_, err := NewPostRepository(client).Create(context.Background(), "u1", models.NewPost{Content: "hi"})
	require.Error(t, err)
	assert.Equal(t, models.CodeMalformed, models.ErrorCode(err))
	assert.False(t, models.IsIndeterminate(err))
}

func TestCommentRepository(t *testing.T) {
	client, _ := backend(t, map[string]string{
		"GET /posts/p1/comments":  `{"comments":[{"id":"k1","text":"a"},{"id":"k2","post_id":"p1"}]}`,
		"POST /posts/p1/comments": `{"comment":{"id":"k3","content":"new"}}`,
		"POST /comments/k1/like":  `{}`,
	})
	repo := NewCommentRepository(client)

	comments, err := repo.List(context.Background(), "p1", "u1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "p1", comments[0].PostID)

	c, err := repo.Create(context.Background(), "p1", "u1", "new")
	require.NoError(t, err)
	assert.Equal(t, "k3", c.ID)
	assert.Equal(t, "p1", c.PostID)

	ack, err := repo.Like(context.Background(), "k1", "u1")
	require.NoError(t, err)
	assert.True(t, ack.Success)
}

func TestCommunityRepository(t *testing.T) {
	client, _ := backend(t, map[string]string{
		"GET /communities":          `[{"id":"c1","name":"Runners","member_count":"4"},{"id":"c2"}]`,
		"GET /communities/joined":   `{"communities":[{"community_id":"c1"}]}`,
		"POST /communities/c1/join": `{"success":1,"isMember":1,"membersCount":5}`,
	})
	repo := NewCommunityRepository(client)

	all, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.UnnamedCommunityName, all[1].Name)

	joined, err := repo.Joined(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.True(t, joined[0].ViewerHasJoined)

	ack, err := repo.Join(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.True(t, ack.Success)
	require.NotNil(t, ack.State)
	assert.True(t, *ack.State)

	_, err = repo.Leave(context.Background(), "c1", "u1")
	assert.True(t, models.IsExplicitFailure(err))
}

func TestAchievementRepository(t *testing.T) {
	client, calls := backend(t, map[string]string{
		"GET /achievements/users/u1/progress/Learning":       `{"completed_goals":8}`,
		"GET /achievements/users/u1/achievements":            `{"achievements":[{"category":"Learning","milestone":7,"is_unlocked":1}]}`,
		"GET /achievements/users/u1/achievements/Learning/7": `{"data":{"category":"Learning","goal_count":7,"unlocked":true}}`,
		"POST /achievements/users/u1/achievements/unlock":   `{"success":true,"already_unlocked":0,"achievement":{"category":"Learning","milestone":7,"unlocked":1}}`,
		"POST /achievements/users/u1/rewards":                `{"success":true}`,
	})
	repo := NewAchievementRepository(client)
	ctx := context.Background()

	n, err := repo.Progress(ctx, "u1", "Learning")
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	list, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Unlocked)

	a, err := repo.Get(ctx, "u1", "Learning", 7)
	require.NoError(t, err)
	assert.True(t, a.Unlocked)

	_, err = repo.Get(ctx, "u1", "Learning", 14)
	assert.True(t, models.IsNotFound(err))

	res, err := repo.Unlock(ctx, "u1", models.UnlockRequest{Category: "Learning", Milestone: 7, CompletedGoals: 8})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.AlreadyUnlocked)
	require.NotNil(t, res.Achievement)

	unlockCall := calls.last()
	assert.Equal(t, "Learning", unlockCall.body["category"])
	assert.Equal(t, float64(7), unlockCall.body["milestone"])
	assert.Equal(t, float64(8), unlockCall.body["completedGoals"])

	err = NewRewardRepository(client).Grant(ctx, "u1", models.RewardGrant{
		Category: "Learning", Milestone: 7, Reward: models.Reward{Coins: 50, Experience: 100},
	})
	require.NoError(t, err)
	grant := calls.last()
	assert.Equal(t, float64(50), grant.body["coins"])
	assert.Equal(t, float64(100), grant.body["experience"])
}

func TestRepositories_FlagsOutsideDataEnvelope(t *testing.T) {
	client, _ := backend(t, map[string]string{
		"POST /posts/p1/like":                             `{"success":false,"data":{"postId":"p1"}}`,
		"POST /communities/c1/join":                       `{"ok":0,"data":{"id":"c1","joined":true}}`,
		"POST /achievements/users/u1/achievements/unlock": `{"success":true,"alreadyUnlocked":true,"data":{"category":"Learning","milestone":7,"unlocked":true}}`,
	})
	ctx := context.Background()

	ack, err := NewPostRepository(client).Like(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.False(t, ack.Success)

	ack, err = NewCommunityRepository(client).Join(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.False(t, ack.Success)

	res, err := NewAchievementRepository(client).Unlock(ctx, "u1", models.UnlockRequest{Category: "Learning", Milestone: 7, CompletedGoals: 8})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.AlreadyUnlocked)
	require.NotNil(t, res.Achievement)
	assert.Equal(t, "Learning", res.Achievement.Category)
}

func TestAchievementRepository_UnlockFlagsInsideData(t *testing.T) {
	client, _ := backend(t, map[string]string{
		"POST /achievements/users/u1/achievements/unlock": `{"data":{"success":true,"alreadyUnlocked":true,"achievement":{"category":"Health","milestone":14}}}`,
	})

	res, err := NewAchievementRepository(client).Unlock(context.Background(), "u1", models.UnlockRequest{Category: "Health", Milestone: 14, CompletedGoals: 14})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.AlreadyUnlocked)
	require.NotNil(t, res.Achievement)
	assert.Equal(t, 14, res.Achievement.Milestone)
}

func TestAchievementRepository_ProgressMalformed(t *testing.T) {
	client, _ := backend(t, map[string]string{
		"GET /achievements/users/u1/progress/Health": `{"status":"ok"}`,
	})

	_, err := NewAchievementRepository(client).Progress(context.Background(), "u1", "Health")
	assert.Equal(t, models.CodeMalformed, models.ErrorCode(err))
}

func TestGoalRepository_Complete(t *testing.T) {
	client, calls := backend(t, map[string]string{
		"POST /achievements/users/u1/goals": `{"success":true,"completedGoals":"8"}`,
	})
	repo := NewGoalRepository(client)

	n, err := repo.Complete(context.Background(), "u1", "Learning", "Read a chapter")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "Read a chapter", calls.last().body["title"])

	_, err = repo.Complete(context.Background(), "u1", " ", "x")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}
