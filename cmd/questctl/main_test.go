package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"questline/internal/config"
	"questline/internal/database"
	"questline/internal/mockapi"
	"questline/internal/service"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

const testSecret = "questctl-test-secret"

// backendURL starts an empty mock backend and returns its URL and a token
// for userID.
func backendURL(t *testing.T, userID string) (string, string) {
	t.Helper()
	db, err := database.Open(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(mockapi.Schema()...))
	require.NoError(t, db.Create(&mockapi.Community{Name: "Readers", Category: "Learning"}).Error)

	srv := mockapi.NewServer(&config.Config{JWTSecret: testSecret}, mockapi.NewStore(db), nil)
	ts := httptest.NewServer(adaptor.FiberApp(srv.App()))
	t.Cleanup(ts.Close)

	token, err := mockapi.MintToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return ts.URL, token
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.Bytes()
}

func TestQuestctl_AgainstMockBackend(t *testing.T) {
	url, token := backendURL(t, "alice")
	global := []string{"--base-url", url, "--token", token, "--user", "alice", "--log-level", "error"}

	var joined mutationView
	require.NoError(t, json.Unmarshal(run(t, append(global, "join", "1")...), &joined))
	assert.Equal(t, service.OutcomeConfirmed, joined.Outcome)
	assert.True(t, joined.Active)
	assert.Equal(t, 1, joined.Count)

	var post map[string]any
	require.NoError(t, json.Unmarshal(run(t, append(global, "post", "1", "finished", "chapter", "one")...), &post))
	assert.Equal(t, "finished chapter one", post["content"])

	var feed []map[string]any
	require.NoError(t, json.Unmarshal(run(t, append(global, "feed")...), &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "Readers", feed[0]["communityName"])

	var liked mutationView
	require.NoError(t, json.Unmarshal(run(t, append(global, "like", feed[0]["id"].(string))...), &liked))
	assert.Equal(t, service.OutcomeConfirmed, liked.Outcome)
	assert.Equal(t, 1, liked.Count)

	var completed map[string]any
	require.NoError(t, json.Unmarshal(run(t, append(global, "complete", "Learning", "--title", "read")...), &completed))
	assert.Equal(t, float64(1), completed["completedGoals"])
	assert.Empty(t, completed["unlocked"])
}

func TestQuestctl_CompleteNeedsViewer(t *testing.T) {
	url, token := backendURL(t, "alice")

	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--base-url", url, "--token", token, "--log-level", "error", "complete", "Learning"})
	assert.Error(t, cmd.Execute())
}

func TestViewOf(t *testing.T) {
	v := viewOf(service.MutationResult{Outcome: service.OutcomeRolledBack, Count: 5, Err: assert.AnError})
	assert.Equal(t, service.OutcomeRolledBack, v.Outcome)
	assert.Equal(t, 5, v.Count)
	assert.Equal(t, assert.AnError.Error(), v.Error)

	assert.Empty(t, viewOf(service.MutationResult{Outcome: service.OutcomeConfirmed}).Error)
}

func TestQuestctl_Flags(t *testing.T) {
	url, token := backendURL(t, "alice")
	t.Setenv("FEATURE_FLAGS", "strict_mutations=on,feed_primary=off")

	var flags map[string]bool
	require.NoError(t, json.Unmarshal(run(t, "--base-url", url, "--token", token, "--user", "alice", "--log-level", "error", "flags"), &flags))
	assert.True(t, flags["strict_mutations"])
	assert.False(t, flags["feed_primary"])
	assert.True(t, flags["achievement_toasts"])
}
