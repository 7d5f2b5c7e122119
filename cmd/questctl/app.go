package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"questline/internal/achievements"
	"questline/internal/cache"
	"questline/internal/config"
	"questline/internal/featureflags"
	"questline/internal/models"
	"questline/internal/notifications"
	"questline/internal/observability"
	"questline/internal/repository"
	"questline/internal/service"
	"questline/internal/state"
	"questline/internal/transport"
)

// app is one CLI session: a signed-in (or anonymous) viewer and the
// services acting on its behalf.
type app struct {
	cfg    *config.Config
	viewer models.Viewer
	out    io.Writer

	feed         *service.FeedService
	posts        *service.PostService
	comments     *service.CommentService
	communities  *service.CommunityService
	achievements *service.AchievementService
	flow         *service.GoalCompletionFlow
	goals        repository.GoalRepository
	flags        *featureflags.Manager

	closers []func(context.Context) error
}

// globalOpts are the persistent flags; non-empty values override config.
type globalOpts struct {
	baseURL  string
	token    string
	userID   string
	logLevel string
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newApp wires config → transport → repositories → services.
func newApp(ctx context.Context, opts globalOpts, out io.Writer) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.APIBaseURL = strings.TrimRight(opts.baseURL, "/")
	}
	if opts.token != "" {
		cfg.APIToken = opts.token
	}
	if opts.userID != "" {
		cfg.UserID = opts.userID
	}

	// stdout carries the JSON results; logs go to stderr.
	observability.SetGlobalLogger(observability.NewLoggerTo(os.Stderr, cfg.Env, parseLevel(opts.logLevel)))

	a := &app{cfg: cfg, viewer: models.SignedIn(cfg.UserID), out: out}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "questctl",
		ServiceVersion: "dev",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
		Writer:         os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	catalog, err := achievements.Load(cfg.AchievementCatalog)
	if err != nil {
		return nil, err
	}

	client := transport.NewClient(cfg.APIBaseURL,
		transport.WithTokenSource(transport.StaticToken(cfg.APIToken)),
		transport.WithTimeouts(transport.Timeouts{
			Read:   cfg.ReadTimeout(),
			Write:  cfg.WriteTimeout(),
			Upload: cfg.UploadTimeout(),
		}),
	)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	a.flags = flags
	store := state.NewStore()
	mutator := service.NewMutator(flags)
	postRepo := repository.NewPostRepository(client)
	communityRepo := repository.NewCommunityRepository(client)

	a.feed = service.NewFeedService(postRepo, communityRepo, store, flags, service.FeedOptions{
		FallbackConcurrency: cfg.FeedFallbackConcurrency,
		FallbackBudget:      cfg.FeedFallbackBudget(),
	})
	a.posts = service.NewPostService(postRepo, store, mutator)
	a.comments = service.NewCommentService(repository.NewCommentRepository(client), store, mutator)
	a.communities = service.NewCommunityService(communityRepo, store, mutator)
	a.achievements = service.NewAchievementService(
		repository.NewAchievementRepository(client),
		repository.NewRewardRepository(client),
		catalog,
		store,
	)
	a.goals = repository.NewGoalRepository(client)

	surface, err := a.surface(ctx)
	if err != nil {
		return nil, err
	}
	a.flow = service.NewGoalCompletionFlow(a.achievements,
		notifications.NewAnnouncer(surface, cfg.AchievementStagger(),
			notifications.WithDismissTimeout(cfg.AchievementDismissTimeout())), flags)
	return a, nil
}

// surface publishes to Redis when REDIS_URL is set. Otherwise notifications
// are written to stderr as they arrive and completions dismiss themselves.
func (a *app) surface(ctx context.Context) (notifications.Surface, error) {
	if a.cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		return notifications.NewRedisSurface(rdb), nil
	}

	ch := notifications.NewChannelSurface(16)
	go func() {
		enc := json.NewEncoder(os.Stderr)
		for ev := range ch.Events() {
			_ = enc.Encode(ev)
			ev.Dismiss()
		}
	}()
	return ch, nil
}

// close releases everything newApp opened, newest first.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			observability.GlobalLogger.Warn("shutdown failed", slog.String("error", err.Error()))
		}
	}
}

// requireViewer fails early for commands that need an identity.
func (a *app) requireViewer() (string, error) {
	userID, ok := a.viewer.UserID()
	if !ok {
		return "", errors.New("USER_ID is not set; pass --user or set USER_ID")
	}
	return userID, nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
