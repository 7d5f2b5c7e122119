package service

import (
	"context"
	"sort"
	"time"

	"questline/internal/featureflags"
	"questline/internal/models"
	"questline/internal/observability"
	"questline/internal/repository"
	"questline/internal/state"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Feed resolution paths, as recorded in metrics.
const (
	FeedPathAnonymous = "anonymous"
	FeedPathNoJoined  = "no_joined"
	FeedPathPrimary   = "primary"
	FeedPathFallback  = "fallback"
)

// FeedOptions tunes the per-community fallback.
type FeedOptions struct {
	// FallbackConcurrency bounds concurrent per-community fetches. 1 fetches
	// sequentially.
	FallbackConcurrency int
	// FallbackBudget bounds the whole fallback; zero means no bound beyond
	// the per-request timeouts.
	FallbackBudget time.Duration
	// AssemblyTimeout bounds a shared assembly, which runs detached from any
	// one caller's context. Defaults to 30s.
	AssemblyTimeout time.Duration
}

type FeedService struct {
	postRepo      repository.PostRepository
	communityRepo repository.CommunityRepository
	store         *state.Store
	flags         *featureflags.Manager
	opts          FeedOptions
	group         singleflight.Group
	logger        *observability.ClientLogger
}

func NewFeedService(
	postRepo repository.PostRepository,
	communityRepo repository.CommunityRepository,
	store *state.Store,
	flags *featureflags.Manager,
	opts FeedOptions,
) *FeedService {
	if opts.FallbackConcurrency < 1 {
		opts.FallbackConcurrency = 1
	}
	if opts.AssemblyTimeout <= 0 {
		opts.AssemblyTimeout = 30 * time.Second
	}
	return &FeedService{
		postRepo:      postRepo,
		communityRepo: communityRepo,
		store:         store,
		flags:         flags,
		opts:          opts,
		logger:        observability.NewClientLogger("feed"),
	}
}

// Assemble builds the viewer's feed: the aggregated feed endpoint first, and
// per-community posts for every joined community when that fails or comes
// back empty. The result is deduplicated by id and sorted newest first. It
// never fails; anonymous viewers and viewers with no communities get an
// empty feed without any feed request. Concurrent calls for one viewer share
// a single assembly; a caller that gives up gets an empty feed while the
// others still receive the shared result.
func (s *FeedService) Assemble(ctx context.Context, viewer models.Viewer) []models.Post {
	userID, ok := viewer.UserID()
	if !ok {
		observability.RecordFeedPath(FeedPathAnonymous)
		return []models.Post{}
	}

	ch := s.group.DoChan(userID, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.AssemblyTimeout)
		defer cancel()
		return s.assemble(shared, userID), nil
	})
	select {
	case res := <-ch:
		shared := res.Val.([]models.Post)
		out := make([]models.Post, len(shared))
		copy(out, shared)
		return out
	case <-ctx.Done():
		return []models.Post{}
	}
}

func (s *FeedService) assemble(ctx context.Context, userID string) []models.Post {
	span, ctx := observability.StartSpan(ctx, "feed.assemble", attribute.String("user.id", userID))
	defer span.End()

	joined, err := s.communityRepo.Joined(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "resolve joined communities failed", map[string]interface{}{"error": err.Error()})
		joined = nil
	}
	s.store.Communities.Set(state.Joined, joined)
	if len(joined) == 0 {
		observability.RecordFeedPath(FeedPathNoJoined)
		span.AddAttributes(attribute.String("feed.path", FeedPathNoJoined))
		s.store.Posts.Set(state.Feed, nil)
		return []models.Post{}
	}

	allowed := make(map[string]bool, len(joined))
	for _, c := range joined {
		allowed[c.ID] = true
	}

	path := FeedPathPrimary
	var posts []models.Post
	if s.flags.EnabledByDefault(featureflags.FeedPrimary, userID) {
		primary, err := s.postRepo.Feed(ctx, userID)
		if err != nil {
			s.logger.Warn(ctx, "primary feed failed, falling back", map[string]interface{}{"error": err.Error()})
		}
		posts = visible(primary, allowed)
	}
	if len(posts) == 0 {
		path = FeedPathFallback
		posts = s.fallback(ctx, userID, joined)
	}

	posts = sortNewestFirst(dedupe(posts))
	s.store.Posts.Set(state.Feed, posts)

	observability.RecordFeedPath(path)
	span.AddAttributes(
		attribute.String("feed.path", path),
		attribute.Int("feed.posts", len(posts)),
		attribute.Int("feed.communities", len(joined)),
	)
	return posts
}

// fallback fetches each joined community's posts. A failing community is
// logged and skipped. Results keep joined-community order.
func (s *FeedService) fallback(ctx context.Context, userID string, joined []models.Community) []models.Post {
	if s.opts.FallbackBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FallbackBudget)
		defer cancel()
	}

	results := make([][]models.Post, len(joined))
	var g errgroup.Group
	g.SetLimit(s.opts.FallbackConcurrency)
	for i, c := range joined {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			posts, err := s.postRepo.ByCommunity(ctx, c.ID, userID)
			if err != nil {
				s.logger.Warn(ctx, "community posts failed, skipping", map[string]interface{}{
					"community_id": c.ID,
					"error":        err.Error(),
				})
				return nil
			}
			for j := range posts {
				if posts[j].CommunityID == "" {
					posts[j].CommunityID = c.ID
				}
				if posts[j].CommunityName == "" {
					posts[j].CommunityName = c.Name
				}
			}
			results[i] = posts
			return nil
		})
	}
	_ = g.Wait()

	var out []models.Post
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// CommunityPosts returns one community's posts. Failures yield an empty list.
func (s *FeedService) CommunityPosts(ctx context.Context, viewer models.Viewer, communityID string) []models.Post {
	if communityID == "" {
		return []models.Post{}
	}
	userID, _ := viewer.UserID()
	posts, err := s.postRepo.ByCommunity(ctx, communityID, userID)
	if err != nil {
		s.logger.Warn(ctx, "community posts failed", map[string]interface{}{
			"community_id": communityID,
			"error":        err.Error(),
		})
		return []models.Post{}
	}
	posts = dedupe(posts)
	s.store.Posts.Set(state.CommunityPosts(communityID), posts)
	return posts
}

// AllPosts returns the global post list. Failures yield an empty list.
func (s *FeedService) AllPosts(ctx context.Context, viewer models.Viewer) []models.Post {
	userID, _ := viewer.UserID()
	posts, err := s.postRepo.List(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "list posts failed", map[string]interface{}{"error": err.Error()})
		return []models.Post{}
	}
	posts = dedupe(posts)
	s.store.Posts.Set(state.All, posts)
	return posts
}

// visible drops posts from communities the viewer has not joined. Posts
// without a community are kept.
func visible(posts []models.Post, allowed map[string]bool) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.CommunityID != "" && !allowed[p.CommunityID] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// dedupe keeps the first occurrence of each id.
func dedupe(posts []models.Post) []models.Post {
	seen := make(map[string]bool, len(posts))
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func sortNewestFirst(posts []models.Post) []models.Post {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}
