package main

import (
	"context"
	"strings"
	"time"

	"questline/internal/models"
	"questline/internal/service"

	"github.com/spf13/cobra"
)

// session is set by the root command's pre-run and closed by its post-run.
var session *app

func rootCmd() *cobra.Command {
	var opts globalOpts

	cmd := &cobra.Command{
		Use:           "questctl",
		Short:         "Drive the questline client core from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			session = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if session != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				session.close(ctx)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "Backend base URL (overrides API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token (overrides API_TOKEN)")
	cmd.PersistentFlags().StringVar(&opts.userID, "user", "", "Viewer user id (overrides USER_ID)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		feedCmd(),
		postsCmd(),
		postCmd(),
		deleteCmd(),
		likeCmd(),
		commentsCmd(),
		commentCmd(),
		communitiesCmd(),
		joinCmd(),
		completeCmd(),
		achievementsCmd(),
		flagsCmd(),
	)
	return cmd
}

// mutationView is MutationResult with the error flattened for JSON.
type mutationView struct {
	Outcome service.Outcome `json:"outcome"`
	Active  bool            `json:"active"`
	Count   int             `json:"count"`
	Error   string          `json:"error,omitempty"`
}

func viewOf(res service.MutationResult) mutationView {
	v := mutationView{Outcome: res.Outcome, Active: res.Active, Count: res.Count}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

func feedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Assemble the viewer's feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return session.print(session.feed.Assemble(cmd.Context(), session.viewer))
		},
	}
}

func postsCmd() *cobra.Command {
	var communityID string
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List all posts, or one community's posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if communityID != "" {
				return session.print(session.feed.CommunityPosts(cmd.Context(), session.viewer, communityID))
			}
			return session.print(session.feed.AllPosts(cmd.Context(), session.viewer))
		},
	}
	cmd.Flags().StringVar(&communityID, "community", "", "Community id")
	return cmd
}

func postCmd() *cobra.Command {
	var image string
	cmd := &cobra.Command{
		Use:   "post <communityID> <content>",
		Short: "Publish a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := models.NewPost{CommunityID: args[0], Content: strings.Join(args[1:], " ")}
			if image != "" {
				in.Image = &image
			}
			post, err := session.posts.Create(cmd.Context(), session.viewer, in)
			if err != nil {
				return err
			}
			return session.print(post)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "Image URL")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <postID>",
		Short: "Delete one of the viewer's posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session.feed.AllPosts(cmd.Context(), session.viewer)
			res, err := session.posts.Delete(cmd.Context(), session.viewer, args[0])
			if err != nil {
				return err
			}
			return session.print(viewOf(res))
		},
	}
}

func likeCmd() *cobra.Command {
	var commentOf string
	cmd := &cobra.Command{
		Use:   "like <id>",
		Short: "Toggle the viewer's like on a post, or on a comment with --post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				res service.MutationResult
				err error
			)
			if commentOf != "" {
				session.comments.List(ctx, session.viewer, commentOf)
				res, err = session.comments.ToggleLike(ctx, session.viewer, args[0])
			} else {
				// The toggle direction comes from local state, so load it first.
				session.feed.AllPosts(ctx, session.viewer)
				res, err = session.posts.ToggleLike(ctx, session.viewer, args[0])
			}
			if err != nil {
				return err
			}
			return session.print(viewOf(res))
		},
	}
	cmd.Flags().StringVar(&commentOf, "post", "", "Treat <id> as a comment on this post")
	return cmd
}

func commentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comments <postID>",
		Short: "List a post's comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.print(session.comments.List(cmd.Context(), session.viewer, args[0]))
		},
	}
}

func commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <postID> <text>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := session.comments.Create(cmd.Context(), session.viewer, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return session.print(c)
		},
	}
}

func communitiesCmd() *cobra.Command {
	var joined bool
	cmd := &cobra.Command{
		Use:   "communities",
		Short: "List communities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if joined {
				return session.print(session.communities.Joined(cmd.Context(), session.viewer))
			}
			return session.print(session.communities.List(cmd.Context(), session.viewer))
		},
	}
	cmd.Flags().BoolVar(&joined, "joined", false, "Only communities the viewer has joined")
	return cmd
}

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <communityID>",
		Short: "Toggle the viewer's membership in a community",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session.communities.List(ctx, session.viewer)
			res, err := session.communities.ToggleMembership(ctx, session.viewer, args[0])
			if err != nil {
				return err
			}
			return session.print(viewOf(res))
		},
	}
}

func completeCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "complete <category>",
		Short: "Record a finished goal and unlock any milestones it reaches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := session.requireViewer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			completed, err := session.goals.Complete(ctx, userID, args[0], title)
			if err != nil {
				return err
			}
			unlocked, err := session.flow.OnGoalCompleted(ctx, session.viewer, args[0], title)
			if err != nil {
				return err
			}
			return session.print(map[string]any{
				"category":       args[0],
				"completedGoals": completed,
				"unlocked":       unlocked,
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Goal title")
	return cmd
}

func achievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "List every achievement with the viewer's unlock state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return session.print(session.achievements.List(cmd.Context(), session.viewer))
		},
	}
}

func flagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flags",
		Short: "Show feature flags as evaluated for the viewer",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			userID, _ := session.viewer.UserID()
			return session.print(session.flags.Snapshot(userID))
		},
	}
}
