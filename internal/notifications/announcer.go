package notifications

import (
	"context"
	"time"

	"questline/internal/models"
	"questline/internal/observability"
)

// DefaultStagger is the pause between consecutive achievement announcements.
const DefaultStagger = time.Second

// Announcer shows a goal completion and then, once it is dismissed, each
// newly unlocked achievement with a fixed pause in between. Achievements
// never overlap the completion message.
type Announcer struct {
	surface Surface
	stagger time.Duration
	// dismissWait bounds the wait for dismissal; zero waits until ctx ends.
	dismissWait time.Duration
	after   func(time.Duration) <-chan time.Time
	logger  *observability.ClientLogger
}

// AnnouncerOption configures an Announcer.
type AnnouncerOption func(*Announcer)

// WithClock replaces time.After, for tests.
func WithClock(after func(time.Duration) <-chan time.Time) AnnouncerOption {
	return func(a *Announcer) {
		a.after = after
	}
}

// WithDismissTimeout stops waiting for a dismissal after d and shows the
// achievements anyway.
func WithDismissTimeout(d time.Duration) AnnouncerOption {
	return func(a *Announcer) {
		a.dismissWait = d
	}
}

// NewAnnouncer creates an announcer. A non-positive stagger uses DefaultStagger.
func NewAnnouncer(surface Surface, stagger time.Duration, opts ...AnnouncerOption) *Announcer {
	if stagger <= 0 {
		stagger = DefaultStagger
	}
	a := &Announcer{
		surface: surface,
		stagger: stagger,
		after:   time.After,
		logger:  observability.NewClientLogger("announcer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Announce shows c, and if unlocked is non-empty waits for dismissal (or
// the dismiss timeout) before showing each achievement in order. It returns
// early only when ctx ends; a failed achievement display is logged and the
// sequence continues.
func (a *Announcer) Announce(ctx context.Context, c Completion, unlocked []models.Achievement) error {
	// The surface's dismissal listener lives only as long as waitCtx.
	var (
		waitCtx context.Context
		cancel  context.CancelFunc
	)
	if a.dismissWait > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, a.dismissWait)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	dismissed, err := a.surface.ShowCompletion(waitCtx, c)
	if err != nil {
		return err
	}
	if len(unlocked) == 0 {
		return nil
	}

	select {
	case <-dismissed:
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Info(ctx, "completion not dismissed in time, continuing", map[string]interface{}{
			"user_id":    c.UserID,
			"timeout_ms": a.dismissWait.Milliseconds(),
		})
	}
	cancel()

	for i, ach := range unlocked {
		if i > 0 {
			select {
			case <-a.after(a.stagger):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := a.surface.ShowAchievement(ctx, c.UserID, ach); err != nil {
			a.logger.LogError(ctx, err, "show_achievement", map[string]interface{}{
				"user_id":   c.UserID,
				"category":  ach.Category,
				"milestone": ach.Milestone,
			})
		}
	}
	return nil
}
