// Package notifications delivers goal-completion and achievement events to
// whatever renders them, and paces achievement announcements.
package notifications

import (
	"context"
	"sync"
	"time"

	"questline/internal/models"
)

// Event types.
const (
	EventCompletion  = "goal_completed"
	EventAchievement = "achievement_unlocked"
)

// Completion describes a finished goal.
type Completion struct {
	UserID         string `json:"userId"`
	Category       string `json:"category"`
	GoalTitle      string `json:"goalTitle,omitempty"`
	CompletedGoals int    `json:"completedGoals"`
}

// Event is one notification as delivered to a surface's consumer.
type Event struct {
	Type        string              `json:"type"`
	UserID      string              `json:"userId"`
	Completion  *Completion         `json:"completion,omitempty"`
	Achievement *models.Achievement `json:"achievement,omitempty"`
	At          time.Time           `json:"at"`

	dismissal *dismissal
}

// Dismiss acknowledges a completion event. Safe to call more than once and
// a no-op on achievement events.
func (e Event) Dismiss() {
	if e.dismissal != nil {
		e.dismissal.close()
	}
}

type dismissal struct {
	once sync.Once
	ch   chan struct{}
}

func newDismissal() *dismissal {
	return &dismissal{ch: make(chan struct{})}
}

func (d *dismissal) close() {
	d.once.Do(func() { close(d.ch) })
}

// Surface renders notifications. ShowCompletion returns a channel that is
// closed once the user dismisses the completion message.
type Surface interface {
	ShowCompletion(ctx context.Context, c Completion) (<-chan struct{}, error)
	ShowAchievement(ctx context.Context, userID string, a models.Achievement) error
}

// ChannelSurface hands events to an in-process consumer, such as a UI loop.
type ChannelSurface struct {
	events chan Event
	now    func() time.Time
}

// NewChannelSurface creates a surface whose event channel holds buffer events.
func NewChannelSurface(buffer int) *ChannelSurface {
	return &ChannelSurface{events: make(chan Event, buffer), now: time.Now}
}

// Events returns the channel consumers read from.
func (s *ChannelSurface) Events() <-chan Event {
	return s.events
}

func (s *ChannelSurface) ShowCompletion(ctx context.Context, c Completion) (<-chan struct{}, error) {
	d := newDismissal()
	ev := Event{Type: EventCompletion, UserID: c.UserID, Completion: &c, At: s.now(), dismissal: d}
	if err := s.push(ctx, ev); err != nil {
		return nil, err
	}
	return d.ch, nil
}

func (s *ChannelSurface) ShowAchievement(ctx context.Context, userID string, a models.Achievement) error {
	return s.push(ctx, Event{Type: EventAchievement, UserID: userID, Achievement: &a, At: s.now()})
}

func (s *ChannelSurface) push(ctx context.Context, ev Event) error {
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
