package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"questline/internal/models"
	"questline/internal/observability"

	"github.com/redis/go-redis/v9"
)

// UserChannel returns the Redis channel events for userID are published on.
func UserChannel(userID string) string {
	return fmt.Sprintf("notifications:user:%s", userID)
}

// DismissChannel returns the channel a renderer publishes to when the user
// dismisses a completion message.
func DismissChannel(userID string) string {
	return UserChannel(userID) + ":dismiss"
}

// RedisSurface publishes events as JSON to per-user Redis channels so an
// out-of-process renderer can show them.
type RedisSurface struct {
	rdb    *redis.Client
	now    func() time.Time
	logger *observability.ClientLogger
}

// NewRedisSurface creates a surface over rdb. A nil client drops every event
// and treats completions as dismissed immediately.
func NewRedisSurface(rdb *redis.Client) *RedisSurface {
	return &RedisSurface{rdb: rdb, now: time.Now, logger: observability.NewClientLogger("notifications")}
}

// ShowCompletion subscribes to the dismissal channel before publishing, so a
// fast renderer cannot dismiss before anyone listens.
func (s *RedisSurface) ShowCompletion(ctx context.Context, c Completion) (<-chan struct{}, error) {
	done := make(chan struct{})
	if s.rdb == nil {
		close(done)
		return done, nil
	}

	sub := s.rdb.Subscribe(ctx, DismissChannel(c.UserID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		observability.RedisErrorRate.WithLabelValues("subscribe").Inc()
		return nil, fmt.Errorf("subscribe dismissal: %w", err)
	}

	ev := Event{Type: EventCompletion, UserID: c.UserID, Completion: &c, At: s.now()}
	if err := s.publish(ctx, ev); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		defer func() { _ = sub.Close() }()
		select {
		case <-sub.Channel():
			close(done)
		case <-ctx.Done():
		}
	}()
	return done, nil
}

func (s *RedisSurface) ShowAchievement(ctx context.Context, userID string, a models.Achievement) error {
	if s.rdb == nil {
		return nil
	}
	return s.publish(ctx, Event{Type: EventAchievement, UserID: userID, Achievement: &a, At: s.now()})
}

func (s *RedisSurface) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.rdb.Publish(ctx, UserChannel(ev.UserID), string(payload)).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	s.logger.Debug(ctx, "notification published", map[string]interface{}{
		"type":    ev.Type,
		"user_id": ev.UserID,
	})
	return nil
}
