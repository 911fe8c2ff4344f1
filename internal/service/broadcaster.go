package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"election-core/internal/domain"
	"election-core/pkg/logger"
	"election-core/pkg/redis"
)

// Broadcaster mirrors election status into Redis so connected clients learn
// about phase changes without polling: a hash holding the latest full status
// for late joiners, and a pub/sub channel pushing every change. It is a
// cache of ElectionState, never authoritative; vote admission always
// re-reads the durable store.
type Broadcaster struct {
	redis  *redis.Client
	logger *logger.Logger
}

// NewBroadcaster creates a new status broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *logger.Logger) *Broadcaster {
	return &Broadcaster{
		redis:  redisClient,
		logger: logger,
	}
}

// Publish overwrites the mirrored status hash and pushes the full status to
// subscribers. Every message carries complete current status, not a diff, so
// a subscriber that misses an update catches up on the next one.
func (b *Broadcaster) Publish(ctx context.Context, status domain.BroadcastStatus) error {
	key := b.redis.KeyBuilder.KeyClassStatus(status.ClassID)

	fields := []interface{}{
		"class_id", status.ClassID,
		"voting_enabled", strconv.FormatBool(status.VotingEnabled),
		"results_visible", strconv.FormatBool(status.ResultsVisible),
		"phase", string(status.Phase),
		"start_at", formatInstant(status.StartAt),
		"end_at", formatInstant(status.EndAt),
		"last_updated", strconv.FormatInt(status.LastUpdated, 10),
	}
	if err := b.redis.HSet(ctx, key, fields...); err != nil {
		return err
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	channel := b.redis.KeyBuilder.KeyClassUpdates(status.ClassID)
	if err := b.redis.Publish(ctx, channel, payload); err != nil {
		return err
	}

	b.logger.WithFields(map[string]interface{}{
		"class_id": status.ClassID,
		"phase":    status.Phase,
	}).Debug("Broadcast status published")
	return nil
}

// Current returns the mirrored status for a class, or nil if nothing has
// been published since the last clear.
func (b *Broadcaster) Current(ctx context.Context, classID string) (*domain.BroadcastStatus, error) {
	key := b.redis.KeyBuilder.KeyClassStatus(classID)
	fields, err := b.redis.HGetAll(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	status := &domain.BroadcastStatus{
		ClassID:        fields["class_id"],
		VotingEnabled:  fields["voting_enabled"] == "true",
		ResultsVisible: fields["results_visible"] == "true",
		Phase:          domain.Phase(fields["phase"]),
	}
	status.StartAt = parseInstant(fields["start_at"])
	status.EndAt = parseInstant(fields["end_at"])
	if v, err := strconv.ParseInt(fields["last_updated"], 10, 64); err == nil {
		status.LastUpdated = v
	}

	return status, nil
}

// Clear removes the mirrored status for a class
func (b *Broadcaster) Clear(ctx context.Context, classID string) error {
	return b.redis.Delete(ctx, b.redis.KeyBuilder.KeyClassStatus(classID))
}

// Subscribe streams status updates for a class. The returned cancel func
// must be called to release the subscription. Delivery is at-most-once per
// change; missed updates are recovered by the next full-status message.
func (b *Broadcaster) Subscribe(ctx context.Context, classID string) (<-chan domain.BroadcastStatus, func()) {
	channel := b.redis.KeyBuilder.KeyClassUpdates(classID)
	pubsub := b.redis.Subscribe(ctx, channel)

	out := make(chan domain.BroadcastStatus, 8)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var status domain.BroadcastStatus
				if err := json.Unmarshal([]byte(msg.Payload), &status); err != nil {
					b.logger.WithError(err).Warn("Dropping malformed status message")
					continue
				}
				select {
				case out <- status:
				default:
					// Slow subscriber: drop. The next update carries full
					// status, so nothing diverges permanently.
					b.logger.WithField("class_id", classID).Debug("Subscriber lagging, dropped update")
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = pubsub.Close()
	}
	return out, cancel
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseInstant(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
