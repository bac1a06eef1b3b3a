package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SessionEventType labels live session events for the monitor stream.
type SessionEventType string

const (
	EventCheckIn   SessionEventType = "checkin"
	EventOverride  SessionEventType = "override"
	EventRefresh   SessionEventType = "refresh"
	EventTerminate SessionEventType = "terminate"
)

// SessionEvent is published on every successful session mutation so
// attached monitors can update without polling.
type SessionEvent struct {
	Type         SessionEventType `json:"type"`
	SessionID    string           `json:"session_id"`
	StudentID    int              `json:"student_id,omitempty"`
	PresentCount int              `json:"present_count"`
	AbsentCount  int              `json:"absent_count"`
	At           time.Time        `json:"at"`
}

// OutOfRangePayload is what the notification worker consumes from the queue.
type OutOfRangePayload struct {
	StudentID int     `json:"student_id"`
	SessionID string  `json:"session_id"`
	Distance  float64 `json:"distance_m"`
	Allowed   float64 `json:"allowed_m"`
}

// Notifier fans out fire-and-forget side effects of the attendance engine.
// Failures are logged and swallowed: delivery never changes an outcome.
type Notifier interface {
	SessionEvent(ctx context.Context, evt SessionEvent)
	OutOfRange(ctx context.Context, studentID int, sessionID uuid.UUID, distance, allowed float64)
}

// RedisNotifier publishes session events on Pub/Sub and queues out-of-range
// alerts for the notification worker.
type RedisNotifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisNotifier creates a RedisNotifier.
func NewRedisNotifier(rdb *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		rdb: rdb,
		log: log.With().Str("component", "notifier").Logger(),
	}
}

// SessionEvent publishes the event on the session's monitor channel.
func (n *RedisNotifier) SessionEvent(ctx context.Context, evt SessionEvent) {
	payload, _ := json.Marshal(evt)
	channel := config.CacheKey.SessionEventChannel(evt.SessionID)
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		n.log.Warn().Err(err).Str("session_id", evt.SessionID).Msg("session event publish failed")
	}
}

// OutOfRange enqueues an alert for the notification worker.
func (n *RedisNotifier) OutOfRange(ctx context.Context, studentID int, sessionID uuid.UUID, distance, allowed float64) {
	payload, _ := json.Marshal(OutOfRangePayload{
		StudentID: studentID,
		SessionID: sessionID.String(),
		Distance:  distance,
		Allowed:   allowed,
	})
	if err := n.rdb.RPush(ctx, config.WorkerKey.NotificationsQueue, payload).Err(); err != nil {
		n.log.Warn().Err(err).
			Int("student_id", studentID).
			Msg("out-of-range notification enqueue failed")
	}
}

// NopNotifier discards everything. Used when redis is unavailable and in tests.
type NopNotifier struct{}

func (NopNotifier) SessionEvent(context.Context, SessionEvent)                   {}
func (NopNotifier) OutOfRange(context.Context, int, uuid.UUID, float64, float64) {}

var _ Notifier = (*RedisNotifier)(nil)
var _ Notifier = NopNotifier{}
