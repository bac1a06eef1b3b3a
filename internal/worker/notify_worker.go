package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const notifyPollTimeout = 1 * time.Second

// notificationStore is the persistence surface the worker needs.
// *repository.NotificationRepository satisfies it.
type notificationStore interface {
	Insert(ctx context.Context, n *model.Notification) error
}

// notifyQueue is the slice of the redis API the worker consumes.
type notifyQueue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// NotifyWorker consumes notifications_queue and persists alerts as
// notification rows so students see them on their next poll.
type NotifyWorker struct {
	notifications notificationStore
	queue         notifyQueue
	log           zerolog.Logger
}

// NewNotifyWorker creates a new NotifyWorker.
func NewNotifyWorker(notifications notificationStore, queue notifyQueue, log zerolog.Logger) *NotifyWorker {
	return &NotifyWorker{
		notifications: notifications,
		queue:         queue,
		log:           log.With().Str("component", "notify_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.log.Info().Msg("NotifyWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("NotifyWorker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *NotifyWorker) processNext(ctx context.Context) {
	item, err := w.queue.BLPop(ctx, notifyPollTimeout, config.WorkerKey.NotificationsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(item) < 2 {
		return
	}
	w.process(ctx, item[1])
}

func (w *NotifyWorker) process(ctx context.Context, raw string) {
	var p service.OutOfRangePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return
	}

	n := &model.Notification{
		UserID: p.StudentID,
		Kind:   model.NotificationKindAlert,
		Title:  "Check-in out of range",
		Body: fmt.Sprintf("Your check-in for session %s was %.0fm from the classroom (allowed %.0fm).",
			p.SessionID, p.Distance, p.Allowed),
	}

	if err := w.notifications.Insert(ctx, n); err != nil {
		w.log.Error().Err(err).Msg("Insert failed, requeueing")
		if err := w.queue.RPush(ctx, config.WorkerKey.NotificationsQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Str("payload", raw).Msg("Requeue failed, alert dropped")
		}
	}
}
