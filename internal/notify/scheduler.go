package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/events"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

// TaskDeliverEvent is the asynq task type for one webhook delivery.
const TaskDeliverEvent = "notify:deliver"

// QueueName is the asynq queue webhook deliveries run on.
const QueueName = "notify"

type schedulerQueries interface {
	InsertDelivery(ctx context.Context, eventID pgtype.UUID, target string) (pgtype.UUID, error)
}

// Scheduler fans one persisted event out to the configured webhook targets:
// a delivery row per target, plus an asynq task that the worker picks up.
// The delivery row survives a lost task, so nothing disappears silently.
type Scheduler struct {
	Q           schedulerQueries
	Client      *asynq.Client
	Targets     []string
	MaxAttempts int
}

// Schedule implements events.DeliveryScheduler.
func (s *Scheduler) Schedule(ctx context.Context, event events.Event) error {
	if s == nil || s.Q == nil || len(s.Targets) == 0 {
		return nil
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	var joined error
	for _, target := range s.Targets {
		deliveryID, err := s.Q.InsertDelivery(ctx, event.ID, target)
		if err != nil {
			joined = errors.Join(joined, fmt.Errorf("insert delivery for %s: %w", target, err))
			continue
		}
		if s.Client == nil {
			continue
		}
		id := store.UUIDString(deliveryID)
		task := asynq.NewTask(TaskDeliverEvent, []byte(id))
		_, err = s.Client.EnqueueContext(ctx, task,
			asynq.Queue(QueueName),
			asynq.TaskID(id),
			asynq.MaxRetry(maxAttempts-1),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			joined = errors.Join(joined, fmt.Errorf("enqueue delivery %s: %w", id, err))
		}
	}
	return joined
}
