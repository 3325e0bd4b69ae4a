package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tienda-labs/backend-tienda/internal/lock"
)

// Worker executes webhook delivery tasks under a distributed lock so two
// asynq workers never push the same delivery at once.
type Worker struct {
	Deliverer *Deliverer
	Locker    lock.Locker
	LockTTL   time.Duration
}

// ProcessTask implements asynq.Handler for TaskDeliverEvent tasks.
func (w Worker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if w.Deliverer == nil {
		return errors.New("notify worker: deliverer not configured")
	}
	deliveryID := strings.TrimSpace(string(task.Payload()))
	if deliveryID == "" {
		return nil
	}
	ttl := w.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return w.Locker.WithLock(ctx, "lock:delivery:"+deliveryID, ttl, func(ctx context.Context) error {
		return w.Deliverer.DeliverByID(ctx, deliveryID)
	})
}
