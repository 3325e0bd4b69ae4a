package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tienda-labs/backend-tienda/internal/app"
	"github.com/tienda-labs/backend-tienda/internal/config"
	"github.com/tienda-labs/backend-tienda/internal/lock"
	"github.com/tienda-labs/backend-tienda/internal/notify"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/resilience"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("service", "tienda-worker").Logger()

	obs.MustRegisterDomainMetrics("tienda", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := app.NewPool(initCtx, cfg, "tienda-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(initCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() { _ = redisClient.Close() }()

	st := store.New(pool)
	locker := lock.Locker{R: redisClient, RetryBackoff: 50 * time.Millisecond}

	deliverer := &notify.Deliverer{
		Q: st,
		HTTP: &resilience.HTTPClient{
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("notify").WithLogger(logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 2,
			Jitter:      0.2,
			Timeout:     10 * time.Second,
		},
		Secret:      cfg.NotifyWebhookSecret,
		MaxAttempts: cfg.NotifyMaxAttempts,
		Log:         logger,
	}
	worker := notify.Worker{
		Deliverer: deliverer,
		Locker:    locker,
		LockTTL:   30 * time.Second,
	}

	asynqOpt, err := app.AsynqRedisOpt(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis options")
	}
	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{notify.QueueName: 1},
		Logger:      asynqLogger{log: logger},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TaskDeliverEvent, worker.ProcessTask)

	go purgeExpiredCarts(ctx, st, locker, logger)

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

// purgeExpiredCarts drops abandoned guest carts once an hour. The lock
// keeps multiple worker replicas from racing the delete.
func purgeExpiredCarts(ctx context.Context, st *store.Store, locker lock.Locker, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := locker.WithLock(ctx, "lock:cart-purge", time.Minute, func(lockCtx context.Context) error {
				purged, err := st.PurgeExpiredCarts(lockCtx)
				if err != nil {
					return err
				}
				if purged > 0 {
					logger.Info().Int64("carts", purged).Msg("purged expired carts")
				}
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("cart purge failed")
			}
		}
	}
}

// asynqLogger adapts zerolog to asynq's logging interface.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
