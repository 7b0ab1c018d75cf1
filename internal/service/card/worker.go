package card

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Worker 在后台串行执行卡片生成任务。任务与触发它的请求解耦：
// 请求结束或取消不会取消已经排队的任务。
type Worker struct {
	svc  *Service
	jobs chan string
}

// NewWorker creates a background regeneration worker with a bounded
// queue.
func NewWorker(svc *Service, queueSize int) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Worker{
		svc:  svc,
		jobs: make(chan string, queueSize),
	}
}

// Start runs the worker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		log.Info().Str("component", "card").Msg("card worker started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Str("component", "card").Msg("card worker stopped")
				return
			case userID := <-w.jobs:
				w.run(ctx, userID)
			}
		}
	}()
}

// Enqueue schedules regeneration for the user without blocking the
// caller. When the queue is saturated the job is dropped; the next
// completed turn will schedule a fresh one.
func (w *Worker) Enqueue(userID string) {
	select {
	case w.jobs <- userID:
	default:
		log.Warn().
			Str("component", "card").
			Str("user", userID).
			Msg("card queue full, dropping regeneration job")
	}
}

func (w *Worker) run(ctx context.Context, userID string) {
	logger := log.With().Str("component", "card").Str("user", userID).Logger()

	if _, err := w.svc.Regenerate(ctx, userID); err != nil {
		// Background failures are confined to logs; the previous cache
		// entry stays in place.
		if errors.Is(err, ErrNoHistory) {
			logger.Debug().Msg("no history, skipping card generation")
			return
		}
		logger.Error().Err(err).Msg("background card generation failed")
		return
	}
	logger.Info().Msg("card cached")
}
