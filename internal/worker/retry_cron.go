package worker

import (
	"context"
	"time"

	"frontdesk/internal/infra"
	"frontdesk/internal/repository"

	"github.com/rs/zerolog/log"
)

const retryBatchSize = 50

// StartRetryCron periodically re-enqueues pending documents whose retry time
// has passed. When the circuit breaker is open the sweep is skipped outright —
// re-enqueueing while the gateway is down only burns retry budget.
func StartRetryCron(ctx context.Context, documentRepo repository.DocumentRepository, dispatcher Dispatcher, cb *infra.CircuitBreaker, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepRetries(ctx, documentRepo, dispatcher, cb)
			}
		}
	}()
}

func sweepRetries(ctx context.Context, documentRepo repository.DocumentRepository, dispatcher Dispatcher, cb *infra.CircuitBreaker) {
	if cb.State() == infra.CBOpen {
		log.Debug().Msg("retry sweep skipped, circuit open")
		return
	}

	docs, err := documentRepo.ListPendingRetries(ctx, time.Now().UTC(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry sweep: list failed")
		return
	}
	for i := range docs {
		if err := dispatcher.EnqueueSubmission(ctx, docs[i].ID); err != nil {
			log.Error().Err(err).Str("document_id", docs[i].ID.String()).Msg("retry sweep: enqueue failed")
			continue
		}
		log.Debug().Str("document_id", docs[i].ID.String()).
			Int("retry", docs[i].RetryCount).
			Msg("document re-enqueued for submission")
	}
}
