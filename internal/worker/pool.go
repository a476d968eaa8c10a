package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Job queues (Redis lists, LPUSH producer / BRPOP consumer).
const (
	QueueSubmission = "jobs:fiscal_submission"
	QueueEmail      = "jobs:email"
)

// SubmissionJob asks a worker to submit one document to the fiscal gateway.
type SubmissionJob struct {
	DocumentID string `json:"document_id"`
	EnqueuedAt string `json:"enqueued_at"`
}

// EmailJob asks a worker to send one guest notice.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Dispatcher enqueues background jobs. Services depend on this interface so
// unit tests can run without Redis.
type Dispatcher interface {
	EnqueueSubmission(ctx context.Context, documentID uuid.UUID) error
	EnqueueEmail(ctx context.Context, job EmailJob) error
}

type redisDispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) Dispatcher {
	return &redisDispatcher{rdb: rdb}
}

func (d *redisDispatcher) EnqueueSubmission(ctx context.Context, documentID uuid.UUID) error {
	job := SubmissionJob{
		DocumentID: documentID.String(),
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, QueueSubmission, raw).Err()
}

func (d *redisDispatcher) EnqueueEmail(ctx context.Context, job EmailJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, QueueEmail, raw).Err()
}

// Handler processes one raw job payload from a queue.
type Handler func(ctx context.Context, raw []byte) error

// StartWorkerPool launches size goroutines per queue, each blocking on BRPOP
// until ctx is cancelled. Failed jobs are logged and dropped to the queue's
// DLQ list; the submission worker does its own retry bookkeeping in the DB,
// so a queue-level redelivery is never needed.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, size int, handlers map[string]Handler) {
	for queue, handler := range handlers {
		for i := 0; i < size; i++ {
			go runWorker(ctx, rdb, queue, i, handler)
		}
	}
}

func runWorker(ctx context.Context, rdb *redis.Client, queue string, id int, handler Handler) {
	log.Debug().Str("queue", queue).Int("worker", id).Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("queue", queue).Int("worker", id).Msg("worker stopped")
			return
		default:
		}

		res, err := rdb.BRPop(ctx, 5*time.Second, queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Error().Err(err).Str("queue", queue).Msg("brpop failed")
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		raw := []byte(res[1])
		if err := handler(ctx, raw); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("job failed")
			SendToDLQ(ctx, rdb, queue, raw, err)
		}
	}
}
