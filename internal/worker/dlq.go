package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQEntry wraps a failed job with enough context to replay it by hand.
type DLQEntry struct {
	Queue    string          `json:"queue"`
	Payload  json.RawMessage `json:"payload"`
	Error    string          `json:"error"`
	FailedAt string          `json:"failed_at"`
}

func dlqKey(queue string) string { return queue + ":dlq" }

// SendToDLQ parks a failed job on the queue's dead-letter list. Best-effort:
// a Redis failure here is logged, never propagated.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, payload []byte, cause error) {
	entry := DLQEntry{
		Queue:    queue,
		Payload:  payload,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq marshal failed")
		return
	}
	if err := rdb.LPush(ctx, dlqKey(queue), raw).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq push failed")
	}
}

// DLQLength reports how many jobs are parked for the queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, dlqKey(queue)).Result()
}
