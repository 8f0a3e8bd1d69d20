package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wa-listings/internal/domain"
	"wa-listings/internal/infra/metrics"
)

// RedisScrapeQueue реализует очередь задач обхода на базе Redis lists.
type RedisScrapeQueue struct {
	client *redis.Client
	key    string
}

// NewRedisScrapeQueue создаёт очередь по указанному ключу.
func NewRedisScrapeQueue(client *redis.Client, key string) *RedisScrapeQueue {
	return &RedisScrapeQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisScrapeQueue) Enqueue(ctx context.Context, job domain.ScrapeJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RedisScrapeQueue) Pop(ctx context.Context) (domain.ScrapeJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ScrapeJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ScrapeJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ScrapeJob{}, err
		}
		if len(res) != 2 {
			return domain.ScrapeJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.ScrapeJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.ScrapeJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
