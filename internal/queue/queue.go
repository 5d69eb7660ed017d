// Package queue provides the delayed task queue driving the attendance
// decision workflow: at-least-once delivery, no ordering guarantee.
package queue

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task is the payload of one decision poll: which record to check and how many
// reschedules have already happened.
type Task struct {
	RecordID string `json:"record_id"`
	Attempt  int    `json:"attempt"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Enqueue(ctx context.Context, task Task, delay time.Duration) error
	Consume(ctx context.Context) (<-chan Task, error)
}

// InMemory is a timer-backed queue for dev/testing.
type InMemory struct {
	ch chan Task
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Task, size)}
}

// Enqueue schedules delivery of the task after the delay.
func (q *InMemory) Enqueue(_ context.Context, task Task, delay time.Duration) error {
	time.AfterFunc(delay, func() {
		q.ch <- task
	})
	return nil
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Task, error) {
	out := make(chan Task)
	go func() {
		defer close(out)
		for {
			select {
			case task := <-q.ch:
				select {
				case out <- task:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue stores tasks in a sorted set scored by fire time. Members carry a
// uuid nonce so re-enqueuing the same record and attempt never collides.
type RedisQueue struct {
	client   *redis.Client
	key      string
	pollTick time.Duration
}

type redisEnvelope struct {
	Nonce string `json:"nonce"`
	Task  Task   `json:"task"`
}

// NewRedisQueue builds a delayed queue over the given sorted-set key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "classnotify:decision-tasks"
	}
	return &RedisQueue{client: client, key: key, pollTick: time.Second}
}

// Enqueue adds the task with score = now + delay.
func (q *RedisQueue) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	member, err := json.Marshal(redisEnvelope{Nonce: uuid.NewString(), Task: task})
	if err != nil {
		return err
	}
	score := float64(time.Now().Add(delay).UnixMilli())
	return q.client.ZAdd(ctx, q.key, redis.Z{Score: score, Member: member}).Err()
}

// Consume polls for due tasks. A task is delivered only when this consumer
// wins the ZRem claim, so concurrent consumers never double-deliver the same
// member; redelivery still happens if a consumer dies mid-task (at-least-once).
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Task, error) {
	out := make(chan Task)
	go func() {
		defer close(out)
		ticker := time.NewTicker(q.pollTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			max := strconv.FormatInt(time.Now().UnixMilli(), 10)
			members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
				Min: "-inf", Max: max, Count: 16,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("queue poll failed: %v", err)
				continue
			}

			for _, member := range members {
				removed, err := q.client.ZRem(ctx, q.key, member).Result()
				if err != nil || removed == 0 {
					continue
				}
				var env redisEnvelope
				if err := json.Unmarshal([]byte(member), &env); err != nil {
					log.Printf("dropping malformed queue member: %v", err)
					continue
				}
				select {
				case out <- env.Task:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
