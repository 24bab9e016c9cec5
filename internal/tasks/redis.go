package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/openconf/brooms/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisQueue stores tasks in a sorted set scored by their ready time, so
// delayed and immediate tasks share one structure. Any number of workers can
// poll it; ZREM acts as the claim, giving at-least-once delivery.
type RedisQueue struct {
	client    *redis.Client
	key       string
	handler   Handler
	pollEvery time.Duration
	stop      chan struct{}
	done      chan struct{}
}

// NewRedisQueue connects a task queue to Redis using the repository's
// connection settings.
func NewRedisQueue(cfg config.RedisConfig) (*RedisQueue, error) {
	var client *redis.Client
	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{
		client:    client,
		key:       cfg.KeyPrefix + "tasks",
		pollEvery: time.Second,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// SetHandler installs the task handler, normally a Mux's Dispatch.
func (q *RedisQueue) SetHandler(h Handler) {
	q.handler = h
}

// Enqueue schedules the task to run as soon as a worker polls.
func (q *RedisQueue) Enqueue(ctx context.Context, taskType, roomID string, args ...string) error {
	return q.EnqueueDelayed(ctx, 0, taskType, roomID, args...)
}

// EnqueueDelayed schedules the task after the given delay.
func (q *RedisQueue) EnqueueDelayed(ctx context.Context, delay time.Duration, taskType, roomID string, args ...string) error {
	task := Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		RoomID: roomID,
		Args:   args,
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	score := float64(time.Now().Add(delay).UnixNano())
	if err := q.client.ZAdd(ctx, q.key, redis.Z{Score: score, Member: data}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Start launches the polling loop. Call Stop to halt it.
func (q *RedisQueue) Start() {
	go q.poll()
}

// Stop halts the polling loop and waits for it to exit.
func (q *RedisQueue) Stop() {
	close(q.stop)
	<-q.done
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) poll() {
	defer close(q.done)

	ticker := time.NewTicker(q.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.runDue(context.Background())
		}
	}
}

// runDue claims and executes every task whose ready time has passed.
func (q *RedisQueue) runDue(ctx context.Context) {
	now := fmt.Sprintf("%d", time.Now().UnixNano())
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("Task poll failed: %v", err)
		}
		return
	}

	for _, member := range members {
		// ZREM is the claim: exactly one competing worker removes it
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			log.Printf("Task claim failed: %v", err)
			continue
		}
		if removed == 0 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			log.Printf("Dropping undecodable task: %v", err)
			continue
		}

		if q.handler == nil {
			log.Printf("Dropping task %s (%s): no handler installed", task.ID, task.Type)
			continue
		}
		if err := q.handler(ctx, task); err != nil {
			log.Printf("Task %s (%s) for room %s failed: %v", task.ID, task.Type, task.RoomID, err)
		}
	}
}
