package worker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
)

// JobQueue hands playback jobs from producers to workers.
type JobQueue interface {
	Enqueue(ctx context.Context, jobs ...PlaybackJob) error
	// Receive blocks until jobs are available, ctx is done or the queue's
	// poll interval elapses. An empty result is not an error.
	Receive(ctx context.Context) ([]PlaybackJob, error)
	// Ack marks a received job as handled.
	Ack(ctx context.Context, job PlaybackJob) error
}

type RedisJobQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	count    int64
}

var _ JobQueue = (*RedisJobQueue)(nil)

// NewRedisJobQueue creates the consumer group on stream if it does not exist
// yet. Jobs already in the stream are delivered to a new group.
func NewRedisJobQueue(ctx context.Context, client *redis.Client, stream, group, consumer string) (*RedisJobQueue, error) {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &RedisJobQueue{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    5 * time.Second,
		count:    16,
	}, nil
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, jobs ...PlaybackJob) error {
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, job := range jobs {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: q.stream,
				Values: encodeJob(job),
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue %d jobs: %w", len(jobs), err)
	}
	return nil
}

func (q *RedisJobQueue) Receive(ctx context.Context) ([]PlaybackJob, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    q.count,
		Block:    q.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s: %w", q.stream, err)
	}

	var jobs []PlaybackJob
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			job, err := decodeJob(msg.Values)
			if err != nil {
				// A malformed entry would be redelivered forever.
				_ = q.client.XAck(ctx, q.stream, q.group, msg.ID).Err()
				return jobs, fmt.Errorf("failed to decode entry %s: %w", msg.ID, err)
			}
			job.delivery = msg.ID
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (q *RedisJobQueue) Ack(ctx context.Context, job PlaybackJob) error {
	if job.delivery == "" {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, q.group, job.delivery).Err(); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", job.ID, err)
	}
	return nil
}

func encodeJob(job PlaybackJob) map[string]any {
	return map[string]any{
		"jobID":      job.ID,
		"seriesID":   job.SeriesID,
		"clipKey":    job.ClipKey,
		"guildID":    job.GuildID.String(),
		"channelID":  job.ChannelID.String(),
		"runAt":      job.RunAt.UTC().Format(time.RFC3339Nano),
		"recurrence": job.Recurrence,
	}
}

var snowflakeType = reflect.TypeOf(snowflake.ID(0))

func stringToSnowflakeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != snowflakeType {
		return data, nil
	}
	return snowflake.Parse(data.(string))
}

func decodeJob(values map[string]any) (PlaybackJob, error) {
	var job PlaybackJob
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &job,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToSnowflakeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return PlaybackJob{}, err
	}
	if err := dec.Decode(values); err != nil {
		return PlaybackJob{}, err
	}
	if job.ID == "" {
		return PlaybackJob{}, errors.New("entry has no job ID")
	}
	return job, nil
}

// MemoryJobQueue is an in-process JobQueue.
type MemoryJobQueue struct {
	mu      sync.Mutex
	pending []PlaybackJob
	acked   []string
	notify  chan struct{}
}

var _ JobQueue = (*MemoryJobQueue)(nil)

func NewMemoryJobQueue() *MemoryJobQueue {
	return &MemoryJobQueue{notify: make(chan struct{}, 1)}
}

func (q *MemoryJobQueue) Enqueue(ctx context.Context, jobs ...PlaybackJob) error {
	q.mu.Lock()
	q.pending = append(q.pending, jobs...)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryJobQueue) Receive(ctx context.Context) ([]PlaybackJob, error) {
	for {
		q.mu.Lock()
		jobs := q.pending
		q.pending = nil
		q.mu.Unlock()
		if len(jobs) > 0 {
			for i := range jobs {
				jobs[i].delivery = jobs[i].ID
			}
			return jobs, nil
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *MemoryJobQueue) Ack(ctx context.Context, job PlaybackJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, job.delivery)
	return nil
}

// Acked lists the IDs of acknowledged jobs in order.
func (q *MemoryJobQueue) Acked() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}
