package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps jobs in Redis. Claimable ids live in a sorted set scored
// by the time they become visible; dequeue pushes the score forward by the
// visibility timeout so an unacknowledged job reappears.
type RedisQueue struct {
	client *redis.Client
	name   string
	prefix string
	now    func() time.Time
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue connects to redisURL and verifies the connection.
func NewRedisQueue(redisURL, name string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisQueueWithClient(client, name), nil
}

func NewRedisQueueWithClient(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name, prefix: "jobs:" + name + ":", now: time.Now}
}

func (q *RedisQueue) key(part string) string {
	return q.prefix + part
}

type redisRecord struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobs ...Job) error {
	if len(jobs) == 0 {
		return nil
	}
	now := float64(q.now().UnixMilli())

	pipe := q.client.TxPipeline()
	for _, job := range jobs {
		data, err := json.Marshal(redisRecord{ID: job.ID, Kind: job.Kind, Payload: job.Payload, CreatedAt: job.CreatedAt})
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", job.ID, err)
		}
		pipe.HSet(ctx, q.key("data"), job.ID, data)
		pipe.ZAdd(ctx, q.key("ready"), redis.Z{Score: now, Member: job.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue jobs: %w", err)
	}
	return nil
}

// KEYS: ready, attempts, receipts. ARGV: now, visible_after, max, receipt prefix.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
local out = {}
for i, id in ipairs(ids) do
	redis.call('ZADD', KEYS[1], ARGV[2], id)
	local attempts = redis.call('HINCRBY', KEYS[2], id, 1)
	local receipt = ARGV[4] .. ':' .. i
	redis.call('HSET', KEYS[3], id, receipt)
	table.insert(out, id)
	table.insert(out, tostring(attempts))
	table.insert(out, receipt)
end
return out
`)

func (q *RedisQueue) Dequeue(ctx context.Context, max int, visibility time.Duration) ([]Job, error) {
	now := q.now()
	res, err := claimScript.Run(ctx, q.client,
		[]string{q.key("ready"), q.key("attempts"), q.key("receipts")},
		now.UnixMilli(), now.Add(visibility).UnixMilli(), max, uuid.NewString(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(res)/3)
	for i := 0; i+2 < len(res); i += 3 {
		ids = append(ids, res[i])
	}
	raw, err := q.client.HMGet(ctx, q.key("data"), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	claimed := make([]Job, 0, len(ids))
	for i, id := range ids {
		data, ok := raw[i].(string)
		if !ok {
			continue
		}
		var rec redisRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
		}
		attempts, _ := strconv.Atoi(res[i*3+1])
		claimed = append(claimed, Job{
			ID:        rec.ID,
			Queue:     q.name,
			Kind:      rec.Kind,
			Payload:   rec.Payload,
			Attempts:  attempts,
			Receipt:   res[i*3+2],
			CreatedAt: rec.CreatedAt,
		})
	}
	return claimed, nil
}

// KEYS: ready, receipts, finished set, errors. ARGV: id, receipt, now, error.
var finishScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], ARGV[1]) ~= ARGV[2] then
	return 0
end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
if ARGV[4] ~= '' then
	redis.call('HSET', KEYS[4], ARGV[1], ARGV[4])
end
return 1
`)

func (q *RedisQueue) finish(ctx context.Context, job Job, set, lastError string) error {
	n, err := finishScript.Run(ctx, q.client,
		[]string{q.key("ready"), q.key("receipts"), q.key(set), q.key("errors")},
		job.ID, job.Receipt, q.now().UnixMilli(), lastError,
	).Int()
	if err != nil {
		return fmt.Errorf("finish job %s: %w", job.ID, err)
	}
	if n == 0 {
		return ErrNoJob
	}
	return nil
}

func (q *RedisQueue) Complete(ctx context.Context, job Job) error {
	return q.finish(ctx, job, "done", "")
}

func (q *RedisQueue) Fail(ctx context.Context, job Job, cause error) error {
	msg := "failed"
	if cause != nil {
		msg = cause.Error()
	}
	return q.finish(ctx, job, "dead", msg)
}

func (q *RedisQueue) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	cutoff := strconv.FormatInt(olderThan.UnixMilli(), 10)
	purged := 0
	for _, set := range []string{"done", "dead"} {
		ids, err := q.client.ZRangeByScore(ctx, q.key(set), &redis.ZRangeBy{Min: "-inf", Max: "(" + cutoff}).Result()
		if err != nil {
			return purged, fmt.Errorf("list %s jobs: %w", set, err)
		}
		if len(ids) == 0 {
			continue
		}
		pipe := q.client.TxPipeline()
		pipe.HDel(ctx, q.key("data"), ids...)
		pipe.HDel(ctx, q.key("attempts"), ids...)
		pipe.HDel(ctx, q.key("errors"), ids...)
		members := make([]any, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe.ZRem(ctx, q.key(set), members...)
		if _, err := pipe.Exec(ctx); err != nil {
			return purged, fmt.Errorf("purge %s jobs: %w", set, err)
		}
		purged += len(ids)
	}
	return purged, nil
}

// Dead returns the ids of failed jobs with their last error.
func (q *RedisQueue) Dead(ctx context.Context) (map[string]string, error) {
	ids, err := q.client.ZRange(ctx, q.key("dead"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		msg, err := q.client.HGet(ctx, q.key("errors"), id).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("load job error %s: %w", id, err)
		}
		out[id] = msg
	}
	return out, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
