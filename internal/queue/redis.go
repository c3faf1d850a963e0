package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Key layout, all under inkwell:queue:{name}:
//
//	due          sorted set of job IDs scored by run-at (unix ms)
//	leases       sorted set of job IDs scored by lease deadline (unix ms)
//	task:{jobID} hash with payload, attempt, max_attempts, token, last_error
const keyPrefix = "inkwell:queue:"

type redisKeys struct {
	due        string
	leases     string
	taskPrefix string
}

func newRedisKeys(name string) redisKeys {
	base := keyPrefix + name + ":"
	return redisKeys{
		due:        base + "due",
		leases:     base + "leases",
		taskPrefix: base + "task:",
	}
}

func (k redisKeys) task(jobID string) string { return k.taskPrefix + jobID }

// KEYS[1]=task KEYS[2]=due ARGV: payload, max_attempts, run_at, job_id
var luaEnqueue = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "payload", ARGV[1], "attempt", 0, "max_attempts", ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[4])
return 1`)

// KEYS[1]=due KEYS[2]=leases ARGV: now, token, deadline, task prefix
var luaClaim = goredis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
if #ids == 0 then
	return false
end
local id = ids[1]
redis.call("ZREM", KEYS[1], id)
local tkey = ARGV[4] .. id
if redis.call("EXISTS", tkey) == 0 then
	return false
end
local attempt = redis.call("HINCRBY", tkey, "attempt", 1)
redis.call("HSET", tkey, "token", ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[3], id)
return {id, redis.call("HGET", tkey, "payload"), attempt, redis.call("HGET", tkey, "max_attempts")}`)

// KEYS[1]=task KEYS[2]=leases ARGV: token, deadline, job_id
var luaExtend = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "token") ~= ARGV[1] then
	return 0
end
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
return 1`)

// KEYS[1]=task KEYS[2]=leases KEYS[3]=due ARGV: token, run_at, job_id, last_error
var luaRetry = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "token") ~= ARGV[1] then
	return 0
end
redis.call("ZREM", KEYS[2], ARGV[3])
redis.call("HDEL", KEYS[1], "token")
redis.call("HSET", KEYS[1], "last_error", ARGV[4])
redis.call("ZADD", KEYS[3], ARGV[2], ARGV[3])
return 1`)

// KEYS[1]=task KEYS[2]=leases KEYS[3]=due ARGV: token, job_id
var luaComplete = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "token") ~= ARGV[1] then
	return 0
end
redis.call("ZREM", KEYS[2], ARGV[2])
redis.call("ZREM", KEYS[3], ARGV[2])
redis.call("DEL", KEYS[1])
return 1`)

// KEYS[1]=leases KEYS[2]=due ARGV: now, task prefix
// A task past its budget plus the one redelivery is dropped.
var luaRequeueExpired = goredis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local moved = 0
for _, id in ipairs(ids) do
	redis.call("ZREM", KEYS[1], id)
	local tkey = ARGV[2] .. id
	local attempt = tonumber(redis.call("HGET", tkey, "attempt") or "0")
	local max = tonumber(redis.call("HGET", tkey, "max_attempts") or "0")
	if attempt > max then
		redis.call("DEL", tkey)
	elseif redis.call("EXISTS", tkey) == 1 then
		redis.call("HDEL", tkey, "token")
		redis.call("ZADD", KEYS[2], ARGV[1], id)
		moved = moved + 1
	end
end
return moved`)

// RedisQueue is a Queue backed by Redis sorted sets and hashes. Every state
// change runs as a Lua script so claims and releases are atomic.
type RedisQueue struct {
	client goredis.UniversalClient
	keys   redisKeys
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue creates a queue named name on client.
func NewRedisQueue(client goredis.UniversalClient, name string, opts Options, logger *slog.Logger) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisQueue{
		client: client,
		keys:   newRedisKeys(name),
		opts:   opts.withDefaults(),
		now:    time.Now,
		logger: logger.With(slog.String("component", "redis_queue"), slog.String("queue", name)),
	}
}

func unixMilli(t time.Time) int64 { return t.UnixMilli() }

// Enqueue implements Queue.Enqueue.
func (q *RedisQueue) Enqueue(ctx context.Context, payload Payload, delay time.Duration) error {
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}

	jobID := payload.JobID.String()
	runAt := unixMilli(q.now().Add(delay))
	added, err := luaEnqueue.Run(ctx, q.client,
		[]string{q.keys.task(jobID), q.keys.due},
		data, q.opts.MaxAttempts, runAt, jobID,
	).Int()
	if err != nil {
		return fmt.Errorf("queue/redis: enqueue: %w", err)
	}
	if added == 0 {
		return ErrDuplicateTask
	}

	q.logger.Debug("task enqueued",
		slog.String("job_id", jobID),
		slog.Duration("delay", delay))
	return nil
}

// Claim implements Queue.Claim.
func (q *RedisQueue) Claim(ctx context.Context) (*Lease, error) {
	now := q.now()
	token := uuid.NewString()
	deadline := now.Add(q.opts.LeaseTTL)

	res, err := luaClaim.Run(ctx, q.client,
		[]string{q.keys.due, q.keys.leases},
		unixMilli(now), token, unixMilli(deadline), q.keys.taskPrefix,
	).Slice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNoTask
		}
		return nil, fmt.Errorf("queue/redis: claim: %w", err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("queue/redis: claim: unexpected reply of length %d", len(res))
	}

	jobID, _ := res[0].(string)
	raw, _ := res[1].(string)
	attempt, _ := res[2].(int64)
	maxAttempts, _ := strconv.Atoi(fmt.Sprint(res[3]))

	lease := &Lease{
		Attempt:     int(attempt),
		MaxAttempts: maxAttempts,
		Token:       token,
		Deadline:    deadline,
	}

	payload, err := decodePayload([]byte(raw))
	if err != nil {
		// Malformed tasks are dropped, not redelivered.
		q.logger.Error("dropping task with invalid payload",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		lease.Payload.JobID, _ = uuid.Parse(jobID)
		if cErr := q.Complete(ctx, lease); cErr != nil {
			q.logger.Warn("failed to drop invalid task", slog.String("error", cErr.Error()))
		}
		return nil, err
	}
	lease.Payload = payload
	return lease, nil
}

func (q *RedisQueue) fenced(ctx context.Context, op string, script *goredis.Script, keys []string, args ...any) error {
	ok, err := script.Run(ctx, q.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("queue/redis: %s: %w", op, err)
	}
	if ok == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Extend implements Queue.Extend.
func (q *RedisQueue) Extend(ctx context.Context, lease *Lease) error {
	jobID := lease.Payload.JobID.String()
	deadline := q.now().Add(q.opts.LeaseTTL)
	if err := q.fenced(ctx, "extend", luaExtend,
		[]string{q.keys.task(jobID), q.keys.leases},
		lease.Token, unixMilli(deadline), jobID,
	); err != nil {
		return err
	}
	lease.Deadline = deadline
	return nil
}

// Retry implements Queue.Retry.
func (q *RedisQueue) Retry(ctx context.Context, lease *Lease, cause error) (time.Duration, error) {
	jobID := lease.Payload.JobID.String()
	delay := q.opts.Backoff.Delay(lease.Attempt)
	runAt := unixMilli(q.now().Add(delay))
	if err := q.fenced(ctx, "retry", luaRetry,
		[]string{q.keys.task(jobID), q.keys.leases, q.keys.due},
		lease.Token, runAt, jobID, causeText(cause),
	); err != nil {
		return 0, err
	}
	return delay, nil
}

// Complete implements Queue.Complete.
func (q *RedisQueue) Complete(ctx context.Context, lease *Lease) error {
	jobID := lease.Payload.JobID.String()
	return q.fenced(ctx, "complete", luaComplete,
		[]string{q.keys.task(jobID), q.keys.leases, q.keys.due},
		lease.Token, jobID,
	)
}

// RequeueExpired implements Queue.RequeueExpired.
func (q *RedisQueue) RequeueExpired(ctx context.Context) (int, error) {
	moved, err := luaRequeueExpired.Run(ctx, q.client,
		[]string{q.keys.leases, q.keys.due},
		unixMilli(q.now()), q.keys.taskPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("queue/redis: requeue expired: %w", err)
	}
	if moved > 0 {
		q.logger.Warn("requeued tasks with expired leases", slog.Int("count", moved))
	}
	return moved, nil
}
