package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
)

var _ adapter.JobQueue = (*JobQueue)(nil)

// JobQueue keeps jobs in three keys:
//
//	{prefix}:jobs       hash  id -> encoded job
//	{prefix}:scheduled  zset  id scored by run time (unix ms)
//	{prefix}:active     zset  id scored by lease deadline (unix ms)
//
// A job id lives in exactly one of the two sets while it is in the hash.
type JobQueue struct {
	cli        *redis.Client
	clock      domain.Clock
	visibility time.Duration
	log        *zerolog.Logger

	jobsKey      string
	scheduledKey string
	activeKey    string
}

func NewJobQueue(c *Client, prefix string, visibility time.Duration, clock domain.Clock) *JobQueue {
	if clock == nil {
		clock = domain.SystemClock
	}
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	nop := zerolog.Nop()
	return &JobQueue{
		cli:          c.cli,
		log:          &nop,
		clock:        clock,
		visibility:   visibility,
		jobsKey:      prefix + ":jobs",
		scheduledKey: prefix + ":scheduled",
		activeKey:    prefix + ":active",
	}
}

// WithLogger sets the logger used for entries the queue has to discard.
func (q *JobQueue) WithLogger(l *zerolog.Logger) *JobQueue {
	if l != nil {
		lg := l.With().Str("component", "JobQueue").Logger()
		q.log = &lg
	}
	return q
}

func (q *JobQueue) Enqueue(ctx context.Context, payload model.JobPayload, opts model.EnqueueOptions) (*model.Job, error) {
	if payload == nil || payload.Company() == "" {
		return nil, domain.ErrInvalidArgument
	}
	job := model.NewJob(payload, opts, q.clock.Now())
	data, err := model.EncodeJob(job)
	if err != nil {
		return nil, err
	}
	_, err = q.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.jobsKey, job.ID, data)
		p.ZAdd(ctx, q.scheduledKey, &redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: job.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", payload.Kind(), err)
	}
	return job, nil
}

// List returns every job still held, pending or executing, oldest first.
// Entries that no longer decode are logged and removed.
func (q *JobQueue) List(ctx context.Context) ([]*model.Job, error) {
	vals, err := q.cli.HGetAll(ctx, q.jobsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]*model.Job, 0, len(vals))
	for id, v := range vals {
		job, err := model.DecodeJob([]byte(v))
		if err != nil {
			q.discard(ctx, id, err)
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *JobQueue) discard(ctx context.Context, id string, cause error) {
	q.log.Warn().Err(cause).Str("job_id", id).Msg("dropping undecodable job")
	if err := q.Remove(ctx, id); err != nil {
		q.log.Error().Err(err).Str("job_id", id).Msg("failed to drop undecodable job")
	}
}

func (q *JobQueue) Remove(ctx context.Context, jobID string) error {
	_, err := q.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, q.jobsKey, jobID)
		p.ZRem(ctx, q.scheduledKey, jobID)
		p.ZRem(ctx, q.activeKey, jobID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove job %s: %w", jobID, err)
	}
	return nil
}

// claimScript moves the oldest due id from scheduled to active. Ids whose
// hash entry is gone are dropped from the schedule and skipped.
var claimScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local lease = tonumber(ARGV[2])
for i = 1, 10 do
	local ids = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", now, "LIMIT", 0, 1)
	if #ids == 0 then
		return false
	end
	local id = ids[1]
	redis.call("ZREM", KEYS[2], id)
	local data = redis.call("HGET", KEYS[1], id)
	if data then
		redis.call("ZADD", KEYS[3], lease, id)
		return data
	end
end
return false`)

func (q *JobQueue) Claim(ctx context.Context) (*model.Job, error) {
	now := q.clock.Now()
	res, err := claimScript.Run(ctx, q.cli,
		[]string{q.jobsKey, q.scheduledKey, q.activeKey},
		now.UnixMilli(), now.Add(q.visibility).UnixMilli(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return model.DecodeJob([]byte(res))
}

func (q *JobQueue) Complete(ctx context.Context, job *model.Job) error {
	_, err := q.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, q.jobsKey, job.ID)
		p.ZRem(ctx, q.activeKey, job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	return nil
}

// retryScript reschedules an executing job unless it was removed meanwhile.
var retryScript = redis.NewScript(`
redis.call("ZREM", KEYS[3], ARGV[1])
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
return 1`)

func (q *JobQueue) Fail(ctx context.Context, job *model.Job, _ error) (bool, error) {
	runAt, retry := job.RecordFailure(q.clock.Now())
	if !retry {
		return false, q.Complete(ctx, job)
	}
	data, err := model.EncodeJob(job)
	if err != nil {
		return false, err
	}
	n, err := retryScript.Run(ctx, q.cli,
		[]string{q.jobsKey, q.scheduledKey, q.activeKey},
		job.ID, data, runAt.UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("retry job %s: %w", job.ID, err)
	}
	return n == 1, nil
}

// stalledScript settles one expired lease. It does nothing when the lease was
// completed or renewed meanwhile, drops the job when ARGV[3] is empty and
// otherwise stores the bumped job and schedules it at ARGV[4].
var stalledScript = redis.NewScript(`
local score = redis.call("ZSCORE", KEYS[3], ARGV[1])
if not score or tonumber(score) > tonumber(ARGV[2]) then
	return -1
end
redis.call("ZREM", KEYS[3], ARGV[1])
if ARGV[3] == "" then
	redis.call("HDEL", KEYS[1], ARGV[1])
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
redis.call("ZADD", KEYS[2], ARGV[4], ARGV[1])
return 1`)

// RequeueStalled treats every expired lease as a failed attempt: the job is
// rescheduled after its backoff, or dropped once the budget is spent. It
// returns how many jobs were rescheduled.
func (q *JobQueue) RequeueStalled(ctx context.Context) (int, error) {
	now := q.clock.Now()
	nowMS := strconv.FormatInt(now.UnixMilli(), 10)
	ids, err := q.cli.ZRangeByScore(ctx, q.activeKey, &redis.ZRangeBy{Min: "-inf", Max: nowMS}).Result()
	if err != nil {
		return 0, fmt.Errorf("list stalled jobs: %w", err)
	}
	n := 0
	for _, id := range ids {
		data, err := q.cli.HGet(ctx, q.jobsKey, id).Result()
		if errors.Is(err, redis.Nil) {
			q.cli.ZRem(ctx, q.activeKey, id)
			continue
		}
		if err != nil {
			return n, fmt.Errorf("load stalled job %s: %w", id, err)
		}
		job, err := model.DecodeJob([]byte(data))
		if err != nil {
			q.discard(ctx, id, err)
			continue
		}
		var encoded []byte
		runAt, retry := job.RecordFailure(now)
		if retry {
			if encoded, err = model.EncodeJob(job); err != nil {
				return n, err
			}
		}
		res, err := stalledScript.Run(ctx, q.cli,
			[]string{q.jobsKey, q.scheduledKey, q.activeKey},
			id, nowMS, string(encoded), runAt.UnixMilli(),
		).Int()
		if err != nil {
			return n, fmt.Errorf("requeue stalled job %s: %w", id, err)
		}
		switch res {
		case 1:
			n++
		case 0:
			q.log.Warn().Str("job_id", id).Str("kind", string(job.Payload.Kind())).Msg("stalled job exhausted its attempts")
		}
	}
	return n, nil
}
