//go:build integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestJobQueue_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("delayed job is not claimable before its run time", func(t *testing.T) {
		flush(t)
		clock := &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
		q := NewJobQueue(testClient, "test", time.Minute, clock)

		job, err := q.Enqueue(ctx, model.ReplyTicketJob{CompanyID: "c1", TicketID: 7, ReplyInterval: 60}, model.EnqueueOptions{Delay: time.Minute})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if _, err := q.Claim(ctx); !errors.Is(err, domain.ErrQueueEmpty) {
			t.Fatalf("Claim before delay: err = %v, want ErrQueueEmpty", err)
		}
		clock.Advance(time.Minute)
		got, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim after delay: %v", err)
		}
		if got.ID != job.ID {
			t.Fatalf("claimed %s, want %s", got.ID, job.ID)
		}
		reply, ok := got.Payload.(model.ReplyTicketJob)
		if !ok || reply.TicketID != 7 {
			t.Fatalf("payload = %#v", got.Payload)
		}
	})

	t.Run("failures retry until the budget is spent", func(t *testing.T) {
		flush(t)
		clock := &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
		q := NewJobQueue(testClient, "test", time.Minute, clock)
		if _, err := q.Enqueue(ctx, model.CreateTicketJob{CompanyID: "c1"}, model.EnqueueOptions{}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}

		for attempt := 1; attempt <= model.JobMaxAttempts; attempt++ {
			job, err := q.Claim(ctx)
			if err != nil {
				t.Fatalf("attempt %d: Claim: %v", attempt, err)
			}
			retried, err := q.Fail(ctx, job, errors.New("boom"))
			if err != nil {
				t.Fatalf("attempt %d: Fail: %v", attempt, err)
			}
			if want := attempt < model.JobMaxAttempts; retried != want {
				t.Fatalf("attempt %d: retried = %v, want %v", attempt, retried, want)
			}
			if _, err := q.Claim(ctx); !errors.Is(err, domain.ErrQueueEmpty) {
				t.Fatalf("attempt %d: job claimable before backoff", attempt)
			}
			clock.Advance(model.JobBackoff)
		}
		jobs, err := q.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(jobs) != 0 {
			t.Fatalf("expected exhausted job to be removed, %d left", len(jobs))
		}
	})

	t.Run("removed job is not retried", func(t *testing.T) {
		flush(t)
		q := NewJobQueue(testClient, "test", time.Minute, nil)
		if _, err := q.Enqueue(ctx, model.CreateTicketJob{CompanyID: "c1"}, model.EnqueueOptions{}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		job, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if err := q.Remove(ctx, job.ID); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		retried, err := q.Fail(ctx, job, errors.New("boom"))
		if err != nil || retried {
			t.Fatalf("Fail after Remove = %v, %v; want false, nil", retried, err)
		}
	})

	t.Run("expired lease is requeued", func(t *testing.T) {
		flush(t)
		clock := &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
		q := NewJobQueue(testClient, "test", time.Minute, clock)
		if _, err := q.Enqueue(ctx, model.CreateTicketJob{CompanyID: "c1"}, model.EnqueueOptions{}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if _, err := q.Claim(ctx); err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if n, _ := q.RequeueStalled(ctx); n != 0 {
			t.Fatalf("requeued %d before lease expiry", n)
		}
		clock.Advance(2 * time.Minute)
		n, err := q.RequeueStalled(ctx)
		if err != nil || n != 1 {
			t.Fatalf("RequeueStalled = %d, %v", n, err)
		}
		clock.Advance(model.JobBackoff)
		got, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim after requeue: %v", err)
		}
		if got.Attempt != 1 {
			t.Fatalf("attempt = %d, want 1", got.Attempt)
		}
	})

	t.Run("stalled job spends its retry budget", func(t *testing.T) {
		flush(t)
		clock := &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
		q := NewJobQueue(testClient, "test", time.Minute, clock)
		if _, err := q.Enqueue(ctx, model.CreateTicketJob{CompanyID: "c1"}, model.EnqueueOptions{}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		deliveries := 0
		for i := 0; i < 10; i++ {
			if _, err := q.Claim(ctx); err != nil {
				break
			}
			deliveries++
			clock.Advance(2 * time.Minute)
			if _, err := q.RequeueStalled(ctx); err != nil {
				t.Fatalf("RequeueStalled: %v", err)
			}
			clock.Advance(model.JobBackoff)
		}
		if deliveries != model.JobMaxAttempts {
			t.Fatalf("deliveries = %d, want %d", deliveries, model.JobMaxAttempts)
		}
		jobs, err := q.List(ctx)
		if err != nil || len(jobs) != 0 {
			t.Fatalf("List = %d jobs, %v; want empty", len(jobs), err)
		}
	})

	t.Run("undecodable entry is skipped and dropped", func(t *testing.T) {
		flush(t)
		q := NewJobQueue(testClient, "test", time.Minute, nil)
		good, err := q.Enqueue(ctx, model.CreateTicketJob{CompanyID: "c1"}, model.EnqueueOptions{})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if err := testClient.cli.HSet(ctx, "test:jobs", "bogus", `{"type":"archive-ticket"}`).Err(); err != nil {
			t.Fatalf("HSet: %v", err)
		}
		jobs, err := q.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(jobs) != 1 || jobs[0].ID != good.ID {
			t.Fatalf("List = %+v, want only %s", jobs, good.ID)
		}
		if ok, _ := testClient.cli.HExists(ctx, "test:jobs", "bogus").Result(); ok {
			t.Fatal("undecodable entry still stored")
		}
	})
}

func TestRedisLocker_Integration(t *testing.T) {
	flush(t)
	ctx := context.Background()
	l := NewLocker(testClient)

	token, err := l.TryLock(ctx, "test:lock", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if _, err := l.TryLock(ctx, "test:lock", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second TryLock err = %v, want ErrLockHeld", err)
	}
	if err := l.Unlock(ctx, "test:lock", token); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := l.TryLock(ctx, "test:lock", time.Minute); err != nil {
		t.Fatalf("TryLock after Unlock: %v", err)
	}
}
