package model

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"freshdesk-simulator/internal/domain"
)

type JobKind string

const (
	JobKindCreateTicket JobKind = "create-ticket"
	JobKindReplyTicket  JobKind = "reply-ticket"
)

// Every job in the system runs under the same retry policy.
const (
	JobMaxAttempts = 3
	JobBackoff     = time.Second
)

// JobPayload is the closed set of job variants. Only types in this package
// can implement it; dispatch with a type switch over the concrete types.
type JobPayload interface {
	Kind() JobKind
	Company() string
	isJobPayload()
}

// CreateTicketJob asks the processor to generate and submit one ticket.
type CreateTicketJob struct {
	CompanyID string `json:"companyId"`
}

func (CreateTicketJob) Kind() JobKind     { return JobKindCreateTicket }
func (j CreateTicketJob) Company() string { return j.CompanyID }
func (CreateTicketJob) isJobPayload()     {}

// ReplyTicketJob asks the processor to answer a ticket created earlier.
type ReplyTicketJob struct {
	CompanyID     string `json:"companyId"`
	TicketID      int64  `json:"ticketId"`
	ReplyInterval int    `json:"ticketReplyInterval"` // seconds
}

func (ReplyTicketJob) Kind() JobKind     { return JobKindReplyTicket }
func (j ReplyTicketJob) Company() string { return j.CompanyID }
func (ReplyTicketJob) isJobPayload()     {}

// EnqueueOptions tunes a single enqueue. Delay postpones the first attempt.
type EnqueueOptions struct {
	Delay time.Duration
}

// Job is one unit of queued work with its scheduling metadata.
type Job struct {
	ID          string
	Payload     JobPayload
	Attempt     int // attempts already made
	MaxAttempts int
	Backoff     time.Duration
	RunAt       time.Time
	CreatedAt   time.Time
}

// NewJob applies the uniform retry policy to payload.
func NewJob(payload JobPayload, opts EnqueueOptions, now time.Time) *Job {
	return &Job{
		ID:          NewJobID(now),
		Payload:     payload,
		MaxAttempts: JobMaxAttempts,
		Backoff:     JobBackoff,
		RunAt:       now.Add(opts.Delay),
		CreatedAt:   now,
	}
}

// NewJobID returns a lexicographically sortable id.
func NewJobID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// RecordFailure counts a failed attempt. It returns the time of the next
// attempt, or false once the attempt budget is exhausted.
func (j *Job) RecordFailure(now time.Time) (time.Time, bool) {
	j.Attempt++
	if j.Attempt >= j.MaxAttempts {
		return time.Time{}, false
	}
	j.RunAt = now.Add(j.Backoff)
	return j.RunAt, true
}

// jobEnvelope is the wire form stored by queue substrates.
type jobEnvelope struct {
	ID          string          `json:"id"`
	Kind        JobKind         `json:"type"`
	Data        json.RawMessage `json:"data"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"maxAttempts"`
	BackoffMS   int64           `json:"backoffMs"`
	RunAt       int64           `json:"runAt"`
	CreatedAt   int64           `json:"createdAt"`
}

func EncodeJob(j *Job) ([]byte, error) {
	if j == nil || j.Payload == nil {
		return nil, domain.ErrInvalidArgument
	}
	data, err := json.Marshal(j.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", j.Payload.Kind(), err)
	}
	return json.Marshal(jobEnvelope{
		ID:          j.ID,
		Kind:        j.Payload.Kind(),
		Data:        data,
		Attempt:     j.Attempt,
		MaxAttempts: j.MaxAttempts,
		BackoffMS:   j.Backoff.Milliseconds(),
		RunAt:       j.RunAt.UnixMilli(),
		CreatedAt:   j.CreatedAt.UnixMilli(),
	})
}

func DecodeJob(b []byte) (*Job, error) {
	var env jobEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	var payload JobPayload
	switch env.Kind {
	case JobKindCreateTicket:
		var p CreateTicketJob
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		payload = p
	case JobKindReplyTicket:
		var p ReplyTicketJob
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		payload = p
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobKind, env.Kind)
	}
	return &Job{
		ID:          env.ID,
		Payload:     payload,
		Attempt:     env.Attempt,
		MaxAttempts: env.MaxAttempts,
		Backoff:     time.Duration(env.BackoffMS) * time.Millisecond,
		RunAt:       time.UnixMilli(env.RunAt),
		CreatedAt:   time.UnixMilli(env.CreatedAt),
	}, nil
}
