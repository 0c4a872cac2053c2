// Package queue implements the durable at-least-once delivery channel
// between API producers and workers on top of PostgreSQL. Messages reference
// job records by id; the queue owns message lifecycle (visibility,
// redelivery, deletion after ack) while the job store owns business state.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marketgen/internal/domain"
	"marketgen/internal/infra"
	"marketgen/internal/sqlinline"
)

// Message is an enqueued reference to a job. AttemptCount reflects the
// delivery attempt that produced this message instance.
type Message struct {
	ID           string
	JobID        string
	Type         domain.JobType
	AttemptCount int
}

// Options tunes queue behavior.
type Options struct {
	// Visibility is how long a claimed message stays invisible to other
	// consumers before it becomes eligible for redelivery.
	Visibility time.Duration
	// MaxRetries caps delivery attempts. Nack past this limit discards
	// the message and reports ErrRedeliveryExhausted.
	MaxRetries int
	// RetryDelay is the base delay before a nacked message becomes
	// deliverable again; it doubles per attempt.
	RetryDelay time.Duration
}

var errClosed = errors.New("queue: closed")

// Queue is an injectable, explicitly constructed resource. It does not own
// the database pool; Close only fences further operations.
type Queue struct {
	sql    infra.SQLExecutor
	logger zerolog.Logger
	opts   Options
	closed atomic.Bool
}

// Open constructs a queue over the given executor.
func Open(sql infra.SQLExecutor, logger zerolog.Logger, opts Options) *Queue {
	if opts.Visibility <= 0 {
		opts.Visibility = 10 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 30 * time.Second
	}
	return &Queue{sql: sql, logger: logger, opts: opts}
}

// Close fences the queue. In-flight calls finish; subsequent ones fail.
func (q *Queue) Close() {
	q.closed.Store(true)
}

// Enqueue inserts a message referencing an existing job. Producers create
// the job row first; the reconciliation sweep covers a crash between the
// two writes.
func (q *Queue) Enqueue(ctx context.Context, typ domain.JobType, jobID string) error {
	if q.closed.Load() {
		return errClosed
	}
	if _, err := q.sql.Exec(ctx, sqlinline.QEnqueueMessage, uuid.NewString(), jobID, string(typ)); err != nil {
		return fmt.Errorf("enqueue %s: %w", typ, err)
	}
	return nil
}

// Dequeue claims at most one deliverable message, locking it for the
// visibility window. Returns (nil, nil) when the queue is empty. Competing
// consumers are safe under FOR UPDATE SKIP LOCKED; duplicate delivery after
// a crash is still possible and is absorbed by the executor's status check.
func (q *Queue) Dequeue(ctx context.Context) (*Message, error) {
	if q.closed.Load() {
		return nil, errClosed
	}
	row := q.sql.QueryRow(ctx, sqlinline.QClaimMessage, q.opts.Visibility.Seconds())
	var (
		msg Message
		typ string
	)
	if err := row.Scan(&msg.ID, &msg.JobID, &typ, &msg.AttemptCount); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim message: %w", err)
	}
	msg.Type = domain.JobType(typ)
	return &msg, nil
}

// Ack removes a handled message.
func (q *Queue) Ack(ctx context.Context, msg *Message) error {
	if q.closed.Load() {
		return errClosed
	}
	if _, err := q.sql.Exec(ctx, sqlinline.QDeleteMessage, msg.ID); err != nil {
		return fmt.Errorf("ack message: %w", err)
	}
	return nil
}

// Nack releases a message for redelivery with exponential delay. Once the
// attempt count reaches MaxRetries the message is discarded instead and
// ErrRedeliveryExhausted is returned; the caller owns marking the job failed.
func (q *Queue) Nack(ctx context.Context, msg *Message) error {
	if q.closed.Load() {
		return errClosed
	}
	if msg.AttemptCount >= q.opts.MaxRetries {
		if _, err := q.sql.Exec(ctx, sqlinline.QDeleteMessage, msg.ID); err != nil {
			return fmt.Errorf("discard exhausted message: %w", err)
		}
		q.logger.Warn().
			Str("job_id", msg.JobID).
			Int("attempts", msg.AttemptCount).
			Msg("queue: message exhausted retries")
		return fmt.Errorf("%w after %d attempts", domain.ErrRedeliveryExhausted, msg.AttemptCount)
	}
	delay := q.retryDelay(msg.AttemptCount)
	if _, err := q.sql.Exec(ctx, sqlinline.QReleaseMessage, msg.ID, delay.Seconds()); err != nil {
		return fmt.Errorf("release message: %w", err)
	}
	return nil
}

// Reconcile re-enqueues pending jobs older than the threshold that have no
// live message. This is the backstop for a producer crash between job
// creation and enqueue; it never touches processing or terminal jobs.
func (q *Queue) Reconcile(ctx context.Context, olderThan time.Duration) (int, error) {
	if q.closed.Load() {
		return 0, errClosed
	}
	rows, err := q.sql.Query(ctx, sqlinline.QReconcilePending, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("reconcile pending jobs: %w", err)
	}
	defer rows.Close()
	requeued := 0
	for rows.Next() {
		var jobID string
		if err := rows.Scan(&jobID); err != nil {
			return requeued, fmt.Errorf("scan reconciled job: %w", err)
		}
		q.logger.Info().Str("job_id", jobID).Msg("queue: re-enqueued orphaned pending job")
		requeued++
	}
	return requeued, rows.Err()
}

func (q *Queue) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := math.Pow(2, float64(attempt-1))
	return time.Duration(float64(q.opts.RetryDelay) * factor)
}
