package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// failedSuffix is appended to the queue key for the dead-letter list.
const failedSuffix = ":failed"

// ErrMalformedMessage is returned by Pop for a payload that is not a
// Message. The payload has already been moved to the dead-letter list.
var ErrMalformedMessage = errors.New("malformed mail message")

// Queue is a Mailer backed by a Redis list. Producers LPUSH, the Worker
// BRPOPs, so messages are delivered oldest first.
type Queue struct {
	rdb *redis.Client
	key string
	now func() time.Time
}

// NewQueue creates a queue on the given list key.
func NewQueue(rdb *redis.Client, key string) *Queue {
	return &Queue{rdb: rdb, key: key, now: time.Now}
}

// Send enqueues msg. A nil error means Redis accepted it.
func (q *Queue) Send(ctx context.Context, msg Message) error {
	if _, ok := templates[msg.Template]; !ok {
		return fmt.Errorf("unknown mail template %q", msg.Template)
	}
	msg.QueuedAt = q.now().UTC()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling mail message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueueing mail: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next message. It returns (nil, nil) on
// timeout.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Message, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("popping mail: %w", err)
	}

	// BRPOP replies with [key, value].
	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		// The entry is already off the queue; keep the bytes for inspection.
		if ferr := q.deadLetter(context.WithoutCancel(ctx), failedEntry{Raw: res[1], Error: err.Error()}); ferr != nil {
			return nil, fmt.Errorf("%w: %v (dead-letter: %v)", ErrMalformedMessage, err, ferr)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &msg, nil
}

// Fail records msg on the dead-letter list with the delivery error.
func (q *Queue) Fail(ctx context.Context, msg Message, cause error) error {
	return q.deadLetter(ctx, failedEntry{Message: msg, Error: cause.Error()})
}

func (q *Queue) deadLetter(ctx context.Context, entry failedEntry) error {
	entry.FailedAt = q.now().UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling failed mail: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key+failedSuffix, data).Err(); err != nil {
		return fmt.Errorf("recording failed mail: %w", err)
	}
	return nil
}

// Len returns the number of messages waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
