package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// popTimeout is how long one BRPOP waits before the loop rechecks ctx.
const popTimeout = 5 * time.Second

// sendTimeout bounds a single render-and-deliver attempt.
const sendTimeout = 30 * time.Second

// Worker drains a Queue, rendering and delivering one message at a time.
// Messages that fail are moved to the dead-letter list; there are no retries.
type Worker struct {
	queue       *Queue
	transport   Transport
	pollTimeout time.Duration
}

// NewWorker creates a worker for queue using transport.
func NewWorker(queue *Queue, transport Transport) *Worker {
	return &Worker{queue: queue, transport: transport, pollTimeout: popTimeout}
}

// Run processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("mail worker started", slog.String("queue", w.queue.key))
	defer slog.Info("mail worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := w.queue.Pop(ctx, w.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrMalformedMessage) {
				slog.Error("dropped undecodable mail", slog.Any("error", err))
				continue
			}
			slog.Error("mail queue read failed", slog.Any("error", err))
			// Back off so a Redis outage does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue
		}

		w.process(ctx, *msg)
	}
}

// process renders and delivers one message.
func (w *Worker) process(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := w.deliver(sendCtx, msg)
	if err == nil {
		slog.Info("mail sent",
			slog.String("template", msg.Template),
			slog.Duration("queued_for", time.Since(msg.QueuedAt)),
		)
		return
	}

	slog.Error("mail delivery failed",
		slog.String("template", msg.Template),
		slog.Any("error", err),
	)
	// Record the failure even if ctx was cancelled mid-send.
	if ferr := w.queue.Fail(context.WithoutCancel(ctx), msg, err); ferr != nil {
		slog.Error("recording failed mail", slog.Any("error", ferr))
	}
}

func (w *Worker) deliver(ctx context.Context, msg Message) error {
	body, err := Render(ctx, msg)
	if err != nil {
		return err
	}
	return w.transport.Deliver(ctx, Envelope{To: msg.To, Subject: msg.Subject, HTMLBody: body})
}
