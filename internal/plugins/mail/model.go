// Package mail delivers outbound e-mail for userhub. Request handlers hand a
// Message to a Mailer; in production that is the Redis-backed Queue, and a
// background Worker renders the named template and sends it over SMTP.
package mail

import (
	"context"
	"time"
)

// Message is a queued e-mail. Template names one of the registered
// templates; Data fills its placeholders.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`

	// QueuedAt is set by Queue.Send.
	QueuedAt time.Time `json:"queued_at"`
}

// Mailer is the cross-plugin contract for sending mail. Send returns once
// the message has been accepted for delivery, not once it was delivered.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Envelope is a rendered message ready for a Transport.
type Envelope struct {
	To       string
	Subject  string
	HTMLBody string
}

// Transport performs the actual delivery of a rendered message.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) error
}

// failedEntry is what the worker pushes to the dead-letter list. Raw holds
// the original payload when it could not be decoded into a Message.
type failedEntry struct {
	Message  Message   `json:"message"`
	Raw      string    `json:"raw,omitempty"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}
