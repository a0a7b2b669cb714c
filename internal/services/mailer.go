package services

import "context"

// Mailer is the outbound mail collaborator. The automation engine decides
// that and what to send; delivery (and its retries) live behind this
// interface.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NopMailer drops mail on the floor; used when no provider is configured so
// local runs still advance sequences.
type NopMailer struct{}

func (NopMailer) Send(ctx context.Context, to, subject, body string) error { return nil }
