package notify

import "context"

// Notifier delivers an operator-facing message about the probe state.
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Nop drops every message. Used when no webhook is configured.
type Nop struct{}

func (Nop) Send(context.Context, string, string) error { return nil }
