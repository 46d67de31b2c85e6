// Package notify sends confirmation and alert emails after funding state
// transitions. Dispatch is strictly fire-and-forget: the reconciler calls
// it after a successful transition, logs failures, and never lets them
// affect the webhook response or the funding state.
package notify

import "context"

// Provider delivers a single email. Implementations must be safe for
// concurrent use.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider discards everything. Used when SMTP is not configured.
type NoOpProvider struct{}

// Send implements Provider.
func (NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
