package notification

import "context"

// Provider delivers notifications to one push backend.
// Send may be called from the dispatcher worker while other goroutines hold
// the provider, so implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	// Validate is called once by NewDispatcher; a provider that fails is skipped.
	Validate() error
	Accepts(t Type) bool
	Send(ctx context.Context, n *Notification) error
}
