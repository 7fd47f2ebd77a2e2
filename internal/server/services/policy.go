package services

import "context"

// Operation names passed to AttemptPolicy.Allow.
const (
	OpOpen     = "open"
	OpFinalize = "finalize"
)

// AttemptPolicy is consulted before sensitive operations. Implementations
// are keyed by owner identity and injected at construction time; rate
// limiting or lockout logic lives behind this interface, outside the
// storage core.
type AttemptPolicy interface {
	// Allow returns nil when the owner may perform the operation, or an
	// error (typically wrapping common.ErrConflict) when it is throttled.
	Allow(ctx context.Context, ownerID string, op string) error
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allow(ctx context.Context, ownerID string, op string) error { return nil }

// NewAllowAllPolicy returns the default policy that permits every attempt.
func NewAllowAllPolicy() AttemptPolicy { return allowAllPolicy{} }
