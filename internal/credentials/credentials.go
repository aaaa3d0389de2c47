// Package credentials resolves the per-bot secrets integrations need to talk
// to third-party providers.
package credentials

import (
	"context"

	"github.com/google/uuid"
)

// Credentials is a decoded credential record. Stored records look like
// {"id", "name", "provider", "strategy", "payload": {...}}, but resolvers are
// free to return a flat object instead.
type Credentials map[string]any

// Payload returns the nested "payload" object when it is present and
// non-empty, otherwise the record itself.
func (c Credentials) Payload() map[string]any {
	if nested, ok := c["payload"].(map[string]any); ok && len(nested) > 0 {
		return nested
	}
	return c
}

// Resolver looks up the default credentials of a bot for a provider and
// strategy. A nil result with a nil error means none are configured.
type Resolver interface {
	GetDefaultFor(ctx context.Context, botID uuid.UUID, provider, strategy string) (Credentials, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, botID uuid.UUID, provider, strategy string) (Credentials, error)

func (f ResolverFunc) GetDefaultFor(ctx context.Context, botID uuid.UUID, provider, strategy string) (Credentials, error) {
	return f(ctx, botID, provider, strategy)
}
