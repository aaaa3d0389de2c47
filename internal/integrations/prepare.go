package integrations

import (
	"context"
	"fmt"
	"sort"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultSecretKeys are the payload keys searched for an API key, in order.
var DefaultSecretKeys = []string{"api_key", "apikey", "key"}

type PrepareRequest struct {
	Metadata *Metadata
	Config   map[string]any
	Resolver credentials.Resolver
	BotID    uuid.UUID
	Logger   BotLogger

	// SecretKeys overrides DefaultSecretKeys.
	SecretKeys []string
	// Validate runs after schema validation on the normalized config.
	Validate func(config map[string]any) error
}

type Prepared struct {
	Config      map[string]any
	Secret      string
	Credentials credentials.Credentials
}

// Prepare is the pre-flight shared by all integrations: credentials, secret
// extraction, schema validation and adapter validation, in that order.
// Nothing here touches the network besides the resolver.
func Prepare(ctx context.Context, req PrepareRequest) (*Prepared, *Error) {
	meta := req.Metadata
	prepared := &Prepared{}

	if meta.RequiresCredentials() {
		creds, err := req.Resolver.GetDefaultFor(ctx, req.BotID, meta.CredentialsProvider, meta.CredentialsStrategy)
		if err != nil {
			req.Logger.Error(ctx, "credentials lookup failed",
				zap.String("provider", meta.CredentialsProvider),
				zap.Error(err),
			)
			creds = nil
		}
		if len(creds) == 0 {
			ierr := NewErrMissingCredentials(meta.ProviderLabel)
			Fail(ctx, req.Logger, fmt.Sprintf("%s credentials not found", meta.ProviderLabel), ierr)
			return nil, ierr
		}

		keys := req.SecretKeys
		if len(keys) == 0 {
			keys = DefaultSecretKeys
		}
		payload := creds.Payload()
		secret, ok := lookupSecret(payload, keys)
		if !ok {
			available := lo.Keys(payload)
			sort.Strings(available)
			ierr := NewErrMissingAPIKey()
			Fail(ctx, req.Logger, "API key not found in credentials", ierr, zap.Strings("available_keys", available))
			return nil, ierr
		}
		prepared.Credentials = creds
		prepared.Secret = secret
	}

	config, err := meta.Schema.Validate(req.Config)
	if err != nil {
		ierr := NewErrInvalidConfig(err)
		Fail(ctx, req.Logger, "invalid config", ierr)
		return nil, ierr
	}

	if req.Validate != nil {
		if err := req.Validate(config); err != nil {
			ierr := NewErrInvalidConfig(err)
			Fail(ctx, req.Logger, "invalid config", ierr)
			return nil, ierr
		}
	}

	prepared.Config = config
	return prepared, nil
}

func lookupSecret(payload map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
