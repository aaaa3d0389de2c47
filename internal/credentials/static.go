package credentials

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type staticKey struct {
	botID    uuid.UUID
	provider string
	strategy string
}

// StaticResolver serves credentials from memory.
type StaticResolver struct {
	mu      sync.RWMutex
	entries map[staticKey]Credentials
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{entries: make(map[staticKey]Credentials)}
}

func (s *StaticResolver) Set(botID uuid.UUID, provider, strategy string, creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[staticKey{botID, provider, strategy}] = creds
}

func (s *StaticResolver) GetDefaultFor(_ context.Context, botID uuid.UUID, provider, strategy string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.entries[staticKey{botID, provider, strategy}]
	if !ok {
		return nil, nil
	}
	return creds, nil
}
