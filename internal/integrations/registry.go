package integrations

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateIntegration = errors.New("integration already registered")
	ErrIntegrationNotFound  = errors.New("integration not found")
)

// RegistryBuilder collects integrations during process init. It is not safe
// for concurrent use; Build freezes the result.
type RegistryBuilder struct {
	items []Integration
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

func (b *RegistryBuilder) Register(integrations ...Integration) *RegistryBuilder {
	b.items = append(b.items, integrations...)
	return b
}

// Build returns the immutable registry. Registering two integrations with
// the same id is rejected.
func (b *RegistryBuilder) Build() (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]Integration, len(b.items)),
		order: make([]Integration, 0, len(b.items)),
	}
	for _, integration := range b.items {
		id := integration.Metadata().ID
		if id == "" {
			return nil, errors.New("integration without id")
		}
		if _, exists := r.byID[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIntegration, id)
		}
		r.byID[id] = integration
		r.order = append(r.order, integration)
	}
	return r, nil
}

// Registry maps integration ids to adapters. It is read-only once built and
// safe for concurrent lookups.
type Registry struct {
	byID  map[string]Integration
	order []Integration
}

func (r *Registry) Get(id string) (Integration, error) {
	integration, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, id)
	}
	return integration, nil
}

func (r *Registry) MustGet(id string) Integration {
	integration, err := r.Get(id)
	if err != nil {
		panic(err)
	}
	return integration
}

// List returns the integrations in registration order.
func (r *Registry) List() []Integration {
	out := make([]Integration, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}
