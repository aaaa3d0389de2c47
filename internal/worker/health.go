package worker

import (
	"sync"
	"time"
)

const (
	StatusHealthy = "healthy"
	StatusFailed  = "failed"
)

// Health is what /healthz reports per worker. Failure causes stay in the
// logs and are never exposed.
type Health struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthTracker records the status of every supervised worker. It is safe
// for concurrent use.
type HealthTracker struct {
	mu      sync.RWMutex
	workers map[string]Health
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{workers: make(map[string]Health)}
}

func (h *HealthTracker) MarkHealthy(name string) {
	h.set(name, StatusHealthy)
}

func (h *HealthTracker) MarkFailed(name string) {
	h.set(name, StatusFailed)
}

func (h *HealthTracker) set(name, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.workers[name] = Health{Status: status, UpdatedAt: time.Now()}
}

// IsHealthy reports whether no worker has failed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthyLocked()
}

func (h *HealthTracker) GetStatus() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	workers := make(map[string]Health, len(h.workers))
	for name, w := range h.workers {
		workers[name] = w
	}

	status := StatusHealthy
	if !h.healthyLocked() {
		status = StatusFailed
	}
	return map[string]interface{}{
		"status":  status,
		"workers": workers,
	}
}

func (h *HealthTracker) healthyLocked() bool {
	for _, w := range h.workers {
		if w.Status != StatusHealthy {
			return false
		}
	}
	return true
}
