package registry

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/sony/gobreaker"

	"plant-diagnosis-pipeline/models"
	"plant-diagnosis-pipeline/providers"
)

// HealthProber is implemented by classifiers that expose a best-effort
// health probe. Absence of a probe never blocks startup; providers
// without one default to available and are marked unhealthy lazily on
// their first real failure.
type HealthProber interface {
	Probe(ctx context.Context) error
}

// ProviderStatus is a read-only view of one provider's registration and
// health, safe to hand to ops endpoints.
type ProviderStatus struct {
	Name                string  `json:"name"`
	Enabled             bool    `json:"enabled"`
	Available           bool    `json:"available"`
	BreakerState        string  `json:"breaker_state"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

type entry struct {
	config     models.ProviderConfig
	classifier providers.Classifier
	breaker    *gobreaker.CircuitBreaker
	enabled    bool
}

// Registry holds provider configuration and availability state for the
// process lifetime. Many concurrent requests read it; only the health
// tracking paths write, behind a lock scoped to the update.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a provider. The circuit breaker opens after 3 consecutive
// failures and re-probes after 30 seconds, so one flapping provider stops
// being dispatched to without operator action.
func (r *Registry) Register(cfg models.ProviderConfig, c providers.Classifier) {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Provider %s circuit breaker: %s -> %s", name, from.String(), to.String())
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[cfg.Name] = &entry{
		config:     cfg,
		classifier: c,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		enabled:    cfg.Enabled,
	}
	r.order = append(r.order, cfg.Name)
}

// Get returns the classifier and config for a provider name.
func (r *Registry) Get(name string) (providers.Classifier, models.ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, models.ProviderConfig{}, false
	}
	return e.classifier, e.config, true
}

// Available lists providers that are enabled and whose breaker is not
// open, in registration order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.order {
		e := r.entries[name]
		if e.enabled && e.breaker.State() != gobreaker.StateOpen {
			names = append(names, name)
		}
	}
	return names
}

// SetEnabled flips a provider's enablement flag. Used by the health
// tracker and ops tooling; readers never block on this write beyond the
// map access itself.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.enabled = enabled
	}
}

// Call runs fn under the provider's circuit breaker so consecutive
// failures trip the provider out of the available set.
func (r *Registry) Call(name string, fn func() (*models.ProviderResult, error)) (*models.ProviderResult, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, models.NewProviderError(name, "provider not registered", false)
	}

	res, err := e.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, models.NewProviderError(name, "provider temporarily unavailable: "+err.Error(), true)
		}
		return nil, err
	}
	result, ok := res.(*models.ProviderResult)
	if !ok || result == nil {
		return nil, models.NewProviderError(name, "provider returned no result", false)
	}
	return result, nil
}

// Snapshot returns a copied view of every registered provider. The copy
// is owned by the caller; later registry writes do not affect it.
func (r *Registry) Snapshot() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]ProviderStatus, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		state := e.breaker.State()
		statuses = append(statuses, ProviderStatus{
			Name:                name,
			Enabled:             e.enabled,
			Available:           e.enabled && state != gobreaker.StateOpen,
			BreakerState:        state.String(),
			ConfidenceThreshold: e.config.ConfidenceThreshold,
		})
	}
	return statuses
}

// ProbeAll runs best-effort health probes on providers that offer one,
// feeding failures into the breaker. Safe to call at startup or on a
// timer; providers without a probe are skipped.
func (r *Registry) ProbeAll(ctx context.Context) {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, name := range names {
		c, _, ok := r.Get(name)
		if !ok {
			continue
		}
		prober, ok := c.(HealthProber)
		if !ok {
			continue
		}
		if _, err := r.Call(name, func() (*models.ProviderResult, error) {
			if err := prober.Probe(ctx); err != nil {
				return nil, models.NewProviderError(name, "health probe failed: "+err.Error(), true)
			}
			return &models.ProviderResult{Provider: name}, nil
		}); err != nil {
			log.Warnf("Provider %s failed health probe: %v", name, err)
		}
	}
}
