package registry

import (
	"context"
	"errors"
	"testing"

	"plant-diagnosis-pipeline/models"
)

type fakeClassifier struct {
	name string
}

func (f *fakeClassifier) Name() string { return f.name }

func (f *fakeClassifier) Classify(ctx context.Context, images []models.NormalizedImage) (*models.ProviderResult, error) {
	return &models.ProviderResult{Provider: f.name}, nil
}

func newTestRegistry(names ...string) *Registry {
	r := New()
	for _, name := range names {
		r.Register(models.ProviderConfig{Name: name, Enabled: true}, &fakeClassifier{name: name})
	}
	return r
}

func TestAvailableRespectsEnablement(t *testing.T) {
	r := newTestRegistry("a", "b", "c")

	if got := r.Available(); len(got) != 3 {
		t.Fatalf("Available() = %v, want 3 providers", got)
	}

	r.SetEnabled("b", false)
	got := r.Available()
	if len(got) != 2 {
		t.Fatalf("Available() = %v, want 2 providers after disabling b", got)
	}
	for _, name := range got {
		if name == "b" {
			t.Error("disabled provider still listed as available")
		}
	}
}

func TestBreakerTripsProviderOutOfAvailableSet(t *testing.T) {
	r := newTestRegistry("flaky", "steady")

	fail := func() (*models.ProviderResult, error) {
		return nil, models.NewProviderError("flaky", "boom", true)
	}
	// Breaker trips on the third consecutive failure.
	for i := 0; i < 3; i++ {
		if _, err := r.Call("flaky", fail); err == nil {
			t.Fatal("Call returned nil error for failing provider")
		}
	}

	got := r.Available()
	if len(got) != 1 || got[0] != "steady" {
		t.Errorf("Available() = %v, want [steady] after breaker trip", got)
	}

	// Calls through an open breaker fail fast with a retryable error.
	_, err := r.Call("flaky", fail)
	var pe *models.ProviderError
	if !errors.As(err, &pe) || !pe.Retryable {
		t.Errorf("open-breaker error = %v, want retryable ProviderError", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	r := newTestRegistry("a", "b")

	snap := r.Snapshot()
	r.SetEnabled("a", false)

	for _, st := range snap {
		if st.Name == "a" && !st.Enabled {
			t.Error("registry write leaked into an earlier snapshot")
		}
	}

	fresh := r.Snapshot()
	for _, st := range fresh {
		if st.Name == "a" && st.Enabled {
			t.Error("fresh snapshot does not reflect the enablement change")
		}
	}
}

func TestCallUnknownProvider(t *testing.T) {
	r := newTestRegistry("a")

	_, err := r.Call("nope", func() (*models.ProviderResult, error) {
		return &models.ProviderResult{}, nil
	})
	if err == nil {
		t.Fatal("Call on unknown provider returned nil error")
	}
}

func TestGet(t *testing.T) {
	r := New()
	cfg := models.ProviderConfig{Name: "a", Enabled: true, ConfidenceThreshold: 0.6}
	r.Register(cfg, &fakeClassifier{name: "a"})

	c, gotCfg, ok := r.Get("a")
	if !ok {
		t.Fatal("Get returned ok = false")
	}
	if c.Name() != "a" {
		t.Errorf("classifier name = %q, want %q", c.Name(), "a")
	}
	if gotCfg.ConfidenceThreshold != 0.6 {
		t.Errorf("config threshold = %v, want 0.6", gotCfg.ConfidenceThreshold)
	}

	if _, _, ok := r.Get("missing"); ok {
		t.Error("Get on missing provider returned ok = true")
	}
}
