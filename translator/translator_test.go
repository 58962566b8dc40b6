package translator

import (
	"reflect"
	"testing"

	"plant-diagnosis-pipeline/models"
)

func TestTranslateRecoveryTimes(t *testing.T) {
	tr := New()

	tests := []struct {
		severity models.Severity
		want     string
	}{
		{models.SeverityLow, "1-2 weeks"},
		{models.SeverityMedium, "2-4 weeks"},
		{models.SeverityHigh, "1-2 months"},
		{models.SeverityCritical, "2-3 months"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			out := tr.Translate(models.Prediction{
				DiseaseID:  "leaf_blight",
				Name:       "Leaf Blight",
				Confidence: 0.8,
				Severity:   tt.severity,
			}, nil)
			if out.EstimatedRecoveryTime != tt.want {
				t.Errorf("EstimatedRecoveryTime = %q, want %q", out.EstimatedRecoveryTime, tt.want)
			}
		})
	}
}

func TestTranslateDefaultsSeverityFromConfidence(t *testing.T) {
	tr := New()

	tests := []struct {
		confidence float64
		want       models.Severity
	}{
		{0.95, models.SeverityHigh},
		{0.75, models.SeverityMedium},
		{0.55, models.SeverityLow},
		{0.3, models.SeverityCritical},
	}

	for _, tt := range tests {
		out := tr.Translate(models.Prediction{
			DiseaseID:  "leaf_blight",
			Name:       "Leaf Blight",
			Confidence: tt.confidence,
		}, nil)
		if out.Severity != tt.want {
			t.Errorf("confidence %v: Severity = %q, want %q", tt.confidence, out.Severity, tt.want)
		}
	}
}

func TestTranslateTreatmentGrouping(t *testing.T) {
	tr := New()

	out := tr.Translate(models.Prediction{
		DiseaseID:  "leaf_blight",
		Name:       "Leaf Blight",
		Confidence: 0.8,
		Severity:   models.SeverityMedium,
		Treatments: []string{
			"Apply copper-based fungicide weekly",
			"Introduce Trichoderma to the soil",
			"Remove affected leaves by hand",
		},
	}, nil)

	byCategory := map[string]int{}
	for _, step := range out.TreatmentSteps {
		byCategory[step.Category]++
		defaults := categoryDefaults[step.Category]
		if step.Duration != defaults.duration {
			t.Errorf("category %s: Duration = %q, want %q", step.Category, step.Duration, defaults.duration)
		}
		if step.Frequency != defaults.frequency {
			t.Errorf("category %s: Frequency = %q, want %q", step.Category, step.Frequency, defaults.frequency)
		}
	}

	want := map[string]int{CategoryChemical: 1, CategoryBiological: 1, CategoryOrganic: 1}
	if !reflect.DeepEqual(byCategory, want) {
		t.Errorf("treatment grouping = %v, want %v", byCategory, want)
	}
}

func TestTranslateDefaultPlanWhenNoTreatments(t *testing.T) {
	tr := New()

	out := tr.Translate(models.Prediction{
		DiseaseID:  "leaf_blight",
		Name:       "Leaf Blight",
		Confidence: 0.8,
		Severity:   models.SeverityMedium,
	}, nil)

	if len(out.TreatmentSteps) == 0 {
		t.Fatal("TreatmentSteps is empty; want default plan")
	}
	seen := map[string]bool{}
	for _, step := range out.TreatmentSteps {
		seen[step.Category] = true
	}
	for _, category := range []string{CategoryChemical, CategoryBiological, CategoryOrganic} {
		if !seen[category] {
			t.Errorf("default plan missing category %s", category)
		}
	}
}

func TestTranslateDeterministic(t *testing.T) {
	tr := New()

	pred := models.Prediction{
		DiseaseID:  "powdery_mildew",
		Name:       "Powdery Mildew",
		Confidence: 0.72,
		Symptoms:   []string{"white powder on leaves"},
		Treatments: []string{"apply sulfur dust", "neem oil spray"},
		Prevention: []string{"improve air circulation"},
	}

	first := tr.Translate(pred, nil)
	second := tr.Translate(pred, nil)
	if !reflect.DeepEqual(first, second) {
		t.Error("Translate is not deterministic for identical input")
	}
}

func TestTranslateHealthy(t *testing.T) {
	tr := New()

	out := tr.Translate(models.Prediction{
		DiseaseID:  "healthy",
		Name:       "Healthy",
		Confidence: 0.95,
		Severity:   models.SeverityLow,
	}, nil)

	if !out.IsHealthy {
		t.Error("IsHealthy = false, want true")
	}
	if out.AffectedAreaPercent != 0 {
		t.Errorf("AffectedAreaPercent = %v, want 0", out.AffectedAreaPercent)
	}
	if len(out.TreatmentSteps) != 0 {
		t.Error("healthy diagnosis has treatment steps")
	}
}

func TestTranslateEnsembleAnnotations(t *testing.T) {
	tr := New()

	ensemble := &models.EnsembleResult{
		Consensus: models.Consensus{
			AgreementLevel:         0.5,
			ConflictingPredictions: true,
			ReliabilityScore:       0.4,
		},
		Metadata: models.EnsembleMetadata{
			ProvidersUsed: []string{"leafscan", "phytovision"},
		},
	}

	out := tr.Translate(models.Prediction{
		DiseaseID:  "leaf_rust",
		Name:       "Leaf Rust",
		Confidence: 0.6,
		Severity:   models.SeverityLow,
	}, ensemble)

	if out.Consensus == nil {
		t.Fatal("Consensus is nil")
	}
	if !out.Consensus.ConflictingPredictions {
		t.Error("ConflictingPredictions not carried into the diagnosis")
	}
	if len(out.ProvidersUsed) != 2 {
		t.Errorf("ProvidersUsed = %v, want two providers", out.ProvidersUsed)
	}

	conflictNoted := false
	reliabilityNoted := false
	for _, rf := range out.RiskFactors {
		if rf == "classification providers disagreed on the diagnosis" {
			conflictNoted = true
		}
		if rf == "low reliability score; consider a follow-up photo" {
			reliabilityNoted = true
		}
	}
	if !conflictNoted || !reliabilityNoted {
		t.Errorf("RiskFactors = %v, want conflict and low-reliability notes", out.RiskFactors)
	}
}
