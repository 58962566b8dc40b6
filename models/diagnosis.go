package models

import (
	"time"
)

// Severity is the coarse severity bucket attached to a prediction.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFromConfidence derives a severity bucket for providers that cannot
// express severity themselves. Confidence below 0.5 means we detected
// something but cannot size it, which is treated as critical until a human
// or a better provider says otherwise.
func SeverityFromConfidence(confidence float64) Severity {
	switch {
	case confidence >= 0.9:
		return SeverityHigh
	case confidence >= 0.7:
		return SeverityMedium
	case confidence >= 0.5:
		return SeverityLow
	default:
		return SeverityCritical
	}
}

// NormalizedImage is the provider-agnostic payload produced by the
// preprocessor. Immutable once created; owned by the request that made it.
type NormalizedImage struct {
	Bytes  []byte
	Base64 string
	Width  int
	Height int
	Format string
	Size   int
}

// ProviderConfig is the startup configuration for one classification
// provider. Read-only for the process lifetime; only the registry flips
// availability at runtime.
type ProviderConfig struct {
	Name                string
	Enabled             bool
	APIKey              string
	Endpoint            string
	Model               string
	Timeout             time.Duration
	ConfidenceThreshold float64
	RateLimitPerMinute  int
	MaxAttempts         int
	RetryBaseDelay      time.Duration

	// Local-model providers load from disk instead of calling an endpoint.
	ModelPath    string
	MetadataPath string
}

// Prediction is one candidate diagnosis, normalized to a common shape
// regardless of the source provider's native schema.
type Prediction struct {
	DiseaseID   string   `json:"disease_id"`
	Name        string   `json:"name"`
	Confidence  float64  `json:"confidence"`
	Severity    Severity `json:"severity,omitempty"`
	Description string   `json:"description,omitempty"`
	Symptoms    []string `json:"symptoms,omitempty"`
	Causes      []string `json:"causes,omitempty"`
	Treatments  []string `json:"treatments,omitempty"`
	Prevention  []string `json:"prevention,omitempty"`
}

// ProviderResult is the outcome of one successful provider call.
// Predictions are ordered highest confidence first. Never mutated after
// creation.
type ProviderResult struct {
	Provider       string        `json:"provider"`
	Predictions    []Prediction  `json:"predictions"`
	Confidence     float64       `json:"confidence"`
	IsHealthy      bool          `json:"is_healthy"`
	ProcessingTime time.Duration `json:"processing_time"`
	ImageCount     int           `json:"image_count"`
	RawResponse    string        `json:"-"`
}

// TopPrediction returns the highest-confidence prediction, or nil if the
// provider returned none.
func (r *ProviderResult) TopPrediction() *Prediction {
	if len(r.Predictions) == 0 {
		return nil
	}
	return &r.Predictions[0]
}

// Consensus describes how well the contributing providers agreed.
type Consensus struct {
	AgreementLevel         float64 `json:"agreement_level"`
	ConflictingPredictions bool    `json:"conflicting_predictions"`
	ReliabilityScore       float64 `json:"reliability_score"`
}

// EnsembleMetadata records which providers contributed and how long the
// whole ensemble took.
type EnsembleMetadata struct {
	ProvidersUsed []string         `json:"providers_used"`
	TotalTime     time.Duration    `json:"total_time"`
	Method        string           `json:"method"`
	Errors        []*ProviderError `json:"errors,omitempty"`
}

// EnsembleResult is the combined outcome of an ensemble diagnosis.
// FinalPrediction always names a disease id present in at least one
// contributing ProviderResult.
type EnsembleResult struct {
	FinalPrediction Prediction       `json:"final_prediction"`
	ProviderResults []ProviderResult `json:"provider_results"`
	Consensus       Consensus        `json:"consensus"`
	Metadata        EnsembleMetadata `json:"metadata"`
}

// TreatmentStep is one structured step in a treatment plan.
type TreatmentStep struct {
	Category    string `json:"category"`
	Instruction string `json:"instruction"`
	Duration    string `json:"duration"`
	Frequency   string `json:"frequency"`
}

// DiagnosisResult is the outward-facing record returned to the platform.
// Derived deterministically from a Prediction by the translator; the only
// entity exposed outside the engine.
type DiagnosisResult struct {
	RequestID             string          `json:"request_id"`
	DiseaseID             string          `json:"disease_id"`
	DiseaseName           string          `json:"disease_name"`
	Confidence            float64         `json:"confidence"`
	Severity              Severity        `json:"severity"`
	IsHealthy             bool            `json:"is_healthy"`
	AffectedAreaPercent   float64         `json:"affected_area_percent"`
	Symptoms              []string        `json:"symptoms"`
	Causes                []string        `json:"causes"`
	TreatmentSteps        []TreatmentStep `json:"treatment_steps"`
	PreventionTips        []string        `json:"prevention_tips"`
	EstimatedRecoveryTime string          `json:"estimated_recovery_time"`
	RiskFactors           []string        `json:"risk_factors"`
	Mode                  string          `json:"mode"`
	ProvidersUsed         []string        `json:"providers_used"`
	Consensus             *Consensus      `json:"consensus,omitempty"`
	ProcessingTime        time.Duration   `json:"processing_time"`
}
