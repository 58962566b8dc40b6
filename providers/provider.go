package providers

import (
	"context"
	"net/http"
	"sort"

	"plant-diagnosis-pipeline/models"
)

// Classifier abstracts one external classification provider.
// Implementations must be concurrency-safe: the orchestrator calls them
// from multiple goroutines in ensemble mode.
type Classifier interface {
	// Classify submits normalized images and returns the provider's
	// opinion with predictions sorted highest confidence first. Failures
	// are returned as *models.ProviderError so the executor can decide
	// whether to retry.
	Classify(ctx context.Context, images []models.NormalizedImage) (*models.ProviderResult, error)
	// Name returns the provider label used in configs, logs and metrics.
	Name() string
}

type cropHintKey struct{}

// WithCropHint attaches the caller's crop hint to the call context so
// adapters that can use it (prompted LLMs, identification APIs) see it.
func WithCropHint(ctx context.Context, hint string) context.Context {
	if hint == "" {
		return ctx
	}
	return context.WithValue(ctx, cropHintKey{}, hint)
}

// CropHint returns the crop hint attached to ctx, or "".
func CropHint(ctx context.Context) string {
	hint, _ := ctx.Value(cropHintKey{}).(string)
	return hint
}

// RetryableStatus classifies an HTTP status per the shared retry policy:
// rate limits and server errors are transient, everything else in the
// 4xx range (bad credentials, malformed request, unsupported media) is
// permanent.
func RetryableStatus(status int) bool {
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return true
	}
	return status >= 500
}

// SortPredictions orders predictions highest confidence first, in place.
func SortPredictions(preds []models.Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})
}

// FillSeverity defaults any unset severity from the prediction's own
// confidence bucket so downstream code never sees an empty field.
func FillSeverity(preds []models.Prediction) {
	for i := range preds {
		if preds[i].Severity == "" {
			preds[i].Severity = models.SeverityFromConfidence(preds[i].Confidence)
		}
	}
}
