package models

import (
	"fmt"
	"strings"
	"time"
)

// InvalidImageError reports input bytes that could not be decoded as an
// image. Never retried.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image: %s", e.Reason)
}

// ProviderError is a failed provider call. Retryable distinguishes
// transient failures (timeouts, 5xx, rate limits) from permanent ones
// (bad credentials, malformed request, unsupported media).
type ProviderError struct {
	Provider  string    `json:"provider"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("provider %s: %s (%s)", e.Provider, e.Message, kind)
}

// NewProviderError stamps a ProviderError with the current time.
func NewProviderError(provider, message string, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now(),
	}
}

// AllProvidersFailedError aggregates every provider failure from an
// ensemble run that produced zero usable results.
type AllProvidersFailedError struct {
	Errors []*ProviderError
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Errors) == 0 {
		return "all providers failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", pe.Provider, pe.Message))
	}
	return fmt.Sprintf("all %d providers failed: %s", len(e.Errors), strings.Join(parts, "; "))
}

// NoPredictionError means a provider or the consensus engine produced an
// empty prediction set. Treated as a failure, never as a silent "healthy".
type NoPredictionError struct {
	Source string
}

func (e *NoPredictionError) Error() string {
	return fmt.Sprintf("%s returned no predictions", e.Source)
}
