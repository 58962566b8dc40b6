package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"plant-diagnosis-pipeline/config"
	"plant-diagnosis-pipeline/consensus"
	"plant-diagnosis-pipeline/executor"
	"plant-diagnosis-pipeline/metrics"
	"plant-diagnosis-pipeline/models"
	"plant-diagnosis-pipeline/preprocess"
	"plant-diagnosis-pipeline/providers"
	"plant-diagnosis-pipeline/registry"
	"plant-diagnosis-pipeline/translator"
)

const (
	ModePrimary  = "primary"
	ModeEnsemble = "ensemble"
)

// DiagnoseOptions are the per-request knobs of the public entry point.
type DiagnoseOptions struct {
	Mode     string
	CropHint string
	// Timeout bounds the whole diagnosis; zero means the configured
	// request timeout.
	Timeout time.Duration
}

// Service orchestrates diagnosis requests across the registered
// providers: preprocessing, dispatch, retry, fallback or consensus, and
// translation into the outward-facing record.
type Service struct {
	config       *config.Config
	registry     *registry.Registry
	executor     *executor.Executor
	preprocessor *preprocess.Preprocessor
	consensus    *consensus.Engine
	translator   *translator.Translator
}

// NewService creates the orchestrator around an already-populated
// provider registry.
func NewService(cfg *config.Config, reg *registry.Registry) *Service {
	return &Service{
		config:       cfg,
		registry:     reg,
		executor:     executor.New(),
		preprocessor: preprocess.New(cfg.MaxImageDimension),
		consensus:    consensus.New(),
		translator:   translator.New(),
	}
}

// Diagnose is the single public entry point: raw images in, one
// DiagnosisResult out. Mode selects primary-with-fallback or ensemble.
func (s *Service) Diagnose(ctx context.Context, images [][]byte, opts DiagnoseOptions) (*models.DiagnosisResult, error) {
	requestID := uuid.NewString()
	started := time.Now()

	mode := opts.Mode
	if mode == "" {
		mode = s.config.Mode
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.config.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = providers.WithCropHint(ctx, opts.CropHint)

	log.Infof("Diagnosis %s started: mode=%s images=%d", requestID, mode, len(images))

	normalized, err := s.preprocessor.ProcessAll(images)
	if err != nil {
		metrics.DiagnosesTotal.WithLabelValues(mode, "invalid_input").Inc()
		return nil, err
	}

	var result *models.DiagnosisResult
	switch mode {
	case ModeEnsemble:
		result, err = s.diagnoseEnsemble(ctx, normalized)
	case ModePrimary:
		result, err = s.diagnosePrimary(ctx, normalized)
	default:
		metrics.DiagnosesTotal.WithLabelValues(mode, "bad_mode").Inc()
		return nil, fmt.Errorf("unknown diagnosis mode %q", mode)
	}

	elapsed := time.Since(started)
	metrics.DiagnosisDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if err != nil {
		metrics.DiagnosesTotal.WithLabelValues(mode, "error").Inc()
		log.Errorf("Diagnosis %s failed after %v: %v", requestID, elapsed, err)
		return nil, err
	}

	result.RequestID = requestID
	result.Mode = mode
	result.ProcessingTime = elapsed
	metrics.DiagnosesTotal.WithLabelValues(mode, "ok").Inc()
	log.Infof("Diagnosis %s done in %v: disease=%s confidence=%.2f providers=%v",
		requestID, elapsed, result.DiseaseID, result.Confidence, result.ProvidersUsed)
	return result, nil
}

// callProvider runs one provider through the retry executor, under the
// provider's circuit breaker so repeated exhausted calls trip it out of
// the available set.
func (s *Service) callProvider(ctx context.Context, name string, images []models.NormalizedImage) (*models.ProviderResult, *models.ProviderError) {
	classifier, cfg, ok := s.registry.Get(name)
	if !ok {
		return nil, models.NewProviderError(name, "provider not registered", false)
	}

	started := time.Now()
	result, err := s.registry.Call(name, func() (*models.ProviderResult, error) {
		return s.executor.Execute(ctx, cfg, func(attemptCtx context.Context) (*models.ProviderResult, error) {
			return classifier.Classify(attemptCtx, images)
		})
	})
	metrics.ProviderCallDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(name, "error").Inc()
		var pe *models.ProviderError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, models.NewProviderError(name, err.Error(), false)
	}
	if len(result.Predictions) == 0 && !result.IsHealthy {
		// An empty prediction set is a failure, not a silent "healthy".
		metrics.ProviderCallsTotal.WithLabelValues(name, "empty").Inc()
		npe := &models.NoPredictionError{Source: name}
		return nil, models.NewProviderError(name, npe.Error(), false)
	}
	metrics.ProviderCallsTotal.WithLabelValues(name, "ok").Inc()
	return result, nil
}

// diagnosePrimary calls the configured primary provider and falls back
// to the secondary on failure or low confidence. The fallback is the
// last resort: its result is accepted without a confidence check.
func (s *Service) diagnosePrimary(ctx context.Context, images []models.NormalizedImage) (*models.DiagnosisResult, error) {
	primary, primaryErr := s.callProvider(ctx, s.config.PrimaryProvider, images)
	if primaryErr == nil && primary.Confidence >= s.config.ConfidenceThreshold {
		return s.finalizeSingle(primary), nil
	}

	if primaryErr != nil {
		log.Warnf("Primary provider %s failed, trying fallback %s: %v",
			s.config.PrimaryProvider, s.config.FallbackProvider, primaryErr)
	} else {
		log.Infof("Primary provider %s below threshold (%.2f < %.2f), trying fallback %s",
			s.config.PrimaryProvider, primary.Confidence, s.config.ConfidenceThreshold, s.config.FallbackProvider)
	}

	fallback, fallbackErr := s.callProvider(ctx, s.config.FallbackProvider, images)
	if fallbackErr == nil {
		return s.finalizeSingle(fallback), nil
	}

	// Fallback failed. A low-confidence primary result still beats an
	// error: partial success is success.
	if primaryErr == nil {
		log.Warnf("Fallback provider %s failed, keeping low-confidence primary result: %v",
			s.config.FallbackProvider, fallbackErr)
		return s.finalizeSingle(primary), nil
	}

	// Both failed: the aggregate surfaces the primary's error first
	// (earliest critical failure, not the last).
	return nil, &models.AllProvidersFailedError{
		Errors: []*models.ProviderError{primaryErr, fallbackErr},
	}
}

// diagnoseEnsemble dispatches to every available provider concurrently,
// waits for all calls to settle, and combines the successes.
func (s *Service) diagnoseEnsemble(ctx context.Context, images []models.NormalizedImage) (*models.DiagnosisResult, error) {
	names := s.registry.Available()
	if len(names) == 0 {
		return nil, &models.AllProvidersFailedError{}
	}

	started := time.Now()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  []models.ProviderResult
		provErrs []*models.ProviderError
	)
	for _, name := range names {
		wg.Add(1)
		go func(provider string) {
			defer wg.Done()
			result, perr := s.callProvider(ctx, provider, images)
			mu.Lock()
			defer mu.Unlock()
			if perr != nil {
				provErrs = append(provErrs, perr)
				return
			}
			results = append(results, *result)
		}(name)
	}
	wg.Wait()

	// Parent cancellation discards partial results: the request is
	// all-or-nothing.
	if err := ctx.Err(); err != nil {
		agg := &models.AllProvidersFailedError{Errors: provErrs}
		return nil, fmt.Errorf("diagnosis canceled: %w (%s)", err, agg.Error())
	}

	if len(results) == 0 {
		return nil, &models.AllProvidersFailedError{Errors: provErrs}
	}

	ensemble, err := s.consensus.Combine(results)
	if err != nil {
		return nil, err
	}
	ensemble.Metadata.TotalTime = time.Since(started)
	ensemble.Metadata.Errors = provErrs
	metrics.EnsembleAgreement.Observe(ensemble.Consensus.AgreementLevel)

	if len(provErrs) > 0 {
		log.Warnf("Ensemble degraded: %d/%d providers succeeded", len(results), len(names))
	}

	return s.translator.Translate(ensemble.FinalPrediction, ensemble), nil
}

// finalizeSingle translates one provider's result. A healthy result with
// no predictions becomes an explicit healthy diagnosis.
func (s *Service) finalizeSingle(result *models.ProviderResult) *models.DiagnosisResult {
	var pred models.Prediction
	if top := result.TopPrediction(); top != nil {
		pred = *top
	} else {
		pred = models.Prediction{
			DiseaseID:  "healthy",
			Name:       "Healthy",
			Confidence: result.Confidence,
			Severity:   models.SeverityLow,
		}
	}
	diagnosis := s.translator.Translate(pred, nil)
	diagnosis.ProvidersUsed = []string{result.Provider}
	return diagnosis
}
