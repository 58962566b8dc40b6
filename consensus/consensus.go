package consensus

import (
	"sort"

	"plant-diagnosis-pipeline/models"
)

// MethodName identifies the combination algorithm in result metadata.
const MethodName = "weighted_majority_vote"

// vote accumulates support for one disease id across providers.
type vote struct {
	diseaseID          string
	count              int
	weightedConfidence float64
	// best carries the richest prediction seen for this disease so the
	// final result keeps symptoms/treatments from whichever provider
	// supplied them.
	best models.Prediction
}

// Engine combines multiple providers' predictions into one result with
// an agreement and reliability score.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// Combine implements weighted majority voting over a non-empty result
// set. Every prediction votes for its disease id, weighted by the
// product of its own confidence and its provider's self-reported
// confidence; this deliberately rewards both breadth of agreement and
// depth of per-provider confidence without normalizing the two.
//
// The ranking is insensitive to arrival order: votes sort by count,
// then average weighted confidence, then disease id.
func (e *Engine) Combine(results []models.ProviderResult) (*models.EnsembleResult, error) {
	if len(results) == 0 {
		return nil, &models.NoPredictionError{Source: "consensus engine"}
	}

	votes := make(map[string]*vote)
	contributing := 0
	minProviderConfidence := 1.0
	allHealthy := true

	for _, r := range results {
		if len(r.Predictions) == 0 && !r.IsHealthy {
			continue
		}
		contributing++
		if r.Confidence < minProviderConfidence {
			minProviderConfidence = r.Confidence
		}
		if !r.IsHealthy {
			allHealthy = false
		}
		for _, p := range r.Predictions {
			v, ok := votes[p.DiseaseID]
			if !ok {
				v = &vote{diseaseID: p.DiseaseID, best: p}
				votes[p.DiseaseID] = v
			}
			v.count++
			v.weightedConfidence += p.Confidence * r.Confidence
			if richness(p) > richness(v.best) {
				v.best = p
			}
		}
	}

	if contributing == 0 {
		return nil, &models.NoPredictionError{Source: "consensus engine"}
	}

	providersUsed := make([]string, 0, len(results))
	for _, r := range results {
		providersUsed = append(providersUsed, r.Provider)
	}

	if len(votes) == 0 {
		// Every contributing provider reported a healthy plant.
		if allHealthy {
			return &models.EnsembleResult{
				FinalPrediction: models.Prediction{
					DiseaseID:  "healthy",
					Name:       "Healthy",
					Confidence: minProviderConfidence,
					Severity:   models.SeverityLow,
				},
				ProviderResults: results,
				Consensus: models.Consensus{
					AgreementLevel:   1.0,
					ReliabilityScore: minProviderConfidence,
				},
				Metadata: models.EnsembleMetadata{
					ProvidersUsed: providersUsed,
					Method:        MethodName,
				},
			}, nil
		}
		return nil, &models.NoPredictionError{Source: "consensus engine"}
	}

	ranked := make([]*vote, 0, len(votes))
	for _, v := range votes {
		ranked = append(ranked, v)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		avgI := ranked[i].weightedConfidence / float64(ranked[i].count)
		avgJ := ranked[j].weightedConfidence / float64(ranked[j].count)
		if avgI != avgJ {
			return avgI > avgJ
		}
		return ranked[i].diseaseID < ranked[j].diseaseID
	})

	top := ranked[0]
	final := top.best
	final.Confidence = top.weightedConfidence / float64(top.count)
	if final.Severity == "" {
		final.Severity = models.SeverityFromConfidence(final.Confidence)
	}

	// agreement is the share of contributing providers backing the winner
	agreementLevel := float64(top.count) / float64(contributing)
	if agreementLevel > 1.0 {
		agreementLevel = 1.0
	}

	return &models.EnsembleResult{
		FinalPrediction: final,
		ProviderResults: results,
		Consensus: models.Consensus{
			AgreementLevel:         agreementLevel,
			ConflictingPredictions: len(ranked) > 1,
			ReliabilityScore:       agreementLevel * minProviderConfidence,
		},
		Metadata: models.EnsembleMetadata{
			ProvidersUsed: providersUsed,
			Method:        MethodName,
		},
	}, nil
}

// richness scores how much detail a prediction carries so the consensus
// result keeps the most informative variant of the winning disease.
func richness(p models.Prediction) int {
	return len(p.Symptoms) + len(p.Causes) + len(p.Treatments) + len(p.Prevention) + len(p.Description)
}
