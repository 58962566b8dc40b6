package translator

import (
	"strings"

	"plant-diagnosis-pipeline/models"
)

// Treatment categories used to group steps in a treatment plan.
const (
	CategoryChemical   = "chemical"
	CategoryBiological = "biological"
	CategoryOrganic    = "organic"
)

// recoveryTimes is the deterministic lookup from severity to an
// estimated recovery window.
var recoveryTimes = map[models.Severity]string{
	models.SeverityLow:      "1-2 weeks",
	models.SeverityMedium:   "2-4 weeks",
	models.SeverityHigh:     "1-2 months",
	models.SeverityCritical: "2-3 months",
}

// affectedArea is a coarse severity-derived estimate of how much of the
// plant is affected, in percent.
var affectedArea = map[models.Severity]float64{
	models.SeverityLow:      10,
	models.SeverityMedium:   30,
	models.SeverityHigh:     55,
	models.SeverityCritical: 80,
}

// categoryDefaults are the fixed duration/frequency applied to every
// step in a category.
var categoryDefaults = map[string]struct{ duration, frequency string }{
	CategoryChemical:   {"7-14 days", "every 7 days"},
	CategoryBiological: {"14-21 days", "every 10 days"},
	CategoryOrganic:    {"14-28 days", "every 5 days"},
}

// defaultPlans fill in a treatment plan when the winning prediction came
// from a provider that reports no treatment text at all.
var defaultPlans = map[string][]string{
	CategoryChemical:   {"Apply a broad-spectrum fungicide labeled for the crop"},
	CategoryBiological: {"Introduce a Bacillus subtilis based biocontrol agent"},
	CategoryOrganic:    {"Remove and destroy affected foliage; apply neem oil spray"},
}

// categoryKeywords classify free-text treatments from providers into a
// category. First match wins; unmatched text defaults to organic.
var categoryKeywords = map[string][]string{
	CategoryChemical:   {"fungicide", "copper", "sulfur", "chlorothalonil", "mancozeb", "spray chemical", "bactericide"},
	CategoryBiological: {"bacillus", "trichoderma", "biocontrol", "beneficial", "predator", "mycorrhiz"},
}

// Translator maps a chosen or combined prediction into the outward-facing
// diagnosis record. Pure and deterministic: same prediction in, same
// record out.
type Translator struct{}

func New() *Translator {
	return &Translator{}
}

// Translate builds the DiagnosisResult for a prediction, annotated with
// ensemble consensus data when the prediction came from ensemble mode.
func (t *Translator) Translate(pred models.Prediction, ensemble *models.EnsembleResult) *models.DiagnosisResult {
	severity := pred.Severity
	if severity == "" {
		severity = models.SeverityFromConfidence(pred.Confidence)
	}

	result := &models.DiagnosisResult{
		DiseaseID:             pred.DiseaseID,
		DiseaseName:           pred.Name,
		Confidence:            pred.Confidence,
		Severity:              severity,
		IsHealthy:             pred.DiseaseID == "healthy",
		AffectedAreaPercent:   affectedArea[severity],
		Symptoms:              pred.Symptoms,
		Causes:                pred.Causes,
		TreatmentSteps:        buildTreatmentPlan(pred.Treatments),
		PreventionTips:        pred.Prevention,
		EstimatedRecoveryTime: recoveryTimes[severity],
		RiskFactors:           riskFactors(severity, ensemble),
	}

	if result.IsHealthy {
		result.AffectedAreaPercent = 0
		result.TreatmentSteps = nil
		result.EstimatedRecoveryTime = ""
	}

	if ensemble != nil {
		c := ensemble.Consensus
		result.Consensus = &c
		result.ProvidersUsed = ensemble.Metadata.ProvidersUsed
	}
	return result
}

// buildTreatmentPlan groups treatments by category with the fixed
// per-category duration/frequency defaults. Providers that report no
// treatments get the default per-category plan.
func buildTreatmentPlan(treatments []string) []models.TreatmentStep {
	grouped := map[string][]string{}
	if len(treatments) == 0 {
		grouped = defaultPlans
	} else {
		for _, tr := range treatments {
			grouped[categorize(tr)] = append(grouped[categorize(tr)], tr)
		}
	}

	var steps []models.TreatmentStep
	for _, category := range []string{CategoryChemical, CategoryBiological, CategoryOrganic} {
		defaults := categoryDefaults[category]
		for _, instruction := range grouped[category] {
			steps = append(steps, models.TreatmentStep{
				Category:    category,
				Instruction: instruction,
				Duration:    defaults.duration,
				Frequency:   defaults.frequency,
			})
		}
	}
	return steps
}

func categorize(treatment string) string {
	lower := strings.ToLower(treatment)
	for _, category := range []string{CategoryChemical, CategoryBiological} {
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(lower, kw) {
				return category
			}
		}
	}
	return CategoryOrganic
}

func riskFactors(severity models.Severity, ensemble *models.EnsembleResult) []string {
	var factors []string
	switch severity {
	case models.SeverityHigh:
		factors = append(factors, "disease may spread to neighboring plants")
	case models.SeverityCritical:
		factors = append(factors, "disease may spread to neighboring plants",
			"plant loss likely without prompt treatment")
	}
	if ensemble != nil {
		if ensemble.Consensus.ConflictingPredictions {
			factors = append(factors, "classification providers disagreed on the diagnosis")
		}
		if ensemble.Consensus.ReliabilityScore < 0.5 {
			factors = append(factors, "low reliability score; consider a follow-up photo")
		}
	}
	return factors
}
