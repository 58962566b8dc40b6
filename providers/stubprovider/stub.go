package stubprovider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"plant-diagnosis-pipeline/models"
)

// diseases cycled through by the stub so different inputs yield different
// but stable diagnoses.
var diseases = []struct {
	id   string
	name string
}{
	{"leaf_blight", "Leaf Blight"},
	{"powdery_mildew", "Powdery Mildew"},
	{"leaf_rust", "Leaf Rust"},
	{"bacterial_spot", "Bacterial Spot"},
}

// Client is a deterministic, no-network classifier stub intended for CI
// and local end-to-end tests. It returns schema-valid results so the full
// orchestration path (executor, consensus, translator) is exercised
// without credentials or model files.
type Client struct {
	name string
}

func NewClient(cfg models.ProviderConfig) *Client {
	return &Client{name: cfg.Name}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Classify(ctx context.Context, images []models.NormalizedImage) (*models.ProviderResult, error) {
	if len(images) == 0 {
		return nil, models.NewProviderError(c.name, "no images to classify", false)
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewProviderError(c.name, "context done: "+err.Error(), false)
	}

	// Deterministic per-input so pipelines are stable in CI.
	sum := sha256.Sum256(images[0].Bytes)
	pick := diseases[int(sum[0])%len(diseases)]
	confidence := 0.5 + float64(binary.BigEndian.Uint16(sum[1:3]))/65535.0*0.45

	pred := models.Prediction{
		DiseaseID:   pick.id,
		Name:        pick.name,
		Confidence:  confidence,
		Severity:    models.SeverityFromConfidence(confidence),
		Description: "Stubbed diagnosis for CI runs.",
		Symptoms:    []string{"discolored patches on leaves"},
		Causes:      []string{"fungal infection"},
		Treatments:  []string{"apply copper-based fungicide"},
		Prevention:  []string{"avoid overhead watering"},
	}

	return &models.ProviderResult{
		Provider:       c.name,
		Predictions:    []models.Prediction{pred},
		Confidence:     confidence,
		IsHealthy:      false,
		ProcessingTime: time.Millisecond,
		ImageCount:     len(images),
	}, nil
}
