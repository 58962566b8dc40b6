package phytovision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"plant-diagnosis-pipeline/models"
	"plant-diagnosis-pipeline/providers"
)

// identifyRequest is the provider's native request shape: base64 images
// plus modifiers controlling the health assessment.
type identifyRequest struct {
	Images             []string `json:"images"`
	Modifiers          []string `json:"modifiers"`
	DiseaseDetails     []string `json:"disease_details"`
	SuggestedPlantName string   `json:"suggested_plant_name,omitempty"`
}

type identifyResponse struct {
	IsPlant          bool    `json:"is_plant"`
	IsPlantProb      float64 `json:"is_plant_probability"`
	Suggestions      []plantSuggestion `json:"suggestions"`
	HealthAssessment struct {
		IsHealthy            bool                `json:"is_healthy"`
		IsHealthyProbability float64             `json:"is_healthy_probability"`
		Diseases             []diseaseSuggestion `json:"diseases"`
	} `json:"health_assessment"`
}

type plantSuggestion struct {
	PlantName   string  `json:"plant_name"`
	Probability float64 `json:"probability"`
}

type diseaseSuggestion struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	Details     struct {
		Description string   `json:"description"`
		Treatment   struct {
			Chemical   []string `json:"chemical"`
			Biological []string `json:"biological"`
			Prevention []string `json:"prevention"`
		} `json:"treatment"`
		CommonNames []string `json:"common_names"`
	} `json:"disease_details"`
}

// Client calls a plant-identification REST API. The provider's native
// semantics are plant identity plus a health assessment; the adapter
// flattens the assessment's disease suggestions into the common
// prediction shape.
type Client struct {
	name     string
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewClient(cfg models.ProviderConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.phytovision.example.com/v2/identify"
	}
	return &Client{
		name:     cfg.Name,
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		http:     &http.Client{},
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Classify(ctx context.Context, images []models.NormalizedImage) (*models.ProviderResult, error) {
	if len(images) == 0 {
		return nil, models.NewProviderError(c.name, "no images to classify", false)
	}

	encoded := make([]string, 0, len(images))
	for _, img := range images {
		encoded = append(encoded, img.Base64)
	}
	reqBody := identifyRequest{
		Images:             encoded,
		Modifiers:          []string{"health_all", "similar_images"},
		DiseaseDetails:     []string{"description", "treatment", "common_names"},
		SuggestedPlantName: providers.CropHint(ctx),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, models.NewProviderError(c.name, "error marshaling request: "+err.Error(), false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, models.NewProviderError(c.name, "error creating request: "+err.Error(), false)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, models.NewProviderError(c.name, "request canceled", false)
		}
		return nil, models.NewProviderError(c.name, "error sending request: "+err.Error(), true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewProviderError(c.name, "error reading response body: "+err.Error(), true)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body))
		return nil, models.NewProviderError(c.name, msg, providers.RetryableStatus(resp.StatusCode))
	}

	var ir identifyResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, models.NewProviderError(c.name, "error parsing response: "+err.Error(), false)
	}

	preds := make([]models.Prediction, 0, len(ir.HealthAssessment.Diseases))
	for _, d := range ir.HealthAssessment.Diseases {
		name := d.Name
		if len(d.Details.CommonNames) > 0 {
			name = d.Details.CommonNames[0]
		}
		treatments := append([]string{}, d.Details.Treatment.Chemical...)
		treatments = append(treatments, d.Details.Treatment.Biological...)
		preds = append(preds, models.Prediction{
			DiseaseID:   DiseaseID(d.Name),
			Name:        name,
			Confidence:  d.Probability,
			Description: d.Details.Description,
			Treatments:  treatments,
			Prevention:  d.Details.Treatment.Prevention,
		})
	}
	providers.SortPredictions(preds)
	providers.FillSeverity(preds)

	healthy := ir.HealthAssessment.IsHealthy
	overall := 0.0
	if len(preds) > 0 {
		overall = preds[0].Confidence
	} else if healthy {
		overall = ir.HealthAssessment.IsHealthyProbability
	}

	return &models.ProviderResult{
		Provider:       c.name,
		Predictions:    preds,
		Confidence:     overall,
		IsHealthy:      healthy,
		ProcessingTime: time.Since(started),
		ImageCount:     len(images),
		RawResponse:    string(body),
	}, nil
}

// DiseaseID turns a raw provider label into the canonical snake_case
// disease identifier: "Late blight" -> "late_blight".
func DiseaseID(label string) string {
	id := strings.ToLower(strings.TrimSpace(label))
	id = strings.ReplaceAll(id, "-", " ")
	fields := strings.Fields(id)
	return strings.Join(fields, "_")
}
