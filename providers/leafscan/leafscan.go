package leafscan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"plant-diagnosis-pipeline/models"
	"plant-diagnosis-pipeline/parser"
	"plant-diagnosis-pipeline/providers"
)

const promptSystem = `
You are **LeafScan**, a vision-enabled plant pathologist. You are given one
or more photographs of a plant and must diagnose any disease visible on it.

OUTPUT RULES:
* Output a single, valid JSON object and nothing else - no wrapping markdown.
* List every plausible disease as a prediction, most likely first.
* confidence is your belief in [0.0, 1.0] that the prediction is correct.
* severity is one of "low", "medium", "high", "critical".
* If the plant looks healthy, set is_healthy to true and predictions to [].
* disease_id is the snake_case identifier of the disease (e.g. "leaf_blight").

OUTPUT SCHEMA:
{
  "plant_name": "<common plant name or null>",
  "is_healthy": <true | false>,
  "predictions": [
    {
      "disease_id": "<snake_case id>",
      "name": "<display name>",
      "confidence": <0.0-1.0>,
      "severity": "<low | medium | high | critical>",
      "description": "<1-2 sentences on what is visible>",
      "symptoms": ["<symptom 1>", "<symptom 2>"],
      "causes": ["<cause 1>"],
      "treatments": ["<treatment 1>", "<treatment 2>"],
      "prevention": ["<prevention 1>"]
    }
  ]
}
`

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type visionRequest struct {
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
	Contents         []content        `json:"contents"`
}

type visionResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client calls a hosted vision LLM and normalizes its JSON analysis into
// the common prediction shape.
type Client struct {
	name     string
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

func NewClient(cfg models.ProviderConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	return &Client{
		name:     cfg.Name,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: endpoint,
		http:     &http.Client{},
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Classify(ctx context.Context, images []models.NormalizedImage) (*models.ProviderResult, error) {
	if len(images) == 0 {
		return nil, models.NewProviderError(c.name, "no images to classify", false)
	}

	parts := []part{{Text: promptSystem}}
	if hint := providers.CropHint(ctx); hint != "" {
		parts = append(parts, part{Text: "The plant is believed to be: " + hint})
	}
	for _, img := range images {
		parts = append(parts, part{
			InlineData: &inlineData{
				MimeType: "image/jpeg",
				Data:     img.Base64,
			},
		})
	}

	reqBody := visionRequest{
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
		Contents:         []content{{Role: "user", Parts: parts}},
	}

	started := time.Now()
	text, err := c.generateContent(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	analysis, err := parser.ParseLeafAnalysis(text)
	if err != nil {
		// A schema-violating response will not get better on retry.
		return nil, models.NewProviderError(c.name, "unparseable response: "+err.Error(), false)
	}

	preds := make([]models.Prediction, 0, len(analysis.Predictions))
	for _, p := range analysis.Predictions {
		preds = append(preds, models.Prediction{
			DiseaseID:   p.DiseaseID,
			Name:        p.Name,
			Confidence:  p.Confidence,
			Severity:    models.Severity(p.Severity),
			Description: p.Description,
			Symptoms:    p.Symptoms,
			Causes:      p.Causes,
			Treatments:  p.Treatments,
			Prevention:  p.Prevention,
		})
	}
	providers.SortPredictions(preds)
	providers.FillSeverity(preds)

	overall := 0.0
	if len(preds) > 0 {
		overall = preds[0].Confidence
	} else if analysis.IsHealthy {
		overall = 1.0
	}

	return &models.ProviderResult{
		Provider:       c.name,
		Predictions:    preds,
		Confidence:     overall,
		IsHealthy:      analysis.IsHealthy,
		ProcessingTime: time.Since(started),
		ImageCount:     len(images),
		RawResponse:    text,
	}, nil
}

func (c *Client) generateContent(ctx context.Context, body visionRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", models.NewProviderError(c.name, "failed to marshal request: "+err.Error(), false)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return "", models.NewProviderError(c.name, "failed to create request: "+err.Error(), false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", models.NewProviderError(c.name, "request canceled", false)
		}
		// Network errors and deadline hits are transient.
		return "", models.NewProviderError(c.name, "request failed: "+err.Error(), true)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewProviderError(c.name, "failed to read response: "+err.Error(), true)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
		return "", models.NewProviderError(c.name, msg, providers.RetryableStatus(resp.StatusCode))
	}

	var vr visionResponse
	if err := json.Unmarshal(bodyBytes, &vr); err != nil {
		return "", models.NewProviderError(c.name, "failed to parse response: "+err.Error(), false)
	}
	if len(vr.Candidates) == 0 {
		return "", models.NewProviderError(c.name, "no candidates in response", true)
	}
	for _, p := range vr.Candidates[0].Content.Parts {
		if p.Text != "" {
			return p.Text, nil
		}
	}
	return "", models.NewProviderError(c.name, "no text part in response", true)
}
