package leafscan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plant-diagnosis-pipeline/models"
	"plant-diagnosis-pipeline/providers"
)

func testImage() models.NormalizedImage {
	return models.NormalizedImage{
		Bytes:  []byte{0xFF, 0xD8, 0xFF},
		Base64: "/9j/",
		Width:  64,
		Height: 64,
		Format: "jpeg",
	}
}

// candidateResponse wraps an analysis payload in the vision API's
// candidates envelope.
func candidateResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestClassifyParsesAnalysis(t *testing.T) {
	analysis := `{
		"plant_name": "Tomato",
		"is_healthy": false,
		"predictions": [
			{
				"disease_id": "late_blight",
				"name": "Late Blight",
				"confidence": 0.88,
				"severity": "high",
				"description": "Dark water-soaked lesions on leaves.",
				"symptoms": ["brown lesions", "white mold on undersides"],
				"causes": ["Phytophthora infestans"],
				"treatments": ["Apply copper fungicide"],
				"prevention": ["Avoid overhead watering"]
			},
			{
				"disease_id": "septoria_leaf_spot",
				"name": "Septoria Leaf Spot",
				"confidence": 0.35,
				"severity": "low",
				"description": "Small circular spots.",
				"symptoms": ["small gray spots"],
				"causes": ["Septoria lycopersici"],
				"treatments": ["Remove affected leaves"],
				"prevention": ["Mulch around base"]
			}
		]
	}`

	var body visionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "leafscan-v1") {
			t.Errorf("model missing from path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Write([]byte(candidateResponse(analysis)))
	}))
	defer server.Close()

	client := NewClient(models.ProviderConfig{
		Name:     "leafscan",
		APIKey:   "test-key",
		Model:    "leafscan-v1",
		Endpoint: server.URL,
	})

	ctx := providers.WithCropHint(context.Background(), "tomato")
	result, err := client.Classify(ctx, []models.NormalizedImage{testImage()})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}

	if len(body.Contents) != 1 {
		t.Fatalf("request has %d contents, want 1", len(body.Contents))
	}
	// Prompt, crop hint, then one inline image.
	parts := body.Contents[0].Parts
	if len(parts) != 3 {
		t.Fatalf("request has %d parts, want 3", len(parts))
	}
	if !strings.Contains(parts[1].Text, "tomato") {
		t.Errorf("crop hint not forwarded: %q", parts[1].Text)
	}
	if parts[2].InlineData == nil || parts[2].InlineData.Data != "/9j/" {
		t.Error("image not attached as inline data")
	}

	if len(result.Predictions) != 2 {
		t.Fatalf("got %d predictions, want 2", len(result.Predictions))
	}
	top := result.Predictions[0]
	if top.DiseaseID != "late_blight" || top.Confidence != 0.88 {
		t.Errorf("top prediction = %s (%.2f)", top.DiseaseID, top.Confidence)
	}
	if top.Severity != models.SeverityHigh {
		t.Errorf("top severity = %q, want the model's own label", top.Severity)
	}
	if result.Confidence != 0.88 {
		t.Errorf("overall confidence = %v", result.Confidence)
	}
	if result.IsHealthy {
		t.Error("IsHealthy = true for diseased analysis")
	}
}

func TestClassifyHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse(`{"plant_name": "Basil", "is_healthy": true, "predictions": []}`)))
	}))
	defer server.Close()

	client := NewClient(models.ProviderConfig{Name: "leafscan", Model: "leafscan-v1", Endpoint: server.URL})
	result, err := client.Classify(context.Background(), []models.NormalizedImage{testImage()})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if !result.IsHealthy {
		t.Error("IsHealthy = false")
	}
	if result.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0 for a confident healthy verdict", result.Confidence)
	}
}

func TestClassifyFencedResponse(t *testing.T) {
	fenced := "```json\n{\"plant_name\": \"Rose\", \"is_healthy\": false, \"predictions\": [{\"disease_id\": \"black_spot\", \"name\": \"Black Spot\", \"confidence\": 0.7}]}\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse(fenced)))
	}))
	defer server.Close()

	client := NewClient(models.ProviderConfig{Name: "leafscan", Model: "leafscan-v1", Endpoint: server.URL})
	result, err := client.Classify(context.Background(), []models.NormalizedImage{testImage()})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Predictions[0].DiseaseID != "black_spot" {
		t.Errorf("DiseaseID = %q", result.Predictions[0].DiseaseID)
	}
	// The model gave no severity; it is derived from confidence.
	if result.Predictions[0].Severity != models.SeverityMedium {
		t.Errorf("Severity = %q, want medium for 0.7", result.Predictions[0].Severity)
	}
}

func TestClassifyUnparseableResponseNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse("The plant appears to have some kind of fungus.")))
	}))
	defer server.Close()

	client := NewClient(models.ProviderConfig{Name: "leafscan", Model: "leafscan-v1", Endpoint: server.URL})
	_, err := client.Classify(context.Background(), []models.NormalizedImage{testImage()})
	if err == nil {
		t.Fatal("Classify returned nil error")
	}
	pe, ok := err.(*models.ProviderError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if pe.Retryable {
		t.Error("schema violation marked retryable")
	}
}

func TestClassifyNoCandidatesRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := NewClient(models.ProviderConfig{Name: "leafscan", Model: "leafscan-v1", Endpoint: server.URL})
	_, err := client.Classify(context.Background(), []models.NormalizedImage{testImage()})
	pe, ok := err.(*models.ProviderError)
	if !ok {
		t.Fatalf("error = %v, want *models.ProviderError", err)
	}
	if !pe.Retryable {
		t.Error("empty candidate list should be retryable")
	}
}

func TestClassifyRateLimitRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(models.ProviderConfig{Name: "leafscan", Model: "leafscan-v1", Endpoint: server.URL})
	_, err := client.Classify(context.Background(), []models.NormalizedImage{testImage()})
	pe, ok := err.(*models.ProviderError)
	if !ok {
		t.Fatalf("error = %v, want *models.ProviderError", err)
	}
	if !pe.Retryable {
		t.Error("429 should be retryable")
	}
}
