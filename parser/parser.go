package parser

import (
	"encoding/json"
	"errors"
	"strings"
)

// LeafAnalysis is the strict JSON document the vision-LLM provider is
// prompted to return.
type LeafAnalysis struct {
	PlantName   string           `json:"plant_name"`
	IsHealthy   bool             `json:"is_healthy"`
	Predictions []LeafPrediction `json:"predictions"`
}

// LeafPrediction is one disease candidate inside a LeafAnalysis.
type LeafPrediction struct {
	DiseaseID   string   `json:"disease_id"`
	Name        string   `json:"name"`
	Confidence  float64  `json:"confidence"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Symptoms    []string `json:"symptoms"`
	Causes      []string `json:"causes"`
	Treatments  []string `json:"treatments"`
	Prevention  []string `json:"prevention"`
}

// ExtractJSONFromMarkdown extracts JSON from markdown code blocks. Vision
// LLMs wrap output in ``` fences despite being told not to.
func ExtractJSONFromMarkdown(response string) string {
	startMarker := "```"
	endMarker := "```"

	startIdx := strings.Index(response, startMarker)
	if startIdx == -1 {
		// No code block found, try to find JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return response
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx == -1 {
			return response
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	// Find the end of the first code block
	endIdx := strings.Index(response[startIdx+len(startMarker):], endMarker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(startMarker)

	// Extract content between the markers
	content := response[startIdx+len(startMarker) : endIdx]

	// Remove the language identifier if present (e.g., "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// ParseLeafAnalysis parses the LLM response and validates the schema.
func ParseLeafAnalysis(response string) (*LeafAnalysis, error) {
	cleaned := strings.TrimSpace(response)
	jsonContent := ExtractJSONFromMarkdown(cleaned)

	var result LeafAnalysis
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		return nil, errors.New("failed to parse JSON response: " + err.Error())
	}

	if !result.IsHealthy && len(result.Predictions) == 0 {
		return nil, errors.New("unhealthy analysis with no predictions")
	}
	for i := range result.Predictions {
		p := &result.Predictions[i]
		if p.DiseaseID == "" {
			return nil, errors.New("prediction missing disease_id")
		}
		if p.Name == "" {
			return nil, errors.New("prediction missing name")
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			return nil, errors.New("confidence must be between 0 and 1")
		}
	}
	return &result, nil
}
