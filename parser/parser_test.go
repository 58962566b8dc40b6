package parser

import (
	"testing"
)

func TestParseLeafAnalysis(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
		wantID   string
	}{
		{
			name: "valid JSON response",
			response: `{
				"plant_name": "Tomato",
				"is_healthy": false,
				"predictions": [
					{
						"disease_id": "late_blight",
						"name": "Late Blight",
						"confidence": 0.92,
						"severity": "high",
						"description": "Dark water-soaked lesions on leaves and stems.",
						"symptoms": ["brown lesions", "white mold on leaf underside"],
						"causes": ["Phytophthora infestans"],
						"treatments": ["apply copper fungicide"],
						"prevention": ["rotate crops"]
					}
				]
			}`,
			wantErr: false,
			wantID:  "late_blight",
		},
		{
			name: "JSON wrapped in markdown fences",
			response: "```json\n" + `{
				"plant_name": "Wheat",
				"is_healthy": false,
				"predictions": [
					{"disease_id": "leaf_rust", "name": "Leaf Rust", "confidence": 0.8}
				]
			}` + "\n```",
			wantErr: false,
			wantID:  "leaf_rust",
		},
		{
			name: "JSON with surrounding prose",
			response: `Here is the analysis you requested: {
				"plant_name": "Apple",
				"is_healthy": false,
				"predictions": [
					{"disease_id": "apple_scab", "name": "Apple Scab", "confidence": 0.7}
				]
			} Hope this helps!`,
			wantErr: false,
			wantID:  "apple_scab",
		},
		{
			name: "healthy plant with no predictions",
			response: `{
				"plant_name": "Basil",
				"is_healthy": true,
				"predictions": []
			}`,
			wantErr: false,
			wantID:  "",
		},
		{
			name: "unhealthy with empty predictions",
			response: `{
				"plant_name": "Tomato",
				"is_healthy": false,
				"predictions": []
			}`,
			wantErr: true,
		},
		{
			name: "missing disease_id",
			response: `{
				"is_healthy": false,
				"predictions": [{"name": "Something", "confidence": 0.5}]
			}`,
			wantErr: true,
		},
		{
			name: "missing name",
			response: `{
				"is_healthy": false,
				"predictions": [{"disease_id": "rust", "confidence": 0.5}]
			}`,
			wantErr: true,
		},
		{
			name: "confidence out of range",
			response: `{
				"is_healthy": false,
				"predictions": [{"disease_id": "rust", "name": "Rust", "confidence": 1.5}]
			}`,
			wantErr: true,
		},
		{
			name:     "not JSON at all",
			response: "I could not analyze this image.",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseLeafAnalysis(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseLeafAnalysis returned nil error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLeafAnalysis returned error: %v", err)
			}
			if tt.wantID != "" {
				if len(result.Predictions) == 0 {
					t.Fatal("no predictions parsed")
				}
				if result.Predictions[0].DiseaseID != tt.wantID {
					t.Errorf("DiseaseID = %q, want %q", result.Predictions[0].DiseaseID, tt.wantID)
				}
			}
		})
	}
}

func TestExtractJSONFromMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "fenced with language",
			input:    "```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "fenced without language",
			input:    "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "prose around JSON",
			input:    "Sure! {\"a\": 1} done.",
			expected: `{"a": 1}`,
		},
		{
			name:     "no JSON",
			input:    "nothing here",
			expected: "nothing here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSONFromMarkdown(tt.input); got != tt.expected {
				t.Errorf("ExtractJSONFromMarkdown(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
