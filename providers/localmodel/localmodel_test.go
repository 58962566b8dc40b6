package localmodel

import "testing"

func TestParseLabel(t *testing.T) {
	tests := []struct {
		label     string
		plant     string
		diseaseID string
		name      string
	}{
		{"Tomato___Late_blight", "Tomato", "late_blight", "Late Blight"},
		{"Apple___Cedar_apple_rust", "Apple", "cedar_apple_rust", "Cedar Apple Rust"},
		{"Pepper,_bell___Bacterial_spot", "Pepper, bell", "bacterial_spot", "Bacterial Spot"},
		{"Corn_(maize)___Common_rust_", "Corn (maize)", "common_rust", "Common Rust"},
		{"powdery_mildew", "", "powdery_mildew", "Powdery Mildew"},
		{"Rust", "", "rust", "Rust"},
	}
	for _, tt := range tests {
		plant, id, name := ParseLabel(tt.label)
		if plant != tt.plant || id != tt.diseaseID || name != tt.name {
			t.Errorf("ParseLabel(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.label, plant, id, name, tt.plant, tt.diseaseID, tt.name)
		}
	}
}

func TestIsHealthyLabel(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Tomato___healthy", true},
		{"Healthy", true},
		{"Tomato___Late_blight", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsHealthyLabel(tt.label); got != tt.want {
			t.Errorf("IsHealthyLabel(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}
