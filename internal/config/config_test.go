package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Extractor.URL == "" {
		t.Error("expected extractor URL default")
	}
	if cfg.Extractor.Dim <= 0 {
		t.Errorf("expected positive extractor dim, got %d", cfg.Extractor.Dim)
	}
	if cfg.Database.MaxOpenConns <= 0 {
		t.Errorf("expected positive MaxOpenConns, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadPolicyDefaults(t *testing.T) {
	cfg := Load()
	p := cfg.Defaults.Policy

	if p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1 {
		t.Errorf("similarity threshold default out of range: %f", p.SimilarityThreshold)
	}
	if p.WorkStartTime != "09:00" {
		t.Errorf("expected default work start 09:00, got %q", p.WorkStartTime)
	}
	if p.GracePeriodMinutes != 10 {
		t.Errorf("expected default grace 10, got %d", p.GracePeriodMinutes)
	}
	if !p.LivenessCheckEnabled {
		t.Error("expected liveness enabled by default")
	}
	if p.LivenessFailClosed {
		t.Error("expected fail-open by default")
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   int
		want  int
	}{
		{"unset", "", 7, 7},
		{"valid", "42", 7, 42},
		{"invalid", "abc", 7, 7},
		{"negative", "-3", 7, 7},
		{"zero", "0", 7, 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.value != "" {
				t.Setenv("TEST_ENV_INT", tc.value)
			}
			got := envInt("TEST_ENV_INT", tc.def)
			if got != tc.want {
				t.Errorf("envInt(%q, %d) = %d, want %d", tc.value, tc.def, got, tc.want)
			}
		})
	}
}
