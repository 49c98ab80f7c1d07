package auditory

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cocktail.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
sample_rate: 24000
extractor:
  kind: fbank
  dim: 64
memory:
  capacity: 50
  threshold: 0.8
attention:
  min_focus: 1s
  max_focus: 30s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SampleRate != 24000 || cfg.Extractor.Kind != ExtractorFbank || cfg.Extractor.Dim != 64 {
		t.Errorf("top-level = %+v", cfg)
	}
	if cfg.Memory.Capacity != 50 || cfg.Memory.Threshold != 0.8 {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	if cfg.Attention.MinFocus != time.Second || cfg.Attention.MaxFocus != 30*time.Second {
		t.Errorf("attention = %+v", cfg.Attention)
	}
	// Untouched keys keep their defaults.
	if cfg.Sampler.ParticleCount != 10 || cfg.Attention.NoiseThreshold != 0.2 || cfg.Memory.Prefix != "speaker" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := writeConfig(t, "memory:\n  capacty: 10\n")
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration for a misspelled key, got %v", err)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfig(t, "sample_rate: 8000\nextractor:\n  kind: mfcc\n")
	_, err := LoadConfig(path)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Error("ValidationError should match ErrInvalidConfiguration")
	}
	if len(verr) != 2 {
		t.Errorf("got %d field errors, want 2: %v", len(verr), verr)
	}
	if msg := err.Error(); !strings.Contains(msg, "SampleRate") || !strings.Contains(msg, "Kind") {
		t.Errorf("message should name both fields: %s", msg)
	}
}

func TestLoadConfigRejectsZeroThresholds(t *testing.T) {
	path := writeConfig(t, "memory:\n  threshold: 0\nattention:\n  noise_threshold: 0\n")
	_, err := LoadConfig(path)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := make(map[string]string)
	for _, fe := range verr {
		fields[fe.Field] = fe.Message
	}
	for _, f := range []string{"Config.Memory.Threshold", "Config.Attention.NoiseThreshold"} {
		if msg, ok := fields[f]; !ok || msg != "must be greater than 0" {
			t.Errorf("%s: got %q, want a zero rejection (all: %v)", f, msg, verr)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
