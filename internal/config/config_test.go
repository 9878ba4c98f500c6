package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateDefaultIsValid(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault("t-demo")))
	if err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Tenant.ID != "t-demo" {
		t.Fatalf("tenant id = %q, want t-demo", cfg.Tenant.ID)
	}
	if cfg.Defaults.MarginPercent != 15 {
		t.Fatalf("margin = %v, want 15", cfg.Defaults.MarginPercent)
	}
	if cfg.Ranking.Cost != 0.4 || cfg.Ranking.TransitTime != 0.3 || cfg.Ranking.Reliability != 0.3 {
		t.Fatalf("unexpected ranking weights: %+v", cfg.Ranking)
	}
	if _, ok := cfg.Charges.Categories["FREIGHT"]; !ok {
		t.Fatalf("default config missing FREIGHT category")
	}
}

func TestValidateRejectsMissingTenant(t *testing.T) {
	_, err := FromYAML([]byte("defaults:\n  currency: USD\n"))
	if err == nil || !strings.Contains(err.Error(), "tenant.id") {
		t.Fatalf("expected tenant.id error, got %v", err)
	}
}

func TestValidateRejectsBadCurrency(t *testing.T) {
	yml := strings.Replace(GenerateDefault("t1"), "currency: USD", "currency: DOLLARS", 1)
	_, err := FromYAML([]byte(yml))
	if err == nil || !strings.Contains(err.Error(), "3-letter") {
		t.Fatalf("expected currency error, got %v", err)
	}
}

func TestValidateRejectsZeroWeights(t *testing.T) {
	yml := GenerateDefault("t1")
	yml = strings.Replace(yml, "cost: 0.4", "cost: 0", 1)
	yml = strings.Replace(yml, "transit_time: 0.3", "transit_time: 0", 1)
	yml = strings.Replace(yml, "reliability: 0.3", "reliability: 0", 1)
	_, err := FromYAML([]byte(yml))
	if err == nil || !strings.Contains(err.Error(), "positive weight") {
		t.Fatalf("expected ranking weight error, got %v", err)
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for missing file")
	}
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "freightline.yml"), []byte(GenerateDefault("t-ws")), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tenant.ID != "t-ws" {
		t.Fatalf("tenant id = %q", cfg.Tenant.ID)
	}
}
