package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models freightline.yml.
type Config struct {
	Tenant struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"tenant"`
	Defaults struct {
		Currency      string  `yaml:"currency"`
		Incoterms     string  `yaml:"incoterms"`
		MarginPercent float64 `yaml:"margin_percent"`
		Strategy      string  `yaml:"strategy"`
	} `yaml:"defaults"`
	Ranking struct {
		Cost        float64 `yaml:"cost"`
		TransitTime float64 `yaml:"transit_time"`
		Reliability float64 `yaml:"reliability"`
	} `yaml:"ranking"`
	Charges struct {
		Categories map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"categories"`
		Bases []string `yaml:"bases"`
	} `yaml:"charges"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with fl tenant config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Tenant.ID == "" {
		return fmt.Errorf("config.tenant.id is required")
	}
	if c.Defaults.Currency == "" {
		return fmt.Errorf("config.defaults.currency is required")
	}
	if len(c.Defaults.Currency) != 3 {
		return fmt.Errorf("config.defaults.currency must be a 3-letter code")
	}
	if c.Defaults.MarginPercent < 0 || c.Defaults.MarginPercent >= 100 {
		return fmt.Errorf("config.defaults.margin_percent must be in [0,100)")
	}
	switch c.Defaults.Strategy {
	case "", "standard", "legacy":
	default:
		// Custom strategies are registered at startup; accept any
		// non-empty name but reject whitespace-only values.
		if len(c.Defaults.Strategy) == 0 {
			return fmt.Errorf("config.defaults.strategy is empty")
		}
	}
	if c.Ranking.Cost < 0 || c.Ranking.TransitTime < 0 || c.Ranking.Reliability < 0 {
		return fmt.Errorf("config.ranking weights must be non-negative")
	}
	if c.Ranking.Cost+c.Ranking.TransitTime+c.Ranking.Reliability == 0 {
		return fmt.Errorf("config.ranking needs at least one positive weight")
	}
	for name := range c.Charges.Categories {
		if name == "" {
			return fmt.Errorf("config.charges.categories contains empty category id")
		}
	}
	for _, basis := range c.Charges.Bases {
		if basis == "" {
			return fmt.Errorf("config.charges.bases contains empty basis id")
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "freightline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(tenantID string) string {
	return fmt.Sprintf(defaultTemplate, tenantID, tenantID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a tenant.
func Default(tenantID string) *Config {
	var cfg Config
	cfg.Tenant.ID = tenantID
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(tenantID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `tenant:
  id: %s
  name: %s

defaults:
  currency: USD
  incoterms: FOB
  margin_percent: 15
  strategy: standard

ranking:
  cost: 0.4
  transit_time: 0.3
  reliability: 0.3

charges:
  categories:
    FREIGHT:
      description: "Main carriage freight"
    ORIGIN:
      description: "Origin handling and export fees"
    DESTINATION:
      description: "Destination handling and import fees"
    FUEL:
      description: "Fuel and bunker surcharges"
    CUSTOMS:
      description: "Customs clearance"
    DOC:
      description: "Documentation fees"
    ANCILLARY:
      description: "Unitemized surcharges and adjustments"

  bases:
    - PER_SHIPMENT
    - PER_CONTAINER
    - PER_KG
    - PER_CBM
`
