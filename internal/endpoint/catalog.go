package endpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk list of statically known endpoints.
//
// TOML example:
//
//	[[custom_services]]
//	id = "dream-console"
//	name = "Dream Console"
//	description = "A terminal that imagines its own filesystem"
//	base_url = "http://localhost:1234"
//
//	[[models]]
//	source = "remote"
//	base_url = "https://api.example.com"
//	model_id = "gpt-4o-mini"
type Catalog struct {
	CustomServices []CatalogService `toml:"custom_services" yaml:"custom_services"`
	Models         []CatalogModel   `toml:"models" yaml:"models"`
}

// CatalogService describes one custom service
type CatalogService struct {
	ID          string `toml:"id" yaml:"id"`
	Name        string `toml:"name" yaml:"name"`
	Description string `toml:"description" yaml:"description"`
	BaseURL     string `toml:"base_url" yaml:"base_url"`
}

// CatalogModel pins a model endpoint without waiting for discovery
type CatalogModel struct {
	Source  string `toml:"source" yaml:"source"`
	BaseURL string `toml:"base_url" yaml:"base_url"`
	ModelID string `toml:"model_id" yaml:"model_id"`
}

// LoadCatalog reads a .toml, .yaml or .yml catalog and returns its endpoints
func LoadCatalog(path string) ([]Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cat Catalog
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &cat); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}

	return cat.Endpoints()
}

// Endpoints validates the catalog and converts it
func (c Catalog) Endpoints() ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(c.CustomServices)+len(c.Models))
	seen := make(map[string]bool)

	add := func(e Endpoint) error {
		if seen[e.ID] {
			return fmt.Errorf("duplicate endpoint id %q", e.ID)
		}
		seen[e.ID] = true
		out = append(out, e)
		return nil
	}

	for i, s := range c.CustomServices {
		if s.ID == "" || s.BaseURL == "" {
			return nil, fmt.Errorf("custom_services[%d]: id and base_url are required", i)
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		if err := add(NewCustomService(s.ID, name, s.Description, s.BaseURL)); err != nil {
			return nil, err
		}
	}

	for i, m := range c.Models {
		if m.Source == "" || m.BaseURL == "" || m.ModelID == "" {
			return nil, fmt.Errorf("models[%d]: source, base_url and model_id are required", i)
		}
		if m.Source == SourceCustom {
			return nil, fmt.Errorf("models[%d]: source %q is reserved for custom services", i, SourceCustom)
		}
		if err := add(NewModelEndpoint(m.Source, m.BaseURL, m.ModelID)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
