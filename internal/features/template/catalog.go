package template

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Templates []map[string]any `yaml:"templates"`
}

// LoadCatalog parses a YAML template catalog. Entries are decoded through
// their JSON form so the catalog uses the same field names as the API.
func LoadCatalog(data []byte) ([]Template, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	templates := make([]Template, 0, len(file.Templates))
	for i, entry := range file.Templates {
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("template catalog entry %d: %w", i, err)
		}
		var tpl Template
		if err := json.Unmarshal(raw, &tpl); err != nil {
			return nil, fmt.Errorf("template catalog entry %d: %w", i, err)
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

// SystemCatalog returns the built-in templates.
func SystemCatalog() ([]Template, error) {
	return LoadCatalog(catalogYAML)
}
