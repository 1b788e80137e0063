package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_types.yaml
var defaultTypesYAML []byte

// TypeDefinition describes one paper type and the attributes it accepts.
type TypeDefinition struct {
	Name       string   `yaml:"name"`
	Attributes []string `yaml:"attributes"`
}

type typeCatalogFile struct {
	Types []TypeDefinition `yaml:"types"`
}

// LoadTypes reads the type-attribute catalog from path, or the embedded
// default catalog when path is empty.
func LoadTypes(path string) ([]TypeDefinition, error) {
	data := defaultTypesYAML
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read types file: %w", err)
		}
		data = raw
	}
	return ParseTypes(data)
}

// ParseTypes decodes and validates a YAML type catalog.
func ParseTypes(data []byte) ([]TypeDefinition, error) {
	var file typeCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: decode types: %w", err)
	}
	if len(file.Types) == 0 {
		return nil, errors.New("config: type catalog is empty")
	}

	seen := make(map[string]struct{}, len(file.Types))
	types := make([]TypeDefinition, 0, len(file.Types))
	for i, def := range file.Types {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, fmt.Errorf("config: type #%d has no name", i+1)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("config: duplicate type %q", name)
		}
		seen[name] = struct{}{}

		if len(def.Attributes) == 0 {
			return nil, fmt.Errorf("config: type %q declares no attributes", name)
		}
		attrs := make([]string, 0, len(def.Attributes))
		attrSeen := make(map[string]struct{}, len(def.Attributes))
		for _, attr := range def.Attributes {
			attr = strings.TrimSpace(attr)
			if attr == "" {
				return nil, fmt.Errorf("config: type %q has an empty attribute", name)
			}
			if _, ok := attrSeen[attr]; ok {
				return nil, fmt.Errorf("config: type %q repeats attribute %q", name, attr)
			}
			attrSeen[attr] = struct{}{}
			attrs = append(attrs, attr)
		}
		types = append(types, TypeDefinition{Name: name, Attributes: attrs})
	}
	return types, nil
}
