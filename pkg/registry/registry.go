// pkg/registry/registry.go
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRegistry reads a registry file; .yaml/.yml select YAML, anything else JSON.
func LoadRegistry(path string) (*CatalogRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg CatalogRegistry
	if err := decode(path, data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &reg, nil
}

// WriteRegistry writes reg in the format chosen by path's extension.
func WriteRegistry(path string, reg *CatalogRegistry) error {
	data, err := Encode(reg, formatOf(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Encode renders v as "yaml" or "json".
func Encode(v interface{}, format string) ([]byte, error) {
	if format == "yaml" {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(v, "", "  ")
}

func decode(path string, data []byte, v interface{}) error {
	if formatOf(path) == "yaml" {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}
