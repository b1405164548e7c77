package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML (.yaml, .yml) or JSON (.json, comments allowed)
// rules file and resolves it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return LoadBytes(data, strings.ToLower(filepath.Ext(path)))
}

// LoadBytes decodes data according to ext and resolves it.
func LoadBytes(data []byte, ext string) (*Config, error) {
	raw, err := decode(data, ext)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func decode(data []byte, ext string) (map[string]any, error) {
	raw := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml rules: %w", err)
		}
	case ".json", "":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.UseNumber()
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode json rules: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported rules file extension %q", ext)
	}
	return raw, nil
}
