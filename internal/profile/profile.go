// Package profile reads and writes organization profiles. Files ending in
// .yaml or .yml are YAML; everything else is JSON. Both use the same
// camelCase keys.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haricheung/grantflow/internal/types"
)

// ErrNoName is returned for a profile without an organization name.
var ErrNoName = errors.New("profile: organization name is required")

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the profile at path and normalizes every list to non-nil.
//
// Expectations:
//   - YAML and JSON files with the same keys decode to equal profiles
//   - Unknown organization types are kept as written
//   - A profile without a name fails with ErrNoName
func Load(path string) (types.OrganizationProfile, error) {
	var p types.OrganizationProfile
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("profile: %w", err)
	}
	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return p, fmt.Errorf("profile: %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("profile: %s: %w", path, err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return p, fmt.Errorf("%w: %s", ErrNoName, path)
	}
	p.Normalize()
	return p, nil
}

// Save writes p to path in the format its extension selects.
func Save(path string, p types.OrganizationProfile) error {
	p.Normalize()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	if isYAML(path) {
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("profile: encode: %w", err)
		}
		if data, err = yaml.Marshal(doc); err != nil {
			return fmt.Errorf("profile: encode: %w", err)
		}
	} else {
		data = append(data, '\n')
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("profile: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	return nil
}

// yamlToJSON re-encodes a YAML document as JSON so the json tags of the
// profile types apply to both formats.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
