// ABOUTME: TOML model-preset catalog loading
// ABOUTME: Lets operators name model+temperature combinations in models.toml

package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Preset is a named model configuration from the presets catalog.
type Preset struct {
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	Description string  `toml:"description"`
}

// presetsFile is the on-disk shape of the catalog:
//
//	[presets.fast]
//	model = "gpt-4o-mini"
//	temperature = 0.7
//	description = "cheap default"
type presetsFile struct {
	Presets map[string]Preset `toml:"presets"`
}

// LoadPresets reads a TOML preset catalog. A missing file is not an error:
// the catalog is optional and an empty map is returned.
func LoadPresets(path string) (map[string]Preset, error) {
	if path == "" {
		return map[string]Preset{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]Preset{}, nil
	}

	var file presetsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parsing presets file: %w", err)
	}

	for name, p := range file.Presets {
		if p.Model == "" {
			return nil, fmt.Errorf("preset %q: model is required", name)
		}
	}

	if file.Presets == nil {
		file.Presets = map[string]Preset{}
	}
	return file.Presets, nil
}
