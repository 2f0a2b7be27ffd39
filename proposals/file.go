package proposals

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File is the optional harness file. It can be written as YAML or TOML; the
// extension decides.
type File struct {
	Proposals        Set      `yaml:"proposals" toml:"proposals"`
	ExcludedPrefixes []string `yaml:"excluded_prefixes" toml:"excluded_prefixes"`
	Converter        []string `yaml:"converter" toml:"converter"`     // converter argv template
	EngineArgs       []string `yaml:"engine_args" toml:"engine_args"` // extra engine arguments
}

// LoadFile reads a harness file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading harness file: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("parsing harness file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing harness file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported harness file extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}

	if err := f.Proposals.Validate(); err != nil {
		return nil, fmt.Errorf("invalid harness file: %w", err)
	}
	return &f, nil
}
