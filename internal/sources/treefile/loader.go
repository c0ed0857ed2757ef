package treefile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the bookmark tree YAML file.
type Loader struct {
	filePath string
}

// NewLoader creates a new tree file loader.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the tree file.
func (l *Loader) Load() (*TreeConfig, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	var config TreeConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse tree yaml: %w", err)
	}

	return &config, nil
}
