package rule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads rules files from disk and parses them into a RulesConfig.
type Loader struct{}

// NewLoader creates a rules-file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the rules file at path. A parse failure yields no
// config at all rather than a partial one — the caller is expected to log
// the error and leave its current rule store untouched.
func (l *Loader) Load(path string) (*RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}
	return l.LoadBytes(data)
}

// LoadBytes parses rules file contents already read into memory.
func (l *Loader) LoadBytes(data []byte) (*RulesConfig, error) {
	var yamlFile yamlRulesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("parsing rules YAML: %w", err)
	}

	cfg := &RulesConfig{PullRules: make([]PullRule, 0, len(yamlFile.PullRules))}
	for _, yr := range yamlFile.PullRules {
		cfg.PullRules = append(cfg.PullRules, convertYAMLPullRule(yr))
	}
	return cfg, nil
}
