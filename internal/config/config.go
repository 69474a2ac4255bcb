package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from intentmerge.yml.
type ProjectConfig struct {
	DryRun       bool     `yaml:"dryRun,omitempty"`
	EnableAI     bool     `yaml:"enableAI,omitempty"`
	AIEndpoint   string   `yaml:"aiEndpoint,omitempty"`
	AIModel      string   `yaml:"aiModel,omitempty"`
	APIKeyEnv    string   `yaml:"apiKeyEnv,omitempty"`
	ContextLines int      `yaml:"contextLines,omitempty"`
	ExcludeDirs  []string `yaml:"excludeDirs,omitempty"`
	Concurrency  int      `yaml:"concurrency,omitempty"`
	Verbose      bool     `yaml:"verbose,omitempty"`
}

// Load attempts to read intentmerge.yml or intentmerge.yaml from the given
// directory. A missing file is not an error, and keys omitted from the file
// keep their defaults. AI resolution is on unless disabled explicitly.
func Load(dir string) (*ProjectConfig, error) {
	cfg := ProjectConfig{EnableAI: true}
	for _, name := range []string{"intentmerge.yml", "intentmerge.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return &cfg, nil
}
